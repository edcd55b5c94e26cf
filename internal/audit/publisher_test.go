package audit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"leadcrm_backend/internal/events"
	"leadcrm_backend/platform/logger"
)

func newTestPublisher(t *testing.T) (*Publisher, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewPublisherWithClient(client, "lead:stage-transitions", logger.New("development")), client
}

func transitionEvent() events.StageTransitioned {
	event := events.StageTransitioned{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      uuid.New(),
		ProcessID:   uuid.New(),
		ToStageID:   uuid.New(),
		ToStageName: "Lead Converted",
		Status:      "converted",
	}
	event.TransitionedAt = time.Now().UTC()
	return event
}

func TestHandleAppendsStreamEntry(t *testing.T) {
	publisher, client := newTestPublisher(t)

	event := transitionEvent()
	note := "called back"
	event.Note = &note
	from := uuid.New()
	event.FromStageID = &from

	if err := publisher.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	entries, err := client.XRange(context.Background(), "lead:stage-transitions", "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	values := entries[0].Values
	if values["lead_id"] != event.LeadID.String() {
		t.Errorf("lead_id = %v, want %s", values["lead_id"], event.LeadID)
	}
	if values["to_stage_name"] != "Lead Converted" {
		t.Errorf("to_stage_name = %v", values["to_stage_name"])
	}
	if values["status"] != "converted" {
		t.Errorf("status = %v", values["status"])
	}
	if values["from_stage_id"] != from.String() {
		t.Errorf("from_stage_id = %v", values["from_stage_id"])
	}
	if values["note"] != "called back" {
		t.Errorf("note = %v", values["note"])
	}
}

func TestHandleOmitsOptionalFields(t *testing.T) {
	publisher, client := newTestPublisher(t)

	if err := publisher.Handle(context.Background(), transitionEvent()); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	entries, err := client.XRange(context.Background(), "lead:stage-transitions", "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	values := entries[0].Values
	for _, key := range []string{"from_stage_id", "actor_id", "note"} {
		if _, ok := values[key]; ok {
			t.Errorf("unexpected field %q", key)
		}
	}
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	publisher, client := newTestPublisher(t)

	event := events.LeadCreated{BaseEvent: events.NewBaseEvent(), LeadID: uuid.New(), Phone: "+12025550100"}
	if err := publisher.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	count, err := client.XLen(context.Background(), "lead:stage-transitions").Result()
	if err != nil {
		t.Fatalf("XLen: %v", err)
	}
	if count != 0 {
		t.Fatalf("stream length = %d, want 0", count)
	}
}

func TestHandleOrdersEntries(t *testing.T) {
	publisher, client := newTestPublisher(t)

	first := transitionEvent()
	second := transitionEvent()
	second.ToStageName = "Lead Dropped"
	second.Status = "dropped"

	if err := publisher.Handle(context.Background(), first); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := publisher.Handle(context.Background(), second); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	entries, err := client.XRange(context.Background(), "lead:stage-transitions", "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Values["status"] != "converted" || entries[1].Values["status"] != "dropped" {
		t.Fatalf("entries out of order: %v, %v", entries[0].Values["status"], entries[1].Values["status"])
	}
}
