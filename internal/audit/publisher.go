// Package audit mirrors stage transitions into a Redis Stream so
// external consumers (reporting, data warehouse loaders) can tail the
// transition log without touching the database.
package audit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"leadcrm_backend/internal/events"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"
)

// maxStreamLen caps the stream with approximate trimming; consumers
// that need full retention should drain into their own store.
const maxStreamLen = 100_000

// Publisher appends stage transitions to a Redis Stream.
type Publisher struct {
	client *redis.Client
	stream string
	log    *logger.Logger
}

// NewPublisher connects to Redis using the audit configuration.
func NewPublisher(cfg config.AuditConfig, log *logger.Logger) (*Publisher, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewPublisherWithClient(redis.NewClient(opt), cfg.GetAuditStreamName(), log), nil
}

// NewPublisherWithClient wraps an existing Redis client.
func NewPublisherWithClient(client *redis.Client, stream string, log *logger.Logger) *Publisher {
	return &Publisher{client: client, stream: stream, log: log}
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Handle appends a StageTransitioned event to the stream. Other event
// types are ignored so the publisher can be subscribed broadly.
func (p *Publisher) Handle(ctx context.Context, event events.Event) error {
	transition, ok := event.(events.StageTransitioned)
	if !ok {
		return nil
	}

	values := map[string]interface{}{
		"lead_id":         transition.LeadID.String(),
		"process_id":      transition.ProcessID.String(),
		"to_stage_id":     transition.ToStageID.String(),
		"to_stage_name":   transition.ToStageName,
		"status":          transition.Status,
		"transitioned_at": transition.TransitionedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if transition.FromStageID != nil {
		values["from_stage_id"] = transition.FromStageID.String()
	}
	if transition.ActorID != nil {
		values["actor_id"] = transition.ActorID.String()
	}
	if transition.Note != nil {
		values["note"] = *transition.Note
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("append to audit stream: %w", err)
	}

	p.log.Debug("audit entry appended", "stream", p.stream, "entry_id", id, "lead_id", transition.LeadID)
	return nil
}
