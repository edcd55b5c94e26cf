// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"leadcrm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// LeadCreated is published when a new lead is created.
type LeadCreated struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Phone  string    `json:"phone"`
	Email  *string   `json:"email,omitempty"`
}

func (e LeadCreated) EventName() string { return "pipeline.lead.created" }

// StageTransitioned is published after every successful stage transition.
// Downstream consumers (dashboards, timelines, the audit stream) subscribe
// to it; the pipeline does not depend on any subscriber existing.
type StageTransitioned struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	ProcessID      uuid.UUID  `json:"processId"`
	FromStageID    *uuid.UUID `json:"fromStageId,omitempty"`
	ToStageID      uuid.UUID  `json:"toStageId"`
	ToStageName    string     `json:"toStageName"`
	Status         string     `json:"status"`
	ActorID        *uuid.UUID `json:"actorId,omitempty"`
	Note           *string    `json:"note,omitempty"`
	TransitionedAt time.Time  `json:"transitionedAt"`
}

func (e StageTransitioned) EventName() string { return "pipeline.stage.transitioned" }

// ProcessAssigned is published when a lead is enrolled in (or switched to) a process.
type ProcessAssigned struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	ProcessID uuid.UUID `json:"processId"`
	Enrolled  bool      `json:"enrolled"` // false when only the current pointer moved
}

func (e ProcessAssigned) EventName() string { return "pipeline.process.assigned" }

// ProcessUnassigned is published when a lead leaves a process.
type ProcessUnassigned struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	ProcessID uuid.UUID `json:"processId"`
}

func (e ProcessUnassigned) EventName() string { return "pipeline.process.unassigned" }

// =============================================================================
// Documents Domain Events
// =============================================================================

// LeadDocumentReviewed is published when a lead document is approved or rejected.
type LeadDocumentReviewed struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	DocumentID    uuid.UUID `json:"documentId"`
	RequirementID uuid.UUID `json:"requirementId"`
	Status        string    `json:"status"`
}

func (e LeadDocumentReviewed) EventName() string { return "documents.lead_document.reviewed" }
