package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requirement or document does not exist.
	ErrNotFound = errors.New("requirement or document not found")
	// ErrVersionMismatch is returned when a version-checked update loses a race.
	ErrVersionMismatch = errors.New("record was modified concurrently")
)

// DocumentStatus is the review state of an uploaded lead document.
type DocumentStatus string

const (
	StatusPending  DocumentStatus = "pending"
	StatusApproved DocumentStatus = "approved"
	StatusRejected DocumentStatus = "rejected"
)

// Requirement is one configured document requirement. StageID is nil
// for process-level requirements that apply at any stage.
type Requirement struct {
	ID          uuid.UUID
	ProcessID   uuid.UUID
	StageID     *uuid.UUID
	Name        string
	Description *string
	Required    bool
	Show        bool
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Marker is an explicit "no documents required" record for a
// (process, stage) scope. Its presence suppresses fallback to broader
// scopes during resolution.
type Marker struct {
	ID        uuid.UUID
	ProcessID uuid.UUID
	StageID   *uuid.UUID
	CreatedAt time.Time
}

// LeadDocument is one uploaded file satisfying (or attempting to
// satisfy) a requirement.
type LeadDocument struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	RequirementID uuid.UUID
	Status        DocumentStatus
	FileKey       string
	FileURL       string
	FileType      string
	FileName      string
	Notes         *string
	UploadedAt    time.Time
	UpdatedAt     time.Time
}

// CreateRequirementParams contains data for creating a requirement.
type CreateRequirementParams struct {
	ProcessID   uuid.UUID
	StageID     *uuid.UUID
	Name        string
	Description *string
	Required    bool
	Show        bool
}

// UpdateRequirementParams contains data for a version-checked update.
type UpdateRequirementParams struct {
	Name        *string
	Description *string
	Required    *bool
	Show        *bool
	Version     int64
}

// CreateLeadDocumentParams contains data for recording an upload.
type CreateLeadDocumentParams struct {
	LeadID        uuid.UUID
	RequirementID uuid.UUID
	FileKey       string
	FileURL       string
	FileType      string
	FileName      string
	Notes         *string
}

// Repository is the persistence boundary for document requirements and
// lead documents.
type Repository interface {
	// ListStageRequirements returns requirements scoped to the exact
	// (process, stage) pair, unfiltered. Visibility filtering happens in
	// the resolver so "configured but all hidden" stays distinguishable.
	ListStageRequirements(ctx context.Context, processID, stageID uuid.UUID) ([]Requirement, error)
	// ListProcessRequirements returns process-level (stage IS NULL) rows.
	ListProcessRequirements(ctx context.Context, processID uuid.UUID) ([]Requirement, error)
	// ListAllRequirements returns every requirement of a process for admin views.
	ListAllRequirements(ctx context.Context, processID uuid.UUID) ([]Requirement, error)
	GetRequirement(ctx context.Context, id uuid.UUID) (Requirement, error)
	CreateRequirement(ctx context.Context, params CreateRequirementParams) (Requirement, error)
	UpdateRequirement(ctx context.Context, id uuid.UUID, params UpdateRequirementParams) (Requirement, error)
	DeleteRequirement(ctx context.Context, id uuid.UUID) error

	// HasMarker reports whether a "no documents required" marker exists
	// for the scope (stageID nil = process level).
	HasMarker(ctx context.Context, processID uuid.UUID, stageID *uuid.UUID) (bool, error)
	// SetMarker creates the marker; setting an existing one is a no-op.
	SetMarker(ctx context.Context, processID uuid.UUID, stageID *uuid.UUID) error
	ClearMarker(ctx context.Context, processID uuid.UUID, stageID *uuid.UUID) error

	ListLeadDocuments(ctx context.Context, leadID uuid.UUID) ([]LeadDocument, error)
	GetLeadDocument(ctx context.Context, id uuid.UUID) (LeadDocument, error)
	CreateLeadDocument(ctx context.Context, params CreateLeadDocumentParams) (LeadDocument, error)
	UpdateLeadDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus, notes *string) (LeadDocument, error)
	DeleteLeadDocument(ctx context.Context, id uuid.UUID) error
}
