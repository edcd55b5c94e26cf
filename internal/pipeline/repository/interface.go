package repository

import (
	"context"
	"errors"
	"time"

	"leadcrm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a lead or related row does not exist.
	ErrNotFound = errors.New("lead not found")
	// ErrVersionMismatch is returned when a version-checked update loses a race.
	ErrVersionMismatch = errors.New("lead was modified concurrently")
	// ErrDuplicatePhone is returned when a lead with the phone already exists.
	ErrDuplicatePhone = errors.New("lead with this phone already exists")
)

// Lead is the pipeline's view of a lead: contact fields plus its
// current position. The position pointers are nullable; a lead fresh
// out of intake has a process but no stage yet.
type Lead struct {
	ID                   uuid.UUID
	FirstName            string
	LastName             string
	Email                *string
	Phone                string
	Status               domain.LeadStatus
	CurrentProcessID     *uuid.UUID
	CurrentStageID       *uuid.UUID
	Version              int64
	PortalToken          *string
	PortalTokenExpiresAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeletedAt            *time.Time
}

// Enrollment is one lead/process membership row.
type Enrollment struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	ProcessID  uuid.UUID
	EnrolledAt time.Time
}

// StageHistoryEntry is one row of the append-only transition log. The
// stage name is denormalized at write time so history survives stage
// deletion and renames.
type StageHistoryEntry struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	ProcessID   uuid.UUID
	StageID     uuid.UUID
	StageName   string
	FromStageID *uuid.UUID
	ActorID     *uuid.UUID
	Note        *string
	CreatedAt   time.Time
}

// CreateLeadParams contains data for creating a lead.
type CreateLeadParams struct {
	FirstName string
	LastName  string
	Email     *string
	Phone     string
}

// UpdateLeadParams contains data for a partial contact update.
type UpdateLeadParams struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

// ListLeadsParams filters and pages the lead list.
type ListLeadsParams struct {
	Status    *domain.LeadStatus
	ProcessID *uuid.UUID
	Search    *string
	Limit     int
	Offset    int
}

// TransitionParams moves a lead's current position. The history insert
// and the version-checked pointer update run in one transaction.
type TransitionParams struct {
	LeadID          uuid.UUID
	ProcessID       uuid.UUID
	StageID         uuid.UUID
	StageName       string
	FromStageID     *uuid.UUID
	NewStatus       *domain.LeadStatus
	ActorID         *uuid.UUID
	Note            *string
	ExpectedVersion int64
}

// SetPositionParams moves a lead's current process/stage pointers
// without recording history (process assignment, unassignment).
type SetPositionParams struct {
	LeadID          uuid.UUID
	ProcessID       *uuid.UUID
	StageID         *uuid.UUID
	ExpectedVersion int64
}

// Repository is the persistence boundary for lead pipeline state.
type Repository interface {
	CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error)
	GetLead(ctx context.Context, id uuid.UUID) (Lead, error)
	GetLeadByPhone(ctx context.Context, phone string) (Lead, error)
	ListLeads(ctx context.Context, params ListLeadsParams) ([]Lead, error)
	UpdateLead(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error)
	SoftDeleteLead(ctx context.Context, id uuid.UUID) error
	// ListLeadIDs pages over all live lead IDs for batch jobs.
	ListLeadIDs(ctx context.Context, limit int, afterID *uuid.UUID) ([]uuid.UUID, error)

	ListEnrollments(ctx context.Context, leadID uuid.UUID) ([]Enrollment, error)
	// AddEnrollment is idempotent: enrolling an already-enrolled lead is a no-op.
	AddEnrollment(ctx context.Context, leadID, processID uuid.UUID) error
	RemoveEnrollment(ctx context.Context, leadID, processID uuid.UUID) error

	// Transition appends a history row and moves the current pointers in
	// one transaction. The pointer update is version-checked; on a lost
	// race nothing is written and ErrVersionMismatch is returned.
	Transition(ctx context.Context, params TransitionParams) (Lead, error)
	// SetPosition is the version-checked pointer update without history.
	SetPosition(ctx context.Context, params SetPositionParams) (Lead, error)
	ListStageHistory(ctx context.Context, leadID uuid.UUID) ([]StageHistoryEntry, error)

	SetPortalToken(ctx context.Context, leadID uuid.UUID, token string, expiresAt time.Time) error
	RevokePortalToken(ctx context.Context, leadID uuid.UUID) error
	GetLeadByPortalToken(ctx context.Context, token string) (Lead, error)
}
