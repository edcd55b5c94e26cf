package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a process or stage does not exist.
	ErrNotFound = errors.New("process or stage not found")
	// ErrVersionMismatch is returned when a version-checked update loses a race.
	ErrVersionMismatch = errors.New("record was modified concurrently")
)

// Process is a named, ordered pipeline a lead can be enrolled in.
type Process struct {
	ID           uuid.UUID
	Name         string
	Description  *string
	IsActive     bool
	IsPrimary    bool
	DisplayOrder int
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Stage is one ordered step within a process. DisplayOrder defines the
// transition sequence by convention; stages are only compared within the
// same process.
type Stage struct {
	ID           uuid.UUID
	ProcessID    uuid.UUID
	Name         string
	Description  *string
	Color        string
	IsActive     bool
	DisplayOrder int
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateProcessParams contains data for creating a process.
type CreateProcessParams struct {
	Name        string
	Description *string
}

// UpdateProcessParams contains data for a version-checked process update.
type UpdateProcessParams struct {
	Name         *string
	Description  *string
	IsActive     *bool
	DisplayOrder *int
	Version      int64
}

// CreateStageParams contains data for creating a stage under a process.
type CreateStageParams struct {
	ProcessID   uuid.UUID
	Name        string
	Description *string
	Color       string
}

// UpdateStageParams contains data for a version-checked stage update.
type UpdateStageParams struct {
	Name        *string
	Description *string
	Color       *string
	IsActive    *bool
	Version     int64
}

// Repository is the persistence boundary for the process/stage registry.
type Repository interface {
	ListProcesses(ctx context.Context, activeOnly bool) ([]Process, error)
	GetProcess(ctx context.Context, id uuid.UUID) (Process, error)
	GetPrimaryProcess(ctx context.Context) (Process, error)
	CreateProcess(ctx context.Context, params CreateProcessParams) (Process, error)
	UpdateProcess(ctx context.Context, id uuid.UUID, params UpdateProcessParams) (Process, error)
	// DeleteProcess removes the process and all of its stages in one transaction.
	DeleteProcess(ctx context.Context, id uuid.UUID) error

	ListStages(ctx context.Context, processID uuid.UUID) ([]Stage, error)
	GetStage(ctx context.Context, id uuid.UUID) (Stage, error)
	CreateStage(ctx context.Context, params CreateStageParams) (Stage, error)
	UpdateStage(ctx context.Context, id uuid.UUID, params UpdateStageParams) (Stage, error)
	DeleteStage(ctx context.Context, id uuid.UUID) error
	// SwapStageOrder exchanges the display order of two stages atomically.
	// Both rows are version-checked; either both change or neither does.
	SwapStageOrder(ctx context.Context, first Stage, second Stage) error
}
