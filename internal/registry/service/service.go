// Package service contains the business logic for the process/stage
// registry: the admin-managed catalog of pipelines and their ordered
// stages.
package service

import (
	"context"
	"errors"

	"leadcrm_backend/internal/registry/repository"
	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
)

// ReorderDirection indicates which way a stage moves in the order.
type ReorderDirection string

const (
	ReorderUp   ReorderDirection = "up"
	ReorderDown ReorderDirection = "down"
)

// Service implements registry operations on top of the repository.
type Service struct {
	repo repository.Repository
	log  *logger.Logger
}

// NewService creates a registry service.
func NewService(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// ListProcesses returns processes sorted by display order.
func (s *Service) ListProcesses(ctx context.Context, activeOnly bool) ([]repository.Process, error) {
	processes, err := s.repo.ListProcesses(ctx, activeOnly)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list processes", err)
	}
	return processes, nil
}

// GetProcess fetches one process.
func (s *Service) GetProcess(ctx context.Context, id uuid.UUID) (repository.Process, error) {
	process, err := s.repo.GetProcess(ctx, id)
	if err != nil {
		return repository.Process{}, s.mapRepoError(err, "process not found")
	}
	return process, nil
}

// PrimaryProcess returns the distinguished default process every lead
// is enrolled in.
func (s *Service) PrimaryProcess(ctx context.Context) (repository.Process, error) {
	process, err := s.repo.GetPrimaryProcess(ctx)
	if err != nil {
		return repository.Process{}, s.mapRepoError(err, "primary process not configured")
	}
	return process, nil
}

// CreateProcess adds a new process at the end of the display order.
func (s *Service) CreateProcess(ctx context.Context, params repository.CreateProcessParams) (repository.Process, error) {
	if params.Name == "" {
		return repository.Process{}, apperr.Validation("process name is required")
	}
	process, err := s.repo.CreateProcess(ctx, params)
	if err != nil {
		return repository.Process{}, apperr.Wrap(apperr.KindInternal, "failed to create process", err)
	}
	s.log.Info("process created", "process_id", process.ID, "name", process.Name)
	return process, nil
}

// UpdateProcess applies a version-checked partial update. Toggling
// is_active only affects future offering; enrolled leads keep their
// state.
func (s *Service) UpdateProcess(ctx context.Context, id uuid.UUID, params repository.UpdateProcessParams) (repository.Process, error) {
	if params.Name != nil && *params.Name == "" {
		return repository.Process{}, apperr.Validation("process name cannot be empty")
	}
	process, err := s.repo.UpdateProcess(ctx, id, params)
	if err != nil {
		return repository.Process{}, s.mapRepoError(err, "process not found")
	}
	return process, nil
}

// DeleteProcess removes a process and all of its stages.
func (s *Service) DeleteProcess(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteProcess(ctx, id); err != nil {
		return s.mapRepoError(err, "process not found")
	}
	s.log.Info("process deleted", "process_id", id)
	return nil
}

// ListStages returns a process's stages in ascending order.
func (s *Service) ListStages(ctx context.Context, processID uuid.UUID) ([]repository.Stage, error) {
	if _, err := s.repo.GetProcess(ctx, processID); err != nil {
		return nil, s.mapRepoError(err, "process not found")
	}
	stages, err := s.repo.ListStages(ctx, processID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list stages", err)
	}
	return stages, nil
}

// GetStage fetches one stage.
func (s *Service) GetStage(ctx context.Context, id uuid.UUID) (repository.Stage, error) {
	stage, err := s.repo.GetStage(ctx, id)
	if err != nil {
		return repository.Stage{}, s.mapRepoError(err, "stage not found")
	}
	return stage, nil
}

// CreateStage adds a stage at the end of its process's order.
func (s *Service) CreateStage(ctx context.Context, params repository.CreateStageParams) (repository.Stage, error) {
	if params.Name == "" {
		return repository.Stage{}, apperr.Validation("stage name is required")
	}
	if _, err := s.repo.GetProcess(ctx, params.ProcessID); err != nil {
		return repository.Stage{}, s.mapRepoError(err, "process not found")
	}
	stage, err := s.repo.CreateStage(ctx, params)
	if err != nil {
		return repository.Stage{}, apperr.Wrap(apperr.KindInternal, "failed to create stage", err)
	}
	s.log.Info("stage created", "stage_id", stage.ID, "process_id", stage.ProcessID, "name", stage.Name)
	return stage, nil
}

// UpdateStage applies a version-checked partial update.
func (s *Service) UpdateStage(ctx context.Context, id uuid.UUID, params repository.UpdateStageParams) (repository.Stage, error) {
	if params.Name != nil && *params.Name == "" {
		return repository.Stage{}, apperr.Validation("stage name cannot be empty")
	}
	stage, err := s.repo.UpdateStage(ctx, id, params)
	if err != nil {
		return repository.Stage{}, s.mapRepoError(err, "stage not found")
	}
	return stage, nil
}

// DeleteStage removes a stage. Leads currently pointing at the stage
// keep the dangling reference on purpose; history stays intact.
func (s *Service) DeleteStage(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteStage(ctx, id); err != nil {
		return s.mapRepoError(err, "stage not found")
	}
	s.log.Info("stage deleted", "stage_id", id)
	return nil
}

// ReorderStage moves a stage one position up or down within its
// process by swapping display orders with its neighbor. Moving past
// either end of the list is a no-op.
func (s *Service) ReorderStage(ctx context.Context, processID, stageID uuid.UUID, direction ReorderDirection) ([]repository.Stage, error) {
	if direction != ReorderUp && direction != ReorderDown {
		return nil, apperr.Validation("direction must be \"up\" or \"down\"")
	}

	stages, err := s.repo.ListStages(ctx, processID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list stages", err)
	}

	position := -1
	for i, stage := range stages {
		if stage.ID == stageID {
			position = i
			break
		}
	}
	if position == -1 {
		return nil, apperr.NotFound("stage not found in process")
	}

	neighbor := position - 1
	if direction == ReorderDown {
		neighbor = position + 1
	}
	if neighbor < 0 || neighbor >= len(stages) {
		// Already at the boundary; nothing to swap.
		return stages, nil
	}

	if err := s.repo.SwapStageOrder(ctx, stages[position], stages[neighbor]); err != nil {
		return nil, s.mapRepoError(err, "stage not found")
	}

	reordered, err := s.repo.ListStages(ctx, processID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list stages", err)
	}
	return reordered, nil
}

func (s *Service) mapRepoError(err error, notFoundMessage string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(notFoundMessage)
	case errors.Is(err, repository.ErrVersionMismatch):
		return apperr.Concurrency("record was modified concurrently, refetch and retry")
	default:
		return apperr.Wrap(apperr.KindInternal, "registry operation failed", err)
	}
}
