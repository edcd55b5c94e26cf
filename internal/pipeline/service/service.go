// Package service contains the lead pipeline business logic: lead
// lifecycle, process enrollment, and stage transitions with their
// status side effects.
package service

import (
	"context"
	"errors"

	"leadcrm_backend/internal/events"
	"leadcrm_backend/internal/pipeline/domain"
	"leadcrm_backend/internal/pipeline/repository"
	registryrepo "leadcrm_backend/internal/registry/repository"
	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/phone"
	"leadcrm_backend/platform/sanitize"

	"github.com/google/uuid"
)

// transitionRetries bounds the optimistic-concurrency retry loop for
// pointer updates. History rows are never lost either way; this only
// caps how long we fight over the current-position pointer.
const transitionRetries = 3

// Service implements pipeline operations.
type Service struct {
	repo     repository.Repository
	registry registryrepo.Repository
	bus      events.Bus
	log      *logger.Logger
}

// NewService creates a pipeline service.
func NewService(repo repository.Repository, registry registryrepo.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, registry: registry, bus: bus, log: log}
}

// CreateLead registers a new lead, normalizes its phone number, and
// enrolls it in the primary process.
func (s *Service) CreateLead(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	if params.FirstName == "" && params.LastName == "" {
		return repository.Lead{}, apperr.Validation("lead name is required")
	}

	normalized, err := phone.ValidateE164(params.Phone)
	if err != nil {
		return repository.Lead{}, apperr.Validation("invalid phone number")
	}
	params.Phone = normalized

	lead, err := s.repo.CreateLead(ctx, params)
	if errors.Is(err, repository.ErrDuplicatePhone) {
		return repository.Lead{}, apperr.Conflict("a lead with this phone number already exists")
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to create lead", err)
	}

	if err := s.EnsurePrimaryEnrollment(ctx, lead.ID); err != nil {
		// The lead exists; enrollment self-heals on the next read or
		// backfill run.
		s.log.Warn("primary enrollment failed at intake", "lead_id", lead.ID, "error", err)
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Phone:     lead.Phone,
	})

	return s.repo.GetLead(ctx, lead.ID)
}

// GetLead fetches a lead, self-healing its primary enrollment first.
func (s *Service) GetLead(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	if err := s.EnsurePrimaryEnrollment(ctx, id); err != nil {
		return repository.Lead{}, err
	}
	lead, err := s.repo.GetLead(ctx, id)
	if err != nil {
		return repository.Lead{}, s.mapRepoError(err)
	}
	return lead, nil
}

// ListLeads returns leads matching the filters.
func (s *Service) ListLeads(ctx context.Context, params repository.ListLeadsParams) ([]repository.Lead, error) {
	leads, err := s.repo.ListLeads(ctx, params)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list leads", err)
	}
	return leads, nil
}

// UpdateLead applies a partial contact update.
func (s *Service) UpdateLead(ctx context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error) {
	if params.Phone != nil {
		normalized, err := phone.ValidateE164(*params.Phone)
		if err != nil {
			return repository.Lead{}, apperr.Validation("invalid phone number")
		}
		params.Phone = &normalized
	}

	lead, err := s.repo.UpdateLead(ctx, id, params)
	if errors.Is(err, repository.ErrDuplicatePhone) {
		return repository.Lead{}, apperr.Conflict("a lead with this phone number already exists")
	}
	if err != nil {
		return repository.Lead{}, s.mapRepoError(err)
	}
	return lead, nil
}

// DeleteLead soft-deletes a lead. History and enrollments remain.
func (s *Service) DeleteLead(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDeleteLead(ctx, id); err != nil {
		return s.mapRepoError(err)
	}
	s.log.Info("lead deleted", "lead_id", id)
	return nil
}

// EnsurePrimaryEnrollment guarantees the lead is enrolled in the
// primary process and has a current process pointer. Idempotent: safe
// to call on every read and from the batch backfill.
func (s *Service) EnsurePrimaryEnrollment(ctx context.Context, leadID uuid.UUID) error {
	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		return s.mapRepoError(err)
	}

	primary, err := s.registry.GetPrimaryProcess(ctx)
	if errors.Is(err, registryrepo.ErrNotFound) {
		return apperr.Internal("primary process is not configured")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to load primary process", err)
	}

	if err := s.repo.AddEnrollment(ctx, leadID, primary.ID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to enroll lead", err)
	}

	if lead.CurrentProcessID != nil {
		return nil
	}

	// Point the lead at the primary process; the stage stays unset
	// until the first transition. Losing this race means someone else
	// already positioned the lead, which is fine.
	_, err = s.repo.SetPosition(ctx, repository.SetPositionParams{
		LeadID:          leadID,
		ProcessID:       &primary.ID,
		StageID:         nil,
		ExpectedVersion: lead.Version,
	})
	if err != nil && !errors.Is(err, repository.ErrVersionMismatch) {
		return apperr.Wrap(apperr.KindInternal, "failed to set lead position", err)
	}
	return nil
}

// AssignProcess enrolls the lead in the process (if new) and makes it
// the current one. Switching to a different process clears the current
// stage; re-selecting the process the lead is already in keeps it.
func (s *Service) AssignProcess(ctx context.Context, leadID, processID uuid.UUID) (repository.Lead, error) {
	process, err := s.registry.GetProcess(ctx, processID)
	if errors.Is(err, registryrepo.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("process not found")
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to load process", err)
	}

	var lead repository.Lead
	for attempt := 0; attempt < transitionRetries; attempt++ {
		lead, err = s.repo.GetLead(ctx, leadID)
		if err != nil {
			return repository.Lead{}, s.mapRepoError(err)
		}

		if err := s.repo.AddEnrollment(ctx, leadID, process.ID); err != nil {
			return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to enroll lead", err)
		}

		if lead.CurrentProcessID != nil && *lead.CurrentProcessID == process.ID {
			// Already the current process; keep the stage.
			return lead, nil
		}

		updated, err := s.repo.SetPosition(ctx, repository.SetPositionParams{
			LeadID:          leadID,
			ProcessID:       &process.ID,
			StageID:         nil,
			ExpectedVersion: lead.Version,
		})
		if errors.Is(err, repository.ErrVersionMismatch) {
			continue
		}
		if err != nil {
			return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to assign process", err)
		}

		s.bus.Publish(ctx, events.ProcessAssigned{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    leadID,
			ProcessID: process.ID,
			Enrolled:  true,
		})
		return updated, nil
	}

	return repository.Lead{}, apperr.Concurrency("lead was modified concurrently, retry the assignment")
}

// ListAssignableProcesses returns the processes the lead may be moved
// into: only the primary process until the lead converts, all active
// processes afterwards.
func (s *Service) ListAssignableProcesses(ctx context.Context, leadID uuid.UUID) ([]registryrepo.Process, error) {
	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}

	if lead.Status != domain.StatusConverted {
		primary, err := s.registry.GetPrimaryProcess(ctx)
		if errors.Is(err, registryrepo.ErrNotFound) {
			return []registryrepo.Process{}, nil
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to load primary process", err)
		}
		return []registryrepo.Process{primary}, nil
	}

	processes, err := s.registry.ListProcesses(ctx, true)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list processes", err)
	}
	return processes, nil
}

// UnassignProcess removes the lead's membership in a process. The sole
// remaining enrollment cannot be removed when it is the primary
// process: every lead stays tracked somewhere.
func (s *Service) UnassignProcess(ctx context.Context, leadID, processID uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		return repository.Lead{}, s.mapRepoError(err)
	}

	enrollments, err := s.repo.ListEnrollments(ctx, leadID)
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to list enrollments", err)
	}

	enrolled := false
	for _, e := range enrollments {
		if e.ProcessID == processID {
			enrolled = true
			break
		}
	}
	if !enrolled {
		return repository.Lead{}, apperr.NotFound("lead is not enrolled in this process")
	}

	if len(enrollments) == 1 {
		primary, err := s.registry.GetPrimaryProcess(ctx)
		if err == nil && primary.ID == processID {
			return repository.Lead{}, apperr.Conflict("cannot remove the lead's only enrollment in the primary process")
		}
	}

	if err := s.repo.RemoveEnrollment(ctx, leadID, processID); err != nil {
		return repository.Lead{}, s.mapRepoError(err)
	}

	if lead.CurrentProcessID != nil && *lead.CurrentProcessID == processID {
		updated, err := s.repo.SetPosition(ctx, repository.SetPositionParams{
			LeadID:          leadID,
			ProcessID:       nil,
			StageID:         nil,
			ExpectedVersion: lead.Version,
		})
		if err != nil && !errors.Is(err, repository.ErrVersionMismatch) {
			return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to clear lead position", err)
		}
		if err == nil {
			lead = updated
		}
	}

	s.bus.Publish(ctx, events.ProcessUnassigned{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		ProcessID: processID,
	})
	return lead, nil
}

// TransitionParams carries a stage transition request.
type TransitionParams struct {
	LeadID    uuid.UUID
	ProcessID uuid.UUID
	StageID   uuid.UUID
	Note      *string
	ActorID   *uuid.UUID
}

// TransitionStage moves the lead to a stage of the given process. Any
// stage of the process is reachable from any position; stage order is
// advisory for display, not a constraint. The transition appends a
// history entry, moves the current pointers under a version check with
// bounded retry, and derives the lead's status from the stage name.
func (s *Service) TransitionStage(ctx context.Context, params TransitionParams) (repository.Lead, error) {
	params.Note = sanitize.TextPtr(params.Note)

	stage, err := s.registry.GetStage(ctx, params.StageID)
	if errors.Is(err, registryrepo.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("stage not found")
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to load stage", err)
	}
	if stage.ProcessID != params.ProcessID {
		return repository.Lead{}, apperr.Validation("stage does not belong to the target process")
	}

	var newStatus *domain.LeadStatus
	if status, ok := domain.ClassifyStage(stage.Name); ok {
		newStatus = &status
	}

	var lead repository.Lead
	for attempt := 0; attempt < transitionRetries; attempt++ {
		lead, err = s.repo.GetLead(ctx, params.LeadID)
		if err != nil {
			return repository.Lead{}, s.mapRepoError(err)
		}

		if err := s.repo.AddEnrollment(ctx, params.LeadID, params.ProcessID); err != nil {
			return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to enroll lead", err)
		}

		fromStageID := lead.CurrentStageID
		updated, err := s.repo.Transition(ctx, repository.TransitionParams{
			LeadID:          params.LeadID,
			ProcessID:       params.ProcessID,
			StageID:         params.StageID,
			StageName:       stage.Name,
			FromStageID:     fromStageID,
			NewStatus:       newStatus,
			ActorID:         params.ActorID,
			Note:            params.Note,
			ExpectedVersion: lead.Version,
		})
		if errors.Is(err, repository.ErrVersionMismatch) {
			continue
		}
		if err != nil {
			return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to record transition", err)
		}

		s.log.StageTransition(params.LeadID.String(), params.ProcessID.String(), params.StageID.String(), string(updated.Status))
		event := events.StageTransitioned{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      params.LeadID,
			ProcessID:   params.ProcessID,
			FromStageID: fromStageID,
			ToStageID:   params.StageID,
			ToStageName: stage.Name,
			Status:      string(updated.Status),
			ActorID:     params.ActorID,
			Note:        params.Note,
		}
		event.TransitionedAt = event.OccurredAt()
		s.bus.Publish(ctx, event)
		return updated, nil
	}

	return repository.Lead{}, apperr.Concurrency("lead was modified concurrently, retry the transition")
}

// StageHistory returns the lead's transition log, newest first.
func (s *Service) StageHistory(ctx context.Context, leadID uuid.UUID) ([]repository.StageHistoryEntry, error) {
	if _, err := s.repo.GetLead(ctx, leadID); err != nil {
		return nil, s.mapRepoError(err)
	}
	entries, err := s.repo.ListStageHistory(ctx, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list stage history", err)
	}
	return entries, nil
}

// ListEnrollments returns the lead's process memberships.
func (s *Service) ListEnrollments(ctx context.Context, leadID uuid.UUID) ([]repository.Enrollment, error) {
	if _, err := s.repo.GetLead(ctx, leadID); err != nil {
		return nil, s.mapRepoError(err)
	}
	enrollments, err := s.repo.ListEnrollments(ctx, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list enrollments", err)
	}
	return enrollments, nil
}

// Progress renders the lead's position in its current process as a
// percent plus step list.
type Progress struct {
	ProcessID   *uuid.UUID    `json:"processId"`
	ProcessName string        `json:"processName"`
	Percent     int           `json:"percent"`
	Steps       []domain.Step `json:"steps"`
}

// GetProgress projects the lead's current position onto its process's
// ordered stage list.
func (s *Service) GetProgress(ctx context.Context, leadID uuid.UUID) (Progress, error) {
	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		return Progress{}, s.mapRepoError(err)
	}
	return s.ProgressFor(ctx, lead)
}

// ProgressFor computes the progress model for an already-loaded lead.
// Used by the portal, which resolves the lead through its token.
func (s *Service) ProgressFor(ctx context.Context, lead repository.Lead) (Progress, error) {
	if lead.CurrentProcessID == nil {
		return Progress{Percent: 0, Steps: []domain.Step{}}, nil
	}

	process, err := s.registry.GetProcess(ctx, *lead.CurrentProcessID)
	if errors.Is(err, registryrepo.ErrNotFound) {
		// Process deleted out from under the lead; render empty.
		return Progress{ProcessID: lead.CurrentProcessID, Steps: []domain.Step{}}, nil
	}
	if err != nil {
		return Progress{}, apperr.Wrap(apperr.KindInternal, "failed to load process", err)
	}

	stages, err := s.registry.ListStages(ctx, process.ID)
	if err != nil {
		return Progress{}, apperr.Wrap(apperr.KindInternal, "failed to list stages", err)
	}

	ordered := make([]domain.OrderedStage, 0, len(stages))
	for _, stage := range stages {
		ordered = append(ordered, domain.OrderedStage{ID: stage.ID, Name: stage.Name})
	}

	return Progress{
		ProcessID:   &process.ID,
		ProcessName: process.Name,
		Percent:     domain.ProgressPercent(ordered, lead.CurrentStageID),
		Steps:       domain.StepList(ordered, lead.CurrentStageID),
	}, nil
}

// BackfillPrimaryEnrollments runs EnsurePrimaryEnrollment over every
// live lead in ID order. Used by the batch job; returns how many leads
// were visited.
func (s *Service) BackfillPrimaryEnrollments(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 200
	}

	visited := 0
	var after *uuid.UUID
	for {
		ids, err := s.repo.ListLeadIDs(ctx, batchSize, after)
		if err != nil {
			return visited, apperr.Wrap(apperr.KindInternal, "failed to page leads", err)
		}
		if len(ids) == 0 {
			return visited, nil
		}
		for _, id := range ids {
			if err := s.EnsurePrimaryEnrollment(ctx, id); err != nil {
				s.log.Warn("enrollment backfill skipped lead", "lead_id", id, "error", err)
			}
			visited++
		}
		last := ids[len(ids)-1]
		after = &last
	}
}

func (s *Service) mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("lead not found")
	case errors.Is(err, repository.ErrVersionMismatch):
		return apperr.Concurrency("lead was modified concurrently, refetch and retry")
	default:
		return apperr.Wrap(apperr.KindInternal, "pipeline operation failed", err)
	}
}
