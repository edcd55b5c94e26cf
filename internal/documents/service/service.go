// Package service contains the document requirement resolver and the
// lead document lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"

	"leadcrm_backend/internal/adapters/storage"
	"leadcrm_backend/internal/documents/repository"
	"leadcrm_backend/internal/events"
	pipelinerepo "leadcrm_backend/internal/pipeline/repository"
	registryrepo "leadcrm_backend/internal/registry/repository"
	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ResolvedRequirements is the resolver's tagged result. Configured is
// false only when nothing at all is set up for the scope, which
// callers must distinguish from an explicitly empty requirement set.
type ResolvedRequirements struct {
	Configured   bool
	Requirements []repository.Requirement
}

// Fulfillment summarizes how far a lead's documents satisfy a
// requirement set. Only requirements with Required=true count.
type Fulfillment struct {
	Required  int                      `json:"required"`
	Satisfied int                      `json:"satisfied"`
	Missing   []repository.Requirement `json:"missing"`
}

// Service implements document requirement and lead document operations.
type Service struct {
	repo     repository.Repository
	registry registryrepo.Repository
	leads    pipelinerepo.Repository
	storage  storage.StorageService
	bucket   string
	bus      events.Bus
	log      *logger.Logger
}

// NewService creates a documents service.
func NewService(
	repo repository.Repository,
	registry registryrepo.Repository,
	leads pipelinerepo.Repository,
	storageSvc storage.StorageService,
	bucket string,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		leads:    leads,
		storage:  storageSvc,
		bucket:   bucket,
		bus:      bus,
		log:      log,
	}
}

// ResolveRequirements computes the requirement set for a (process,
// stage?) scope. Resolution order:
//
//  1. stage-level rows for the exact pair: if any exist, that set is
//     authoritative (after dropping hidden rows), even when it filters
//     down to nothing;
//  2. otherwise an explicit stage-level "no documents required" marker
//     returns the empty set without falling back;
//  3. otherwise process-level rows, with the same row/marker logic;
//  4. otherwise nothing is configured and the empty set is returned
//     with Configured=false.
//
// Collapsing these tiers would erase the difference between
// "explicitly zero" and "not configured", which fulfillment and the
// checklist depend on.
func (s *Service) ResolveRequirements(ctx context.Context, processID uuid.UUID, stageID *uuid.UUID) (ResolvedRequirements, error) {
	if _, err := s.registry.GetProcess(ctx, processID); err != nil {
		if errors.Is(err, registryrepo.ErrNotFound) {
			return ResolvedRequirements{}, apperr.NotFound("process not found")
		}
		return ResolvedRequirements{}, apperr.Wrap(apperr.KindInternal, "failed to load process", err)
	}

	if stageID != nil {
		stageRows, err := s.repo.ListStageRequirements(ctx, processID, *stageID)
		if err != nil {
			return ResolvedRequirements{}, apperr.Wrap(apperr.KindInternal, "failed to list requirements", err)
		}
		if len(stageRows) > 0 {
			return ResolvedRequirements{Configured: true, Requirements: visible(stageRows)}, nil
		}

		marked, err := s.repo.HasMarker(ctx, processID, stageID)
		if err != nil {
			return ResolvedRequirements{}, apperr.Wrap(apperr.KindInternal, "failed to check marker", err)
		}
		if marked {
			return ResolvedRequirements{Configured: true, Requirements: []repository.Requirement{}}, nil
		}
	}

	processRows, err := s.repo.ListProcessRequirements(ctx, processID)
	if err != nil {
		return ResolvedRequirements{}, apperr.Wrap(apperr.KindInternal, "failed to list requirements", err)
	}
	if len(processRows) > 0 {
		return ResolvedRequirements{Configured: true, Requirements: visible(processRows)}, nil
	}

	marked, err := s.repo.HasMarker(ctx, processID, nil)
	if err != nil {
		return ResolvedRequirements{}, apperr.Wrap(apperr.KindInternal, "failed to check marker", err)
	}
	if marked {
		return ResolvedRequirements{Configured: true, Requirements: []repository.Requirement{}}, nil
	}

	return ResolvedRequirements{Configured: false, Requirements: []repository.Requirement{}}, nil
}

func visible(requirements []repository.Requirement) []repository.Requirement {
	out := make([]repository.Requirement, 0, len(requirements))
	for _, req := range requirements {
		if req.Show {
			out = append(out, req)
		}
	}
	return out
}

// ComputeFulfillment counts required requirements against the lead's
// documents. A requirement is satisfied by any non-rejected document
// referencing it.
func ComputeFulfillment(requirements []repository.Requirement, documents []repository.LeadDocument) Fulfillment {
	satisfying := make(map[uuid.UUID]bool)
	for _, doc := range documents {
		if doc.Status != repository.StatusRejected {
			satisfying[doc.RequirementID] = true
		}
	}

	result := Fulfillment{Missing: []repository.Requirement{}}
	for _, req := range requirements {
		if !req.Required {
			continue
		}
		result.Required++
		if satisfying[req.ID] {
			result.Satisfied++
		} else {
			result.Missing = append(result.Missing, req)
		}
	}
	return result
}

// ListRequirements returns every requirement of a process for admin views.
func (s *Service) ListRequirements(ctx context.Context, processID uuid.UUID) ([]repository.Requirement, error) {
	requirements, err := s.repo.ListAllRequirements(ctx, processID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list requirements", err)
	}
	return requirements, nil
}

// CreateRequirement adds a requirement to a (process, stage?) scope.
func (s *Service) CreateRequirement(ctx context.Context, params repository.CreateRequirementParams) (repository.Requirement, error) {
	params.Name = sanitize.Text(params.Name)
	params.Description = sanitize.TextPtr(params.Description)
	if params.Name == "" {
		return repository.Requirement{}, apperr.Validation("requirement name is required")
	}
	if _, err := s.registry.GetProcess(ctx, params.ProcessID); err != nil {
		if errors.Is(err, registryrepo.ErrNotFound) {
			return repository.Requirement{}, apperr.NotFound("process not found")
		}
		return repository.Requirement{}, apperr.Wrap(apperr.KindInternal, "failed to load process", err)
	}
	if params.StageID != nil {
		stage, err := s.registry.GetStage(ctx, *params.StageID)
		if errors.Is(err, registryrepo.ErrNotFound) {
			return repository.Requirement{}, apperr.NotFound("stage not found")
		}
		if err != nil {
			return repository.Requirement{}, apperr.Wrap(apperr.KindInternal, "failed to load stage", err)
		}
		if stage.ProcessID != params.ProcessID {
			return repository.Requirement{}, apperr.Validation("stage does not belong to the process")
		}
	}

	requirement, err := s.repo.CreateRequirement(ctx, params)
	if err != nil {
		return repository.Requirement{}, apperr.Wrap(apperr.KindInternal, "failed to create requirement", err)
	}
	return requirement, nil
}

// UpdateRequirement applies a version-checked partial update.
func (s *Service) UpdateRequirement(ctx context.Context, id uuid.UUID, params repository.UpdateRequirementParams) (repository.Requirement, error) {
	if params.Name != nil {
		clean := sanitize.Text(*params.Name)
		params.Name = &clean
	}
	params.Description = sanitize.TextPtr(params.Description)

	requirement, err := s.repo.UpdateRequirement(ctx, id, params)
	if err != nil {
		return repository.Requirement{}, s.mapRepoError(err)
	}
	return requirement, nil
}

// DeleteRequirement removes a requirement.
func (s *Service) DeleteRequirement(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteRequirement(ctx, id); err != nil {
		return s.mapRepoError(err)
	}
	return nil
}

// SetNoDocumentsRequired records the explicit empty-set marker for a scope.
func (s *Service) SetNoDocumentsRequired(ctx context.Context, processID uuid.UUID, stageID *uuid.UUID) error {
	if err := s.repo.SetMarker(ctx, processID, stageID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to set marker", err)
	}
	return nil
}

// ClearNoDocumentsRequired removes the marker for a scope.
func (s *Service) ClearNoDocumentsRequired(ctx context.Context, processID uuid.UUID, stageID *uuid.UUID) error {
	if err := s.repo.ClearMarker(ctx, processID, stageID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to clear marker", err)
	}
	return nil
}

// UploadRequest asks for a presigned upload slot for a requirement.
type UploadRequest struct {
	LeadID        uuid.UUID
	RequirementID uuid.UUID
	FileName      string
	ContentType   string
	SizeBytes     int64
}

// PresignUpload validates the target requirement and returns a
// presigned PUT URL plus the file key the client must echo back when
// registering the upload.
func (s *Service) PresignUpload(ctx context.Context, req UploadRequest) (*storage.PresignedURL, error) {
	if _, err := s.leads.GetLead(ctx, req.LeadID); err != nil {
		if errors.Is(err, pipelinerepo.ErrNotFound) {
			return nil, apperr.NotFound("lead not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	if _, err := s.repo.GetRequirement(ctx, req.RequirementID); err != nil {
		return nil, s.mapRepoError(err)
	}

	folder := fmt.Sprintf("leads/%s", req.LeadID)
	presigned, err := s.storage.GenerateUploadURL(ctx, s.bucket, folder, req.FileName, req.ContentType, req.SizeBytes)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, "upload rejected", err)
	}
	return presigned, nil
}

// RegisterUpload records a completed upload as a pending document.
func (s *Service) RegisterUpload(ctx context.Context, params repository.CreateLeadDocumentParams) (repository.LeadDocument, error) {
	if params.FileKey == "" {
		return repository.LeadDocument{}, apperr.Validation("file key is required")
	}
	if _, err := s.leads.GetLead(ctx, params.LeadID); err != nil {
		if errors.Is(err, pipelinerepo.ErrNotFound) {
			return repository.LeadDocument{}, apperr.NotFound("lead not found")
		}
		return repository.LeadDocument{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	if _, err := s.repo.GetRequirement(ctx, params.RequirementID); err != nil {
		return repository.LeadDocument{}, s.mapRepoError(err)
	}
	params.Notes = sanitize.TextPtr(params.Notes)

	document, err := s.repo.CreateLeadDocument(ctx, params)
	if err != nil {
		return repository.LeadDocument{}, apperr.Wrap(apperr.KindInternal, "failed to record document", err)
	}
	s.log.Info("lead document uploaded", "lead_id", params.LeadID, "document_id", document.ID)
	return document, nil
}

// ReviewDocument approves or rejects an uploaded document.
func (s *Service) ReviewDocument(ctx context.Context, id uuid.UUID, status repository.DocumentStatus, notes *string) (repository.LeadDocument, error) {
	if status != repository.StatusApproved && status != repository.StatusRejected {
		return repository.LeadDocument{}, apperr.Validation("status must be \"approved\" or \"rejected\"")
	}

	document, err := s.repo.UpdateLeadDocumentStatus(ctx, id, status, sanitize.TextPtr(notes))
	if err != nil {
		return repository.LeadDocument{}, s.mapRepoError(err)
	}

	s.bus.Publish(ctx, events.LeadDocumentReviewed{
		BaseEvent:     events.NewBaseEvent(),
		LeadID:        document.LeadID,
		DocumentID:    document.ID,
		RequirementID: document.RequirementID,
		Status:        string(document.Status),
	})
	return document, nil
}

// ListLeadDocuments returns a lead's uploads, newest first.
func (s *Service) ListLeadDocuments(ctx context.Context, leadID uuid.UUID) ([]repository.LeadDocument, error) {
	documents, err := s.repo.ListLeadDocuments(ctx, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list documents", err)
	}
	return documents, nil
}

// DocumentDownloadURL returns a presigned GET URL for a document.
func (s *Service) DocumentDownloadURL(ctx context.Context, id uuid.UUID) (*storage.PresignedURL, error) {
	document, err := s.repo.GetLeadDocument(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	presigned, err := s.storage.GenerateDownloadURL(ctx, s.bucket, document.FileKey)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to presign download", err)
	}
	return presigned, nil
}

// DeleteDocument removes the record and the stored file.
func (s *Service) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	document, err := s.repo.GetLeadDocument(ctx, id)
	if err != nil {
		return s.mapRepoError(err)
	}
	if err := s.repo.DeleteLeadDocument(ctx, id); err != nil {
		return s.mapRepoError(err)
	}
	if err := s.storage.DeleteObject(ctx, s.bucket, document.FileKey); err != nil {
		// The record is gone; an orphaned object is harmless.
		s.log.Warn("failed to delete stored file", "file_key", document.FileKey, "error", err)
	}
	return nil
}

// Checklist joins the lead's resolved requirements against its
// documents for the lead's current position.
type Checklist struct {
	Configured   bool                      `json:"configured"`
	Requirements []ChecklistEntry          `json:"requirements"`
	Fulfillment  Fulfillment               `json:"fulfillment"`
	Documents    []repository.LeadDocument `json:"documents"`
}

// ChecklistEntry is one requirement with its satisfaction state.
type ChecklistEntry struct {
	Requirement repository.Requirement `json:"requirement"`
	Satisfied   bool                   `json:"satisfied"`
}

// ChecklistFor resolves requirements at the lead's current process and
// stage and joins them against the lead's documents.
func (s *Service) ChecklistFor(ctx context.Context, lead pipelinerepo.Lead) (Checklist, error) {
	if lead.CurrentProcessID == nil {
		return Checklist{Requirements: []ChecklistEntry{}, Documents: []repository.LeadDocument{}}, nil
	}

	var (
		resolved  ResolvedRequirements
		documents []repository.LeadDocument
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		resolved, err = s.ResolveRequirements(groupCtx, *lead.CurrentProcessID, lead.CurrentStageID)
		return err
	})
	group.Go(func() error {
		docs, err := s.repo.ListLeadDocuments(groupCtx, lead.ID)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to list documents", err)
		}
		documents = docs
		return nil
	})
	if err := group.Wait(); err != nil {
		return Checklist{}, err
	}

	satisfying := make(map[uuid.UUID]bool)
	for _, doc := range documents {
		if doc.Status != repository.StatusRejected {
			satisfying[doc.RequirementID] = true
		}
	}

	entries := make([]ChecklistEntry, 0, len(resolved.Requirements))
	for _, req := range resolved.Requirements {
		entries = append(entries, ChecklistEntry{Requirement: req, Satisfied: satisfying[req.ID]})
	}

	return Checklist{
		Configured:   resolved.Configured,
		Requirements: entries,
		Fulfillment:  ComputeFulfillment(resolved.Requirements, documents),
		Documents:    documents,
	}, nil
}

// GetChecklist loads the lead and builds its checklist.
func (s *Service) GetChecklist(ctx context.Context, leadID uuid.UUID) (Checklist, error) {
	lead, err := s.leads.GetLead(ctx, leadID)
	if errors.Is(err, pipelinerepo.ErrNotFound) {
		return Checklist{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return Checklist{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	return s.ChecklistFor(ctx, lead)
}

func (s *Service) mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("requirement or document not found")
	case errors.Is(err, repository.ErrVersionMismatch):
		return apperr.Concurrency("record was modified concurrently, refetch and retry")
	default:
		return apperr.Wrap(apperr.KindInternal, "documents operation failed", err)
	}
}
