package service

import (
	"context"
	"testing"
	"time"

	"leadcrm_backend/internal/documents/repository"
	registryrepo "leadcrm_backend/internal/registry/repository"
	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
)

type markerKey struct {
	processID uuid.UUID
	stageID   uuid.UUID // uuid.Nil for process level
}

// fakeDocRepo serves requirements, markers and documents from memory.
type fakeDocRepo struct {
	repository.Repository // panics on unimplemented methods

	requirements map[uuid.UUID]repository.Requirement
	markers      map[markerKey]bool
	documents    map[uuid.UUID]repository.LeadDocument
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{
		requirements: make(map[uuid.UUID]repository.Requirement),
		markers:      make(map[markerKey]bool),
		documents:    make(map[uuid.UUID]repository.LeadDocument),
	}
}

func (f *fakeDocRepo) addRequirement(processID uuid.UUID, stageID *uuid.UUID, name string, required, show bool) repository.Requirement {
	r := repository.Requirement{
		ID:        uuid.New(),
		ProcessID: processID,
		StageID:   stageID,
		Name:      name,
		Required:  required,
		Show:      show,
		Version:   1,
		CreatedAt: time.Now(),
	}
	f.requirements[r.ID] = r
	return r
}

func (f *fakeDocRepo) addDocument(leadID, requirementID uuid.UUID, status repository.DocumentStatus) repository.LeadDocument {
	d := repository.LeadDocument{
		ID:            uuid.New(),
		LeadID:        leadID,
		RequirementID: requirementID,
		Status:        status,
		UploadedAt:    time.Now(),
	}
	f.documents[d.ID] = d
	return d
}

func (f *fakeDocRepo) ListStageRequirements(_ context.Context, processID, stageID uuid.UUID) ([]repository.Requirement, error) {
	out := make([]repository.Requirement, 0)
	for _, r := range f.requirements {
		if r.ProcessID == processID && r.StageID != nil && *r.StageID == stageID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDocRepo) ListProcessRequirements(_ context.Context, processID uuid.UUID) ([]repository.Requirement, error) {
	out := make([]repository.Requirement, 0)
	for _, r := range f.requirements {
		if r.ProcessID == processID && r.StageID == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDocRepo) HasMarker(_ context.Context, processID uuid.UUID, stageID *uuid.UUID) (bool, error) {
	key := markerKey{processID: processID}
	if stageID != nil {
		key.stageID = *stageID
	}
	return f.markers[key], nil
}

func (f *fakeDocRepo) setMarker(processID uuid.UUID, stageID *uuid.UUID) {
	key := markerKey{processID: processID}
	if stageID != nil {
		key.stageID = *stageID
	}
	f.markers[key] = true
}

func (f *fakeDocRepo) ListLeadDocuments(_ context.Context, leadID uuid.UUID) ([]repository.LeadDocument, error) {
	out := make([]repository.LeadDocument, 0)
	for _, d := range f.documents {
		if d.LeadID == leadID {
			out = append(out, d)
		}
	}
	return out, nil
}

// fakeProcessRegistry answers GetProcess for a fixed set of processes.
type fakeProcessRegistry struct {
	registryrepo.Repository

	known map[uuid.UUID]bool
}

func (f *fakeProcessRegistry) GetProcess(_ context.Context, id uuid.UUID) (registryrepo.Process, error) {
	if !f.known[id] {
		return registryrepo.Process{}, registryrepo.ErrNotFound
	}
	return registryrepo.Process{ID: id, Name: "Admission", IsActive: true, Version: 1}, nil
}

func newResolverFixture() (*Service, *fakeDocRepo, uuid.UUID) {
	repo := newFakeDocRepo()
	processID := uuid.New()
	registry := &fakeProcessRegistry{known: map[uuid.UUID]bool{processID: true}}
	svc := NewService(repo, registry, nil, nil, "lead-documents", nil, logger.New("development"))
	return svc, repo, processID
}

func TestResolveStageLevelWins(t *testing.T) {
	svc, repo, processID := newResolverFixture()
	stageID := uuid.New()

	stageReq := repo.addRequirement(processID, &stageID, "Signed contract", true, true)
	repo.addRequirement(processID, nil, "ID copy", true, true)

	resolved, err := svc.ResolveRequirements(context.Background(), processID, &stageID)
	if err != nil {
		t.Fatalf("ResolveRequirements: %v", err)
	}
	if !resolved.Configured {
		t.Error("stage-level rows must mark the result configured")
	}
	if len(resolved.Requirements) != 1 || resolved.Requirements[0].ID != stageReq.ID {
		t.Fatalf("expected only the stage-level requirement, got %d", len(resolved.Requirements))
	}
}

func TestResolveExplicitEmptyDoesNotFallBack(t *testing.T) {
	svc, repo, processID := newResolverFixture()
	stageID := uuid.New()

	// Stage rows exist but every one is hidden: configured, empty,
	// and the process-level requirement must NOT leak through.
	repo.addRequirement(processID, &stageID, "Old requirement", true, false)
	repo.addRequirement(processID, nil, "ID copy", true, true)

	resolved, err := svc.ResolveRequirements(context.Background(), processID, &stageID)
	if err != nil {
		t.Fatalf("ResolveRequirements: %v", err)
	}
	if !resolved.Configured {
		t.Error("filtered-to-zero stage rows still mean configured")
	}
	if len(resolved.Requirements) != 0 {
		t.Fatalf("explicit-empty must not fall back, got %d requirements", len(resolved.Requirements))
	}
}

func TestResolveStageMarkerSuppressesFallback(t *testing.T) {
	svc, repo, processID := newResolverFixture()
	stageID := uuid.New()

	repo.setMarker(processID, &stageID)
	repo.addRequirement(processID, nil, "ID copy", true, true)

	resolved, err := svc.ResolveRequirements(context.Background(), processID, &stageID)
	if err != nil {
		t.Fatalf("ResolveRequirements: %v", err)
	}
	if !resolved.Configured || len(resolved.Requirements) != 0 {
		t.Fatalf("marker must yield a configured empty set, got %+v", resolved)
	}
}

func TestResolveFallsBackToProcessLevel(t *testing.T) {
	svc, repo, processID := newResolverFixture()
	stageID := uuid.New()

	processReq := repo.addRequirement(processID, nil, "ID copy", true, true)

	resolved, err := svc.ResolveRequirements(context.Background(), processID, &stageID)
	if err != nil {
		t.Fatalf("ResolveRequirements: %v", err)
	}
	if !resolved.Configured {
		t.Error("process-level rows must mark the result configured")
	}
	if len(resolved.Requirements) != 1 || resolved.Requirements[0].ID != processReq.ID {
		t.Fatalf("expected the process-level fallback, got %d", len(resolved.Requirements))
	}
}

func TestResolveProcessMarker(t *testing.T) {
	svc, repo, processID := newResolverFixture()
	repo.setMarker(processID, nil)

	resolved, err := svc.ResolveRequirements(context.Background(), processID, nil)
	if err != nil {
		t.Fatalf("ResolveRequirements: %v", err)
	}
	if !resolved.Configured || len(resolved.Requirements) != 0 {
		t.Fatalf("process marker must yield a configured empty set, got %+v", resolved)
	}
}

func TestResolveNothingConfigured(t *testing.T) {
	svc, _, processID := newResolverFixture()
	stageID := uuid.New()

	resolved, err := svc.ResolveRequirements(context.Background(), processID, &stageID)
	if err != nil {
		t.Fatalf("ResolveRequirements: %v", err)
	}
	if resolved.Configured {
		t.Error("nothing configured must report Configured=false")
	}
	if len(resolved.Requirements) != 0 {
		t.Fatalf("expected empty set, got %d", len(resolved.Requirements))
	}
}

func TestResolveUnknownProcess(t *testing.T) {
	svc, _, _ := newResolverFixture()

	_, err := svc.ResolveRequirements(context.Background(), uuid.New(), nil)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestComputeFulfillment(t *testing.T) {
	repo := newFakeDocRepo()
	processID := uuid.New()
	leadID := uuid.New()

	contract := repo.addRequirement(processID, nil, "Signed contract", true, true)
	idCopy := repo.addRequirement(processID, nil, "ID copy", true, true)
	optional := repo.addRequirement(processID, nil, "References", false, true)

	repo.addDocument(leadID, contract.ID, repository.StatusApproved)
	repo.addDocument(leadID, idCopy.ID, repository.StatusRejected)
	repo.addDocument(leadID, optional.ID, repository.StatusPending)

	documents, _ := repo.ListLeadDocuments(context.Background(), leadID)
	requirements := []repository.Requirement{contract, idCopy, optional}

	result := ComputeFulfillment(requirements, documents)
	if result.Required != 2 {
		t.Errorf("required = %d, want 2 (optional requirements don't count)", result.Required)
	}
	if result.Satisfied != 1 {
		t.Errorf("satisfied = %d, want 1 (rejected uploads don't satisfy)", result.Satisfied)
	}
	if len(result.Missing) != 1 || result.Missing[0].ID != idCopy.ID {
		t.Errorf("missing should list exactly the rejected requirement")
	}
}

func TestComputeFulfillmentPendingSatisfies(t *testing.T) {
	repo := newFakeDocRepo()
	processID := uuid.New()
	leadID := uuid.New()

	contract := repo.addRequirement(processID, nil, "Signed contract", true, true)
	repo.addDocument(leadID, contract.ID, repository.StatusPending)

	documents, _ := repo.ListLeadDocuments(context.Background(), leadID)
	result := ComputeFulfillment([]repository.Requirement{contract}, documents)

	if result.Satisfied != 1 || len(result.Missing) != 0 {
		t.Errorf("a pending upload must satisfy its requirement: %+v", result)
	}
}
