package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"leadcrm_backend/internal/events"
	"leadcrm_backend/internal/pipeline/domain"
	"leadcrm_backend/internal/pipeline/repository"
	registryrepo "leadcrm_backend/internal/registry/repository"
	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
)

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) byName(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Event, 0)
	for _, e := range b.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

// fakeRegistry serves processes and stages from memory.
type fakeRegistry struct {
	registryrepo.Repository // panics on unimplemented methods

	processes map[uuid.UUID]registryrepo.Process
	stages    map[uuid.UUID]registryrepo.Stage
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		processes: make(map[uuid.UUID]registryrepo.Process),
		stages:    make(map[uuid.UUID]registryrepo.Stage),
	}
}

func (f *fakeRegistry) addProcess(name string, primary bool) registryrepo.Process {
	p := registryrepo.Process{
		ID:           uuid.New(),
		Name:         name,
		IsActive:     true,
		IsPrimary:    primary,
		DisplayOrder: len(f.processes) + 1,
		Version:      1,
	}
	f.processes[p.ID] = p
	return p
}

func (f *fakeRegistry) addStage(processID uuid.UUID, name string, order int) registryrepo.Stage {
	s := registryrepo.Stage{
		ID:           uuid.New(),
		ProcessID:    processID,
		Name:         name,
		IsActive:     true,
		DisplayOrder: order,
		Version:      1,
	}
	f.stages[s.ID] = s
	return s
}

func (f *fakeRegistry) ListProcesses(_ context.Context, activeOnly bool) ([]registryrepo.Process, error) {
	out := make([]registryrepo.Process, 0)
	for _, p := range f.processes {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (f *fakeRegistry) GetProcess(_ context.Context, id uuid.UUID) (registryrepo.Process, error) {
	p, ok := f.processes[id]
	if !ok {
		return registryrepo.Process{}, registryrepo.ErrNotFound
	}
	return p, nil
}

func (f *fakeRegistry) GetPrimaryProcess(_ context.Context) (registryrepo.Process, error) {
	for _, p := range f.processes {
		if p.IsPrimary {
			return p, nil
		}
	}
	return registryrepo.Process{}, registryrepo.ErrNotFound
}

func (f *fakeRegistry) GetStage(_ context.Context, id uuid.UUID) (registryrepo.Stage, error) {
	s, ok := f.stages[id]
	if !ok {
		return registryrepo.Stage{}, registryrepo.ErrNotFound
	}
	return s, nil
}

func (f *fakeRegistry) ListStages(_ context.Context, processID uuid.UUID) ([]registryrepo.Stage, error) {
	out := make([]registryrepo.Stage, 0)
	for _, s := range f.stages {
		if s.ProcessID == processID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

// fakeLeadRepo is an in-memory pipeline repository with real version
// checking, so the retry loops behave as they would against postgres.
type fakeLeadRepo struct {
	mu          sync.Mutex
	leads       map[uuid.UUID]repository.Lead
	enrollments map[uuid.UUID][]repository.Enrollment
	history     []repository.StageHistoryEntry

	// transitionConflicts forces the next N Transition calls to lose
	// the version race regardless of the supplied version.
	transitionConflicts int
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{
		leads:       make(map[uuid.UUID]repository.Lead),
		enrollments: make(map[uuid.UUID][]repository.Enrollment),
	}
}

func (f *fakeLeadRepo) CreateLead(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.leads {
		if l.Phone == params.Phone && l.DeletedAt == nil {
			return repository.Lead{}, repository.ErrDuplicatePhone
		}
	}
	l := repository.Lead{
		ID:        uuid.New(),
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Email:     params.Email,
		Phone:     params.Phone,
		Status:    domain.StatusReceived,
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.leads[l.ID] = l
	return l, nil
}

func (f *fakeLeadRepo) GetLead(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok || l.DeletedAt != nil {
		return repository.Lead{}, repository.ErrNotFound
	}
	return l, nil
}

func (f *fakeLeadRepo) GetLeadByPhone(_ context.Context, phone string) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.leads {
		if l.Phone == phone && l.DeletedAt == nil {
			return l, nil
		}
	}
	return repository.Lead{}, repository.ErrNotFound
}

func (f *fakeLeadRepo) ListLeads(_ context.Context, _ repository.ListLeadsParams) ([]repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.Lead, 0)
	for _, l := range f.leads {
		if l.DeletedAt == nil {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLeadRepo) UpdateLead(_ context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok || l.DeletedAt != nil {
		return repository.Lead{}, repository.ErrNotFound
	}
	if params.FirstName != nil {
		l.FirstName = *params.FirstName
	}
	if params.LastName != nil {
		l.LastName = *params.LastName
	}
	if params.Email != nil {
		l.Email = params.Email
	}
	if params.Phone != nil {
		l.Phone = *params.Phone
	}
	f.leads[id] = l
	return l, nil
}

func (f *fakeLeadRepo) SoftDeleteLead(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok || l.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now()
	l.DeletedAt = &now
	f.leads[id] = l
	return nil
}

func (f *fakeLeadRepo) ListLeadIDs(_ context.Context, limit int, afterID *uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uuid.UUID, 0)
	for id, l := range f.leads {
		if l.DeletedAt != nil {
			continue
		}
		if afterID != nil && id.String() <= afterID.String() {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeLeadRepo) ListEnrollments(_ context.Context, leadID uuid.UUID) ([]repository.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repository.Enrollment(nil), f.enrollments[leadID]...), nil
}

func (f *fakeLeadRepo) AddEnrollment(_ context.Context, leadID, processID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.enrollments[leadID] {
		if e.ProcessID == processID {
			return nil
		}
	}
	f.enrollments[leadID] = append(f.enrollments[leadID], repository.Enrollment{
		ID:         uuid.New(),
		LeadID:     leadID,
		ProcessID:  processID,
		EnrolledAt: time.Now(),
	})
	return nil
}

func (f *fakeLeadRepo) RemoveEnrollment(_ context.Context, leadID, processID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.enrollments[leadID]
	for i, e := range entries {
		if e.ProcessID == processID {
			f.enrollments[leadID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeLeadRepo) Transition(_ context.Context, params repository.TransitionParams) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[params.LeadID]
	if !ok || l.DeletedAt != nil {
		return repository.Lead{}, repository.ErrNotFound
	}
	if f.transitionConflicts > 0 {
		f.transitionConflicts--
		return repository.Lead{}, repository.ErrVersionMismatch
	}
	if l.Version != params.ExpectedVersion {
		return repository.Lead{}, repository.ErrVersionMismatch
	}
	l.CurrentProcessID = &params.ProcessID
	l.CurrentStageID = &params.StageID
	if params.NewStatus != nil {
		l.Status = *params.NewStatus
	}
	l.Version++
	f.leads[params.LeadID] = l
	f.history = append(f.history, repository.StageHistoryEntry{
		ID:          uuid.New(),
		LeadID:      params.LeadID,
		ProcessID:   params.ProcessID,
		StageID:     params.StageID,
		StageName:   params.StageName,
		FromStageID: params.FromStageID,
		ActorID:     params.ActorID,
		Note:        params.Note,
		CreatedAt:   time.Now(),
	})
	return l, nil
}

func (f *fakeLeadRepo) SetPosition(_ context.Context, params repository.SetPositionParams) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[params.LeadID]
	if !ok || l.DeletedAt != nil {
		return repository.Lead{}, repository.ErrNotFound
	}
	if l.Version != params.ExpectedVersion {
		return repository.Lead{}, repository.ErrVersionMismatch
	}
	l.CurrentProcessID = params.ProcessID
	l.CurrentStageID = params.StageID
	l.Version++
	f.leads[params.LeadID] = l
	return l, nil
}

func (f *fakeLeadRepo) ListStageHistory(_ context.Context, leadID uuid.UUID) ([]repository.StageHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.StageHistoryEntry, 0)
	for _, e := range f.history {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeLeadRepo) SetPortalToken(_ context.Context, leadID uuid.UUID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[leadID]
	if !ok || l.DeletedAt != nil {
		return repository.ErrNotFound
	}
	l.PortalToken = &token
	l.PortalTokenExpiresAt = &expiresAt
	f.leads[leadID] = l
	return nil
}

func (f *fakeLeadRepo) RevokePortalToken(_ context.Context, leadID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[leadID]
	if !ok || l.DeletedAt != nil {
		return repository.ErrNotFound
	}
	l.PortalToken = nil
	l.PortalTokenExpiresAt = nil
	f.leads[leadID] = l
	return nil
}

func (f *fakeLeadRepo) GetLeadByPortalToken(_ context.Context, token string) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.leads {
		if l.PortalToken != nil && *l.PortalToken == token && l.DeletedAt == nil &&
			l.PortalTokenExpiresAt != nil && l.PortalTokenExpiresAt.After(time.Now()) {
			return l, nil
		}
	}
	return repository.Lead{}, repository.ErrNotFound
}

type fixture struct {
	svc      *Service
	repo     *fakeLeadRepo
	registry *fakeRegistry
	bus      *recordingBus

	primary   registryrepo.Process
	received  registryrepo.Stage
	qualified registryrepo.Stage
	converted registryrepo.Stage
}

func newFixture() *fixture {
	registry := newFakeRegistry()
	primary := registry.addProcess("Sales Pipeline", true)

	f := &fixture{
		repo:      newFakeLeadRepo(),
		registry:  registry,
		bus:       &recordingBus{},
		primary:   primary,
		received:  registry.addStage(primary.ID, "Lead Received", 1),
		qualified: registry.addStage(primary.ID, "Qualified", 2),
		converted: registry.addStage(primary.ID, "Lead Converted", 3),
	}
	f.svc = NewService(f.repo, f.registry, f.bus, logger.New("development"))
	return f
}

func (f *fixture) createLead(t *testing.T, phone string) repository.Lead {
	t.Helper()
	lead, err := f.svc.CreateLead(context.Background(), repository.CreateLeadParams{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     phone,
	})
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	return lead
}

func TestCreateLeadEnrollsInPrimaryProcess(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")

	if lead.Status != domain.StatusReceived {
		t.Errorf("status = %q, want %q", lead.Status, domain.StatusReceived)
	}
	if lead.CurrentProcessID == nil || *lead.CurrentProcessID != f.primary.ID {
		t.Errorf("lead not pointed at the primary process")
	}
	if lead.CurrentStageID != nil {
		t.Errorf("new lead should have no current stage")
	}

	enrollments, err := f.svc.ListEnrollments(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ListEnrollments: %v", err)
	}
	if len(enrollments) != 1 || enrollments[0].ProcessID != f.primary.ID {
		t.Errorf("expected exactly one primary enrollment, got %d", len(enrollments))
	}
}

func TestCreateLeadRejectsInvalidPhone(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateLead(context.Background(), repository.CreateLeadParams{
		FirstName: "Ada",
		Phone:     "not-a-phone",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestCreateLeadRejectsDuplicatePhone(t *testing.T) {
	f := newFixture()
	f.createLead(t, "+14155552671")

	_, err := f.svc.CreateLead(context.Background(), repository.CreateLeadParams{
		FirstName: "Grace",
		Phone:     "+14155552671",
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("got %v, want conflict", err)
	}
}

func TestEnsurePrimaryEnrollmentIsIdempotent(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")

	for i := 0; i < 3; i++ {
		if err := f.svc.EnsurePrimaryEnrollment(context.Background(), lead.ID); err != nil {
			t.Fatalf("EnsurePrimaryEnrollment run %d: %v", i, err)
		}
	}

	enrollments, err := f.svc.ListEnrollments(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ListEnrollments: %v", err)
	}
	if len(enrollments) != 1 {
		t.Fatalf("got %d enrollments, want 1", len(enrollments))
	}
}

func TestTransitionAppendsHistoryAndMovesPointer(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")

	note := "spoke on the phone"
	updated, err := f.svc.TransitionStage(context.Background(), TransitionParams{
		LeadID:    lead.ID,
		ProcessID: f.primary.ID,
		StageID:   f.qualified.ID,
		Note:      &note,
	})
	if err != nil {
		t.Fatalf("TransitionStage: %v", err)
	}

	if updated.CurrentStageID == nil || *updated.CurrentStageID != f.qualified.ID {
		t.Errorf("current stage not moved")
	}
	if updated.Status != domain.StatusReceived {
		t.Errorf("status = %q, want unchanged %q", updated.Status, domain.StatusReceived)
	}

	history, err := f.svc.StageHistory(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("StageHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("got %d history entries, want 1", len(history))
	}
	if history[0].StageID != f.qualified.ID || history[0].StageName != "Qualified" {
		t.Errorf("history entry records wrong stage")
	}
	if history[0].Note == nil || *history[0].Note != note {
		t.Errorf("history entry lost the note")
	}

	published := f.bus.byName(events.StageTransitioned{}.EventName())
	if len(published) != 1 {
		t.Fatalf("got %d StageTransitioned events, want 1", len(published))
	}
}

func TestTransitionDerivesStatusFromStageName(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")

	updated, err := f.svc.TransitionStage(context.Background(), TransitionParams{
		LeadID:    lead.ID,
		ProcessID: f.primary.ID,
		StageID:   f.converted.ID,
	})
	if err != nil {
		t.Fatalf("TransitionStage: %v", err)
	}
	if updated.Status != domain.StatusConverted {
		t.Errorf("status = %q, want %q", updated.Status, domain.StatusConverted)
	}
}

func TestTransitionRenamedStageLeavesStatusAlone(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")

	// A stage whose name only resembles the special one.
	renamed := f.registry.addStage(f.primary.ID, "Lead Converted!", 4)

	updated, err := f.svc.TransitionStage(context.Background(), TransitionParams{
		LeadID:    lead.ID,
		ProcessID: f.primary.ID,
		StageID:   renamed.ID,
	})
	if err != nil {
		t.Fatalf("TransitionStage: %v", err)
	}
	if updated.Status != domain.StatusReceived {
		t.Errorf("status = %q, want unchanged %q", updated.Status, domain.StatusReceived)
	}
	if updated.CurrentStageID == nil || *updated.CurrentStageID != renamed.ID {
		t.Errorf("stage pointer did not move")
	}
}

func TestTransitionStageOfWrongProcess(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")
	other := f.registry.addProcess("Onboarding", false)

	_, err := f.svc.TransitionStage(context.Background(), TransitionParams{
		LeadID:    lead.ID,
		ProcessID: other.ID,
		StageID:   f.qualified.ID,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestTransitionUnknownStage(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")

	_, err := f.svc.TransitionStage(context.Background(), TransitionParams{
		LeadID:    lead.ID,
		ProcessID: f.primary.ID,
		StageID:   uuid.New(),
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestTransitionRetriesLostRace(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")

	// Lose the version race twice; the third attempt succeeds.
	f.repo.transitionConflicts = 2

	updated, err := f.svc.TransitionStage(context.Background(), TransitionParams{
		LeadID:    lead.ID,
		ProcessID: f.primary.ID,
		StageID:   f.qualified.ID,
	})
	if err != nil {
		t.Fatalf("TransitionStage: %v", err)
	}
	if updated.CurrentStageID == nil || *updated.CurrentStageID != f.qualified.ID {
		t.Errorf("current stage not moved after retries")
	}
}

func TestTransitionExhaustsRetries(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")

	f.repo.transitionConflicts = 10

	_, err := f.svc.TransitionStage(context.Background(), TransitionParams{
		LeadID:    lead.ID,
		ProcessID: f.primary.ID,
		StageID:   f.qualified.ID,
	})
	if !apperr.Is(err, apperr.KindConcurrency) {
		t.Fatalf("got %v, want concurrency error", err)
	}
}

func TestConcurrentTransitionsKeepBothHistoryEntries(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")

	var wg sync.WaitGroup
	for _, stageID := range []uuid.UUID{f.qualified.ID, f.converted.ID} {
		wg.Add(1)
		go func(stageID uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.TransitionStage(context.Background(), TransitionParams{
				LeadID:    lead.ID,
				ProcessID: f.primary.ID,
				StageID:   stageID,
			})
			if err != nil {
				t.Errorf("TransitionStage(%s): %v", stageID, err)
			}
		}(stageID)
	}
	wg.Wait()

	history, err := f.svc.StageHistory(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("StageHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d history entries, want 2: racing transitions must both be recorded", len(history))
	}

	final, err := f.svc.GetLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("GetLead: %v", err)
	}
	if final.CurrentStageID == nil ||
		(*final.CurrentStageID != f.qualified.ID && *final.CurrentStageID != f.converted.ID) {
		t.Errorf("final stage pointer is neither contender")
	}
}

func TestAssignProcessSwitchClearsStage(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")
	onboarding := f.registry.addProcess("Onboarding", false)
	f.registry.addStage(onboarding.ID, "Documents", 1)

	// Put the lead mid-pipeline first.
	if _, err := f.svc.TransitionStage(context.Background(), TransitionParams{
		LeadID:    lead.ID,
		ProcessID: f.primary.ID,
		StageID:   f.qualified.ID,
	}); err != nil {
		t.Fatalf("TransitionStage: %v", err)
	}

	switched, err := f.svc.AssignProcess(context.Background(), lead.ID, onboarding.ID)
	if err != nil {
		t.Fatalf("AssignProcess: %v", err)
	}
	if switched.CurrentProcessID == nil || *switched.CurrentProcessID != onboarding.ID {
		t.Errorf("current process not switched")
	}
	if switched.CurrentStageID != nil {
		t.Errorf("switching process must clear the current stage")
	}

	// Re-selecting the now-current process keeps everything.
	again, err := f.svc.AssignProcess(context.Background(), lead.ID, onboarding.ID)
	if err != nil {
		t.Fatalf("AssignProcess again: %v", err)
	}
	if again.Version != switched.Version {
		t.Errorf("re-assigning the current process must be a no-op")
	}
}

func TestAssignProcessUnknownProcess(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")

	_, err := f.svc.AssignProcess(context.Background(), lead.ID, uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestListAssignableProcessesGatedByConversion(t *testing.T) {
	f := newFixture()
	f.registry.addProcess("Onboarding", false)
	lead := f.createLead(t, "+14155552671")

	before, err := f.svc.ListAssignableProcesses(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ListAssignableProcesses: %v", err)
	}
	if len(before) != 1 || before[0].ID != f.primary.ID {
		t.Fatalf("unconverted lead must only see the primary process, got %d", len(before))
	}

	if _, err := f.svc.TransitionStage(context.Background(), TransitionParams{
		LeadID:    lead.ID,
		ProcessID: f.primary.ID,
		StageID:   f.converted.ID,
	}); err != nil {
		t.Fatalf("TransitionStage: %v", err)
	}

	after, err := f.svc.ListAssignableProcesses(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ListAssignableProcesses: %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("converted lead must see all active processes, got %d", len(after))
	}
}

func TestUnassignSolePrimaryEnrollmentFails(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")

	_, err := f.svc.UnassignProcess(context.Background(), lead.ID, f.primary.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("got %v, want conflict: the sole primary enrollment must stay", err)
	}
}

func TestUnassignCurrentProcessClearsPointers(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")
	onboarding := f.registry.addProcess("Onboarding", false)
	docs := f.registry.addStage(onboarding.ID, "Documents", 1)

	if _, err := f.svc.AssignProcess(context.Background(), lead.ID, onboarding.ID); err != nil {
		t.Fatalf("AssignProcess: %v", err)
	}
	if _, err := f.svc.TransitionStage(context.Background(), TransitionParams{
		LeadID:    lead.ID,
		ProcessID: onboarding.ID,
		StageID:   docs.ID,
	}); err != nil {
		t.Fatalf("TransitionStage: %v", err)
	}

	updated, err := f.svc.UnassignProcess(context.Background(), lead.ID, onboarding.ID)
	if err != nil {
		t.Fatalf("UnassignProcess: %v", err)
	}
	if updated.CurrentProcessID != nil || updated.CurrentStageID != nil {
		t.Errorf("unassigning the current process must clear both pointers")
	}

	enrollments, err := f.svc.ListEnrollments(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ListEnrollments: %v", err)
	}
	if len(enrollments) != 1 || enrollments[0].ProcessID != f.primary.ID {
		t.Errorf("primary enrollment must survive")
	}
}

func TestUnassignNotEnrolledProcess(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")
	other := f.registry.addProcess("Onboarding", false)

	_, err := f.svc.UnassignProcess(context.Background(), lead.ID, other.ID)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestGetProgress(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")

	if _, err := f.svc.TransitionStage(context.Background(), TransitionParams{
		LeadID:    lead.ID,
		ProcessID: f.primary.ID,
		StageID:   f.qualified.ID,
	}); err != nil {
		t.Fatalf("TransitionStage: %v", err)
	}

	progress, err := f.svc.GetProgress(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if progress.Percent != 67 {
		t.Errorf("percent = %d, want 67", progress.Percent)
	}
	if len(progress.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(progress.Steps))
	}
	if !progress.Steps[0].Completed || !progress.Steps[1].Current || progress.Steps[2].Completed {
		t.Errorf("step flags wrong: %+v", progress.Steps)
	}
}

func TestBackfillPrimaryEnrollments(t *testing.T) {
	f := newFixture()
	leadA := f.createLead(t, "+14155552671")
	leadB := f.createLead(t, "+14155552672")

	// Simulate pre-existing leads that missed enrollment.
	f.repo.mu.Lock()
	f.repo.enrollments = make(map[uuid.UUID][]repository.Enrollment)
	f.repo.mu.Unlock()

	visited, err := f.svc.BackfillPrimaryEnrollments(context.Background(), 1)
	if err != nil {
		t.Fatalf("BackfillPrimaryEnrollments: %v", err)
	}
	if visited != 2 {
		t.Errorf("visited = %d, want 2", visited)
	}

	for _, id := range []uuid.UUID{leadA.ID, leadB.ID} {
		enrollments, err := f.svc.ListEnrollments(context.Background(), id)
		if err != nil {
			t.Fatalf("ListEnrollments: %v", err)
		}
		if len(enrollments) != 1 || enrollments[0].ProcessID != f.primary.ID {
			t.Errorf("lead %s not healed", id)
		}
	}
}

func TestUnassignPrimaryAfterSecondEnrollment(t *testing.T) {
	f := newFixture()
	lead := f.createLead(t, "+14155552671")
	onboarding := f.registry.addProcess("Onboarding", false)

	if _, err := f.svc.AssignProcess(context.Background(), lead.ID, onboarding.ID); err != nil {
		t.Fatalf("AssignProcess: %v", err)
	}

	// With a second enrollment present, even the primary process may go.
	if _, err := f.svc.UnassignProcess(context.Background(), lead.ID, f.primary.ID); err != nil {
		t.Fatalf("UnassignProcess: %v", err)
	}

	enrollments, err := f.svc.ListEnrollments(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ListEnrollments: %v", err)
	}
	if len(enrollments) != 1 || enrollments[0].ProcessID != onboarding.ID {
		t.Errorf("expected only the onboarding enrollment to remain")
	}
}
