package service

import (
	"context"
	"sort"
	"testing"

	"leadcrm_backend/internal/registry/repository"
	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	processes map[uuid.UUID]repository.Process
	stages    map[uuid.UUID]repository.Stage
	swapErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		processes: make(map[uuid.UUID]repository.Process),
		stages:    make(map[uuid.UUID]repository.Stage),
	}
}

func (f *fakeRepo) addProcess(name string, primary bool) repository.Process {
	p := repository.Process{
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

func (f *fakeRepo) addStage(processID uuid.UUID, name string, order int) repository.Stage {
	s := repository.Stage{
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

func (f *fakeRepo) ListProcesses(_ context.Context, activeOnly bool) ([]repository.Process, error) {
	out := make([]repository.Process, 0)
	for _, p := range f.processes {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (f *fakeRepo) GetProcess(_ context.Context, id uuid.UUID) (repository.Process, error) {
	p, ok := f.processes[id]
	if !ok {
		return repository.Process{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) GetPrimaryProcess(_ context.Context) (repository.Process, error) {
	for _, p := range f.processes {
		if p.IsPrimary {
			return p, nil
		}
	}
	return repository.Process{}, repository.ErrNotFound
}

func (f *fakeRepo) CreateProcess(_ context.Context, params repository.CreateProcessParams) (repository.Process, error) {
	p := repository.Process{
		ID:           uuid.New(),
		Name:         params.Name,
		Description:  params.Description,
		IsActive:     true,
		DisplayOrder: len(f.processes) + 1,
		Version:      1,
	}
	f.processes[p.ID] = p
	return p, nil
}

func (f *fakeRepo) UpdateProcess(_ context.Context, id uuid.UUID, params repository.UpdateProcessParams) (repository.Process, error) {
	p, ok := f.processes[id]
	if !ok {
		return repository.Process{}, repository.ErrNotFound
	}
	if p.Version != params.Version {
		return repository.Process{}, repository.ErrVersionMismatch
	}
	if params.Name != nil {
		p.Name = *params.Name
	}
	if params.IsActive != nil {
		p.IsActive = *params.IsActive
	}
	p.Version++
	f.processes[id] = p
	return p, nil
}

func (f *fakeRepo) DeleteProcess(_ context.Context, id uuid.UUID) error {
	if _, ok := f.processes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.processes, id)
	for stageID, s := range f.stages {
		if s.ProcessID == id {
			delete(f.stages, stageID)
		}
	}
	return nil
}

func (f *fakeRepo) ListStages(_ context.Context, processID uuid.UUID) ([]repository.Stage, error) {
	out := make([]repository.Stage, 0)
	for _, s := range f.stages {
		if s.ProcessID == processID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (f *fakeRepo) GetStage(_ context.Context, id uuid.UUID) (repository.Stage, error) {
	s, ok := f.stages[id]
	if !ok {
		return repository.Stage{}, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeRepo) CreateStage(_ context.Context, params repository.CreateStageParams) (repository.Stage, error) {
	order := 1
	for _, s := range f.stages {
		if s.ProcessID == params.ProcessID && s.DisplayOrder >= order {
			order = s.DisplayOrder + 1
		}
	}
	s := repository.Stage{
		ID:           uuid.New(),
		ProcessID:    params.ProcessID,
		Name:         params.Name,
		Color:        params.Color,
		IsActive:     true,
		DisplayOrder: order,
		Version:      1,
	}
	f.stages[s.ID] = s
	return s, nil
}

func (f *fakeRepo) UpdateStage(_ context.Context, id uuid.UUID, params repository.UpdateStageParams) (repository.Stage, error) {
	s, ok := f.stages[id]
	if !ok {
		return repository.Stage{}, repository.ErrNotFound
	}
	if s.Version != params.Version {
		return repository.Stage{}, repository.ErrVersionMismatch
	}
	if params.Name != nil {
		s.Name = *params.Name
	}
	if params.IsActive != nil {
		s.IsActive = *params.IsActive
	}
	s.Version++
	f.stages[id] = s
	return s, nil
}

func (f *fakeRepo) DeleteStage(_ context.Context, id uuid.UUID) error {
	if _, ok := f.stages[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.stages, id)
	return nil
}

func (f *fakeRepo) SwapStageOrder(_ context.Context, first repository.Stage, second repository.Stage) error {
	if f.swapErr != nil {
		return f.swapErr
	}
	a := f.stages[first.ID]
	b := f.stages[second.ID]
	a.DisplayOrder, b.DisplayOrder = b.DisplayOrder, a.DisplayOrder
	a.Version++
	b.Version++
	f.stages[a.ID] = a
	f.stages[b.ID] = b
	return nil
}

func newTestService(repo repository.Repository) *Service {
	return NewService(repo, logger.New("development"))
}

func TestReorderStageSwapsNeighbors(t *testing.T) {
	repo := newFakeRepo()
	process := repo.addProcess("Sales Pipeline", true)
	first := repo.addStage(process.ID, "Lead Received", 1)
	second := repo.addStage(process.ID, "Qualified", 2)
	third := repo.addStage(process.ID, "Lead Converted", 3)

	svc := newTestService(repo)

	stages, err := svc.ReorderStage(context.Background(), process.ID, second.ID, ReorderUp)
	if err != nil {
		t.Fatalf("ReorderStage: %v", err)
	}

	wantOrder := []uuid.UUID{second.ID, first.ID, third.ID}
	for i, want := range wantOrder {
		if stages[i].ID != want {
			t.Errorf("position %d: got stage %s, want %s", i, stages[i].Name, want)
		}
	}
}

func TestReorderStageBoundaryIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	process := repo.addProcess("Sales Pipeline", true)
	first := repo.addStage(process.ID, "Lead Received", 1)
	last := repo.addStage(process.ID, "Lead Converted", 2)

	svc := newTestService(repo)

	tests := []struct {
		name      string
		stageID   uuid.UUID
		direction ReorderDirection
	}{
		{"first stage up", first.ID, ReorderUp},
		{"last stage down", last.ID, ReorderDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages, err := svc.ReorderStage(context.Background(), process.ID, tt.stageID, tt.direction)
			if err != nil {
				t.Fatalf("ReorderStage: %v", err)
			}
			if stages[0].ID != first.ID || stages[1].ID != last.ID {
				t.Errorf("boundary reorder changed the order")
			}
		})
	}
}

func TestReorderStageUnknownStage(t *testing.T) {
	repo := newFakeRepo()
	process := repo.addProcess("Sales Pipeline", true)
	repo.addStage(process.ID, "Lead Received", 1)

	svc := newTestService(repo)

	_, err := svc.ReorderStage(context.Background(), process.ID, uuid.New(), ReorderDown)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestReorderStageConcurrentEdit(t *testing.T) {
	repo := newFakeRepo()
	process := repo.addProcess("Sales Pipeline", true)
	repo.addStage(process.ID, "Lead Received", 1)
	second := repo.addStage(process.ID, "Qualified", 2)
	repo.swapErr = repository.ErrVersionMismatch

	svc := newTestService(repo)

	_, err := svc.ReorderStage(context.Background(), process.ID, second.ID, ReorderUp)
	if !apperr.Is(err, apperr.KindConcurrency) {
		t.Fatalf("got %v, want concurrency error", err)
	}
}

func TestUpdateProcessVersionMismatch(t *testing.T) {
	repo := newFakeRepo()
	process := repo.addProcess("Sales Pipeline", true)

	svc := newTestService(repo)

	name := "Renamed"
	_, err := svc.UpdateProcess(context.Background(), process.ID, repository.UpdateProcessParams{
		Name:    &name,
		Version: process.Version + 5,
	})
	if !apperr.Is(err, apperr.KindConcurrency) {
		t.Fatalf("got %v, want concurrency error", err)
	}
}

func TestUpdateProcessMissing(t *testing.T) {
	svc := newTestService(newFakeRepo())

	name := "Renamed"
	_, err := svc.UpdateProcess(context.Background(), uuid.New(), repository.UpdateProcessParams{
		Name:    &name,
		Version: 1,
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestCreateProcessRequiresName(t *testing.T) {
	svc := newTestService(newFakeRepo())

	_, err := svc.CreateProcess(context.Background(), repository.CreateProcessParams{})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestDeactivatingProcessKeepsItListed(t *testing.T) {
	repo := newFakeRepo()
	process := repo.addProcess("Sales Pipeline", true)
	inactive := repo.addProcess("Legacy Pipeline", false)

	svc := newTestService(repo)

	off := false
	if _, err := svc.UpdateProcess(context.Background(), inactive.ID, repository.UpdateProcessParams{
		IsActive: &off,
		Version:  inactive.Version,
	}); err != nil {
		t.Fatalf("UpdateProcess: %v", err)
	}

	all, err := svc.ListProcesses(context.Background(), false)
	if err != nil {
		t.Fatalf("ListProcesses: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d processes, want 2", len(all))
	}

	active, err := svc.ListProcesses(context.Background(), true)
	if err != nil {
		t.Fatalf("ListProcesses: %v", err)
	}
	if len(active) != 1 || active[0].ID != process.ID {
		t.Fatalf("active filter returned wrong set")
	}
}
