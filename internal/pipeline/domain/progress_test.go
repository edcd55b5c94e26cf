package domain

import (
	"testing"

	"github.com/google/uuid"
)

func threeStages() []OrderedStage {
	return []OrderedStage{
		{ID: uuid.New(), Name: "Lead Received"},
		{ID: uuid.New(), Name: "Qualified"},
		{ID: uuid.New(), Name: "Lead Converted"},
	}
}

func TestProgressPercentThreeStages(t *testing.T) {
	stages := threeStages()

	wantByIndex := []int{33, 67, 100}
	for i, want := range wantByIndex {
		got := ProgressPercent(stages, &stages[i].ID)
		if got != want {
			t.Errorf("stage %d: ProgressPercent = %d, want %d", i, got, want)
		}
	}
}

func TestProgressPercentMonotone(t *testing.T) {
	for _, count := range []int{1, 2, 5, 7, 12} {
		stages := make([]OrderedStage, count)
		for i := range stages {
			stages[i] = OrderedStage{ID: uuid.New()}
		}

		previous := 0
		for i := range stages {
			got := ProgressPercent(stages, &stages[i].ID)
			if got <= 0 {
				t.Errorf("%d stages, position %d: percent %d, want > 0", count, i, got)
			}
			if got < previous {
				t.Errorf("%d stages, position %d: percent %d decreased from %d", count, i, got, previous)
			}
			previous = got
		}
		if previous != 100 {
			t.Errorf("%d stages: last stage percent = %d, want 100", count, previous)
		}
	}
}

func TestProgressPercentRounding(t *testing.T) {
	stages := make([]OrderedStage, 7)
	for i := range stages {
		stages[i] = OrderedStage{ID: uuid.New()}
	}

	// 100*(i+1)/7 rounded half away from zero.
	wantByIndex := []int{14, 29, 43, 57, 71, 86, 100}
	for i, want := range wantByIndex {
		if got := ProgressPercent(stages, &stages[i].ID); got != want {
			t.Errorf("stage %d of 7: ProgressPercent = %d, want %d", i, got, want)
		}
	}
}

func TestProgressPercentEdgeCases(t *testing.T) {
	stages := threeStages()
	unknown := uuid.New()

	tests := []struct {
		name    string
		stages  []OrderedStage
		current *uuid.UUID
	}{
		{"no current stage", stages, nil},
		{"dangling stage reference", stages, &unknown},
		{"empty stage list", nil, &stages[0].ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProgressPercent(tt.stages, tt.current); got != 0 {
				t.Errorf("ProgressPercent = %d, want 0", got)
			}
		})
	}
}

func TestStepList(t *testing.T) {
	stages := threeStages()

	steps := StepList(stages, &stages[1].ID)
	if len(steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(steps))
	}

	// Reaching a stage counts as completing it, so the current stage
	// is completed too and carries the overall percentage.
	if !steps[0].Completed || steps[0].Current || steps[0].Percentage != 100 {
		t.Errorf("step 1 = %+v, want completed at 100", steps[0])
	}
	if !steps[1].Completed || !steps[1].Current || steps[1].Percentage != 67 {
		t.Errorf("step 2 = %+v, want current and completed at 67", steps[1])
	}
	if steps[2].Completed || steps[2].Current || steps[2].Percentage != 0 {
		t.Errorf("step 3 = %+v, want pending at 0", steps[2])
	}
	for i, step := range steps {
		if step.Position != i+1 {
			t.Errorf("step %d: position = %d", i, step.Position)
		}
	}
}

func TestStepListLastStage(t *testing.T) {
	stages := threeStages()

	steps := StepList(stages, &stages[2].ID)
	for i, step := range steps {
		if !step.Completed {
			t.Errorf("step %d not completed at the last stage", i)
		}
	}
	if steps[2].Percentage != 100 {
		t.Errorf("last step percentage = %d, want 100", steps[2].Percentage)
	}
}

func TestStepListNoCurrentStage(t *testing.T) {
	stages := threeStages()
	unknown := uuid.New()

	for _, current := range []*uuid.UUID{nil, &unknown} {
		for i, step := range StepList(stages, current) {
			if step.Completed || step.Current || step.Percentage != 0 {
				t.Errorf("step %d = %+v, want all pending", i, step)
			}
		}
	}
}
