package domain

import (
	"math"

	"github.com/google/uuid"
)

// OrderedStage is the minimal stage view the projector needs, in
// display order.
type OrderedStage struct {
	ID   uuid.UUID
	Name string
}

// Step is one entry of the rendered progress model. Reaching a stage
// counts as completing it, so the current stage is both current and
// completed; its percentage equals the overall progress value, stages
// before it sit at 100 and stages after it at 0.
type Step struct {
	StageID    uuid.UUID `json:"stageId"`
	Name       string    `json:"name"`
	Position   int       `json:"position"`
	Current    bool      `json:"current"`
	Completed  bool      `json:"completed"`
	Percentage int       `json:"percentage"`
}

// ProgressPercent maps the lead's current stage to a percentage of the
// ordered stage list. The first stage already counts as progress, so a
// three-stage process yields 33/67/100. A nil current stage or one not
// present in the list yields 0.
func ProgressPercent(stages []OrderedStage, currentStageID *uuid.UUID) int {
	if len(stages) == 0 || currentStageID == nil {
		return 0
	}
	for i, stage := range stages {
		if stage.ID == *currentStageID {
			return int(math.Round(100 * float64(i+1) / float64(len(stages))))
		}
	}
	return 0
}

// StepList renders the ordered stages as progress steps. With no
// current stage (or a dangling reference to a deleted stage) every
// step is pending at 0.
func StepList(stages []OrderedStage, currentStageID *uuid.UUID) []Step {
	currentIndex := -1
	if currentStageID != nil {
		for i, stage := range stages {
			if stage.ID == *currentStageID {
				currentIndex = i
				break
			}
		}
	}

	overall := ProgressPercent(stages, currentStageID)
	steps := make([]Step, 0, len(stages))
	for i, stage := range stages {
		step := Step{
			StageID:  stage.ID,
			Name:     stage.Name,
			Position: i + 1,
		}
		switch {
		case currentIndex >= 0 && i < currentIndex:
			step.Completed = true
			step.Percentage = 100
		case i == currentIndex:
			step.Current = true
			step.Completed = true
			step.Percentage = overall
		}
		steps = append(steps, step)
	}
	return steps
}
