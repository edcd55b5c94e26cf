package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskEnrollmentBackfill walks all leads and repairs missing primary
// process enrollments.
const TaskEnrollmentBackfill = "pipeline.enrollment.backfill"

type EnrollmentBackfillPayload struct {
	BatchSize int `json:"batchSize"`
}

func NewEnrollmentBackfillTask(payload EnrollmentBackfillPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEnrollmentBackfill, data), nil
}

func ParseEnrollmentBackfillPayload(task *asynq.Task) (EnrollmentBackfillPayload, error) {
	var payload EnrollmentBackfillPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EnrollmentBackfillPayload{}, err
	}
	return payload, nil
}
