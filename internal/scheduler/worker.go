package scheduler

import (
	"context"
	"fmt"

	pipelinesvc "leadcrm_backend/internal/pipeline/service"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	pipeline *pipelinesvc.Service
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pipeline *pipelinesvc.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		pipeline: pipeline,
		log:      log,
	}

	mux.HandleFunc(TaskEnrollmentBackfill, w.handleEnrollmentBackfill)

	return w, nil
}

func (w *Worker) handleEnrollmentBackfill(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEnrollmentBackfillPayload(task)
	if err != nil {
		return err
	}

	visited, err := w.pipeline.BackfillPrimaryEnrollments(ctx, payload.BatchSize)
	if err != nil {
		return err
	}

	w.log.Info("enrollment backfill completed", "leads_visited", visited)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
