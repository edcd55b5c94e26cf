package main

import (
	"context"
	"flag"

	"leadcrm_backend/internal/events"
	pipelinerepo "leadcrm_backend/internal/pipeline/repository"
	pipelinesvc "leadcrm_backend/internal/pipeline/service"
	registryrepo "leadcrm_backend/internal/registry/repository"
	"leadcrm_backend/internal/scheduler"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/db"
	"leadcrm_backend/platform/logger"
)

func main() {
	batchSize := flag.Int("batch-size", 200, "leads fetched per page")
	inline := flag.Bool("inline", false, "run the backfill in-process instead of enqueueing it")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	ctx := context.Background()

	if !*inline && cfg.GetRedisURL() != "" {
		client, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize scheduler client", "error", err)
			panic("failed to initialize scheduler client: " + err.Error())
		}
		defer client.Close()

		payload := scheduler.EnrollmentBackfillPayload{BatchSize: *batchSize}
		if err := client.EnqueueEnrollmentBackfill(ctx, payload); err != nil {
			log.Error("failed to enqueue backfill", "error", err)
			panic("failed to enqueue backfill: " + err.Error())
		}
		log.Info("enrollment backfill enqueued", "batch_size", *batchSize)
		return
	}

	// No Redis (or -inline): run directly against the database.
	log.Info("running enrollment backfill inline", "batch_size", *batchSize)

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	service := pipelinesvc.NewService(
		pipelinerepo.NewPostgresRepository(pool),
		registryrepo.NewPostgresRepository(pool),
		events.NewInMemoryBus(log),
		log,
	)

	visited, err := service.BackfillPrimaryEnrollments(ctx, *batchSize)
	if err != nil {
		log.Error("backfill failed", "error", err, "leads_visited", visited)
		panic("backfill failed: " + err.Error())
	}

	log.Info("enrollment backfill complete", "leads_visited", visited)
}
