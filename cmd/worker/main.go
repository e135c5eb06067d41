package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"analyzer-backend/internal/bootstrap"
	"analyzer-backend/internal/queue"
	"analyzer-backend/internal/shared/config"
	"analyzer-backend/internal/shared/telemetry"
	"analyzer-backend/internal/workerproc"
)

func main() {
	cfg := config.Load()

	app, err := bootstrap.BuildWorker(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Fatalf("parse redis url: %v", err)
	}

	concurrency := cfg.WorkerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{cfg.QueueName: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			telemetry.Error("worker.task_failed", map[string]any{
				"job_id":    id,
				"task_type": task.Type(),
				"error":     err.Error(),
			})
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeAnalysis, func(ctx context.Context, task *asynq.Task) error {
		return workerproc.HandleMessage(ctx, app.Executor, task.Payload())
	})

	log.Printf("worker started queue=%s concurrency=%d", cfg.QueueName, concurrency)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}
