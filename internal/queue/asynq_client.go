package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"analyzer-backend/internal/shared/telemetry"
)

// Completed tasks are retained so liveness lookups keep answering "finished"
// for a while after the executor acks.
const completedRetention = 24 * time.Hour

// AsynqClient dispatches analysis jobs through a Redis-backed asynq queue.
type AsynqClient struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queueName string
}

// NewAsynqClient constructs an asynq-backed queue client from a Redis URI.
func NewAsynqClient(redisURL, queueName string) (*AsynqClient, error) {
	if queueName == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &AsynqClient{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queueName: queueName,
	}, nil
}

// NewJobID returns a fresh job identifier. The ID is assigned to the task at
// enqueue time, so callers can persist it before the job is visible to workers.
func (c *AsynqClient) NewJobID() string {
	return uuid.NewString()
}

// Enqueue delivers an analysis job to the executor pool. The job is delivered
// at least once; maxDuration is the hard wall-clock execution budget, and a
// job is never retried automatically after a handler failure.
func (c *AsynqClient) Enqueue(ctx context.Context, jobID string, msg Message, maxDuration time.Duration) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode queue message: %w", err)
	}

	task := asynq.NewTask(TaskTypeAnalysis, payload)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queueName),
		asynq.TaskID(jobID),
		asynq.Timeout(maxDuration),
		asynq.MaxRetry(0),
		asynq.Retention(completedRetention),
	)
	if err != nil {
		return fmt.Errorf("enqueue job id=%s: %w", jobID, err)
	}
	return nil
}

// Liveness returns the queue's view of a job. Lookup failures degrade to
// unknown rather than an error.
func (c *AsynqClient) Liveness(ctx context.Context, jobID string) Liveness {
	info, err := c.inspector.GetTaskInfo(c.queueName, jobID)
	if err != nil {
		if !errors.Is(err, asynq.ErrTaskNotFound) {
			telemetry.Error("queue.liveness_lookup_failed", map[string]any{
				"job_id": jobID,
				"error":  err.Error(),
			})
		}
		return LivenessUnknown
	}
	return mapTaskState(info.State)
}

// Close releases the underlying Redis connections.
func (c *AsynqClient) Close() error {
	inspErr := c.inspector.Close()
	if err := c.client.Close(); err != nil {
		return err
	}
	return inspErr
}

func mapTaskState(state asynq.TaskState) Liveness {
	switch state {
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateRetry, asynq.TaskStateAggregating:
		return LivenessPending
	case asynq.TaskStateActive:
		return LivenessActive
	case asynq.TaskStateCompleted:
		return LivenessFinished
	case asynq.TaskStateArchived:
		return LivenessFailed
	default:
		return LivenessUnknown
	}
}

var _ Client = (*AsynqClient)(nil)
