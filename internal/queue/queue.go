package queue

import (
	"context"
	"time"
)

// TaskTypeAnalysis is the task type routed to analysis executors.
const TaskTypeAnalysis = "analysis:run"

// Liveness is the queue's own view of a job, distinct from the status store's
// business status. The two can disagree transiently; callers must treat the
// status store as authoritative and this as a hint only.
type Liveness string

const (
	LivenessPending  Liveness = "pending"
	LivenessActive   Liveness = "active"
	LivenessFinished Liveness = "finished"
	LivenessFailed   Liveness = "failed"
	LivenessUnknown  Liveness = "unknown"
)

// Client dispatches jobs to the executor pool and answers liveness lookups.
//
// Job IDs are generated client-side via NewJobID so callers can persist the ID
// before the job becomes visible to any worker.
type Client interface {
	NewJobID() string
	Enqueue(ctx context.Context, jobID string, msg Message, maxDuration time.Duration) error
	Liveness(ctx context.Context, jobID string) Liveness
}
