package analyses

import "context"

// Repo defines persistence operations for analyses.
//
// Status transitions are monotonic: MarkProcessing only claims a queued
// record, and MarkSucceeded/MarkFailed only commit over a processing one.
// Delete exists solely for submission-time rollback.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	Delete(ctx context.Context, analysisID string) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	GetByJobID(ctx context.Context, jobID string) (Analysis, error)
	SetJobID(ctx context.Context, analysisID, jobID string) error
	MarkProcessing(ctx context.Context, analysisID string) (bool, error)
	MarkSucceeded(ctx context.Context, analysisID, result string) error
	MarkFailed(ctx context.Context, analysisID, errorMessage string) error
}
