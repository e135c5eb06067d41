package analyses

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	byID    map[string]Analysis
	byJobID map[string]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:    make(map[string]Analysis),
		byJobID: make(map[string]string),
	}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[analysis.ID] = analysis
	if analysis.JobID != "" {
		r.byJobID[analysis.JobID] = analysis.ID
	}
	return nil
}

// Delete removes an analysis. Used only for submission-time rollback.
func (r *MemoryRepo) Delete(ctx context.Context, analysisID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if analysis, ok := r.byID[analysisID]; ok {
		if analysis.JobID != "" {
			delete(r.byJobID, analysis.JobID)
		}
		delete(r.byID, analysisID)
	}
	return nil
}

// GetByID returns an analysis by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// GetByJobID returns an analysis by its queue-assigned job ID.
func (r *MemoryRepo) GetByJobID(ctx context.Context, jobID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysisID, ok := r.byJobID[jobID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return r.byID[analysisID], nil
}

// SetJobID records the queue-assigned job ID. The ID is set at most once.
func (r *MemoryRepo) SetJobID(ctx context.Context, analysisID, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok || analysis.JobID != "" {
		return fmt.Errorf("set job id: analysis %s missing or job id already assigned", analysisID)
	}
	analysis.JobID = jobID
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = analysis
	r.byJobID[jobID] = analysisID
	return nil
}

// MarkProcessing claims a queued analysis for execution.
func (r *MemoryRepo) MarkProcessing(ctx context.Context, analysisID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok || analysis.Status != StatusQueued {
		return false, nil
	}
	analysis.Status = StatusProcessing
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = analysis
	return true, nil
}

// MarkSucceeded commits the terminal success state with its result.
func (r *MemoryRepo) MarkSucceeded(ctx context.Context, analysisID, result string) error {
	return r.markTerminal(ctx, analysisID, StatusSuccess, result, "")
}

// MarkFailed commits the terminal failed state with its diagnostic message.
func (r *MemoryRepo) MarkFailed(ctx context.Context, analysisID, errorMessage string) error {
	return r.markTerminal(ctx, analysisID, StatusFailed, "", errorMessage)
}

func (r *MemoryRepo) markTerminal(ctx context.Context, analysisID, status, result, errorMessage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok || analysis.Status != StatusProcessing {
		return ErrStaleTransition
	}
	analysis.Status = status
	analysis.Result = result
	analysis.ErrorMessage = errorMessage
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = analysis
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
