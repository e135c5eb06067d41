package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"analyzer-backend/internal/engine"
	"analyzer-backend/internal/extract"
	"analyzer-backend/internal/shared/metrics"
	"analyzer-backend/internal/shared/storage/object"
	"analyzer-backend/internal/shared/telemetry"
)

// Executor runs one analysis job end to end: claim the record, extract the
// document text, call the engine, commit the terminal status, and delete the
// stored document.
type Executor struct {
	Repo   Repo
	Store  object.ObjectStore
	Engine engine.Engine
}

// Execute processes the analysis identified by analysisID. It returns a
// non-nil error only for infrastructure faults where re-delivery could help;
// business failures are committed to the record and reported as nil so the
// queue treats the job as complete.
func (e *Executor) Execute(ctx context.Context, analysisID string) error {
	metrics.IncJobReceived()
	startedAt := time.Now().UTC()

	analysis, err := e.Repo.GetByID(ctx, analysisID)
	if errors.Is(err, ErrNotFound) {
		telemetry.Error("job.orphaned", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisID,
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("analysis lookup: %w", err)
	}

	claimed, err := e.Repo.MarkProcessing(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("claim analysis: %w", err)
	}
	if !claimed {
		// Duplicate delivery: another executor owns this record and its
		// document. Touch nothing.
		telemetry.Info("job.duplicate_delivery", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisID,
			"job_id":      analysis.JobID,
			"status":      analysis.Status,
		})
		return nil
	}
	e.logTransition(ctx, analysis, StatusProcessing, "queued->processing", startedAt)

	// The claim succeeded, so this executor now owns the document and must
	// delete it exactly once, on every outcome including panics.
	defer e.cleanup(analysis)

	if err := e.Store.Stat(ctx, analysis.DocumentKey); err != nil {
		if errors.Is(err, object.ErrNotExist) {
			err = fmt.Errorf("document %s is gone: %w", analysis.DocumentKey, err)
		}
		e.fail(ctx, analysis, err, startedAt)
		return nil
	}

	text, err := extract.FromStore(ctx, e.Store, analysis.DocumentKey, "", analysis.DocumentKey)
	if err != nil {
		e.fail(ctx, analysis, fmt.Errorf("extract text: %w", err), startedAt)
		return nil
	}

	result, err := e.Engine.Analyze(ctx, engine.AnalyzeInput{
		DocumentKey:  analysis.DocumentKey,
		DocumentText: text,
		Query:        analysis.Query,
	})
	if err != nil {
		e.fail(ctx, analysis, fmt.Errorf("engine analyze: %w", err), startedAt)
		return nil
	}

	// Terminal updates run on a fresh context: the job budget may already be
	// exhausted and the result must still be committed.
	if err := e.Repo.MarkSucceeded(context.Background(), analysis.ID, result); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			e.logStale(ctx, analysis, StatusSuccess)
			return nil
		}
		e.fail(ctx, analysis, fmt.Errorf("commit result: %w", err), startedAt)
		return nil
	}
	metrics.IncJobSucceeded()
	metrics.ObserveJobDurationMs(sinceMs(startedAt))
	e.logTransition(ctx, analysis, StatusSuccess, "processing->success", startedAt)
	return nil
}

func (e *Executor) fail(ctx context.Context, analysis Analysis, cause error, startedAt time.Time) {
	msg := sanitizeError(cause)
	if err := e.Repo.MarkFailed(context.Background(), analysis.ID, msg); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			e.logStale(ctx, analysis, StatusFailed)
			return
		}
		telemetry.Error("job.fail_update_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysis.ID,
			"job_id":      analysis.JobID,
			"error":       err.Error(),
			"cause":       msg,
		})
		return
	}
	metrics.IncJobFailed()
	metrics.ObserveJobDurationMs(sinceMs(startedAt))
	telemetry.Info("job.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysis.ID,
		"job_id":            analysis.JobID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error":             msg,
		"duration_ms":       sinceMs(startedAt),
	})
}

// cleanup deletes the document owned by this execution. A missing object is
// fine; any other failure is counted and logged, never propagated.
func (e *Executor) cleanup(analysis Analysis) {
	err := e.Store.Delete(context.Background(), analysis.DocumentKey)
	if err != nil && !errors.Is(err, object.ErrNotExist) {
		metrics.IncCleanupFailed()
		telemetry.Error("job.cleanup_failed", map[string]any{
			"analysis_id": analysis.ID,
			"job_id":      analysis.JobID,
			"storage_key": analysis.DocumentKey,
			"error":       err.Error(),
		})
		return
	}
	metrics.IncDocumentDeleted()
}

func (e *Executor) logTransition(ctx context.Context, analysis Analysis, status, transition string, startedAt time.Time) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysis.ID,
		"job_id":            analysis.JobID,
		"user_id":           analysis.UserID,
		"status":            status,
		"status_transition": transition,
	}
	if IsTerminal(status) {
		fields["duration_ms"] = sinceMs(startedAt)
	}
	telemetry.Info("job.status", fields)
}

func (e *Executor) logStale(ctx context.Context, analysis Analysis, attempted string) {
	telemetry.Error("job.stale_transition", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": analysis.ID,
		"job_id":      analysis.JobID,
		"attempted":   attempted,
	})
}

func sinceMs(startedAt time.Time) float64 {
	return float64(time.Since(startedAt).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
