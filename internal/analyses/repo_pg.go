package analyses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (id, job_id, query, document_key, status, result, error_message, user_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.DB.ExecContext(ctx, query,
		analysis.ID,
		nullIfEmpty(analysis.JobID),
		analysis.Query,
		analysis.DocumentKey,
		analysis.Status,
		nullIfEmpty(analysis.Result),
		nullIfEmpty(analysis.ErrorMessage),
		analysis.UserID,
		analysis.CreatedAt,
		analysis.CreatedAt,
	)
	return err
}

// Delete removes an analysis row. Used only for submission-time rollback.
func (r *PGRepo) Delete(ctx context.Context, analysisID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM analyses WHERE id = $1`, analysisID)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	const query = selectColumns + ` WHERE id = $1 LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, analysisID))
}

// GetByJobID returns an analysis by its queue-assigned job ID.
func (r *PGRepo) GetByJobID(ctx context.Context, jobID string) (Analysis, error) {
	const query = selectColumns + ` WHERE job_id = $1 LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, jobID))
}

// SetJobID records the queue-assigned job ID. The ID is set at most once.
func (r *PGRepo) SetJobID(ctx context.Context, analysisID, jobID string) error {
	const query = `
UPDATE analyses SET job_id = $2, updated_at = $3
WHERE id = $1 AND job_id IS NULL`
	res, err := r.DB.ExecContext(ctx, query, analysisID, jobID, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("set job id: analysis %s missing or job id already assigned", analysisID)
	}
	return nil
}

// MarkProcessing claims a queued analysis for execution. It reports false when
// the record was already claimed or terminal, which callers must treat as a
// duplicate delivery and skip.
func (r *PGRepo) MarkProcessing(ctx context.Context, analysisID string) (bool, error) {
	const query = `
UPDATE analyses SET status = $2, updated_at = $3
WHERE id = $1 AND status = $4`
	res, err := r.DB.ExecContext(ctx, query, analysisID, StatusProcessing, time.Now().UTC(), StatusQueued)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// MarkSucceeded commits the terminal success state with its result.
func (r *PGRepo) MarkSucceeded(ctx context.Context, analysisID, result string) error {
	const query = `
UPDATE analyses SET status = $2, result = $3, error_message = NULL, updated_at = $4
WHERE id = $1 AND status = $5`
	return r.markTerminal(ctx, query, analysisID, StatusSuccess, result)
}

// MarkFailed commits the terminal failed state with its diagnostic message.
func (r *PGRepo) MarkFailed(ctx context.Context, analysisID, errorMessage string) error {
	const query = `
UPDATE analyses SET status = $2, error_message = $3, result = NULL, updated_at = $4
WHERE id = $1 AND status = $5`
	return r.markTerminal(ctx, query, analysisID, StatusFailed, errorMessage)
}

func (r *PGRepo) markTerminal(ctx context.Context, query, analysisID, status, payload string) error {
	res, err := r.DB.ExecContext(ctx, query, analysisID, status, payload, time.Now().UTC(), StatusProcessing)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStaleTransition
	}
	return nil
}

const selectColumns = `
SELECT id, job_id, query, document_key, status, result, error_message, user_id, created_at, updated_at
FROM analyses`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) scanOne(row rowScanner) (Analysis, error) {
	var a Analysis
	var jobID, result, errorMessage sql.NullString
	err := row.Scan(
		&a.ID,
		&jobID,
		&a.Query,
		&a.DocumentKey,
		&a.Status,
		&result,
		&errorMessage,
		&a.UserID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, err
	}
	a.JobID = jobID.String
	a.Result = result.String
	a.ErrorMessage = errorMessage.String
	return a, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
