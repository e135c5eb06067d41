package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	analysis := Analysis{
		ID:          "analysis-1",
		Query:       DefaultQuery,
		DocumentKey: "owner/doc.pdf",
		Status:      StatusQueued,
		UserID:      "user-1",
		CreatedAt:   time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(
			analysis.ID,
			nil, // job_id assigned later
			analysis.Query,
			analysis.DocumentKey,
			analysis.Status,
			nil,
			nil,
			analysis.UserID,
			analysis.CreatedAt,
			analysis.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSetJobIDAlreadyAssigned(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE analyses SET job_id").
		WithArgs("analysis-1", "job-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SetJobID(context.Background(), "analysis-1", "job-1"); err == nil {
		t.Fatalf("expected error when job id already assigned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkProcessingClaim(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE analyses SET status").
		WithArgs("analysis-1", StatusProcessing, sqlmock.AnyArg(), StatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE analyses SET status").
		WithArgs("analysis-1", StatusProcessing, sqlmock.AnyArg(), StatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.MarkProcessing(context.Background(), "analysis-1")
	if err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if !claimed {
		t.Fatalf("expected first claim to succeed")
	}

	claimed, err = repo.MarkProcessing(context.Background(), "analysis-1")
	if err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if claimed {
		t.Fatalf("expected second claim to report unclaimed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkSucceededStale(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE analyses SET status").
		WithArgs("analysis-1", StatusSuccess, "report", sqlmock.AnyArg(), StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkSucceeded(context.Background(), "analysis-1", "report"); !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("expected ErrStaleTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByJobID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "job_id", "query", "document_key", "status", "result", "error_message", "user_id", "created_at", "updated_at",
	}).AddRow("analysis-1", "job-1", DefaultQuery, "owner/doc.pdf", StatusSuccess, "report", nil, "user-1", now, now)

	mock.ExpectQuery("SELECT id, job_id, query").
		WithArgs("job-1").
		WillReturnRows(rows)

	analysis, err := repo.GetByJobID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByJobID: %v", err)
	}
	if analysis.ID != "analysis-1" || analysis.Status != StatusSuccess || analysis.Result != "report" {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}
	if analysis.ErrorMessage != "" {
		t.Fatalf("expected empty error message, got %q", analysis.ErrorMessage)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
