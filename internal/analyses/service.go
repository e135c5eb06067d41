package analyses

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"analyzer-backend/internal/queue"
	"analyzer-backend/internal/shared/metrics"
	"analyzer-backend/internal/shared/storage/object"
	"analyzer-backend/internal/shared/telemetry"
	"analyzer-backend/internal/users"
)

// Service contains business logic for analyses: it accepts submissions and
// answers status queries. Execution lives in Executor.
type Service struct {
	Repo           Repo
	Users          users.Repo
	Store          object.ObjectStore
	Queue          queue.Client
	AcceptedTypes  []string
	MaxJobDuration time.Duration
}

// Submit validates the upload, persists the document and a queued analysis
// record, and dispatches a job. Side effects are applied in order; when a later
// step fails, earlier ones are rolled back best-effort so a rejected submission
// leaves no durable trace.
func (s *Service) Submit(ctx context.Context, fileName string, data []byte, query string) (Analysis, error) {
	if len(data) == 0 {
		metrics.IncSubmissionRejected()
		return Analysis{}, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	detected := mimetype.Detect(data)
	if !s.accepts(detected) {
		metrics.IncSubmissionRejected()
		return Analysis{}, fmt.Errorf("%w: unsupported file type %s", ErrInvalidInput, detected.String())
	}

	query = strings.TrimSpace(query)
	if query == "" {
		query = DefaultQuery
	}

	now := time.Now().UTC()
	user := users.User{ID: uuid.NewString(), CreatedAt: now}

	storageKey, sizeBytes, mimeType, err := s.Store.Save(ctx, user.ID, fileName, bytes.NewReader(data))
	if err != nil {
		metrics.IncSubmissionRejected()
		return Analysis{}, fmt.Errorf("save document: %w", err)
	}

	if err := s.Users.Create(ctx, user); err != nil {
		s.rollbackDocument(ctx, storageKey)
		metrics.IncSubmissionRejected()
		return Analysis{}, fmt.Errorf("create user: %w", err)
	}

	analysis := Analysis{
		ID:          uuid.NewString(),
		Query:       query,
		DocumentKey: storageKey,
		Status:      StatusQueued,
		UserID:      user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.Create(ctx, analysis); err != nil {
		s.rollbackDocument(ctx, storageKey)
		metrics.IncSubmissionRejected()
		return Analysis{}, fmt.Errorf("create analysis: %w", err)
	}

	// The job ID is generated here and persisted before the job becomes
	// visible to any executor, so a status poll by job ID can never race
	// an executor that started before the ID was durable.
	jobID := s.Queue.NewJobID()
	if err := s.Repo.SetJobID(ctx, analysis.ID, jobID); err != nil {
		s.rollbackRecord(ctx, analysis.ID, storageKey)
		metrics.IncSubmissionRejected()
		return Analysis{}, fmt.Errorf("assign job id: %w", err)
	}
	analysis.JobID = jobID

	msg := queue.Message{
		AnalysisID: analysis.ID,
		RequestID:  requestIDFromContext(ctx),
		EnqueuedAt: now.Format(time.RFC3339),
		Version:    1,
	}
	if err := s.Queue.Enqueue(ctx, jobID, msg, s.MaxJobDuration); err != nil {
		s.rollbackRecord(ctx, analysis.ID, storageKey)
		metrics.IncSubmissionRejected()
		return Analysis{}, fmt.Errorf("enqueue job: %w", err)
	}

	metrics.IncSubmissionAccepted()
	telemetry.Info("submission.accepted", map[string]any{
		"request_id":  msg.RequestID,
		"analysis_id": analysis.ID,
		"job_id":      jobID,
		"user_id":     user.ID,
		"file_name":   fileName,
		"mime_type":   mimeType,
		"size_bytes":  sizeBytes,
	})
	return analysis, nil
}

// GetByJobID returns the analysis for a job together with the queue's own view
// of the job. The record is authoritative; the liveness value is a hint.
func (s *Service) GetByJobID(ctx context.Context, jobID string) (Analysis, queue.Liveness, error) {
	if jobID == "" {
		return Analysis{}, queue.LivenessUnknown, fmt.Errorf("%w: job id is required", ErrInvalidInput)
	}
	analysis, err := s.Repo.GetByJobID(ctx, jobID)
	if err != nil {
		return Analysis{}, queue.LivenessUnknown, err
	}
	return analysis, s.Queue.Liveness(ctx, jobID), nil
}

// GetByID returns an analysis by its ID.
func (s *Service) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, analysisID)
}

func (s *Service) accepts(detected *mimetype.MIME) bool {
	for _, accepted := range s.AcceptedTypes {
		if detected.Is(accepted) {
			return true
		}
	}
	return false
}

func (s *Service) rollbackDocument(ctx context.Context, storageKey string) {
	if err := s.Store.Delete(ctx, storageKey); err != nil {
		telemetry.Error("submission.rollback_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"storage_key": storageKey,
			"error":       err.Error(),
		})
	}
}

func (s *Service) rollbackRecord(ctx context.Context, analysisID, storageKey string) {
	if err := s.Repo.Delete(ctx, analysisID); err != nil {
		telemetry.Error("submission.rollback_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisID,
			"error":       err.Error(),
		})
	}
	s.rollbackDocument(ctx, storageKey)
}
