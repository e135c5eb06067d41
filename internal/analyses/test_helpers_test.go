package analyses

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"analyzer-backend/internal/engine"
	"analyzer-backend/internal/queue"
	"analyzer-backend/internal/shared/storage/object"
	local "analyzer-backend/internal/shared/storage/object/local"
	"analyzer-backend/internal/users"
)

type queueStub struct {
	mu         sync.Mutex
	nextID     int
	messages   []queue.Message
	jobIDs     []string
	enqueueErr error
	liveness   map[string]queue.Liveness
}

func (q *queueStub) NewJobID() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	return fmt.Sprintf("job-%d", q.nextID)
}

func (q *queueStub) Enqueue(ctx context.Context, jobID string, msg queue.Message, maxDuration time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.jobIDs = append(q.jobIDs, jobID)
	q.messages = append(q.messages, msg)
	return nil
}

func (q *queueStub) Liveness(ctx context.Context, jobID string) queue.Liveness {
	q.mu.Lock()
	defer q.mu.Unlock()
	if state, ok := q.liveness[jobID]; ok {
		return state
	}
	return queue.LivenessUnknown
}

func (q *queueStub) messageCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

type engineStub struct {
	mu     sync.Mutex
	result string
	err    error
	inputs []engine.AnalyzeInput
}

func (e *engineStub) Analyze(ctx context.Context, input engine.AnalyzeInput) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs = append(e.inputs, input)
	if e.err != nil {
		return "", e.err
	}
	return e.result, nil
}

type testEnv struct {
	router   *gin.Engine
	repo     *MemoryRepo
	users    *users.MemoryRepo
	store    object.ObjectStore
	storeDir string
	queue    *queueStub
	svc      *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := NewMemoryRepo()
	userRepo := users.NewMemoryRepo()
	dir := t.TempDir()
	store := local.New(dir)
	qs := &queueStub{liveness: make(map[string]queue.Liveness)}

	svc := &Service{
		Repo:           repo,
		Users:          userRepo,
		Store:          store,
		Queue:          qs,
		AcceptedTypes:  []string{"application/pdf", "text/plain"},
		MaxJobDuration: time.Minute,
	}

	// Poll limiter on a fake clock that always steps past the window, so
	// tests can poll repeatedly. The limiter itself is covered separately.
	now := time.Now()
	handler := &Handler{
		Svc: svc,
		limiter: newPollLimiter(pollLimitWindow, func() time.Time {
			now = now.Add(2 * pollLimitWindow)
			return now
		}),
	}

	router := gin.New()
	handler.RegisterRoutes(router.Group("/"))

	return &testEnv{
		router:   router,
		repo:     repo,
		users:    userRepo,
		store:    store,
		storeDir: dir,
		queue:    qs,
		svc:      svc,
	}
}

func submitFile(t *testing.T, router *gin.Engine, fileName, content, query string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if query != "" {
		if err := writer.WriteField("query", query); err != nil {
			t.Fatalf("write query field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/analyze", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func seedAnalysis(t *testing.T, env *testEnv, fileName, content string) Analysis {
	t.Helper()

	ctx := context.Background()
	user := users.User{ID: "user-1", CreatedAt: time.Now().UTC()}
	if err := env.users.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	key, _, _, err := env.store.Save(ctx, user.ID, fileName, bytes.NewReader([]byte(content)))
	if err != nil {
		t.Fatalf("save document: %v", err)
	}
	now := time.Now().UTC()
	analysis := Analysis{
		ID:          "analysis-1",
		JobID:       "job-1",
		Query:       DefaultQuery,
		DocumentKey: key,
		Status:      StatusQueued,
		UserID:      user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := env.repo.Create(ctx, analysis); err != nil {
		t.Fatalf("create analysis: %v", err)
	}
	return analysis
}
