package analyses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestSubmitQueuesAnalysis(t *testing.T) {
	env := newTestEnv(t)

	resp := submitFile(t, env.router, "report.txt", "patient report body", "Check the cholesterol numbers")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		Status     string `json:"status"`
		JobID      string `json:"job_id"`
		AnalysisID string `json:"analysis_id"`
		Query      string `json:"query"`
		FileName   string `json:"file_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != StatusQueued {
		t.Fatalf("expected status queued, got %q", body.Status)
	}
	if body.JobID == "" || body.AnalysisID == "" {
		t.Fatalf("expected job_id and analysis_id, got %+v", body)
	}
	if body.Query != "Check the cholesterol numbers" {
		t.Fatalf("unexpected query %q", body.Query)
	}

	analysis, err := env.repo.GetByJobID(context.Background(), body.JobID)
	if err != nil {
		t.Fatalf("get analysis by job id: %v", err)
	}
	if analysis.ID != body.AnalysisID {
		t.Fatalf("job id maps to %s, expected %s", analysis.ID, body.AnalysisID)
	}
	if analysis.Status != StatusQueued {
		t.Fatalf("expected stored status queued, got %q", analysis.Status)
	}
	if err := env.store.Stat(context.Background(), analysis.DocumentKey); err != nil {
		t.Fatalf("expected stored document, got %v", err)
	}
	if env.queue.messageCount() != 1 {
		t.Fatalf("expected 1 queued message, got %d", env.queue.messageCount())
	}
	if env.queue.messages[0].AnalysisID != analysis.ID {
		t.Fatalf("queued message carries %s, expected %s", env.queue.messages[0].AnalysisID, analysis.ID)
	}
}

func TestSubmitDefaultsQuery(t *testing.T) {
	env := newTestEnv(t)

	resp := submitFile(t, env.router, "report.txt", "patient report body", "   ")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Query != DefaultQuery {
		t.Fatalf("expected default query, got %q", body.Query)
	}
}

func TestSubmitRejectsEmptyFile(t *testing.T) {
	env := newTestEnv(t)

	resp := submitFile(t, env.router, "empty.txt", "", "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if env.queue.messageCount() != 0 {
		t.Fatalf("expected no queued messages, got %d", env.queue.messageCount())
	}
	entries, err := os.ReadDir(env.storeDir)
	if err != nil {
		t.Fatalf("read store dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no stored documents, found %d entries", len(entries))
	}
}

func TestSubmitRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)

	resp := submitFile(t, env.router, "blob.bin", string([]byte{0x00, 0x01, 0x02, 0xff, 0xfe}), "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}
	if env.queue.messageCount() != 0 {
		t.Fatalf("expected no queued messages, got %d", env.queue.messageCount())
	}
}

func TestSubmitMissingFile(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/analyze", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestResultsNotFound(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/results/no-such-job", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestResultsWhileQueued(t *testing.T) {
	env := newTestEnv(t)
	analysis := seedAnalysis(t, env, "report.txt", "body")
	env.queue.liveness[analysis.JobID] = "pending"

	req := httptest.NewRequest("GET", "/results/"+analysis.JobID, nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var body struct {
		Status     string `json:"status"`
		QueueState string `json:"queue_state"`
		Result     string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != StatusQueued {
		t.Fatalf("expected status queued, got %q", body.Status)
	}
	if body.QueueState != "pending" {
		t.Fatalf("expected queue_state pending, got %q", body.QueueState)
	}
	if body.Result != "" {
		t.Fatalf("expected no result while queued, got %q", body.Result)
	}
}

func TestResultsTerminalStable(t *testing.T) {
	env := newTestEnv(t)
	analysis := seedAnalysis(t, env, "report.txt", "body")

	ctx := context.Background()
	if _, err := env.repo.MarkProcessing(ctx, analysis.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := env.repo.MarkSucceeded(ctx, analysis.ID, "the report"); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	var first string
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/results/"+analysis.JobID, nil)
		resp := httptest.NewRecorder()
		env.router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("poll %d: expected status 200, got %d", i, resp.Code)
		}
		if i == 0 {
			first = resp.Body.String()
			continue
		}
		if resp.Body.String() != first {
			t.Fatalf("poll %d: body changed:\n%s\nvs\n%s", i, resp.Body.String(), first)
		}
	}

	var body struct {
		Status string `json:"status"`
		Result string `json:"result"`
		Query  string `json:"query"`
	}
	if err := json.Unmarshal([]byte(first), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != StatusSuccess || body.Result != "the report" {
		t.Fatalf("unexpected terminal body: %+v", body)
	}
}

func TestResultsFailedBody(t *testing.T) {
	env := newTestEnv(t)
	analysis := seedAnalysis(t, env, "report.txt", "body")

	ctx := context.Background()
	if _, err := env.repo.MarkProcessing(ctx, analysis.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := env.repo.MarkFailed(ctx, analysis.ID, "engine analyze: boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/results/"+analysis.JobID, nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var body struct {
		Status string `json:"status"`
		Error  string `json:"error"`
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != StatusFailed {
		t.Fatalf("expected status failed, got %q", body.Status)
	}
	if body.Error != "engine analyze: boom" {
		t.Fatalf("unexpected error message %q", body.Error)
	}
	if body.Result != "" {
		t.Fatalf("failed body must not carry a result, got %q", body.Result)
	}
}

func TestResultsPollLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t)
	analysis := seedAnalysis(t, env, "report.txt", "body")

	// Frozen clock: the second poll lands inside the window.
	fixed := time.Now()
	handler := &Handler{
		Svc:     env.svc,
		limiter: newPollLimiter(pollLimitWindow, func() time.Time { return fixed }),
	}
	router := gin.New()
	handler.RegisterRoutes(router.Group("/"))

	req := httptest.NewRequest("GET", "/results/"+analysis.JobID, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("first poll: expected status 200, got %d", resp.Code)
	}

	req = httptest.NewRequest("GET", "/results/"+analysis.JobID, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("second poll: expected status 429, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on 429")
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	analysis := seedAnalysis(t, env, "report.txt", "body")

	req := httptest.NewRequest("GET", "/status/"+analysis.ID, nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var body struct {
		AnalysisID string `json:"analysis_id"`
		JobID      string `json:"job_id"`
		Status     string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.AnalysisID != analysis.ID || body.JobID != analysis.JobID || body.Status != StatusQueued {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestStatusNotFound(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/status/missing", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}
