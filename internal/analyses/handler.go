package analyses

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"analyzer-backend/internal/queue"
	"analyzer-backend/internal/shared/server/respond"
)

const maxUploadBytes = 10 << 20

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc     *Service
	limiter *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		Svc:     svc,
		limiter: newPollLimiter(pollLimitWindow, nil),
	}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.submit)
	rg.GET("/results/:jobId", h.getResults)
	rg.GET("/status/:analysisId", h.getStatus)
}

func (h *Handler) submit(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	if fileHeader.Size > maxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the upload limit", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "could not read uploaded file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "could not read uploaded file", nil)
		return
	}
	if len(data) > maxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the upload limit", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	analysis, err := h.Svc.Submit(ctx, fileHeader.Filename, data, c.PostForm("query"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to queue analysis", nil)
		}
		return
	}

	c.Set("analysisId", analysis.ID)
	c.Set("jobId", analysis.JobID)
	respond.OK(c, gin.H{
		"status":      analysis.Status,
		"job_id":      analysis.JobID,
		"analysis_id": analysis.ID,
		"query":       analysis.Query,
		"file_name":   fileHeader.Filename,
		"message":     "Analysis queued. Poll /results/{job_id} for the outcome.",
	})
}

func (h *Handler) getResults(c *gin.Context) {
	jobID := c.Param("jobId")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "job id is required", nil)
		return
	}
	c.Set("jobId", jobID)
	if !h.limiter.Allow(jobID) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "poll_too_fast", "polling too frequently, retry later", nil)
		return
	}

	analysis, liveness, err := h.Svc.GetByJobID(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch results", nil)
		}
		return
	}

	respond.OK(c, resultsBody(analysis, liveness))
}

func (h *Handler) getStatus(c *gin.Context) {
	analysisID := c.Param("analysisId")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}
	c.Set("analysisId", analysisID)

	analysis, err := h.Svc.GetByID(c.Request.Context(), analysisID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch status", nil)
		}
		return
	}

	respond.OK(c, gin.H{
		"analysis_id": analysis.ID,
		"job_id":      analysis.JobID,
		"status":      analysis.Status,
		"query":       analysis.Query,
		"created_at":  analysis.CreatedAt,
		"updated_at":  analysis.UpdatedAt,
	})
}

// resultsBody shapes the poll response per status. Terminal bodies are stable:
// repeated polls of a finished job return the same payload.
func resultsBody(analysis Analysis, liveness queue.Liveness) gin.H {
	body := gin.H{
		"job_id":      analysis.JobID,
		"analysis_id": analysis.ID,
		"status":      analysis.Status,
	}
	switch analysis.Status {
	case StatusSuccess:
		body["query"] = analysis.Query
		body["result"] = analysis.Result
	case StatusFailed:
		body["error"] = analysis.ErrorMessage
	default:
		body["queue_state"] = string(liveness)
		if analysis.Status == StatusProcessing {
			body["message"] = "Analysis is in progress."
		} else {
			body["message"] = "Analysis is queued."
		}
	}
	return body
}
