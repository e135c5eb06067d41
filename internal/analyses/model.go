package analyses

import "time"

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// DefaultQuery is applied when a submission carries no query text.
const DefaultQuery = "Summarise the uploaded document"

// Analysis is the lifecycle record of one submitted document-analysis request.
type Analysis struct {
	ID           string    `json:"id"`
	JobID        string    `json:"jobId,omitempty"`
	Query        string    `json:"query"`
	DocumentKey  string    `json:"documentKey"`
	Status       string    `json:"status"`
	Result       string    `json:"result,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	UserID       string    `json:"userId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsTerminal reports whether the status permits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusSuccess || status == StatusFailed
}
