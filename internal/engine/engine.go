package engine

import (
	"context"
	"errors"
)

// AnalyzeInput captures the inputs handed to the analysis engine.
type AnalyzeInput struct {
	DocumentKey  string
	DocumentText string
	Query        string
}

// Engine abstracts the external analysis engine. Given a document and a
// free-text query it produces a textual report; its internal reasoning is
// opaque to the orchestration layer.
type Engine interface {
	Analyze(ctx context.Context, input AnalyzeInput) (string, error)
}

// ErrNotConfigured is returned by the placeholder engine.
var ErrNotConfigured = errors.New("analysis engine not configured")

// Placeholder is a stub implementation used when no engine endpoint is set.
type Placeholder struct{}

// Analyze returns ErrNotConfigured.
func (Placeholder) Analyze(ctx context.Context, input AnalyzeInput) (string, error) {
	_ = ctx
	_ = input
	return "", ErrNotConfigured
}
