package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient implements Engine against a remote analysis engine service.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient constructs an HTTP-backed engine client.
func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) (*HTTPClient, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("ENGINE_URL is required")
	}
	if timeout <= 0 {
		timeout = 25 * time.Minute
	}
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type analyzeRequest struct {
	Query        string `json:"query"`
	DocumentKey  string `json:"documentKey"`
	DocumentText string `json:"documentText"`
}

type analyzeResponse struct {
	Report string `json:"report"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Analyze posts the document and query to the engine and returns its report.
// The call blocks for the duration of the analysis, bounded by the client
// timeout and the caller's context.
func (c *HTTPClient) Analyze(ctx context.Context, input AnalyzeInput) (string, error) {
	payload, err := json.Marshal(analyzeRequest{
		Query:        input.Query,
		DocumentKey:  input.DocumentKey,
		DocumentText: input.DocumentText,
	})
	if err != nil {
		return "", fmt.Errorf("encode engine request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("engine request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read engine response: %w", err)
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode engine response status=%d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("engine error status=%d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("engine error status=%d", resp.StatusCode)
	}
	if strings.TrimSpace(parsed.Report) == "" {
		return "", fmt.Errorf("engine returned empty report")
	}
	return parsed.Report, nil
}

var _ Engine = (*HTTPClient)(nil)
