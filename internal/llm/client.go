// Package llm provides the client for the local language-model service.
//
// The service speaks the Ollama generate API: single request/response,
// no streaming. One call per cycle, no retries at this layer; the
// summarizer's deterministic fallback handles every failure.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/attune-sh/attune/internal/config"
	"github.com/attune-sh/attune/internal/resource"
)

// ErrUnavailable reports that the model service is unreachable, timed
// out, or returned an unusable payload.
var ErrUnavailable = errors.New("language model unavailable")

// Client is a client for the local model service.
type Client struct {
	baseURL    string
	httpClient *http.Client

	Model       string
	Temperature float64
	NumPredict  int
}

// NewClient creates a Client whose pooled HTTP client comes from the
// resource manager. The pool timeout is the longest allowed call;
// shorter per-call deadlines come from the caller's context.
func NewClient(cfg config.LLMConfig, baseURL string, res *resource.Manager) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  res.ClientFor(baseURL, cfg.AnalysisTimeout),
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		NumPredict:  cfg.NumPredict,
	}
}

// generateRequest is the request body for generations.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

// generateResponse is the response from generations.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Generate sends one generation request and returns the raw text.
// Sampling temperature is fixed low for reproducibility.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	req := generateRequest{
		Model:  c.Model,
		Prompt: prompt,
		System: system,
		Stream: false,
		Options: generateOptions{
			Temperature: c.Temperature,
			NumPredict:  c.NumPredict,
			TopP:        0.9,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, respBody)
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrUnavailable, err)
	}
	if genResp.Error != "" {
		return "", fmt.Errorf("%w: API error: %s", ErrUnavailable, genResp.Error)
	}
	if genResp.Response == "" {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	return genResp.Response, nil
}

// Ping checks that the model service is up.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
