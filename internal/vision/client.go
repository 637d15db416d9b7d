// Package vision talks to the external image analysis service used by the
// sobriety gate.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
)

// DefaultPrompt asks the model for a machine-readable verdict.
const DefaultPrompt = `You are assessing whether the worker in this photo is fit for duty on a construction site.
Look for signs of intoxication or impairment such as unfocused or red eyes, drooping eyelids, flushed face or unsteady posture.
Answer with a single JSON object and nothing else:
{"status": "passed" | "failed", "confidence": <0..1>, "findings": [<short observations>]}`

// Config holds analysis client configuration
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Prompt   string
	Timeout  time.Duration
}

// Client posts images to the analysis endpoint.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	prompt   string
	client   *http.Client
}

// NewClient creates a new analysis client
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		prompt:   prompt,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type analyzeRequest struct {
	Model       string `json:"model,omitempty"`
	Prompt      string `json:"prompt"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

type analyzeEnvelope struct {
	Output *string `json:"output"`
	Error  string  `json:"error"`
}

// Analyze sends one image and returns the service's raw answer.
func (c *Client) Analyze(ctx context.Context, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	body, err := json.Marshal(analyzeRequest{
		Model:       c.model,
		Prompt:      c.prompt,
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		MimeType:    mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrExternalService, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %w", domain.ErrExternalService, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env analyzeEnvelope
		if json.Unmarshal(respBody, &env) == nil && env.Error != "" {
			return "", fmt.Errorf("%w: analysis service [%d]: %s", domain.ErrExternalService, resp.StatusCode, env.Error)
		}
		return "", fmt.Errorf("%w: analysis service [%d]: %s", domain.ErrExternalService, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	// Some deployments wrap the model answer in {"output": "..."}.
	var env analyzeEnvelope
	if json.Unmarshal(respBody, &env) == nil && env.Output != nil {
		return *env.Output, nil
	}
	return string(respBody), nil
}

// Static answers every request with a fixed output. Used when no analysis
// endpoint is configured.
type Static struct {
	Output string
}

func (s Static) Analyze(ctx context.Context, image []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.Output, nil
}
