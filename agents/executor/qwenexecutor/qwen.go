/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package qwenexecutor talks to a self-hosted vision server exposing
// POST /analyze and GET /health, typically a Qwen-VL model behind a small
// HTTP service, often reached through an SSH tunnel.
package qwenexecutor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/agents/executor/retry"
	"chainguard.dev/refgrader/agents/metrics"
)

const backendName = "qwen"

// DefaultBaseURL is where the vision server listens when tunneled locally.
const DefaultBaseURL = "http://localhost:5000"

type analyzeRequest struct {
	ImageBase64 string `json:"image_base64"`
	Prompt      string `json:"prompt"`
	MaxTokens   int    `json:"max_tokens"`
}

type analyzeResponse struct {
	Response string `json:"response"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

type executorImpl struct {
	baseURL       string
	model         string
	httpClient    *http.Client
	healthTimeout time.Duration
	retryConfig   retry.RetryConfig
	metrics       *metrics.Vision
}

var _ executor.Interface = (*executorImpl)(nil)

// Option configures the Qwen executor.
type Option func(*executorImpl) error

// WithHTTPClient replaces the HTTP client. Its timeout bounds each attempt.
func WithHTTPClient(c *http.Client) Option {
	return func(e *executorImpl) error {
		if c == nil {
			return errors.New("http client cannot be nil")
		}
		e.httpClient = c
		return nil
	}
}

// WithModel sets the model name used for metrics and health reporting.
func WithModel(model string) Option {
	return func(e *executorImpl) error {
		e.model = model
		return nil
	}
}

// WithRetryConfig sets the retry policy for transient failures.
func WithRetryConfig(cfg retry.RetryConfig) Option {
	return func(e *executorImpl) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid retry config: %w", err)
		}
		e.retryConfig = cfg
		return nil
	}
}

// WithMetrics records call metrics on m.
func WithMetrics(m *metrics.Vision) Option {
	return func(e *executorImpl) error {
		e.metrics = m
		return nil
	}
}

// New creates an executor for the server at baseURL.
func New(baseURL string, opts ...Option) (executor.Interface, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	e := &executorImpl{
		baseURL:       strings.TrimRight(baseURL, "/"),
		model:         "qwen-vl",
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		healthTimeout: 10 * time.Second,
		retryConfig:   retry.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return e, nil
}

// Infer implements executor.Interface.
func (e *executorImpl) Infer(ctx context.Context, req executor.Request) (executor.Response, error) {
	if err := req.Validate(); err != nil {
		return executor.Response{}, executor.Wrap(backendName, "analyze", 0, err)
	}
	body, err := json.Marshal(analyzeRequest{
		ImageBase64: req.Image.Base64(),
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return executor.Response{}, executor.Wrap(backendName, "analyze", 0, err)
	}

	return executor.Observe(ctx, e.metrics, backendName, e.model, req, func(ctx context.Context) (executor.Response, error) {
		return retry.RetryWithBackoff(ctx, e.retryConfig, "analyze", isRetryable, func() (executor.Response, error) {
			return e.analyze(ctx, body)
		})
	})
}

func (e *executorImpl) analyze(ctx context.Context, body []byte) (executor.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return executor.Response{}, executor.Wrap(backendName, "analyze", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return executor.Response{}, executor.Wrap(backendName, "analyze", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return executor.Response{}, executor.Wrap(backendName, "analyze", resp.StatusCode, fmt.Errorf("reading body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return executor.Response{}, executor.Wrap(backendName, "analyze", resp.StatusCode, errors.New(snippet(raw)))
	}

	var out analyzeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return executor.Response{}, executor.Wrap(backendName, "analyze", resp.StatusCode, fmt.Errorf("decoding envelope: %w", err))
	}
	if out.Status != "success" {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("status %q", out.Status)
		}
		return executor.Response{}, executor.Wrap(backendName, "analyze", resp.StatusCode, errors.New(msg))
	}
	return executor.Response{Text: out.Response}, nil
}

// Ping implements executor.Interface.
func (e *executorImpl) Ping(ctx context.Context) (executor.Health, error) {
	ctx, cancel := context.WithTimeout(ctx, e.healthTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return executor.Health{}, executor.Wrap(backendName, "health", 0, err)
	}
	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return executor.Health{}, executor.Wrap(backendName, "health", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return executor.Health{}, executor.Wrap(backendName, "health", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return executor.Health{}, executor.Wrap(backendName, "health", resp.StatusCode, errors.New(snippet(raw)))
	}

	var h executor.Health
	if err := json.Unmarshal(raw, &h); err != nil {
		return executor.Health{}, executor.Wrap(backendName, "health", resp.StatusCode, fmt.Errorf("decoding health: %w", err))
	}
	if h.Model == "" {
		h.Model = e.model
	}
	return h, nil
}

func isRetryable(err error) bool {
	var ie *executor.InferenceError
	if errors.As(err, &ie) && ie.StatusCode != 0 {
		return retry.RetryableStatus(ie.StatusCode)
	}
	return retry.IsNetworkError(err)
}

// snippet trims an error body so logs stay readable.
func snippet(b []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	if s == "" {
		return "empty response body"
	}
	return s
}
