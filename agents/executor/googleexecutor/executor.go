/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package googleexecutor

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/agents/executor/retry"
	"chainguard.dev/refgrader/agents/metrics"
	"google.golang.org/genai"
)

const backendName = "gemini"

// DefaultModel is used when WithModel is not given.
const DefaultModel = "gemini-2.5-flash"

type executorImpl struct {
	client      *genai.Client
	model       string
	temperature float32
	retryConfig retry.RetryConfig
	metrics     *metrics.Vision
}

var _ executor.Interface = (*executorImpl)(nil)

// New creates a Gemini-backed vision executor.
func New(client *genai.Client, opts ...Option) (executor.Interface, error) {
	if client == nil {
		return nil, errors.New("genai client cannot be nil")
	}
	e := &executorImpl{
		client:      client,
		model:       DefaultModel,
		temperature: 0.1,
		retryConfig: retry.DefaultRetryConfig(),
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
		return executor.Response{}, executor.Wrap(backendName, "generate", 0, err)
	}

	mime := req.Image.MIMEType
	if mime == "" {
		mime = http.DetectContentType(req.Image.Data)
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Image.Data, mime),
			genai.NewPartFromText(req.Prompt),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(e.temperature),
		MaxOutputTokens: int32(req.MaxTokens),
	}

	return executor.Observe(ctx, e.metrics, backendName, e.model, req, func(ctx context.Context) (executor.Response, error) {
		resp, err := retry.RetryWithBackoff(ctx, e.retryConfig, "gemini_generate", isRetryableVertexError, func() (*genai.GenerateContentResponse, error) {
			return e.client.Models.GenerateContent(ctx, e.model, contents, config)
		})
		if err != nil {
			return executor.Response{}, executor.Wrap(backendName, "generate", statusCode(err), err)
		}

		out := executor.Response{Text: resp.Text()}
		if resp.UsageMetadata != nil {
			out.PromptTokens = int64(resp.UsageMetadata.PromptTokenCount)
			out.CompletionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
		}
		return out, nil
	})
}

// Ping implements executor.Interface by resolving the model.
func (e *executorImpl) Ping(ctx context.Context) (executor.Health, error) {
	m, err := e.client.Models.Get(ctx, e.model, nil)
	if err != nil {
		return executor.Health{}, executor.Wrap(backendName, "health", statusCode(err), err)
	}
	return executor.Health{Status: "healthy", Model: m.Name, ModelLoaded: true}, nil
}

func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
