/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openaiexecutor implements executor.Interface over the OpenAI chat
// completions API. Any OpenAI-compatible server works, which is how a Qwen-VL
// model served by vLLM is reached without the bespoke /analyze endpoint.
package openaiexecutor

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/agents/executor/retry"
	"chainguard.dev/refgrader/agents/metrics"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const backendName = "openai"

type executorImpl struct {
	client      openai.Client
	model       string
	temperature float64
	retryConfig retry.RetryConfig
	metrics     *metrics.Vision
}

var _ executor.Interface = (*executorImpl)(nil)

// Option is a functional option for configuring the executor.
type Option func(*executorImpl) error

// WithTemperature sets the sampling temperature (0.0 to 2.0).
func WithTemperature(temp float64) Option {
	return func(e *executorImpl) error {
		if temp < 0.0 || temp > 2.0 {
			return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", temp)
		}
		e.temperature = temp
		return nil
	}
}

// WithRetryConfig sets the retry policy for transient errors.
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

// New creates an executor for model. The SDK's own retries are disabled so
// that retry policy lives in one place.
func New(model string, clientOpts []option.RequestOption, opts ...Option) (executor.Interface, error) {
	if model == "" {
		return nil, errors.New("model is required")
	}
	clientOpts = append([]option.RequestOption{option.WithMaxRetries(0)}, clientOpts...)
	e := &executorImpl{
		client:      openai.NewClient(clientOpts...),
		model:       model,
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
		return executor.Response{}, executor.Wrap(backendName, "chat", 0, err)
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: req.Image.DataURL(),
				}),
				openai.TextContentPart(req.Prompt),
			}),
		},
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(e.temperature),
	}

	return executor.Observe(ctx, e.metrics, backendName, e.model, req, func(ctx context.Context) (executor.Response, error) {
		completion, err := retry.RetryWithBackoff(ctx, e.retryConfig, "openai_chat", isRetryable, func() (*openai.ChatCompletion, error) {
			return e.client.Chat.Completions.New(ctx, params)
		})
		if err != nil {
			return executor.Response{}, executor.Wrap(backendName, "chat", statusCode(err), err)
		}
		if len(completion.Choices) == 0 {
			return executor.Response{}, executor.Wrap(backendName, "chat", 0, errors.New("completion has no choices"))
		}
		return executor.Response{
			Text:             completion.Choices[0].Message.Content,
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
		}, nil
	})
}

// Ping implements executor.Interface by resolving the model.
func (e *executorImpl) Ping(ctx context.Context) (executor.Health, error) {
	m, err := e.client.Models.Get(ctx, e.model)
	if err != nil {
		return executor.Health{}, executor.Wrap(backendName, "health", statusCode(err), err)
	}
	return executor.Health{Status: "healthy", Model: m.ID, ModelLoaded: true}, nil
}

func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retry.RetryableStatus(apiErr.StatusCode)
	}
	return retry.IsNetworkError(err)
}

func statusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
