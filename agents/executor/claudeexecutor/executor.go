/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudeexecutor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/agents/executor/retry"
	"chainguard.dev/refgrader/agents/metrics"
	"github.com/anthropics/anthropic-sdk-go"
)

const backendName = "claude"

// DefaultModel is used when WithModel is not given.
const DefaultModel = "claude-sonnet-4-5"

type executorImpl struct {
	client           anthropic.Client
	model            string
	temperature      float64
	maxTokensCeiling int64
	retryConfig      retry.RetryConfig
	metrics          *metrics.Vision
}

var _ executor.Interface = (*executorImpl)(nil)

// New creates a Claude-backed vision executor.
func New(client anthropic.Client, opts ...Option) (executor.Interface, error) {
	e := &executorImpl{
		client:           client,
		model:            DefaultModel,
		temperature:      0.1,
		maxTokensCeiling: 8192,
		retryConfig:      retry.DefaultRetryConfig(),
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
		return executor.Response{}, executor.Wrap(backendName, "messages", 0, err)
	}
	if int64(req.MaxTokens) > e.maxTokensCeiling {
		return executor.Response{}, executor.Wrap(backendName, "messages", 0,
			fmt.Errorf("max tokens %d exceeds ceiling %d", req.MaxTokens, e.maxTokensCeiling))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType(req.Image), req.Image.Base64()),
				anthropic.NewTextBlock(req.Prompt),
			),
		},
		Temperature: anthropic.Float(e.temperature),
	}

	return executor.Observe(ctx, e.metrics, backendName, e.model, req, func(ctx context.Context) (executor.Response, error) {
		msg, err := retry.RetryWithBackoff(ctx, e.retryConfig, "claude_messages", isRetryableClaudeError, func() (*anthropic.Message, error) {
			return e.client.Messages.New(ctx, params)
		})
		if err != nil {
			return executor.Response{}, executor.Wrap(backendName, "messages", statusCode(err), err)
		}
		return executor.Response{
			Text:             messageText(msg),
			PromptTokens:     msg.Usage.InputTokens,
			CompletionTokens: msg.Usage.OutputTokens,
		}, nil
	})
}

// Ping implements executor.Interface with a one-token text request, which
// works the same against the public API and Vertex AI.
func (e *executorImpl) Ping(ctx context.Context) (executor.Health, error) {
	_, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return executor.Health{}, executor.Wrap(backendName, "health", statusCode(err), err)
	}
	return executor.Health{Status: "healthy", Model: e.model, ModelLoaded: true}, nil
}

func messageText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// mediaType maps the image to one of the media types the Messages API accepts.
func mediaType(img executor.Image) string {
	switch img.MIMEType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return img.MIMEType
	}
	if len(img.Data) > 2 && img.Data[0] == 0xFF && img.Data[1] == 0xD8 {
		return "image/jpeg"
	}
	return "image/png"
}

func statusCode(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
