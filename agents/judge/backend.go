/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"context"
	"fmt"
	"strings"

	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/agents/executor/claudeexecutor"
	"chainguard.dev/refgrader/agents/executor/googleexecutor"
	"chainguard.dev/refgrader/agents/executor/openaiexecutor"
	"chainguard.dev/refgrader/agents/executor/qwenexecutor"
	"chainguard.dev/refgrader/agents/metrics"
	"github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	oaoption "github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

// Provider names a vision backend.
type Provider string

const (
	ProviderQwen   Provider = "qwen"
	ProviderClaude Provider = "claude"
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// BackendConfig selects and configures a vision backend.
type BackendConfig struct {
	// Provider forces a backend. When empty it is inferred from Model.
	Provider Provider
	// Model is the model name. Empty selects the backend's default.
	Model string

	// QwenURL is the base URL of the self-hosted analyze server.
	QwenURL string
	// OpenAIBaseURL points the OpenAI backend at a compatible server such as vLLM.
	OpenAIBaseURL string
	OpenAIAPIKey  string

	// AnthropicAPIKey selects the Anthropic API; without it Claude is reached via Vertex AI.
	AnthropicAPIKey string
	// GeminiAPIKey selects the Gemini API; without it Gemini is reached via Vertex AI.
	GeminiAPIKey string
	Project      string
	Region       string

	// Metrics is optional.
	Metrics *metrics.Vision
}

// Resolve returns the provider for the config, inferring it from the
// model name when Provider is empty.
func (c BackendConfig) Resolve() (Provider, error) {
	if c.Provider != "" {
		switch c.Provider {
		case ProviderQwen, ProviderClaude, ProviderGemini, ProviderOpenAI:
			return c.Provider, nil
		}
		return "", fmt.Errorf("unsupported provider %q", c.Provider)
	}

	model := strings.ToLower(c.Model)
	switch {
	case model == "":
		return ProviderQwen, nil
	case strings.HasPrefix(model, "claude-"):
		return ProviderClaude, nil
	case strings.HasPrefix(model, "gemini-"):
		return ProviderGemini, nil
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o4-"):
		return ProviderOpenAI, nil
	case strings.HasPrefix(model, "qwen"):
		// A Qwen model behind an OpenAI-compatible server, otherwise the analyze server.
		if c.OpenAIBaseURL != "" {
			return ProviderOpenAI, nil
		}
		return ProviderQwen, nil
	}
	return "", fmt.Errorf("unsupported model: %s (expected claude-*, gemini-*, gpt-* or qwen*)", c.Model)
}

// NewExecutor builds the vision backend described by cfg.
func NewExecutor(ctx context.Context, cfg BackendConfig) (executor.Interface, error) {
	provider, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	switch provider {
	case ProviderClaude:
		var client anthropic.Client
		if cfg.AnthropicAPIKey != "" {
			client = anthropic.NewClient(aoption.WithAPIKey(cfg.AnthropicAPIKey))
		} else {
			if cfg.Project == "" || cfg.Region == "" {
				return nil, fmt.Errorf("claude via vertex AI needs a project and region")
			}
			client = anthropic.NewClient(vertex.WithGoogleAuth(ctx, cfg.Region, cfg.Project))
		}
		opts := []claudeexecutor.Option{claudeexecutor.WithMetrics(cfg.Metrics)}
		if cfg.Model != "" {
			opts = append(opts, claudeexecutor.WithModel(cfg.Model))
		}
		return claudeexecutor.New(client, opts...)

	case ProviderGemini:
		cc := &genai.ClientConfig{APIKey: cfg.GeminiAPIKey, Backend: genai.BackendGeminiAPI}
		if cfg.GeminiAPIKey == "" {
			cc = &genai.ClientConfig{Project: cfg.Project, Location: cfg.Region, Backend: genai.BackendVertexAI}
		}
		client, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("creating genai client: %w", err)
		}
		opts := []googleexecutor.Option{googleexecutor.WithMetrics(cfg.Metrics)}
		if cfg.Model != "" {
			opts = append(opts, googleexecutor.WithModel(cfg.Model))
		}
		return googleexecutor.New(client, opts...)

	case ProviderOpenAI:
		var clientOpts []oaoption.RequestOption
		if cfg.OpenAIAPIKey != "" {
			clientOpts = append(clientOpts, oaoption.WithAPIKey(cfg.OpenAIAPIKey))
		}
		if cfg.OpenAIBaseURL != "" {
			clientOpts = append(clientOpts, oaoption.WithBaseURL(cfg.OpenAIBaseURL))
		}
		return openaiexecutor.New(cfg.Model, clientOpts, openaiexecutor.WithMetrics(cfg.Metrics))

	default:
		opts := []qwenexecutor.Option{qwenexecutor.WithMetrics(cfg.Metrics)}
		if cfg.Model != "" {
			opts = append(opts, qwenexecutor.WithModel(cfg.Model))
		}
		return qwenexecutor.New(cfg.QwenURL, opts...)
	}
}
