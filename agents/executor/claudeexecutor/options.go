/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudeexecutor

import (
	"fmt"
	"strings"

	"chainguard.dev/refgrader/agents/executor/retry"
	"chainguard.dev/refgrader/agents/metrics"
)

// Option is a functional option for configuring the executor.
type Option func(*executorImpl) error

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(e *executorImpl) error {
		if !strings.HasPrefix(model, "claude-") {
			return fmt.Errorf("model %q does not appear to be a Claude model (expected claude-* format)", model)
		}
		e.model = model
		return nil
	}
}

// WithTemperature sets the sampling temperature (0.0 to 1.0).
// Grading wants low values so repeated runs agree.
func WithTemperature(temp float64) Option {
	return func(e *executorImpl) error {
		if temp < 0.0 || temp > 1.0 {
			return fmt.Errorf("temperature must be between 0.0 and 1.0, got %f", temp)
		}
		e.temperature = temp
		return nil
	}
}

// WithMaxTokensCeiling rejects requests asking for more than ceiling tokens.
func WithMaxTokensCeiling(ceiling int64) Option {
	return func(e *executorImpl) error {
		if ceiling <= 0 {
			return fmt.Errorf("max tokens ceiling must be positive, got %d", ceiling)
		}
		e.maxTokensCeiling = ceiling
		return nil
	}
}

// WithRetryConfig sets the retry policy for rate limit and overload errors.
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
