/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package executor

import (
	"context"

	"chainguard.dev/refgrader/agents/agenttrace"
	"chainguard.dev/refgrader/agents/metrics"
	"github.com/chainguard-dev/clog"
)

// Observe runs one backend call inside a span and records its metrics.
// m may be nil.
func Observe(ctx context.Context, m *metrics.Vision, backend, model string, req Request, fn func(context.Context) (Response, error)) (Response, error) {
	ctx, call := agenttrace.StartCall(ctx, backend, model, req.Operation)

	resp, err := fn(ctx)
	if err == nil && (resp.PromptTokens > 0 || resp.CompletionTokens > 0) {
		call.RecordTokenUsage(resp.PromptTokens, resp.CompletionTokens)
		if m != nil {
			m.RecordTokens(ctx, model, req.Operation, resp.PromptTokens, resp.CompletionTokens)
		}
	}
	call.End(err)
	if m != nil {
		m.RecordCall(ctx, model, req.Operation, err, call.Duration())
	}

	log := clog.FromContext(ctx).With("backend", backend).
		With("operation", req.Operation).
		With("duration", call.Duration())
	if err != nil {
		log.With("error", err.Error()).Warn("Inference call failed")
	} else {
		log.With("response_chars", len(resp.Text)).Info("Inference call completed")
	}
	return resp, err
}
