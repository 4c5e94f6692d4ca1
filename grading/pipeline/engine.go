/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/grading/reference"
	"github.com/chainguard-dev/clog"
)

// Pinger reports the readiness of the inference service.
type Pinger interface {
	Ping(ctx context.Context) (executor.Health, error)
}

// Recorder persists graded results.
type Recorder interface {
	Record(ctx context.Context, r *Result) error
}

// Request is one grading request.
type Request struct {
	// Document is the path of the submission (PDF, ZIP, PNG or JPEG).
	Document string
	// Mode selects the reference set; the zero value means ModeDatabase.
	Mode Mode
	// References are the reference documents for ModeCustom.
	References []string
}

// Engine is the entry point for grading: it picks the reference set for
// a request, runs the pipeline and records the result.
type Engine struct {
	pipeline *Pipeline
	store    *reference.Store
	builder  *reference.Builder
	recorder Recorder
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBuilder enables ModeCustom.
func WithBuilder(b *reference.Builder) EngineOption {
	return func(e *Engine) { e.builder = b }
}

// WithRecorder persists every result.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine checks that the inference service is up and its model loaded
// before returning an Engine.
func NewEngine(ctx context.Context, health Pinger, p *Pipeline, store *reference.Store, opts ...EngineOption) (*Engine, error) {
	h, err := health.Ping(ctx)
	if err != nil {
		return nil, fmt.Errorf("inference service unreachable: %w", err)
	}
	if !h.ModelLoaded {
		return nil, fmt.Errorf("inference service is up but its model is not loaded (status %q)", h.Status)
	}
	clog.FromContext(ctx).With("status", h.Status).With("model", h.Model).Info("Inference service ready")

	e := &Engine{pipeline: p, store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate grades one request. Like Pipeline.Run it reports every problem
// on the Result.
func (e *Engine) Evaluate(ctx context.Context, req Request) *Result {
	var res *Result
	switch req.Mode {
	case ModeCustom:
		res = e.evaluateCustom(ctx, req)
	default:
		res = e.pipeline.Run(ctx, req.Document, e.store.Current(ctx), false)
	}

	if e.recorder != nil {
		if err := e.recorder.Record(ctx, res); err != nil {
			clog.FromContext(ctx).With("submission", res.ID).With("error", err.Error()).Error("Failed to record result")
		}
	}
	return res
}

func (e *Engine) evaluateCustom(ctx context.Context, req Request) *Result {
	failed := func(kind ErrorKind, msg string) *Result {
		res := e.pipeline.newResult(req.Document, ModeCustom).fail(kind, msg)
		observe(res)
		return res
	}
	if e.builder == nil {
		return failed(ErrNoCustomReferences, "custom references are not enabled")
	}

	workdir, err := os.MkdirTemp(e.pipeline.tempRoot, "refgrader-refs-*")
	if err != nil {
		return failed(ErrNoCustomReferences, fmt.Sprintf("creating workspace: %v", err))
	}
	defer os.RemoveAll(workdir)

	db, err := e.builder.Build(ctx, req.References, workdir)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return failed(ErrCanceled, err.Error())
	case err != nil:
		return failed(ErrNoCustomReferences, err.Error())
	case db.Len() == 0:
		return failed(ErrNoCustomReferences, "No usable reference images found in the supplied files")
	}

	var res *Result
	if err := e.store.WithOverride(ctx, db, func(ctx context.Context) error {
		res = e.pipeline.Run(ctx, req.Document, e.store.Current(ctx), true)
		return ctx.Err()
	}); err != nil {
		clog.FromContext(ctx).With("submission", res.ID).With("error", err.Error()).Warn("Custom evaluation interrupted")
		if !res.has(ErrCanceled) {
			res.fail(ErrCanceled, err.Error())
		}
	}
	return res
}
