/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package agenttrace carries submission context through model calls and
// records OpenTelemetry spans for submissions and individual calls.
package agenttrace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "chainguard.refgrader.agenttrace"

func tracer() oteltrace.Tracer {
	return otel.Tracer(tracerName, oteltrace.WithInstrumentationVersion("1.0.0"))
}

// StartSubmission opens the root span of a pipeline run and stores the
// submission in the execution context.
func StartSubmission(ctx context.Context, id, document string) (context.Context, oteltrace.Span) {
	ec := GetExecutionContext(ctx)
	ec.SubmissionID = id
	ec.Document = document
	ctx = WithExecutionContext(ctx, ec)
	return tracer().Start(ctx, "grader.submission", oteltrace.WithAttributes(ec.spanAttributes()...))
}

// Call is one inference call in flight.
type Call struct {
	Backend          string
	Model            string
	Operation        string
	Exec             ExecutionContext
	PromptTokens     int64
	CompletionTokens int64
	Err              error
	StartTime        time.Time
	EndTime          time.Time

	span oteltrace.Span
}

// StartCall opens a span for an inference call.
func StartCall(ctx context.Context, backend, model, operation string) (context.Context, *Call) {
	ec := GetExecutionContext(ctx)
	attrs := append(ec.spanAttributes(),
		attribute.String("vision.backend", backend),
		attribute.String("vision.model", model),
		attribute.String("vision.operation", operation),
	)
	ctx, span := tracer().Start(ctx, "vision.infer", oteltrace.WithAttributes(attrs...))
	return ctx, &Call{
		Backend:   backend,
		Model:     model,
		Operation: operation,
		Exec:      ec,
		StartTime: time.Now(),
		span:      span,
	}
}

// RecordTokenUsage stores token counts on the call and its span.
func (c *Call) RecordTokenUsage(promptTokens, completionTokens int64) {
	c.PromptTokens = promptTokens
	c.CompletionTokens = completionTokens
	c.span.SetAttributes(
		attribute.Int64("vision.tokens.prompt", promptTokens),
		attribute.Int64("vision.tokens.completion", completionTokens),
	)
}

// End closes the span, marking it failed when err is non-nil.
func (c *Call) End(err error) {
	c.Err = err
	c.EndTime = time.Now()
	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	} else {
		c.span.SetStatus(codes.Ok, "")
	}
	c.span.End()
}

// Duration is the wall time of the call; zero until End.
func (c *Call) Duration() time.Duration {
	if c.EndTime.IsZero() {
		return 0
	}
	return c.EndTime.Sub(c.StartTime)
}

func (c *Call) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/%s %s", c.Backend, c.Model, c.Operation)
	if c.Exec.Image != "" {
		fmt.Fprintf(&sb, " image=%s", c.Exec.Image)
	}
	if d := c.Duration(); d > 0 {
		fmt.Fprintf(&sb, " took=%s", d.Round(time.Millisecond))
	}
	if c.PromptTokens > 0 || c.CompletionTokens > 0 {
		fmt.Fprintf(&sb, " tokens=%d/%d", c.PromptTokens, c.CompletionTokens)
	}
	if c.Err != nil {
		fmt.Fprintf(&sb, " error=%v", c.Err)
	}
	return sb.String()
}
