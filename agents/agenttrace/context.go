/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// ExecutionContext describes where in a submission a model call happens.
type ExecutionContext struct {
	SubmissionID string `json:"submission_id,omitempty"`
	Document     string `json:"document,omitempty"`
	Image        string `json:"image,omitempty"`    // e.g. "page_2_img_1.png"
	Stage        string `json:"stage,omitempty"`    // e.g. "classify", "evaluability", "compare"
	Category     string `json:"category,omitempty"` // classified category once known
}

type executionContextKey struct{}

// WithExecutionContext returns a context carrying ec.
func WithExecutionContext(ctx context.Context, ec ExecutionContext) context.Context {
	return context.WithValue(ctx, executionContextKey{}, ec)
}

// GetExecutionContext returns the ExecutionContext stored in ctx, or the zero value.
func GetExecutionContext(ctx context.Context) ExecutionContext {
	if ec, ok := ctx.Value(executionContextKey{}).(ExecutionContext); ok {
		return ec
	}
	return ExecutionContext{}
}

// WithImage narrows the execution context to one image.
func WithImage(ctx context.Context, image string) context.Context {
	ec := GetExecutionContext(ctx)
	ec.Image = image
	return WithExecutionContext(ctx, ec)
}

// WithStage records the pipeline stage issuing the next calls.
func WithStage(ctx context.Context, stage string) context.Context {
	ec := GetExecutionContext(ctx)
	ec.Stage = stage
	return WithExecutionContext(ctx, ec)
}

// WithCategory records the classified category of the current image.
func WithCategory(ctx context.Context, category string) context.Context {
	ec := GetExecutionContext(ctx)
	ec.Category = category
	return WithExecutionContext(ctx, ec)
}

// EnrichAttributes adds the bounded fields of the execution context (stage
// and category) to metric attributes. Submission IDs and image names stay
// on spans only.
func EnrichAttributes(ctx context.Context, baseAttrs []attribute.KeyValue) []attribute.KeyValue {
	ec := GetExecutionContext(ctx)
	if ec.Stage != "" {
		baseAttrs = append(baseAttrs, attribute.String("stage", ec.Stage))
	}
	if ec.Category != "" {
		baseAttrs = append(baseAttrs, attribute.String("category", ec.Category))
	}
	return baseAttrs
}

func (ec ExecutionContext) spanAttributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if ec.SubmissionID != "" {
		attrs = append(attrs, attribute.String("submission.id", ec.SubmissionID))
	}
	if ec.Document != "" {
		attrs = append(attrs, attribute.String("submission.document", ec.Document))
	}
	if ec.Image != "" {
		attrs = append(attrs, attribute.String("image.name", ec.Image))
	}
	if ec.Stage != "" {
		attrs = append(attrs, attribute.String("stage", ec.Stage))
	}
	if ec.Category != "" {
		attrs = append(attrs, attribute.String("category", ec.Category))
	}
	return attrs
}
