/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package classify assigns extracted images to one of the content categories.
package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/refgrader/agents/agenttrace"
	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/agents/promptbuilder"
	"chainguard.dev/refgrader/agents/result"
	"chainguard.dev/refgrader/agents/schema"
	"chainguard.dev/refgrader/grading/category"
	"chainguard.dev/refgrader/grading/extract"
	"chainguard.dev/refgrader/grading/imgproc"
	"github.com/chainguard-dev/clog"
)

const (
	// DefaultThreshold is the minimum confidence for a usable classification.
	DefaultThreshold = 0.6
	// MaxTokens is the completion budget of a classification call.
	MaxTokens = 200
)

// Result is the outcome of classifying one image.
type Result struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	// Valid is Confidence >= the classifier's threshold.
	Valid bool `json:"valid"`
}

// Interface is the classification collaborator used by the pipeline.
type Interface interface {
	Classify(ctx context.Context, img extract.Image) (Result, error)
}

// ClassificationError reports an image that could not be classified.
type ClassificationError struct {
	Image string
	Err   error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classifying %s: %v", e.Image, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// Vision classifies with a vision model constrained to the category labels.
type Vision struct {
	exec        executor.Interface
	threshold   float64
	callTimeout time.Duration
}

var _ Interface = (*Vision)(nil)

// Option configures a Vision classifier.
type Option func(*Vision)

// WithThreshold sets the confidence threshold.
func WithThreshold(t float64) Option {
	return func(v *Vision) { v.threshold = t }
}

// WithCallTimeout bounds each model call. Non-positive values are ignored.
func WithCallTimeout(d time.Duration) Option {
	return func(v *Vision) {
		if d > 0 {
			v.callTimeout = d
		}
	}
}

// NewVision returns a classifier backed by exec.
func NewVision(exec executor.Interface, opts ...Option) *Vision {
	v := &Vision{exec: exec, threshold: DefaultThreshold, callTimeout: 60 * time.Second}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Threshold returns the confidence threshold in use.
func (v *Vision) Threshold() float64 {
	return v.threshold
}

type reply struct {
	Category   string   `json:"category" jsonschema:"required,description=Exactly one of the allowed labels"`
	Confidence *float64 `json:"confidence" jsonschema:"required,minimum=0,maximum=1"`
}

var prompt = promptbuilder.MustNewPrompt(`<task>
Classify the attached screenshot from an SAP BW coursework submission.
</task>

<labels>
{{labels}}
</labels>

Pick the single label that fits best and report how confident you are,
from 0 (guessing) to 1 (certain). Use a low confidence when the image fits
none of the labels.

<output_format>
Reply with a single JSON object matching this schema:
{{schema}}
</output_format>

Respond with only the JSON object, no markdown fences and no additional text.`)

func buildPrompt() (string, error) {
	p, err := prompt.BindJSON("labels", category.All())
	if err != nil {
		return "", err
	}
	if p, err = p.BindJSON("schema", schema.ReflectType[reply](schema.Strict())); err != nil {
		return "", err
	}
	return p.Build()
}

// Classify implements Interface.
func (v *Vision) Classify(ctx context.Context, img extract.Image) (Result, error) {
	fail := func(err error) (Result, error) {
		return Result{}, &ClassificationError{Image: img.Filename, Err: err}
	}
	if _, _, err := imgproc.Dimensions(img.Data); err != nil {
		return fail(err)
	}
	text, err := buildPrompt()
	if err != nil {
		return fail(err)
	}

	callCtx, cancel := context.WithTimeout(agenttrace.WithStage(ctx, "classify"), v.callTimeout)
	defer cancel()
	resp, err := v.exec.Infer(callCtx, executor.Request{
		Image:     img.Executor(),
		Prompt:    text,
		MaxTokens: MaxTokens,
		Operation: "classify",
	})
	if err != nil {
		return fail(err)
	}

	r, err := result.Extract[reply](resp.Text)
	if err != nil {
		return fail(err)
	}
	if !category.Valid(r.Category) {
		return fail(fmt.Errorf("unknown category label %q", r.Category))
	}
	if r.Confidence == nil {
		return fail(errors.New(`missing "confidence"`))
	}

	confidence := max(0, min(*r.Confidence, 1))
	out := Result{Category: r.Category, Confidence: confidence, Valid: confidence >= v.threshold}
	clog.FromContext(ctx).With("image", img.Filename).
		With("category", out.Category).
		With("confidence", out.Confidence).
		With("valid", out.Valid).
		Info("Classified image")
	return out, nil
}
