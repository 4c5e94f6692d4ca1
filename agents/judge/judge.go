/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/refgrader/agents/agenttrace"
	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/agents/result"
	"chainguard.dev/refgrader/grading/category"
	"chainguard.dev/refgrader/grading/imgproc"
	"github.com/chainguard-dev/clog"
)

// Token budgets per call.
const (
	EvaluabilityTokens = 200
	AttributeTokens    = 1024
	CompareTokens      = 2048
)

// DefaultCallTimeout bounds every model call unless overridden.
const DefaultCallTimeout = 60 * time.Second

// Verdict says whether an image can be graded.
type Verdict struct {
	Evaluable bool   `json:"evaluable"`
	Reason    string `json:"reason,omitempty"`
}

// Comparison describes one student/reference pair to score.
type Comparison struct {
	Student   executor.Image
	Reference executor.Image
	// Attributes are the reference's extracted attributes, shown to the
	// model as the reference analysis.
	Attributes map[string]any
	Category   string
	Mode       category.Mode
}

// Interface is the contract the grading pipeline depends on.
type Interface interface {
	// CheckEvaluability decides whether img is fit for grading.
	CheckEvaluability(ctx context.Context, img executor.Image) (Verdict, error)
	// ExtractAttributes describes img using the attribute template of its category.
	ExtractAttributes(ctx context.Context, img executor.Image, categoryName string) (map[string]any, error)
	// Compare scores a student image against a reference.
	Compare(ctx context.Context, c Comparison) (*Evaluation, error)
}

// Judge implements Interface on top of a vision backend.
type Judge struct {
	exec        executor.Interface
	callTimeout time.Duration
}

var _ Interface = (*Judge)(nil)

// Option configures a Judge.
type Option func(*Judge)

// WithCallTimeout bounds each model call. Non-positive values are ignored.
func WithCallTimeout(d time.Duration) Option {
	return func(j *Judge) {
		if d > 0 {
			j.callTimeout = d
		}
	}
}

// New returns a Judge backed by exec.
func New(exec executor.Interface, opts ...Option) *Judge {
	j := &Judge{exec: exec, callTimeout: DefaultCallTimeout}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// infer runs one bounded model call.
func (j *Judge) infer(ctx context.Context, req executor.Request) (string, error) {
	ctx, cancel := context.WithTimeout(agenttrace.WithStage(ctx, req.Operation), j.callTimeout)
	defer cancel()

	resp, err := j.exec.Infer(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

type evaluabilityReply struct {
	Evaluable *bool  `json:"is_evaluable" jsonschema:"required,description=false when the image cannot be graded"`
	Reason    string `json:"reason" jsonschema:"description=Specific justification"`
}

// CheckEvaluability implements Interface.
func (j *Judge) CheckEvaluability(ctx context.Context, img executor.Image) (Verdict, error) {
	prompt, err := evaluabilityPrompt()
	if err != nil {
		return Verdict{}, err
	}
	raw, err := j.infer(ctx, executor.Request{
		Image:     img,
		Prompt:    prompt,
		MaxTokens: EvaluabilityTokens,
		Operation: "evaluability",
	})
	if err != nil {
		return Verdict{}, err
	}

	reply, err := result.Extract[evaluabilityReply](raw)
	if err != nil {
		return Verdict{}, err
	}
	if reply.Evaluable == nil {
		return Verdict{}, &result.ParseError{Raw: raw, Err: errors.New(`missing "is_evaluable"`)}
	}
	return Verdict{Evaluable: *reply.Evaluable, Reason: reply.Reason}, nil
}

// ExtractAttributes implements Interface.
func (j *Judge) ExtractAttributes(ctx context.Context, img executor.Image, categoryName string) (map[string]any, error) {
	ctx = agenttrace.WithCategory(ctx, categoryName)
	prompt, err := attributePrompt(categoryName)
	if err != nil {
		return nil, err
	}
	raw, err := j.infer(ctx, executor.Request{
		Image:     img,
		Prompt:    prompt,
		MaxTokens: AttributeTokens,
		Operation: "attributes",
	})
	if err != nil {
		return nil, err
	}
	return result.ParseStructured(raw)
}

// Compare implements Interface. The model sees one composite image with
// the student's work on the left and the reference on the right.
func (j *Judge) Compare(ctx context.Context, c Comparison) (*Evaluation, error) {
	ctx = agenttrace.WithCategory(ctx, c.Category)
	rubric, err := category.RubricFor(c.Category, c.Mode)
	if err != nil {
		return nil, err
	}
	composite, err := imgproc.Composite(c.Student.Data, c.Reference.Data)
	if err != nil {
		return nil, fmt.Errorf("composing comparison image: %w", err)
	}
	prompt, err := comparePrompt(rubric, c.Attributes)
	if err != nil {
		return nil, err
	}

	raw, err := j.infer(ctx, executor.Request{
		Image:     executor.Image{Data: composite, MIMEType: "image/jpeg"},
		Prompt:    prompt,
		MaxTokens: CompareTokens,
		Operation: "compare",
	})
	if err != nil {
		return nil, err
	}

	eval, err := ParseEvaluation(raw, rubric)
	if err != nil {
		return nil, err
	}
	clog.FromContext(ctx).With("category", c.Category).
		With("mode", string(c.Mode)).
		With("score", eval.Score).
		With("skipped", eval.Skip).
		Info("Comparison scored")
	return eval, nil
}
