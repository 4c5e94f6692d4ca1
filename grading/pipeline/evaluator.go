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
	"path/filepath"
	"strings"

	"chainguard.dev/refgrader/agents/agenttrace"
	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/agents/judge"
	"chainguard.dev/refgrader/agents/result"
	"chainguard.dev/refgrader/grading/category"
	"chainguard.dev/refgrader/grading/classify"
	"chainguard.dev/refgrader/grading/extract"
	"chainguard.dev/refgrader/grading/imgproc"
	"chainguard.dev/refgrader/grading/reference"
	"github.com/chainguard-dev/clog"
)

// DefaultEvalSubdir is the directory name under which reference paths of
// the form ../dataset/... are already correct.
const DefaultEvalSubdir = "evaluation_system_v2"

// Evaluator takes a single image through classification, the evaluability
// check, attribute extraction, reference matching and scoring.
type Evaluator struct {
	classifier classify.Interface
	judge      judge.Interface

	topK       int
	baseDir    string
	evalSubdir string
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithTopK compares each image against its k best references.
func WithTopK(k int) EvaluatorOption {
	return func(e *Evaluator) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithBaseDir resolves relative reference paths against dir instead of
// the working directory.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) { e.baseDir = dir }
}

// WithEvalSubdir overrides DefaultEvalSubdir.
func WithEvalSubdir(name string) EvaluatorOption {
	return func(e *Evaluator) { e.evalSubdir = name }
}

// NewEvaluator returns an Evaluator.
func NewEvaluator(c classify.Interface, j judge.Interface, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{classifier: c, judge: j, topK: 1, evalSubdir: DefaultEvalSubdir}
	for _, opt := range opts {
		opt(e)
	}
	if e.baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			e.baseDir = wd
		}
	}
	return e
}

// failure is a per-image problem worth an image_failed error.
type failure struct {
	outcome Outcome
	err     *Error
}

func outcomeFor(img extract.Image) Outcome {
	return Outcome{Image: img.Filename, Page: img.Page}
}

func (e *Evaluator) fail(o Outcome, stage string, err error) failure {
	o.State = StateFailed
	o.Reason = fmt.Sprintf("%s: %v", stage, err)
	pe := &Error{Kind: ErrImageFailed, Image: o.Image, Message: o.Reason}
	var parseErr *result.ParseError
	if errors.As(err, &parseErr) {
		pe.Raw = parseErr.Raw
	}
	return failure{outcome: o, err: pe}
}

// classifyImage is step 1. A non-nil failure is terminal.
func (e *Evaluator) classifyImage(ctx context.Context, img extract.Image) (classify.Result, *failure) {
	o := outcomeFor(img)
	cls, err := e.classifier.Classify(ctx, img)
	if err != nil {
		f := e.fail(o, "classification", err)
		return cls, &f
	}
	if !cls.Valid {
		o.Category, o.Confidence = cls.Category, cls.Confidence
		o.State = StateSkippedLowConfidence
		o.Reason = fmt.Sprintf("confidence %.2f below threshold", cls.Confidence)
		return cls, &failure{outcome: o}
	}
	return cls, nil
}

// checkEvaluable is step 2. Call and parse errors count as not evaluable.
func (e *Evaluator) checkEvaluable(ctx context.Context, img extract.Image, cls classify.Result) *failure {
	v, err := e.judge.CheckEvaluability(ctx, img.Executor())
	if err == nil && v.Evaluable {
		return nil
	}
	o := outcomeFor(img)
	o.Category, o.Confidence = cls.Category, cls.Confidence
	o.State = StateSkippedNotEvaluable
	if err != nil {
		o.Reason = fmt.Sprintf("evaluability check failed: %v", err)
	} else {
		o.Reason = v.Reason
	}
	return &failure{outcome: o}
}

// score runs steps 3 to 7 for an image that passed both gates.
func (e *Evaluator) score(ctx context.Context, img extract.Image, cls classify.Result, db *reference.Database, customOnly bool, workdir string) (*ImageEvaluation, failure) {
	ctx = agenttrace.WithCategory(ctx, cls.Category)
	log := clog.FromContext(ctx).With("image", img.Filename).With("category", cls.Category)
	o := outcomeFor(img)
	o.Category, o.Confidence = cls.Category, cls.Confidence

	if customOnly && !db.Has(cls.Category) {
		o.State = StateSkippedNoReference
		o.Reason = "category not among the supplied references"
		return nil, failure{outcome: o}
	}

	attrs, err := e.judge.ExtractAttributes(ctx, img.Executor(), cls.Category)
	if err != nil {
		return nil, e.fail(o, "attribute extraction", err)
	}
	matches := reference.TopK(db, attrs, cls.Category, e.topK)
	if len(matches) == 0 {
		o.State = StateSkippedNoReference
		o.Reason = "no reference for category"
		return nil, failure{outcome: o}
	}

	eval := &ImageEvaluation{Filename: img.Filename, Page: img.Page, Category: cls.Category, Confidence: cls.Confidence}
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, e.fail(o, "comparison", err)
		}
		d, err := e.compare(ctx, img, m, cls.Category, workdir)
		if err != nil {
			log.With("reference", m.Filename).With("error", err.Error()).Warn("Comparison excluded")
			continue
		}
		if d.Skip {
			log.With("reference", m.Filename).With("reason", d.SkipReason).Info("Comparison skipped by model")
			continue
		}
		eval.ReferencesUsed = append(eval.ReferencesUsed, m.Filename)
		eval.Scores = append(eval.Scores, d.Score)
		eval.Details = append(eval.Details, d)
	}

	if len(eval.Scores) == 0 {
		o.State = StateFailed
		o.Reason = fmt.Sprintf("none of %d reference comparisons succeeded", len(matches))
		return nil, failure{outcome: o, err: &Error{Kind: ErrImageFailed, Image: img.Filename, Message: o.Reason}}
	}
	eval.Score = mean(eval.Scores)
	o.State = StateScored
	return eval, failure{outcome: o}
}

func (e *Evaluator) compare(ctx context.Context, img extract.Image, m reference.Match, categoryName, workdir string) (*judge.Evaluation, error) {
	p, mode, cleanup, err := e.referenceFile(m.Entry, workdir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reference image %s: %w", p, err)
	}
	return e.judge.Compare(ctx, judge.Comparison{
		Student:    img.Executor(),
		Reference:  executor.Image{Data: data, MIMEType: imgproc.MIMEType(data)},
		Attributes: m.Metadata,
		Category:   categoryName,
		Mode:       mode,
	})
}

// referenceFile returns the local path of a reference entry's image. Inline
// images are written to a transient file in workdir that exists until
// cleanup is called.
func (e *Evaluator) referenceFile(entry reference.Entry, workdir string) (string, category.Mode, func(), error) {
	if !entry.Inline() {
		return ResolveReferencePath(entry.FilePath, e.baseDir, e.evalSubdir), category.Standard, func() {}, nil
	}

	data, err := entry.DecodeImage()
	if err != nil {
		return "", "", nil, err
	}
	f, err := os.CreateTemp(workdir, "reference-*.png")
	if err != nil {
		return "", "", nil, err
	}
	cleanup := func() { os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", "", nil, err
	}
	return f.Name(), category.Custom, cleanup, nil
}

// ResolveReferencePath maps a stored reference path to a local file path.
// Backslashes become slashes, and a ../dataset/ prefix is rewritten to
// dataset/ unless baseDir is itself the evaluation subdirectory.
func ResolveReferencePath(p, baseDir, evalSubdir string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(p, "../dataset/") && filepath.Base(baseDir) != evalSubdir {
		p = strings.TrimPrefix(p, "../")
	}
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Evaluate takes one image through every step. It is the sequential form
// of what Pipeline.Run does across a whole submission.
func (e *Evaluator) Evaluate(ctx context.Context, img extract.Image, db *reference.Database, customOnly bool, workdir string) (*ImageEvaluation, Outcome, *Error) {
	cls, f := e.classifyImage(ctx, img)
	if f != nil {
		return nil, f.outcome, f.err
	}
	if f := e.checkEvaluable(ctx, img, cls); f != nil {
		return nil, f.outcome, f.err
	}
	eval, res := e.score(ctx, img, cls, db, customOnly, workdir)
	return eval, res.outcome, res.err
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
