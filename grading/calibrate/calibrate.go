/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package calibrate measures the classifier, and optionally the
// evaluability check, against a labelled sample set before it is trusted
// with real submissions.
//
// Samples live in one subdirectory per category:
//
//	samples/
//	  Data-Flow/flow1.png
//	  Transformation/loesung.pdf
//
// Every image extracted from a sample file is one observation. Results are
// recorded in a Tree under /<category>/classification and
// /<category>/evaluability.
package calibrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/agents/judge"
	"chainguard.dev/refgrader/grading/category"
	"chainguard.dev/refgrader/grading/classify"
	"chainguard.dev/refgrader/grading/extract"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// Check names used as the second tree level.
const (
	CheckClassification = "classification"
	CheckEvaluability   = "evaluability"
)

// EvaluabilityChecker is the part of the judge calibration exercises.
type EvaluabilityChecker interface {
	CheckEvaluability(ctx context.Context, img executor.Image) (judge.Verdict, error)
}

// Calibrator runs the checks.
type Calibrator struct {
	extractor  extract.Interface
	classifier classify.Interface
	evaluator  EvaluabilityChecker
	workers    int
}

// Option configures a Calibrator.
type Option func(*Calibrator)

// WithEvaluability also checks that every sample is judged evaluable.
func WithEvaluability(e EvaluabilityChecker) Option {
	return func(c *Calibrator) { c.evaluator = e }
}

// WithWorkers checks up to n images concurrently.
func WithWorkers(n int) Option {
	return func(c *Calibrator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// New returns a Calibrator.
func New(x extract.Interface, c classify.Interface, opts ...Option) *Calibrator {
	cal := &Calibrator{extractor: x, classifier: c, workers: 1}
	for _, opt := range opts {
		opt(cal)
	}
	return cal
}

type sample struct {
	label  string
	source string
	image  extract.Image
}

func (s sample) name() string {
	return filepath.Base(s.source) + "#" + s.image.Filename
}

// Run checks every sample under dir and records the outcomes in root. It
// returns the number of images checked. Unreadable files and directories
// that do not name a category are logged and skipped.
func Run[T Observer](ctx context.Context, c *Calibrator, dir string, root *Tree[T]) (int, error) {
	workdir, err := os.MkdirTemp("", "refgrader-calibrate-*")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(workdir)

	samples, err := c.load(ctx, dir, workdir)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, s := range samples {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			check(gctx, c, s, root.Child(s.label))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(samples), nil
}

func (c *Calibrator) load(ctx context.Context, dir, workdir string) ([]sample, error) {
	log := clog.FromContext(ctx)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}

	var out []sample
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		label := e.Name()
		if !category.Valid(label) {
			log.With("directory", label).Warn("Skipping directory that is not a category")
			continue
		}
		files, err := filepath.Glob(filepath.Join(dir, label, "*"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			images, err := c.extractor.Extract(ctx, f, workdir)
			if err != nil {
				log.With("file", f).With("error", err.Error()).Warn("Skipping unreadable sample")
				continue
			}
			for _, img := range images {
				out = append(out, sample{label: label, source: f, image: img})
			}
		}
	}
	return out, nil
}

func check[T Observer](ctx context.Context, c *Calibrator, s sample, node *Tree[T]) {
	name := s.name()

	cls := node.Child(CheckClassification)
	cls.Increment()
	res, err := c.classifier.Classify(ctx, s.image)
	switch {
	case err != nil:
		cls.Fail(fmt.Sprintf("%s: %v", name, err))
		cls.Grade(0, name)
	case res.Category != s.label:
		cls.Fail(fmt.Sprintf("%s: predicted %s (%.2f)", name, res.Category, res.Confidence))
		cls.Grade(0, name)
	case !res.Valid:
		cls.Fail(fmt.Sprintf("%s: correct but below threshold (%.2f)", name, res.Confidence))
		cls.Grade(res.Confidence, name)
	default:
		cls.Grade(res.Confidence, name)
	}

	if c.evaluator == nil {
		return
	}
	ev := node.Child(CheckEvaluability)
	ev.Increment()
	v, err := c.evaluator.CheckEvaluability(ctx, s.image.Executor())
	switch {
	case err != nil:
		ev.Fail(fmt.Sprintf("%s: %v", name, err))
		ev.Grade(0, name)
	case !v.Evaluable:
		ev.Fail(fmt.Sprintf("%s: judged not evaluable: %s", name, v.Reason))
		ev.Grade(0, name)
	default:
		ev.Grade(1, name)
	}
}
