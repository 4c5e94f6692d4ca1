/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package pipeline grades a submitted document: it extracts the images,
// filters them through classification and an evaluability check, scores
// each remaining image against its best matching references and
// aggregates the scores into a pass/fail verdict.
//
// The pipeline never returns a Go error. Every problem, from an unreadable
// document to a panic, is recorded on the Result.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chainguard.dev/refgrader/agents/agenttrace"
	"chainguard.dev/refgrader/grading/classify"
	"chainguard.dev/refgrader/grading/extract"
	"chainguard.dev/refgrader/grading/reference"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Pipeline grades whole submissions.
type Pipeline struct {
	extractor extract.Interface
	evaluator *Evaluator
	workers   int
	tempRoot  string
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers processes up to n images concurrently. The default of 1 is
// fully sequential. Results keep extraction order either way.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithTempRoot creates per-run workspaces under dir instead of the system
// temporary directory.
func WithTempRoot(dir string) Option {
	return func(p *Pipeline) { p.tempRoot = dir }
}

// New returns a Pipeline.
func New(x extract.Interface, e *Evaluator, opts ...Option) *Pipeline {
	p := &Pipeline{extractor: x, evaluator: e, workers: 1, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) newResult(document string, mode Mode) *Result {
	return &Result{
		ID:        uuid.NewString(),
		Document:  filepath.Base(document),
		Mode:      mode,
		Timestamp: p.now().UTC(),
		Images:    []ImageEvaluation{},
		Trail:     []Outcome{},
		Errors:    []Error{},
	}
}

// run is the state of one Run call.
type run struct {
	*Pipeline
	res      *Result
	images   []extract.Image
	outcomes []*Outcome

	mu       sync.Mutex
	panicked any
}

func (r *run) record(i int, o Outcome, err *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[i] = &o
	if err != nil {
		r.res.Errors = append(r.res.Errors, *err)
	}
}

// Run grades document against db. With customOnly set, images whose
// category has no reference in db are skipped rather than failed.
func (p *Pipeline) Run(ctx context.Context, document string, db *reference.Database, customOnly bool) (res *Result) {
	mode := ModeDatabase
	if customOnly {
		mode = ModeCustom
	}
	res = p.newResult(document, mode)
	if db == nil {
		db = reference.NewDatabase()
	}

	ctx, span := agenttrace.StartSubmission(ctx, res.ID, res.Document)
	defer span.End()
	log := clog.FromContext(ctx).With("submission", res.ID).With("document", res.Document)
	ctx = clog.WithLogger(ctx, log)

	r := &run{Pipeline: p, res: res}
	defer func() {
		if v := recover(); v != nil {
			log.With("panic", fmt.Sprint(v)).Error("Pipeline panicked")
			res.fail(ErrPipelinePanic, fmt.Sprint(v))
		}
		r.finish()
		observe(res)
	}()

	if err := ctx.Err(); err != nil {
		return res.fail(ErrCanceled, err.Error())
	}
	workdir, err := os.MkdirTemp(p.tempRoot, "refgrader-*")
	if err != nil {
		return res.fail(ErrExtractionFailed, fmt.Sprintf("creating workspace: %v", err))
	}
	defer os.RemoveAll(workdir)

	images, err := p.extractor.Extract(agenttrace.WithStage(ctx, "extract"), document, workdir)
	if err != nil {
		return res.fail(ErrExtractionFailed, err.Error())
	}
	res.ImagesExtracted = len(images)
	if len(images) == 0 {
		return res.fail(ErrNoImages, "No images found in document")
	}
	r.images = images
	r.outcomes = make([]*Outcome, len(images))

	// Classification gate over every image.
	classes := make([]classify.Result, len(images))
	valid := r.each(ctx, seq(len(images)), func(ctx context.Context, i int) bool {
		cls, f := p.evaluator.classifyImage(ctx, images[i])
		if f != nil {
			r.record(i, f.outcome, f.err)
			return false
		}
		classes[i] = cls
		return true
	})
	if err := ctx.Err(); err != nil {
		return res.fail(ErrCanceled, err.Error())
	}
	if len(valid) == 0 {
		return res.fail(ErrNoValidImages, "No image was classified with sufficient confidence")
	}

	// Evaluability gate over the valid ones.
	evaluable := r.each(ctx, valid, func(ctx context.Context, i int) bool {
		if f := p.evaluator.checkEvaluable(ctx, images[i], classes[i]); f != nil {
			r.record(i, f.outcome, f.err)
			return false
		}
		return true
	})
	if err := ctx.Err(); err != nil {
		return res.fail(ErrCanceled, err.Error())
	}
	if len(evaluable) == 0 {
		return res.fail(ErrNoEvaluableImages, "No image is suitable for evaluation")
	}

	// Scoring.
	evals := make([]*ImageEvaluation, len(images))
	r.each(ctx, evaluable, func(ctx context.Context, i int) bool {
		eval, f := p.evaluator.score(ctx, images[i], classes[i], db, customOnly, workdir)
		r.record(i, f.outcome, f.err)
		evals[i] = eval
		return eval != nil
	})
	if err := ctx.Err(); err != nil {
		return res.fail(ErrCanceled, err.Error())
	}

	var scores []float64
	for _, e := range evals {
		if e != nil {
			res.Images = append(res.Images, *e)
			scores = append(scores, e.Score)
		}
	}
	if len(scores) == 0 {
		return res.fail(ErrNoSuccessfulEvaluations, "No image could be scored against a reference")
	}
	res.OverallScore = mean(scores)
	res.Passed = res.OverallScore >= PassThreshold
	log.With("score", res.OverallScore).
		With("passed", res.Passed).
		With("scored", len(scores)).
		Info("Submission graded")
	return res
}

// each runs fn for the image indexes in idx with bounded parallelism and
// returns, in order, the indexes for which fn reported true. Images not
// started before ctx ends are left without an outcome. A panic in fn is
// re-raised on the calling goroutine.
func (r *run) each(ctx context.Context, idx []int, fn func(context.Context, int) bool) []int {
	keep := make([]bool, len(r.images))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, i := range idx {
		g.Go(func() error {
			defer func() {
				if v := recover(); v != nil {
					r.mu.Lock()
					if r.panicked == nil {
						r.panicked = v
					}
					r.mu.Unlock()
				}
			}()
			if ctx.Err() != nil {
				return nil
			}
			keep[i] = fn(agenttrace.WithImage(ctx, r.images[i].Filename), i)
			return nil
		})
	}
	_ = g.Wait()
	if r.panicked != nil {
		panic(r.panicked)
	}

	var out []int
	for _, i := range idx {
		if keep[i] {
			out = append(out, i)
		}
	}
	return out
}

// finish moves the recorded outcomes into the trail in extraction order.
func (r *run) finish() {
	r.res.Trail = []Outcome{}
	for _, o := range r.outcomes {
		if o != nil {
			r.res.Trail = append(r.res.Trail, *o)
		}
	}
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
