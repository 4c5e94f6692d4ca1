/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline_test

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/agents/judge"
	"chainguard.dev/refgrader/grading/classify"
	"chainguard.dev/refgrader/grading/extract"
	"chainguard.dev/refgrader/grading/pipeline"
	"chainguard.dev/refgrader/grading/reference"
)

type fakeExtractor struct {
	images []extract.Image
	err    error
}

func (f fakeExtractor) Extract(_ context.Context, path, workdir string) ([]extract.Image, error) {
	if f.err != nil {
		return nil, &extract.ExtractionError{Path: path, Err: f.err}
	}
	if _, err := os.Stat(workdir); err != nil {
		return nil, err
	}
	return f.images, nil
}

// fakeClassifier answers by image filename; unknown images fail.
type fakeClassifier struct {
	results map[string]classify.Result
	panicOn string
}

func (f fakeClassifier) Classify(_ context.Context, img extract.Image) (classify.Result, error) {
	if img.Filename == f.panicOn {
		panic("classifier exploded")
	}
	r, ok := f.results[img.Filename]
	if !ok {
		return classify.Result{}, &classify.ClassificationError{Image: img.Filename, Err: errors.New("no label")}
	}
	return r, nil
}

// fakeJudge keys student behavior by image data and comparison results by
// reference image data.
type fakeJudge struct {
	mu sync.Mutex

	notEvaluable map[string]string
	evalErr      map[string]error
	attrErr      map[string]error
	compare      map[string]*judge.Evaluation
	compareErr   map[string]error
	// onCompare, when set, runs at the start of every comparison.
	onCompare func()

	calls []string
}

func (f *fakeJudge) log(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeJudge) CheckEvaluability(_ context.Context, img executor.Image) (judge.Verdict, error) {
	key := string(img.Data)
	f.log("evaluability:" + key)
	if err := f.evalErr[key]; err != nil {
		return judge.Verdict{}, err
	}
	if reason, ok := f.notEvaluable[key]; ok {
		return judge.Verdict{Evaluable: false, Reason: reason}, nil
	}
	return judge.Verdict{Evaluable: true}, nil
}

func (f *fakeJudge) ExtractAttributes(_ context.Context, img executor.Image, categoryName string) (map[string]any, error) {
	key := string(img.Data)
	f.log("attributes:" + key)
	if err := f.attrErr[key]; err != nil {
		return nil, err
	}
	return map[string]any{"x": true}, nil
}

func (f *fakeJudge) Compare(_ context.Context, c judge.Comparison) (*judge.Evaluation, error) {
	key := string(c.Reference.Data)
	f.log("compare:" + string(c.Student.Data) + ":" + key + ":" + string(c.Mode))
	if f.onCompare != nil {
		f.onCompare()
	}
	if err := f.compareErr[key]; err != nil {
		return nil, err
	}
	if e, ok := f.compare[key]; ok {
		return e, nil
	}
	return nil, errors.New("no canned comparison")
}

func (f *fakeJudge) called(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func scored(score float64) *judge.Evaluation {
	return &judge.Evaluation{Score: score, Passed: score >= judge.PassThreshold}
}

func studentImage(name string, page int) extract.Image {
	return extract.Image{Data: []byte(name), MIMEType: "image/png", Page: page, Index: 1, Filename: name}
}

func valid(categoryName string) classify.Result {
	return classify.Result{Category: categoryName, Confidence: 0.9, Valid: true}
}

// pathEntry writes a reference image under base/dataset and returns an
// entry pointing at it the way stored databases do.
func pathEntry(t *testing.T, base, name, content string) reference.Entry {
	t.Helper()
	dir := filepath.Join(base, "dataset")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return reference.Entry{Filename: name, FilePath: `..\dataset\` + name, Metadata: reference.Attributes{"x": true}}
}

func inlineEntry(name, content string) reference.Entry {
	return reference.Entry{
		Filename:    name,
		ImageBase64: base64.StdEncoding.EncodeToString([]byte(content)),
		Metadata:    reference.Attributes{"x": true},
	}
}

type fakePinger struct {
	health executor.Health
	err    error
}

func (f fakePinger) Ping(context.Context) (executor.Health, error) {
	return f.health, f.err
}

type memoryRecorder struct {
	mu      sync.Mutex
	results []string
}

func (m *memoryRecorder) Record(_ context.Context, r *pipeline.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r.ID)
	return nil
}
