/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package calibrate_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/agents/judge"
	"chainguard.dev/refgrader/grading/calibrate"
	"chainguard.dev/refgrader/grading/category"
	"chainguard.dev/refgrader/grading/classify"
	"chainguard.dev/refgrader/grading/extract"
)

// fileExtractor yields one image per file whose data is the file content.
type fileExtractor struct{}

func (fileExtractor) Extract(_ context.Context, path, _ string) ([]extract.Image, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, &extract.ExtractionError{Path: path, Err: errors.New("empty")}
	}
	return []extract.Image{{Data: b, Filename: "page_1_img_1.png", Page: 1, Index: 1}}, nil
}

// contentClassifier reads "<category>|<confidence>" from the image data.
type contentClassifier struct{}

func (contentClassifier) Classify(_ context.Context, img extract.Image) (classify.Result, error) {
	label, conf, ok := strings.Cut(string(img.Data), "|")
	if !ok {
		return classify.Result{}, errors.New("unreadable")
	}
	c := map[string]float64{"high": 0.9, "low": 0.3}[conf]
	return classify.Result{Category: label, Confidence: c, Valid: c >= classify.DefaultThreshold}, nil
}

type blurryJudge struct{}

func (blurryJudge) CheckEvaluability(_ context.Context, img executor.Image) (judge.Verdict, error) {
	if strings.Contains(string(img.Data), "low") {
		return judge.Verdict{Reason: "zu unscharf"}, nil
	}
	return judge.Verdict{Evaluable: true}, nil
}

func writeSamples(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

type countingObserver struct{ n atomic.Int64 }

func (*countingObserver) Fail(string)           {}
func (*countingObserver) Log(string)            {}
func (*countingObserver) Grade(float64, string) {}
func (c *countingObserver) Increment()          { c.n.Add(1) }
func (c *countingObserver) Total() int64        { return c.n.Load() }

func TestRun(t *testing.T) {
	dir := writeSamples(t, map[string]string{
		"Data-Flow/a.png":      category.DataFlow + "|high",
		"Data-Flow/b.png":      category.Transformation + "|high",
		"Data-Flow/c.png":      category.DataFlow + "|low",
		"Transformation/d.png": category.Transformation + "|high",
		"Transformation/e.png": "",
		"Unbekannt/f.png":      category.DataFlow + "|high",
	})

	root := calibrate.NewTree(func(string) *calibrate.Collector {
		return calibrate.NewCollector(&countingObserver{})
	})
	c := calibrate.New(fileExtractor{}, contentClassifier{}, calibrate.WithEvaluability(blurryJudge{}), calibrate.WithWorkers(3))

	n, err := calibrate.Run(context.Background(), c, dir, root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 4 {
		t.Errorf("checked %d images, want 4", n)
	}

	flow := root.Child(category.DataFlow).Child(calibrate.CheckClassification)
	if got := flow.Total(); got != 3 {
		t.Errorf("Data-Flow classification total = %d, want 3", got)
	}
	var failures []string
	root.Walk(func(name string, col *calibrate.Collector) {
		if name == "/"+category.DataFlow+"/"+calibrate.CheckClassification {
			failures = col.Failures()
			if got, want := col.PassRate(), 1.0/3; got < want-1e-9 || got > want+1e-9 {
				t.Errorf("pass rate = %v, want %v", got, want)
			}
		}
	})
	if len(failures) != 2 {
		t.Fatalf("failures = %q, want 2", failures)
	}
	joined := strings.Join(failures, "\n")
	if !strings.Contains(joined, "b.png#page_1_img_1.png: predicted Transformation (0.90)") {
		t.Errorf("missing misclassification in %q", joined)
	}
	if !strings.Contains(joined, "below threshold (0.30)") {
		t.Errorf("missing low-confidence failure in %q", joined)
	}

	ev := root.Child(category.DataFlow).Child(calibrate.CheckEvaluability)
	if got := ev.Total(); got != 3 {
		t.Errorf("evaluability total = %d, want 3", got)
	}

	trans := root.Child(category.Transformation).Child(calibrate.CheckClassification)
	if got := trans.Total(); got != 1 {
		t.Errorf("Transformation total = %d, want 1 (empty sample skipped)", got)
	}
}

func TestRun_Canceled(t *testing.T) {
	dir := writeSamples(t, map[string]string{"Data-Flow/a.png": category.DataFlow + "|high"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := calibrate.NewTree(func(string) *calibrate.Collector {
		return calibrate.NewCollector(&countingObserver{})
	})
	if _, err := calibrate.Run(ctx, calibrate.New(fileExtractor{}, contentClassifier{}), dir, root); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestRun_MissingDir(t *testing.T) {
	root := calibrate.NewTree(func(string) *calibrate.Collector {
		return calibrate.NewCollector(&countingObserver{})
	})
	if _, err := calibrate.Run(context.Background(), calibrate.New(fileExtractor{}, contentClassifier{}), filepath.Join(t.TempDir(), "nope"), root); err == nil {
		t.Error("Run on a missing directory should fail")
	}
}
