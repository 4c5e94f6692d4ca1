/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chainguard.dev/refgrader/agents/judge"
	"chainguard.dev/refgrader/grading/category"
	"chainguard.dev/refgrader/grading/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveReferencePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		baseDir string
		want    string
	}{{
		name:    "windows separators",
		path:    `..\dataset\Data-Flow\a.png`,
		baseDir: "/srv/grader",
		want:    "/srv/grader/dataset/Data-Flow/a.png",
	}, {
		name:    "parent dataset from project root",
		path:    "../dataset/x.png",
		baseDir: "/srv/grader",
		want:    "/srv/grader/dataset/x.png",
	}, {
		name:    "parent dataset from evaluation subdirectory",
		path:    "../dataset/x.png",
		baseDir: "/srv/grader/evaluation_system_v2",
		want:    "/srv/grader/dataset/x.png",
	}, {
		name:    "plain relative",
		path:    "refs/Transformation/t.png",
		baseDir: "/srv/grader",
		want:    "/srv/grader/refs/Transformation/t.png",
	}, {
		name:    "absolute",
		path:    "/data/refs/t.png",
		baseDir: "/srv/grader",
		want:    "/data/refs/t.png",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pipeline.ResolveReferencePath(tt.path, tt.baseDir, pipeline.DefaultEvalSubdir)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_AveragesSuccessfulComparisons(t *testing.T) {
	f := newFixture(t)
	f.image("page_1_img_1.png", 1, category.DataFlow)
	f.reference(t, category.DataFlow, "a.png", 0)
	f.reference(t, category.DataFlow, "b.png", 80)
	f.reference(t, category.DataFlow, "c.png", 60)
	f.reference(t, category.DataFlow, "d.png", 10)
	f.judge.compare["ref:a.png"] = &judge.Evaluation{Skip: true, SkipReason: "Bild passt nicht"}

	ev := pipeline.NewEvaluator(f.classifier, f.judge, pipeline.WithBaseDir(f.base), pipeline.WithTopK(3))
	eval, o, perr := ev.Evaluate(context.Background(), f.extractor.images[0], f.db, false, t.TempDir())

	require.Nil(t, perr)
	require.NotNil(t, eval)
	assert.Equal(t, pipeline.StateScored, o.State)
	assert.Equal(t, []string{"b.png", "c.png"}, eval.ReferencesUsed)
	assert.Equal(t, []float64{80, 60}, eval.Scores)
	assert.InDelta(t, 70.0, eval.Score, 1e-9)
	assert.Len(t, eval.Details, 2)
	assert.False(t, f.judge.called("compare:page_1_img_1.png:ref:d.png"))
	assert.True(t, f.judge.called("compare:page_1_img_1.png:ref:b.png:"+string(category.Standard)))
}

func TestEvaluate_ComparisonErrorIsExcluded(t *testing.T) {
	f := newFixture(t)
	f.image("page_1_img_1.png", 1, category.DataFlow)
	f.reference(t, category.DataFlow, "a.png", 0)
	f.reference(t, category.DataFlow, "b.png", 64)
	f.judge.compareErr["ref:a.png"] = errors.New("timeout")

	ev := pipeline.NewEvaluator(f.classifier, f.judge, pipeline.WithBaseDir(f.base), pipeline.WithTopK(2))
	eval, _, perr := ev.Evaluate(context.Background(), f.extractor.images[0], f.db, false, t.TempDir())

	require.Nil(t, perr)
	assert.Equal(t, []string{"b.png"}, eval.ReferencesUsed)
	assert.InDelta(t, 64.0, eval.Score, 1e-9)
}

func TestEvaluate_InlineReferenceFileCoversComparison(t *testing.T) {
	f := newFixture(t)
	f.image("page_1_img_1.png", 1, category.Transformation)
	require.NoError(t, f.db.Add(category.Transformation, inlineEntry("lsg.png", "inline:lsg")))
	f.judge.compare["inline:lsg"] = scored(91)

	workdir := t.TempDir()
	var during []string
	f.judge.onCompare = func() {
		paths, _ := filepath.Glob(filepath.Join(workdir, "reference-*.png"))
		for _, p := range paths {
			if b, err := os.ReadFile(p); err == nil {
				during = append(during, string(b))
			}
		}
	}
	ev := pipeline.NewEvaluator(f.classifier, f.judge, pipeline.WithBaseDir(f.base))
	eval, o, perr := ev.Evaluate(context.Background(), f.extractor.images[0], f.db, true, workdir)

	require.Nil(t, perr)
	assert.Equal(t, pipeline.StateScored, o.State)
	assert.InDelta(t, 91.0, eval.Score, 1e-9)
	assert.True(t, f.judge.called("compare:page_1_img_1.png:inline:lsg:"+string(category.Custom)))
	assert.Equal(t, []string{"inline:lsg"}, during, "reference file should exist while comparing")

	left, err := filepath.Glob(filepath.Join(workdir, "*"))
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestEvaluate_BadInlineReference(t *testing.T) {
	f := newFixture(t)
	f.image("page_1_img_1.png", 1, category.Transformation)
	entry := inlineEntry("broken.png", "x")
	entry.ImageBase64 = "%%%not base64"
	require.NoError(t, f.db.Add(category.Transformation, entry))

	ev := pipeline.NewEvaluator(f.classifier, f.judge, pipeline.WithBaseDir(f.base))
	eval, o, perr := ev.Evaluate(context.Background(), f.extractor.images[0], f.db, true, t.TempDir())

	assert.Nil(t, eval)
	assert.Equal(t, pipeline.StateFailed, o.State)
	require.NotNil(t, perr)
	assert.Equal(t, pipeline.ErrImageFailed, perr.Kind)
}

func TestEvaluate_EvalSubdir(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "bewertung")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	f := newFixture(t)
	f.base = sub
	f.image("page_1_img_1.png", 1, category.DataFlow)
	// Reference lives beside the subdirectory, as ../dataset expects.
	f.reference(t, category.DataFlow, "flow.png", 77)
	require.NoError(t, os.Rename(filepath.Join(sub, "dataset"), filepath.Join(root, "dataset")))

	ev := pipeline.NewEvaluator(f.classifier, f.judge, pipeline.WithBaseDir(sub), pipeline.WithEvalSubdir("bewertung"))
	eval, _, perr := ev.Evaluate(context.Background(), f.extractor.images[0], f.db, false, t.TempDir())

	require.Nil(t, perr)
	assert.InDelta(t, 77.0, eval.Score, 1e-9)
}
