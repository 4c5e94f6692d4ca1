/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package report_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"chainguard.dev/refgrader/agents/judge"
	"chainguard.dev/refgrader/grading/category"
	"chainguard.dev/refgrader/grading/pipeline"
	"chainguard.dev/refgrader/grading/report"
	"chainguard.dev/refgrader/grading/results"
)

func graded() *pipeline.Result {
	return &pipeline.Result{
		ID:              "c0ffee",
		Document:        "abgabe.pdf",
		Mode:            pipeline.ModeDatabase,
		Timestamp:       time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		ImagesExtracted: 3,
		Images: []pipeline.ImageEvaluation{{
			Filename:       "page_1_img_1.png",
			Page:           1,
			Category:       category.DataFlow,
			Confidence:     0.93,
			ReferencesUsed: []string{"flow_a.png"},
			Scores:         []float64{72},
			Score:          72,
			Details: []*judge.Evaluation{{
				Score: 72,
				Grade: category.Grade(72),
				Criteria: []judge.CriterionScore{
					{Key: "k1", Title: "Struktur", Points: 20, Max: 25},
					{Key: "k2", Title: "Vollständigkeit", Points: 18, Max: 25},
				},
			}},
		}},
		Trail: []pipeline.Outcome{
			{Image: "page_1_img_1.png", Page: 1, Category: category.DataFlow, Confidence: 0.93, State: pipeline.StateScored},
			{Image: "page_1_img_2.png", Page: 1, Category: category.DataFlow, Confidence: 0.35, State: pipeline.StateSkippedLowConfidence, Reason: "confidence 0.35 below threshold"},
			{Image: "page_2_img_1.png", Page: 2, State: pipeline.StateFailed, Reason: "classification: timeout"},
		},
		OverallScore: 72,
		Passed:       true,
		Errors: []pipeline.Error{
			{Kind: pipeline.ErrImageFailed, Image: "page_2_img_1.png", Message: "classification: timeout"},
		},
	}
}

func TestSummary(t *testing.T) {
	got := report.Summary(graded())

	for _, want := range []string{
		"Document: abgabe.pdf",
		"Date: 2025-03-14 09:30:00",
		"- Images extracted: 3",
		"- Valid classifications: 1",
		"- Successful evaluations: 1",
		"- Overall Score: 72.0/100",
		"- Result: PASSED",
		"- page_1_img_1.png (Data-Flow): 72.0/100",
		"- image_failed: page_2_img_1.png: classification: timeout",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Summary() missing %q in:\n%s", want, got)
		}
	}
}

func TestSummary_Failed(t *testing.T) {
	r := &pipeline.Result{Document: "leer.pdf", Errors: []pipeline.Error{{Kind: pipeline.ErrNoImages, Message: "No images found in document"}}}
	got := report.Summary(r)

	if !strings.Contains(got, "- Result: FAILED") {
		t.Errorf("Summary() should report failure:\n%s", got)
	}
	if strings.Contains(got, "DETAILED SCORES") {
		t.Errorf("Summary() lists scores for an unscored result:\n%s", got)
	}
	if !strings.Contains(got, "no_images: No images found in document") {
		t.Errorf("Summary() missing error:\n%s", got)
	}
}

func TestImages(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Images(&buf, graded()); err != nil {
		t.Fatalf("Images: %v", err)
	}
	out := buf.String()

	row := func(image string) string {
		for _, line := range strings.Split(out, "\n") {
			if strings.Contains(line, image) {
				return line
			}
		}
		t.Fatalf("no row for %s in:\n%s", image, out)
		return ""
	}
	if r := row("page_1_img_1.png"); !strings.Contains(r, "72.0") || !strings.Contains(r, "flow_a.png") {
		t.Errorf("scored row = %q", r)
	}
	if r := row("page_1_img_2.png"); !strings.Contains(r, "skipped_low_confidence") || !strings.Contains(r, "0.35") {
		t.Errorf("skipped row = %q", r)
	}
	if r := row("page_2_img_1.png"); !strings.Contains(r, "failed") || !strings.Contains(r, "classification: timeout") {
		t.Errorf("failed row = %q", r)
	}
	if strings.Index(out, "page_1_img_2.png") > strings.Index(out, "page_2_img_1.png") {
		t.Errorf("rows out of extraction order:\n%s", out)
	}
}

func TestCriteria(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Criteria(&buf, graded()); err != nil {
		t.Fatalf("Criteria: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Struktur", "20.0/25", "Vollständigkeit", "Total", "72.0/100", "Befriedigend"} {
		if !strings.Contains(out, want) {
			t.Errorf("Criteria() missing %q in:\n%s", want, out)
		}
	}
}

func TestHistory(t *testing.T) {
	var buf bytes.Buffer
	err := report.History(&buf, []results.Entry{
		{ID: "a1", Document: "abgabe.pdf", Mode: pipeline.ModeCustom, Timestamp: time.Now(), OverallScore: 81.5, Passed: true, ImagesExtracted: 4, ImagesScored: 3},
		{ID: "b2", Document: "leer.pdf", Mode: pipeline.ModeDatabase, Timestamp: time.Now(), Errors: 1},
	})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"a1", "custom", "81.5", "PASSED", "b2", "FAILED (1 errors)"} {
		if !strings.Contains(out, want) {
			t.Errorf("History() missing %q in:\n%s", want, out)
		}
	}
}
