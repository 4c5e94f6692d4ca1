/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package report renders graded submissions for people: a plain-text
// summary and markdown tables of images and history.
package report

import (
	"fmt"
	"io"
	"strings"

	"chainguard.dev/refgrader/grading/pipeline"
	"chainguard.dev/refgrader/grading/results"
)

// Summary renders the headline numbers of r followed by the per-image
// scores and any errors.
func Summary(r *pipeline.Result) string {
	var b strings.Builder
	b.WriteString("EVALUATION SUMMARY\n")
	b.WriteString("==================\n\n")
	fmt.Fprintf(&b, "Document: %s\n", r.Document)
	fmt.Fprintf(&b, "Date: %s\n", r.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Mode: %s\n\n", r.Mode)

	b.WriteString("RESULTS:\n")
	fmt.Fprintf(&b, "- Images extracted: %d\n", r.ImagesExtracted)
	fmt.Fprintf(&b, "- Valid classifications: %d\n", validImages(r))
	fmt.Fprintf(&b, "- Successful evaluations: %d\n", len(r.Images))
	fmt.Fprintf(&b, "- Overall Score: %.1f/100\n", r.OverallScore)
	fmt.Fprintf(&b, "- Result: %s\n", verdict(r.Passed))

	if len(r.Images) > 0 {
		b.WriteString("\nDETAILED SCORES:\n")
		for _, img := range r.Images {
			fmt.Fprintf(&b, "- %s (%s): %.1f/100\n", img.Filename, img.Category, img.Score)
		}
	}
	if len(r.Errors) > 0 {
		b.WriteString("\nERRORS:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "- %s\n", e.Error())
		}
	}
	return b.String()
}

// validImages counts images that passed classification.
func validImages(r *pipeline.Result) int {
	n := 0
	for _, o := range r.Trail {
		if o.Category != "" && o.State != pipeline.StateSkippedLowConfidence {
			n++
		}
	}
	return n
}

func verdict(passed bool) string {
	if passed {
		return "PASSED"
	}
	return "FAILED"
}

// Images writes one row per extracted image: its terminal state and, for
// scored images, the score and the references it was compared against.
func Images(w io.Writer, r *pipeline.Result) error {
	scored := make(map[string]pipeline.ImageEvaluation, len(r.Images))
	for _, img := range r.Images {
		scored[img.Filename] = img
	}

	table := newTable([]string{"Image", "Page", "Category", "Confidence", "State", "Score", "References"}, w)
	for _, o := range r.Trail {
		score, refs := "-", "-"
		if img, ok := scored[o.Image]; ok {
			score = fmt.Sprintf("%.1f", img.Score)
			refs = strings.Join(img.ReferencesUsed, ", ")
		} else if o.Reason != "" {
			refs = o.Reason
		}
		confidence := "-"
		if o.Confidence > 0 {
			confidence = fmt.Sprintf("%.2f", o.Confidence)
		}
		category := o.Category
		if category == "" {
			category = "-"
		}
		if err := table.Append([]string{o.Image, fmt.Sprint(o.Page), category, confidence, string(o.State), score, refs}); err != nil {
			return err
		}
	}
	return table.Render()
}

// Criteria writes the rubric points of every comparison of every scored image.
func Criteria(w io.Writer, r *pipeline.Result) error {
	table := newTable([]string{"Image", "Reference", "Criterion", "Points", "Grade"}, w)
	for _, img := range r.Images {
		for i, d := range img.Details {
			ref := "-"
			if i < len(img.ReferencesUsed) {
				ref = img.ReferencesUsed[i]
			}
			for _, c := range d.Criteria {
				row := []string{img.Filename, ref, c.Title, fmt.Sprintf("%.1f/%.0f", c.Points, c.Max), ""}
				if err := table.Append(row); err != nil {
					return err
				}
			}
			total := []string{img.Filename, ref, "Total", fmt.Sprintf("%.1f/100", d.Score), d.Grade}
			if err := table.Append(total); err != nil {
				return err
			}
		}
	}
	return table.Render()
}

// History writes one row per stored result.
func History(w io.Writer, entries []results.Entry) error {
	table := newTable([]string{"ID", "Date", "Document", "Mode", "Images", "Scored", "Score", "Result"}, w)
	for _, e := range entries {
		row := []string{
			e.ID,
			e.Timestamp.Local().Format("2006-01-02 15:04"),
			e.Document,
			string(e.Mode),
			fmt.Sprint(e.ImagesExtracted),
			fmt.Sprint(e.ImagesScored),
			fmt.Sprintf("%.1f", e.OverallScore),
			verdict(e.Passed),
		}
		if e.Errors > 0 {
			row[7] = fmt.Sprintf("%s (%d errors)", row[7], e.Errors)
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
