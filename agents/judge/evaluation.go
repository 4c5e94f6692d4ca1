/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/refgrader/agents/result"
	"chainguard.dev/refgrader/grading/category"
)

// PassThreshold is the score a single comparison needs to pass.
const PassThreshold = 70

// CriterionScore is the model's points for one rubric criterion.
type CriterionScore struct {
	Key    string          `json:"key"`
	Title  string          `json:"title"`
	Points float64         `json:"points"`
	Max    float64         `json:"max"`
	Checks map[string]bool `json:"checks,omitempty"`
}

// Evaluation is a parsed comparison reply.
type Evaluation struct {
	Category     string           `json:"category"`
	Mode         category.Mode    `json:"mode"`
	Criteria     []CriterionScore `json:"criteria,omitempty"`
	Score        float64          `json:"score"`
	Passed       bool             `json:"passed"`
	Grade        string           `json:"grade,omitempty"`
	Feedback     string           `json:"feedback,omitempty"`
	Strengths    []string         `json:"strengths,omitempty"`
	Improvements []string         `json:"improvements,omitempty"`
	// Skip is set when the model declined to compare, e.g. because the
	// student image turned out unusable. Skipped evaluations carry no score.
	Skip       bool   `json:"skip,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
	// Raw is the model reply the evaluation was parsed from.
	Raw string `json:"-"`
}

// String renders a one-line summary.
func (e *Evaluation) String() string {
	if e.Skip {
		return fmt.Sprintf("skipped: %s", e.SkipReason)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%.1f/100 (%s)", e.Score, e.Grade)
	for _, c := range e.Criteria {
		fmt.Fprintf(&sb, " %s=%.0f/%.0f", c.Key, c.Points, c.Max)
	}
	return sb.String()
}

// ParseEvaluation interprets a comparison reply against the rubric it was
// asked for. Criterion points are clamped to the criterion maximum and the
// total to 0..100; pass/fail and grade are derived from the clamped total
// rather than trusted from the reply. A reply without a numeric total is
// malformed and yields a *result.ParseError.
func ParseEvaluation(raw string, rubric category.Rubric) (*Evaluation, error) {
	obj, err := result.ParseStructured(raw)
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{Category: rubric.Category, Mode: rubric.Mode, Raw: raw}
	if skip, _ := obj["skip_evaluation"].(bool); skip {
		eval.Skip = true
		eval.SkipReason, _ = obj["skip_reason"].(string)
		return eval, nil
	}

	overall, _ := obj["overall"].(map[string]any)
	total, ok := overall["points"].(float64)
	if !ok {
		return nil, &result.ParseError{Raw: raw, Err: errors.New(`missing numeric "overall.points"`)}
	}

	for _, c := range rubric.Criteria {
		section, _ := obj[c.Key].(map[string]any)
		points, _ := section["points"].(float64)
		cs := CriterionScore{Key: c.Key, Title: c.Title, Points: clamp(points, 0, c.Max), Max: c.Max}
		for _, check := range c.Checks {
			if v, ok := section[check].(bool); ok {
				if cs.Checks == nil {
					cs.Checks = map[string]bool{}
				}
				cs.Checks[check] = v
			}
		}
		eval.Criteria = append(eval.Criteria, cs)
	}

	eval.Score = clamp(total, 0, 100)
	eval.Passed = eval.Score >= PassThreshold
	eval.Grade = category.Grade(eval.Score)
	eval.Feedback, _ = overall["feedback"].(string)
	eval.Strengths = stringList(overall["strengths"])
	eval.Improvements = stringList(overall["improvements"])
	return eval, nil
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}

// stringList keeps the string elements of a decoded JSON array.
func stringList(v any) []string {
	items, _ := v.([]any)
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
