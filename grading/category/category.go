/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package category holds the fixed set of content categories a submitted
// image can belong to, together with the scoring rubrics and the attribute
// shapes the vision model is asked to fill for each of them.
package category

import (
	"fmt"
	"slices"
)

// The six content categories. The names double as keys in the reference
// database and must not change.
const (
	DataSource          = "Data Source"
	DataFlow            = "Data-Flow"
	DataTransferProcess = "Data-Transfer-Process"
	ExcelTable          = "Excel-Tabelle"
	InfoObject          = "Info-Object"
	Transformation      = "Transformation"
)

var all = []string{DataSource, DataFlow, DataTransferProcess, ExcelTable, InfoObject, Transformation}

// All returns the category names in their canonical order.
func All() []string {
	return slices.Clone(all)
}

// Valid reports whether name is one of the six categories.
func Valid(name string) bool {
	return slices.Contains(all, name)
}

// Mode selects the rubric used when comparing a student image to a reference.
type Mode string

const (
	// Standard weighs four criteria equally (25 points each).
	Standard Mode = "standard"
	// Custom is used for instructor-supplied references and puts half the
	// weight on content similarity.
	Custom Mode = "custom"
)

// Criterion is one scored section of a rubric.
type Criterion struct {
	// Key is the JSON section the model fills in.
	Key string `json:"key"`
	// Title is the human readable label.
	Title string `json:"title"`
	// Max bounds the points the model may award for this criterion.
	Max float64 `json:"max"`
	// Checks are the yes/no observations the model reports for this criterion.
	Checks []string `json:"checks"`
}

// Rubric is the ordered set of criteria for one category in one mode.
// The criterion maxima always sum to 100.
type Rubric struct {
	Category string      `json:"category"`
	Mode     Mode        `json:"mode"`
	Criteria []Criterion `json:"criteria"`
}

// Max returns the sum of the criterion maxima.
func (r Rubric) Max() float64 {
	var total float64
	for _, c := range r.Criteria {
		total += c.Max
	}
	return total
}

// Criterion looks up a criterion by key.
func (r Rubric) Criterion(key string) (Criterion, bool) {
	for _, c := range r.Criteria {
		if c.Key == key {
			return c, true
		}
	}
	return Criterion{}, false
}

// RubricFor returns the rubric for a category and mode.
func RubricFor(name string, mode Mode) (Rubric, error) {
	var table map[string][]Criterion
	switch mode {
	case Standard:
		table = standardCriteria
	case Custom:
		table = customCriteria
	default:
		return Rubric{}, fmt.Errorf("unknown comparison mode %q", mode)
	}
	criteria, ok := table[name]
	if !ok {
		return Rubric{}, fmt.Errorf("unknown category %q", name)
	}
	return Rubric{Category: name, Mode: mode, Criteria: slices.Clone(criteria)}, nil
}

// Grade maps a 0..100 total to the German school grade used in feedback.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "Sehr gut"
	case score >= 75:
		return "Gut"
	case score >= 60:
		return "Befriedigend"
	case score >= 40:
		return "Mangelhaft"
	default:
		return "Ungenügend"
	}
}
