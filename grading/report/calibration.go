/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package report

import (
	"fmt"
	"io"
	"strings"

	"chainguard.dev/refgrader/grading/calibrate"
)

// Calibration writes one row per category and check with its pass rate and
// mean grade, followed by every failure. Rows whose pass rate is below
// threshold (0.0-1.0) are marked and make the result true.
func Calibration(w io.Writer, root *calibrate.Tree[*calibrate.Collector], threshold float64) (bool, error) {
	type row struct {
		category, check string
		c               *calibrate.Collector
	}
	var rows []row
	root.Walk(func(name string, c *calibrate.Collector) {
		parts := strings.Split(strings.Trim(name, "/"), "/")
		if len(parts) != 2 || c.Total() == 0 {
			return
		}
		rows = append(rows, row{category: parts[0], check: parts[1], c: c})
	})

	below := false
	table := newTable([]string{"Category", "Check", "Samples", "Pass rate", "Mean grade"}, w)
	for _, r := range rows {
		rate := fmt.Sprintf("%.1f%%", r.c.PassRate()*100)
		if r.c.PassRate() < threshold {
			rate = "❌ " + rate
			below = true
		}
		if err := table.Append([]string{r.category, r.check, fmt.Sprint(r.c.Total()), rate, fmt.Sprintf("%.2f", r.c.MeanGrade())}); err != nil {
			return below, err
		}
	}
	if err := table.Render(); err != nil {
		return below, err
	}

	for _, r := range rows {
		failures := r.c.Failures()
		if len(failures) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s / %s:\n", r.category, r.check)
		for _, f := range failures {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}
	return below, nil
}
