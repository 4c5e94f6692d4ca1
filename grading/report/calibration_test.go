/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package report_test

import (
	"bytes"
	"strings"
	"testing"

	"chainguard.dev/refgrader/grading/calibrate"
	"chainguard.dev/refgrader/grading/report"
)

type nopObserver struct{}

func (nopObserver) Fail(string)           {}
func (nopObserver) Log(string)            {}
func (nopObserver) Grade(float64, string) {}
func (nopObserver) Increment()            {}
func (nopObserver) Total() int64          { return 0 }

func TestCalibration(t *testing.T) {
	root := calibrate.NewTree(func(string) *calibrate.Collector { return calibrate.NewCollector(nopObserver{}) })

	flow := root.Child("Data-Flow").Child(calibrate.CheckClassification)
	for range 4 {
		flow.Increment()
		flow.Grade(0.9, "")
	}
	flow.Fail("b.png#page_1_img_1.png: predicted Transformation (0.90)")

	tables := root.Child("Excel-Tabelle").Child(calibrate.CheckClassification)
	tables.Increment()
	tables.Grade(1, "")

	var buf bytes.Buffer
	below, err := report.Calibration(&buf, root, 0.8)
	if err != nil {
		t.Fatalf("Calibration: %v", err)
	}
	out := buf.String()

	if !below {
		t.Error("75% pass rate should be below an 80% threshold")
	}
	for _, want := range []string{"Data-Flow", "❌ 75.0%", "Excel-Tabelle", "100.0%", "0.90", "predicted Transformation"} {
		if !strings.Contains(out, want) {
			t.Errorf("Calibration() missing %q in:\n%s", want, out)
		}
	}

	buf.Reset()
	below, err = report.Calibration(&buf, root, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if below {
		t.Errorf("nothing is below 50%%:\n%s", buf.String())
	}
}
