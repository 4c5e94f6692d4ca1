/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	imageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refgrader_image_outcomes_total",
			Help: "Images by terminal state and category",
		},
		[]string{"state", "category"},
	)

	submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refgrader_submissions_total",
			Help: "Graded submissions by mode and verdict",
		},
		[]string{"mode", "verdict"},
	)

	submissionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refgrader_submission_errors_total",
			Help: "Errors recorded on submission results by kind",
		},
		[]string{"kind"},
	)

	lastScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refgrader_last_overall_score",
			Help: "Overall score (0-100) of the most recent submission",
		},
		[]string{"mode"},
	)
)

func observe(r *Result) {
	for _, o := range r.Trail {
		imageOutcomes.WithLabelValues(string(o.State), o.Category).Inc()
	}
	for _, e := range r.Errors {
		submissionErrors.WithLabelValues(string(e.Kind)).Inc()
	}
	verdict := "failed"
	if r.Passed {
		verdict = "passed"
	}
	submissions.WithLabelValues(string(r.Mode), verdict).Inc()
	lastScore.WithLabelValues(string(r.Mode)).Set(r.OverallScore)
}
