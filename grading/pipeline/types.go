/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"slices"
	"time"

	"chainguard.dev/refgrader/agents/judge"
)

// PassThreshold is the overall score a submission needs to pass. It is
// lower than the per-comparison judge.PassThreshold.
const PassThreshold = 60

// State is the terminal state of one image.
type State string

const (
	StateScored               State = "scored"
	StateSkippedLowConfidence State = "skipped_low_confidence"
	StateSkippedNotEvaluable  State = "skipped_not_evaluable"
	StateSkippedNoReference   State = "skipped_no_reference"
	StateFailed               State = "failed"
)

// Outcome records how one image left the pipeline.
type Outcome struct {
	Image      string  `json:"image"`
	Page       int     `json:"page"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	State      State   `json:"state"`
	Reason     string  `json:"reason,omitempty"`
}

// ErrorKind is the closed set of submission-level error kinds.
type ErrorKind string

const (
	ErrExtractionFailed        ErrorKind = "extraction_failed"
	ErrNoImages                ErrorKind = "no_images"
	ErrNoValidImages           ErrorKind = "no_valid_images"
	ErrNoEvaluableImages       ErrorKind = "no_evaluable_images"
	ErrNoSuccessfulEvaluations ErrorKind = "no_successful_evaluations"
	ErrImageFailed             ErrorKind = "image_failed"
	ErrNoCustomReferences      ErrorKind = "no_custom_references"
	ErrCanceled                ErrorKind = "canceled"
	ErrPipelinePanic           ErrorKind = "pipeline_panic"
)

// Error is a problem recorded on a Result.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Image   string    `json:"image,omitempty"`
	// Raw is the model payload that could not be used, when there was one.
	Raw string `json:"raw,omitempty"`
}

func (e Error) Error() string {
	if e.Image != "" {
		return string(e.Kind) + ": " + e.Image + ": " + e.Message
	}
	return string(e.Kind) + ": " + e.Message
}

// ImageEvaluation is a scored image.
type ImageEvaluation struct {
	Filename   string  `json:"filename"`
	Page       int     `json:"page"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	// ReferencesUsed lists the references whose comparison succeeded, in match order.
	ReferencesUsed []string `json:"references_used"`
	// Scores are the per-reference scores, parallel to ReferencesUsed.
	Scores []float64 `json:"scores"`
	// Score is the unweighted mean of Scores.
	Score   float64             `json:"score"`
	Details []*judge.Evaluation `json:"details"`
}

// Mode says which reference set a submission was graded against.
type Mode string

const (
	ModeDatabase Mode = "database"
	ModeCustom   Mode = "custom"
)

// Result is the outcome of grading one submission.
type Result struct {
	ID              string            `json:"id"`
	Document        string            `json:"document"`
	Mode            Mode              `json:"mode"`
	Timestamp       time.Time         `json:"timestamp"`
	ImagesExtracted int               `json:"images_extracted"`
	Images          []ImageEvaluation `json:"images"`
	Trail           []Outcome         `json:"trail"`
	OverallScore    float64           `json:"overall_score"`
	Passed          bool              `json:"passed"`
	Errors          []Error           `json:"errors"`
}

func (r *Result) fail(kind ErrorKind, msg string) *Result {
	r.Errors = append(r.Errors, Error{Kind: kind, Message: msg})
	r.OverallScore = 0
	r.Passed = false
	return r
}

func (r *Result) has(kind ErrorKind) bool {
	return slices.ContainsFunc(r.Errors, func(e Error) bool { return e.Kind == kind })
}

// Count returns how many trail entries ended in state s.
func (r *Result) Count(s State) int {
	n := 0
	for _, o := range r.Trail {
		if o.State == s {
			n++
		}
	}
	return n
}
