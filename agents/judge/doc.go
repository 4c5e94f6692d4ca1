/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package judge asks a vision model the three questions grading needs
// about a student image: can it be graded at all, what does it show, and
// how well does it match a reference solution.
//
// A Judge wraps any executor.Interface. Replies are parsed with the strict
// rules of the result package; a reply that does not parse is an error,
// never a guessed score.
//
//	exec, err := judge.NewExecutor(ctx, judge.BackendConfig{Model: "claude-sonnet-4-5", Project: p, Region: r})
//	if err != nil {
//		return err
//	}
//	j := judge.New(exec, judge.WithCallTimeout(time.Minute))
//
//	verdict, err := j.CheckEvaluability(ctx, img)
//	attrs, err := j.ExtractAttributes(ctx, img, category.DataFlow)
//	eval, err := j.Compare(ctx, judge.Comparison{
//		Student:    img,
//		Reference:  refImg,
//		Attributes: refAttrs,
//		Category:   category.DataFlow,
//		Mode:       category.Standard,
//	})
//
// Comparison scores are on a 0..100 scale; a comparison passes at
// PassThreshold.
package judge
