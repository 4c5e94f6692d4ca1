/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chainguard.dev/refgrader/agents/agenttrace"
	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
)

func TestExecutionContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := agenttrace.GetExecutionContext(ctx); got != (agenttrace.ExecutionContext{}) {
		t.Fatalf("GetExecutionContext(empty) = %+v, want zero value", got)
	}

	ctx, span := agenttrace.StartSubmission(ctx, "sub-1", "thesis.pdf")
	defer span.End()
	ctx = agenttrace.WithImage(ctx, "page_1_img_1.png")
	ctx = agenttrace.WithStage(ctx, "compare")
	ctx = agenttrace.WithCategory(ctx, "Data-Flow")

	want := agenttrace.ExecutionContext{
		SubmissionID: "sub-1",
		Document:     "thesis.pdf",
		Image:        "page_1_img_1.png",
		Stage:        "compare",
		Category:     "Data-Flow",
	}
	if diff := cmp.Diff(want, agenttrace.GetExecutionContext(ctx)); diff != "" {
		t.Errorf("GetExecutionContext() mismatch (-want +got):\n%s", diff)
	}
}

func TestEnrichAttributes(t *testing.T) {
	t.Parallel()

	base := []attribute.KeyValue{attribute.String("model", "qwen2-vl")}

	got := agenttrace.EnrichAttributes(context.Background(), base)
	if len(got) != 1 {
		t.Fatalf("EnrichAttributes(empty context) = %v, want base only", got)
	}

	ctx := agenttrace.WithExecutionContext(context.Background(), agenttrace.ExecutionContext{
		SubmissionID: "sub-1",
		Image:        "page_1_img_1.png",
		Stage:        "extract_attributes",
		Category:     "Excel-Tabelle",
	})
	got = agenttrace.EnrichAttributes(ctx, base)
	keys := make([]string, 0, len(got))
	for _, kv := range got {
		keys = append(keys, string(kv.Key))
	}
	if diff := cmp.Diff([]string{"model", "stage", "category"}, keys); diff != "" {
		t.Errorf("attribute keys mismatch (-want +got):\n%s", diff)
	}
}

func TestCall(t *testing.T) {
	t.Parallel()

	ctx := agenttrace.WithImage(context.Background(), "page_3_img_2.png")
	_, call := agenttrace.StartCall(ctx, "qwen", "qwen2-vl-7b", "compare")
	if call.Duration() != 0 {
		t.Errorf("Duration() before End = %v, want 0", call.Duration())
	}
	call.RecordTokenUsage(1200, 340)
	call.End(errors.New("status 503"))

	if call.Duration() < 0 {
		t.Errorf("Duration() = %v, want >= 0", call.Duration())
	}
	s := call.String()
	for _, want := range []string{"qwen/qwen2-vl-7b compare", "image=page_3_img_2.png", "tokens=1200/340", "error=status 503"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}
