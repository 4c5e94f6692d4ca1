/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reference_test

import (
	"testing"

	"chainguard.dev/refgrader/grading/category"
	"chainguard.dev/refgrader/grading/reference"
	"github.com/google/go-cmp/cmp"
)

func testDatabase(t *testing.T) *reference.Database {
	t.Helper()
	db := reference.NewDatabase()
	for _, e := range []reference.Entry{
		{Filename: "a.png", FilePath: "dataset/a.png", Metadata: reference.Attributes{"x": true, "y": true}},
		{Filename: "b.png", FilePath: "dataset/b.png", Metadata: reference.Attributes{"x": true, "y": false}},
		{Filename: "c.png", FilePath: "dataset/c.png", Metadata: reference.Attributes{"x": true, "y": true}},
		{Filename: "d.png", FilePath: "dataset/d.png", Metadata: reference.Attributes{"x": false, "y": false}},
	} {
		if err := db.Add(category.DataFlow, e); err != nil {
			t.Fatal(err)
		}
	}
	return db
}

func names(ms []reference.Match) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Filename)
	}
	return out
}

func TestTopK(t *testing.T) {
	db := testDatabase(t)
	query := reference.Attributes{"x": true, "y": true}

	tests := []struct {
		name     string
		category string
		k        int
		want     []string
	}{
		{name: "best only", category: category.DataFlow, k: 1, want: []string{"a.png"}},
		{name: "ties keep database order", category: category.DataFlow, k: 3, want: []string{"a.png", "c.png", "b.png"}},
		{name: "k larger than pool", category: category.DataFlow, k: 10, want: []string{"a.png", "c.png", "b.png", "d.png"}},
		{name: "unknown category", category: category.InfoObject, k: 1, want: nil},
		{name: "zero k", category: category.DataFlow, k: 0, want: nil},
		{name: "negative k", category: category.DataFlow, k: -1, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reference.TopK(db, query, tt.category, tt.k)
			if diff := cmp.Diff(tt.want, names(got)); diff != "" {
				t.Errorf("TopK() mismatch (-want +got):\n%s", diff)
			}
			for i := 1; i < len(got); i++ {
				if got[i].Score > got[i-1].Score {
					t.Errorf("TopK() not sorted descending at %d: %v > %v", i, got[i].Score, got[i-1].Score)
				}
			}
		})
	}
}

func TestTopK_NilDatabase(t *testing.T) {
	if got := reference.TopK(nil, reference.Attributes{"x": true}, category.DataFlow, 1); len(got) != 0 {
		t.Errorf("TopK(nil db) = %v, want empty", got)
	}
}
