/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reference_test

import (
	"testing"

	"chainguard.dev/refgrader/grading/reference"
)

func TestSimilarity(t *testing.T) {
	flow := reference.Attributes{
		"struktur": map[string]any{"knoten_anzahl": float64(5), "richtung": "horizontal", "hierarchisch": true},
		"technik":  map[string]any{"symbole_standard": true, "pfeile_klar": false},
	}

	tests := []struct {
		name      string
		query     reference.Attributes
		candidate reference.Attributes
		want      float64
	}{{
		name:      "identical",
		query:     flow,
		candidate: flow,
		want:      1,
	}, {
		name:      "empty candidate",
		query:     flow,
		candidate: reference.Attributes{},
		want:      0,
	}, {
		name:      "nil query",
		query:     nil,
		candidate: flow,
		want:      0,
	}, {
		name:      "half the leaves differ",
		query:     reference.Attributes{"a": true, "b": "x", "c": float64(1), "d": false},
		candidate: reference.Attributes{"a": true, "b": "y", "c": float64(1), "d": true},
		want:      0.5,
	}, {
		name:      "type sensitive",
		query:     reference.Attributes{"hat_tabelle": "true", "spalten": "3"},
		candidate: reference.Attributes{"hat_tabelle": true, "spalten": float64(3)},
		want:      0,
	}, {
		name:      "one-sided keys count as compared",
		query:     reference.Attributes{"a": true, "b": true},
		candidate: reference.Attributes{"a": true, "c": true},
		want:      1.0 / 3,
	}, {
		name:      "nested against leaf",
		query:     reference.Attributes{"quelle": map[string]any{"typ": "R3"}, "x": true},
		candidate: reference.Attributes{"quelle": "R3", "x": true},
		want:      0.5,
	}, {
		name:      "arrays compared deeply",
		query:     reference.Attributes{"felder": []any{"a", "b"}},
		candidate: reference.Attributes{"felder": []any{"a", "b"}},
		want:      1,
	}, {
		name:      "only empty nested maps",
		query:     reference.Attributes{"x": map[string]any{}},
		candidate: reference.Attributes{"x": map[string]any{}},
		want:      0,
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reference.Similarity(tt.query, tt.candidate); got != tt.want {
				t.Errorf("Similarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]reference.Attributes{{
		{"a": true, "n": map[string]any{"x": float64(1), "y": "z"}},
		{"a": false, "n": map[string]any{"x": float64(1), "y": "q"}},
	}, {
		{"a": true, "b": "only here"},
		{"a": true, "c": map[string]any{"deep": true}},
	}}
	for _, p := range pairs {
		ab, ba := reference.Similarity(p[0], p[1]), reference.Similarity(p[1], p[0])
		if ab != ba {
			t.Errorf("Similarity not symmetric: %v vs %v for %v", ab, ba, p)
		}
	}
}
