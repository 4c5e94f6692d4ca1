/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reference

import "reflect"

// Attributes is a decoded JSON object describing an image. Values keep the
// types encoding/json produced (bool, float64, string, []any, map[string]any).
type Attributes = map[string]any

// Similarity scores how closely candidate matches query, from 0 to 1.
//
// Both maps are walked over the union of their keys. Where both sides hold
// a nested object the walk recurses; every other key counts as compared,
// and as matched when both sides hold it with deeply equal values of the
// same type. The score is matched/compared, or 0 when either map is empty
// or nothing was compared. All leaf keys weigh the same.
func Similarity(query, candidate Attributes) float64 {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}
	var matched, compared int
	walk(query, candidate, &matched, &compared)
	if compared == 0 {
		return 0
	}
	return float64(matched) / float64(compared)
}

func walk(a, b map[string]any, matched, compared *int) {
	for k, av := range a {
		bv, inB := b[k]
		if inB {
			am, aIsMap := av.(map[string]any)
			bm, bIsMap := bv.(map[string]any)
			if aIsMap && bIsMap {
				walk(am, bm, matched, compared)
				continue
			}
		}
		*compared++
		if inB && reflect.DeepEqual(av, bv) {
			*matched++
		}
	}
	for k := range b {
		if _, inA := a[k]; !inA {
			*compared++
		}
	}
}
