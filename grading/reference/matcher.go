/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reference

import (
	"cmp"
	"slices"
)

// Match is a reference entry with its similarity to the query.
type Match struct {
	Entry
	Score float64
}

// TopK returns up to k entries of category ordered by similarity to query,
// best first. Equal scores keep database order. An unknown or empty
// category, or k <= 0, yields an empty result.
func TopK(db *Database, query Attributes, categoryName string, k int) []Match {
	if db == nil || k <= 0 {
		return nil
	}
	entries := db.Entries(categoryName)
	if len(entries) == 0 {
		return nil
	}

	matches := make([]Match, len(entries))
	for i, e := range entries {
		matches[i] = Match{Entry: e, Score: Similarity(query, e.Metadata)}
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return matches[:min(k, len(matches))]
}
