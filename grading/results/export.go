/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chainguard.dev/refgrader/grading/pipeline"
)

// FileName is the name WriteJSON uses for r.
func FileName(r *pipeline.Result) string {
	doc := strings.TrimSuffix(r.Document, filepath.Ext(r.Document))
	if doc == "" {
		doc = "unknown"
	}
	return fmt.Sprintf("evaluation_result_%s_%s.json", doc, r.Timestamp.UTC().Format("20060102_150405"))
}

// WriteJSON writes r as indented JSON into dir and returns the file path.
func WriteJSON(dir string, r *pipeline.Result) (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result %s: %w", r.ID, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(dir, FileName(r))
	if err := os.WriteFile(p, append(b, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", p, err)
	}
	return p, nil
}
