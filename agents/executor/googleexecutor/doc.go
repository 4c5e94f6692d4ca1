/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package googleexecutor implements executor.Interface with Gemini models
// through google.golang.org/genai, on either the Gemini API or Vertex AI.
package googleexecutor
