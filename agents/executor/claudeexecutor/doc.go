/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claudeexecutor implements executor.Interface on the Anthropic
// Messages API. The client may authenticate with an API key or through
// Vertex AI; the executor does not care which.
//
//	client := anthropic.NewClient(vertex.WithGoogleAuth(ctx, region, projectID))
//	exec, err := claudeexecutor.New(client,
//		claudeexecutor.WithModel("claude-sonnet-4-5"),
//		claudeexecutor.WithTemperature(0.1),
//	)
package claudeexecutor
