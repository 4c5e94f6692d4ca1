/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package googleexecutor

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genai"
)

func TestIsRetryableVertexError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "api 429", err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, want: true},
		{name: "wrapped api 503", err: fmt.Errorf("generate: %w", genai.APIError{Code: 503}), want: true},
		{name: "api 400", err: genai.APIError{Code: 400, Message: "image too large"}, want: false},
		{name: "text quota", err: errors.New("rpc error: RESOURCE_EXHAUSTED"), want: true},
		{name: "text overloaded", err: errors.New("model Overloaded"), want: true},
		{name: "permission", err: errors.New("permission denied"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isRetryableVertexError(tt.err); got != tt.want {
				t.Errorf("isRetryableVertexError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opt     Option
		wantErr bool
	}{
		{name: "gemini model", opt: WithModel("gemini-2.5-pro")},
		{name: "claude model", opt: WithModel("claude-opus-4-1"), wantErr: true},
		{name: "temperature", opt: WithTemperature(0.2)},
		{name: "negative temperature", opt: WithTemperature(-1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := &executorImpl{}
			if err := tt.opt(e); (err != nil) != tt.wantErr {
				t.Errorf("option error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := New(nil); err == nil {
		t.Error("New(nil) = nil error, want error")
	}
}
