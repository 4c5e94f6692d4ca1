/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package executor defines the contract shared by the vision-model backends.
//
// Every backend answers a single-image prompt with raw text and reports
// whether the model behind it is ready. Backend failures of any kind
// (transport, timeout, non-2xx, refusal) surface as *InferenceError so that
// callers can degrade them to a per-call skip.
package executor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
)

// Image is an encoded image handed to the model.
type Image struct {
	// Data is the encoded image (PNG or JPEG).
	Data []byte
	// MIMEType is the media type of Data, e.g. "image/png".
	MIMEType string
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data: URL.
func (i Image) DataURL() string {
	return "data:" + i.mimeType() + ";base64," + i.Base64()
}

func (i Image) mimeType() string {
	if i.MIMEType != "" {
		return i.MIMEType
	}
	return http.DetectContentType(i.Data)
}

// Request is one inference call.
type Request struct {
	Image     Image
	Prompt    string
	MaxTokens int
	// Operation names the call for logs and metrics, e.g. "evaluability".
	Operation string
}

// Validate checks that the request can be sent.
func (r Request) Validate() error {
	if len(r.Image.Data) == 0 {
		return errors.New("request has no image data")
	}
	if r.Prompt == "" {
		return errors.New("request has no prompt")
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", r.MaxTokens)
	}
	return nil
}

// Response is the raw completion plus token usage when the backend reports it.
type Response struct {
	Text             string
	PromptTokens     int64
	CompletionTokens int64
}

// Health is the readiness record of the inference service.
type Health struct {
	Status        string `json:"status"`
	Model         string `json:"model,omitempty"`
	ModelLoaded   bool   `json:"model_loaded"`
	CUDAAvailable bool   `json:"cuda_available,omitempty"`
	GPUCount      int    `json:"gpu_count,omitempty"`
}

// Interface is implemented by every vision backend.
type Interface interface {
	// Infer sends one image with a prompt and returns the raw completion.
	Infer(ctx context.Context, req Request) (Response, error)
	// Ping reports whether the service is reachable and its model is loaded.
	Ping(ctx context.Context) (Health, error)
}

// InferenceError wraps any failure of a backend call.
type InferenceError struct {
	// Backend is the backend name, e.g. "qwen" or "claude".
	Backend string
	// Op is the call that failed, e.g. "analyze" or "health".
	Op string
	// StatusCode is the HTTP status when the failure came from a response, 0 otherwise.
	StatusCode int
	Err        error
}

func (e *InferenceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Backend, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Wrap returns err as an *InferenceError unless it already is one.
func Wrap(backend, op string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	var ie *InferenceError
	if errors.As(err, &ie) {
		return err
	}
	return &InferenceError{Backend: backend, Op: op, StatusCode: statusCode, Err: err}
}
