/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const fence = "```"

// ParseError reports a completion that did not contain a decodable JSON payload.
// Raw holds the completion exactly as the model returned it.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Normalize strips the wrapping artifacts models put around JSON payloads.
// The steps run in a fixed order:
//  1. trim surrounding whitespace
//  2. drop a leading fence marker along with its language tag, if any
//  3. drop a trailing fence marker
//  4. drop one leading and one trailing newline left behind by the fences
//  5. trim surrounding whitespace again
//
// Text that is not fenced passes through with only whitespace trimmed.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)

	if rest, ok := strings.CutPrefix(s, fence); ok {
		s = strings.TrimLeftFunc(rest, isTagRune)
	}
	s = strings.TrimSuffix(s, fence)

	s = strings.TrimPrefix(s, "\r")
	s = strings.TrimPrefix(s, "\n")
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")

	return strings.TrimSpace(s)
}

// isTagRune matches the characters of a fence language tag such as "json" or "JSON5".
func isTagRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '+', r == '.':
		return true
	}
	return false
}

// ParseStructured normalizes raw and decodes it as a JSON object.
// Numbers decode as float64, booleans as bool and nested objects as
// map[string]any, so callers can compare values with type-sensitive equality.
// Anything that is not a single well-formed JSON object yields a *ParseError.
func ParseStructured(raw string) (map[string]any, error) {
	payload := Normalize(raw)
	if payload == "" {
		return nil, &ParseError{Raw: raw, Err: errors.New("empty response")}
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if out == nil {
		return nil, &ParseError{Raw: raw, Err: errors.New("response is not a JSON object")}
	}
	return out, nil
}

// Extract normalizes raw and unmarshals it into T.
// It applies the same cleanup as ParseStructured and never guesses at partial payloads.
func Extract[T any](raw string) (T, error) {
	var out T

	payload := Normalize(raw)
	if payload == "" {
		return out, &ParseError{Raw: raw, Err: errors.New("empty response")}
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return out, &ParseError{Raw: raw, Err: err}
	}
	return out, nil
}
