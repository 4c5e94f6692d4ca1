/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package promptbuilder fills {{placeholder}} templates used for model prompts.
//
// Templates are compile-time string literals; values are bound one at a time
// and every placeholder must be bound before Build succeeds. Binding returns
// a new Prompt, so a parsed template can be shared between goroutines and
// specialized per call.
//
//	p := promptbuilder.MustNewPrompt(`Category: {{category}}
//	Answer with JSON shaped like:
//	{{shape}}`)
//	p, _ = p.BindString("category", "Data-Flow")
//	p, _ = p.BindJSON("shape", map[string]any{"knoten_anzahl": 0})
//	text, err := p.Build()
package promptbuilder

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// stringLiteral only accepts untyped string constants from callers.
type stringLiteral string

// Prompt is a parsed template plus the values bound so far.
type Prompt struct {
	template string
	names    []string
	values   map[string]string
}

// NewPrompt parses a template and records its placeholders.
func NewPrompt(template stringLiteral) (*Prompt, error) {
	seen := map[string]struct{}{}
	var names []string
	if _, err := expand(string(template), func(name string) (string, error) {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
		return "", nil
	}); err != nil {
		return nil, err
	}
	return &Prompt{template: string(template), names: names, values: map[string]string{}}, nil
}

// MustNewPrompt is NewPrompt for package-level templates; it panics on a malformed template.
func MustNewPrompt(template stringLiteral) *Prompt {
	p, err := NewPrompt(template)
	if err != nil {
		panic(fmt.Sprintf("promptbuilder: %v", err))
	}
	return p
}

// Placeholders returns the placeholder names in order of first appearance.
func (p *Prompt) Placeholders() []string {
	return append([]string(nil), p.names...)
}

// BindString binds text verbatim.
func (p *Prompt) BindString(name, value string) (*Prompt, error) {
	return p.bind(name, value)
}

// BindJSON binds data marshaled as indented JSON.
func (p *Prompt) BindJSON(name string, data any) (*Prompt, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("binding %q as JSON: %w", name, err)
	}
	return p.bind(name, string(b))
}

// BindYAML binds data marshaled as YAML, trailing newline removed.
func (p *Prompt) BindYAML(name string, data any) (*Prompt, error) {
	b, err := yaml.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("binding %q as YAML: %w", name, err)
	}
	return p.bind(name, strings.TrimRight(string(b), "\n"))
}

func (p *Prompt) bind(name, value string) (*Prompt, error) {
	if !p.has(name) {
		return nil, fmt.Errorf("unknown placeholder %q", name)
	}
	if _, ok := p.values[name]; ok {
		return nil, fmt.Errorf("placeholder %q is already bound", name)
	}
	values := maps.Clone(p.values)
	values[name] = value
	return &Prompt{template: p.template, names: p.names, values: values}, nil
}

func (p *Prompt) has(name string) bool {
	for _, n := range p.names {
		if n == name {
			return true
		}
	}
	return false
}

// Build renders the template; it fails if any placeholder is unbound.
func (p *Prompt) Build() (string, error) {
	var missing []string
	for _, n := range p.names {
		if _, ok := p.values[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("unbound placeholders: %s", strings.Join(missing, ", "))
	}
	return expand(p.template, func(name string) (string, error) {
		return p.values[name], nil
	})
}

// expand copies template, replacing each {{name}} with resolve(name).
func expand(template string, resolve func(string) (string, error)) (string, error) {
	var sb strings.Builder
	for {
		start := strings.Index(template, "{{")
		if start < 0 {
			sb.WriteString(template)
			return sb.String(), nil
		}
		sb.WriteString(template[:start])

		end := strings.Index(template[start:], "}}")
		if end < 0 {
			return "", errors.New("unclosed placeholder: missing '}}'")
		}
		name := strings.TrimSpace(template[start+2 : start+end])
		if !isIdentifier(name) {
			return "", fmt.Errorf("invalid placeholder %q", name)
		}
		v, err := resolve(name)
		if err != nil {
			return "", err
		}
		sb.WriteString(v)
		template = template[start+end+2:]
	}
}

// isIdentifier accepts a letter followed by letters, digits or underscores.
func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '_'):
		default:
			return false
		}
	}
	return s != ""
}
