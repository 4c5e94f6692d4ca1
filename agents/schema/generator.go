/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package schema reflects Go response types into JSON schemas that are
// embedded in model prompts, so the expected reply shape lives next to the
// type that decodes it.
package schema

import "github.com/invopop/jsonschema"

// Generator wraps jsonschema.Reflector with project defaults.
type Generator struct {
	reflector jsonschema.Reflector
}

// Option configures a Generator.
type Option func(*jsonschema.Reflector)

// Strict rejects properties that the reflected type does not declare.
func Strict() Option {
	return func(r *jsonschema.Reflector) {
		r.AllowAdditionalProperties = false
	}
}

// NewGenerator constructs a generator that inlines every definition, since
// a prompt has nowhere to resolve $ref pointers.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		reflector: jsonschema.Reflector{
			RequiredFromJSONSchemaTags: true,
			ExpandedStruct:             true,
			AllowAdditionalProperties:  true,
			DoNotReference:             true,
		},
	}
	for _, opt := range opts {
		opt(&g.reflector)
	}
	return g
}

// Reflect returns the JSON schema for the provided value.
func (g *Generator) Reflect(v any) *jsonschema.Schema {
	s := g.reflector.Reflect(v)
	// The draft URI is noise inside a prompt.
	s.Version = ""
	return s
}

// Reflect derives the JSON schema for the provided value using a default generator.
func Reflect(v any) *jsonschema.Schema {
	return NewGenerator().Reflect(v)
}

// ReflectType allocates a zero value of T and reflects it to a schema.
func ReflectType[T any](opts ...Option) *jsonschema.Schema {
	var zero T
	return NewGenerator(opts...).Reflect(&zero)
}
