/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package calibrate

import (
	"path"
	"sort"
	"sync"
)

// Observer receives the outcome of each calibration check.
type Observer interface {
	// Fail records a wrong answer. Called at most once per observation.
	Fail(string)
	// Log records a message.
	Log(string)
	// Grade records a 0.0-1.0 rating with its reasoning.
	Grade(score float64, reasoning string)
	// Increment is called once per observation.
	Increment()
	// Total returns the number of observations.
	Total() int64
}

// Tree namespaces observers hierarchically, e.g. /Data-Flow/classification.
type Tree[T Observer] struct {
	name     string
	inner    T
	factory  func(string) T
	children map[string]*Tree[T]
	mu       sync.Mutex
}

// NewTree returns a root node whose observers are made by factory.
func NewTree[T Observer](factory func(string) T) *Tree[T] {
	return &Tree[T]{
		name:     "/",
		inner:    factory("/"),
		factory:  factory,
		children: make(map[string]*Tree[T]),
	}
}

func (n *Tree[T]) Fail(msg string)                       { n.inner.Fail(msg) }
func (n *Tree[T]) Log(msg string)                        { n.inner.Log(msg) }
func (n *Tree[T]) Grade(score float64, reasoning string) { n.inner.Grade(score, reasoning) }
func (n *Tree[T]) Increment()                            { n.inner.Increment() }
func (n *Tree[T]) Total() int64                          { return n.inner.Total() }

// Child returns the named child, creating it on first use.
func (n *Tree[T]) Child(name string) *Tree[T] {
	n.mu.Lock()
	defer n.mu.Unlock()

	if child, ok := n.children[name]; ok {
		return child
	}
	p := path.Join(n.name, name)
	child := &Tree[T]{
		name:     p,
		inner:    n.factory(p),
		factory:  n.factory,
		children: make(map[string]*Tree[T]),
	}
	n.children[name] = child
	return child
}

// Walk visits n and then its children depth first, siblings sorted by name.
func (n *Tree[T]) Walk(visitor func(string, T)) {
	visitor(n.name, n.inner)

	n.mu.Lock()
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	n.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		n.mu.Lock()
		child := n.children[name]
		n.mu.Unlock()
		child.Walk(visitor)
	}
}
