/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package calibrate

import (
	"sync"
	"sync/atomic"
)

// Grade is one recorded rating.
type Grade struct {
	Score     float64
	Reasoning string
}

// Collector keeps every failure and grade it sees and forwards them to
// an inner Observer. Failures reach the inner observer as log lines.
type Collector struct {
	inner    Observer
	total    atomic.Int64
	failures []string
	grades   []Grade
	mu       sync.Mutex
}

// NewCollector wraps inner.
func NewCollector(inner Observer) *Collector {
	return &Collector{inner: inner}
}

func (c *Collector) Fail(msg string) {
	c.inner.Log(msg)
	c.mu.Lock()
	c.failures = append(c.failures, msg)
	c.mu.Unlock()
}

func (c *Collector) Log(msg string) {
	c.inner.Log(msg)
}

func (c *Collector) Grade(score float64, reasoning string) {
	c.inner.Grade(score, reasoning)
	c.mu.Lock()
	c.grades = append(c.grades, Grade{Score: score, Reasoning: reasoning})
	c.mu.Unlock()
}

func (c *Collector) Increment() {
	c.total.Add(1)
	c.inner.Increment()
}

func (c *Collector) Total() int64 {
	return c.total.Load()
}

// Failures returns a copy of the failure messages.
func (c *Collector) Failures() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.failures))
	copy(out, c.failures)
	return out
}

// Grades returns a copy of the grades.
func (c *Collector) Grades() []Grade {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Grade, len(c.grades))
	copy(out, c.grades)
	return out
}

// PassRate is the share of observations that did not fail.
func (c *Collector) PassRate() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(total-int64(len(c.Failures()))) / float64(total)
}

// MeanGrade averages the recorded grades.
func (c *Collector) MeanGrade() float64 {
	grades := c.Grades()
	if len(grades) == 0 {
		return 0
	}
	var sum float64
	for _, g := range grades {
		sum += g.Score
	}
	return sum / float64(len(grades))
}
