/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package calibrate

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type recordingObserver struct {
	mu     sync.Mutex
	logs   []string
	grades []float64
	count  int64
}

func (r *recordingObserver) Fail(string) { panic("collector must not forward Fail") }
func (r *recordingObserver) Log(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, msg)
}
func (r *recordingObserver) Grade(score float64, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grades = append(r.grades, score)
}
func (r *recordingObserver) Increment() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}
func (r *recordingObserver) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func TestCollector(t *testing.T) {
	inner := &recordingObserver{}
	c := NewCollector(inner)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Increment()
			if i%5 == 0 {
				c.Fail("wrong")
			}
			c.Grade(0.5, "ok")
		}()
	}
	wg.Wait()

	if got := c.Total(); got != 10 {
		t.Errorf("Total() = %d, want 10", got)
	}
	if got := len(c.Failures()); got != 2 {
		t.Errorf("Failures() = %d, want 2", got)
	}
	if got := c.PassRate(); got != 0.8 {
		t.Errorf("PassRate() = %v, want 0.8", got)
	}
	if got := c.MeanGrade(); got != 0.5 {
		t.Errorf("MeanGrade() = %v, want 0.5", got)
	}
	if diff := cmp.Diff([]string{"wrong", "wrong"}, inner.logs); diff != "" {
		t.Errorf("failures forwarded as logs (-want +got):\n%s", diff)
	}
}

func TestCollector_Empty(t *testing.T) {
	c := NewCollector(&recordingObserver{})
	if c.PassRate() != 0 || c.MeanGrade() != 0 {
		t.Errorf("empty collector: pass rate %v, mean %v", c.PassRate(), c.MeanGrade())
	}
}

func TestTree_Walk(t *testing.T) {
	root := NewTree(func(string) *Collector { return NewCollector(&recordingObserver{}) })
	root.Child("Transformation").Child(CheckClassification)
	root.Child("Data-Flow").Child(CheckEvaluability)
	root.Child("Data-Flow").Child(CheckClassification)

	var got []string
	root.Walk(func(name string, _ *Collector) { got = append(got, name) })

	want := []string{
		"/",
		"/Data-Flow",
		"/Data-Flow/classification",
		"/Data-Flow/evaluability",
		"/Transformation",
		"/Transformation/classification",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Walk order (-want +got):\n%s", diff)
	}
	if root.Child("Data-Flow") != root.Child("Data-Flow") {
		t.Error("Child should return the existing node")
	}
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver("/metrics-test/classification")
	before := testutil.ToFloat64(m.checks)
	m.Increment()
	m.Increment()
	m.Fail("x")
	m.Grade(0.75, "")

	if got := testutil.ToFloat64(m.checks) - before; got != 2 {
		t.Errorf("checks delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.failures); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.grade); got != 0.75 {
		t.Errorf("grade = %v, want 0.75", got)
	}
}

func TestDefaultFactory(t *testing.T) {
	c := DefaultFactory(context.Background())("/factory-test")
	c.Increment()
	c.Fail("nope")
	c.Grade(0, "nope")
	if c.Total() != 1 || len(c.Failures()) != 1 {
		t.Errorf("collector state: total %d failures %v", c.Total(), c.Failures())
	}
	if got := testutil.ToFloat64(checkCounter.WithLabelValues("/factory-test")); got != 1 {
		t.Errorf("exported checks = %v, want 1", got)
	}
}
