/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package calibrate

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refgrader_calibration_checks_total",
			Help: "Calibration checks performed",
		},
		[]string{"namespace"},
	)

	checkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refgrader_calibration_failures_total",
			Help: "Calibration checks answered wrongly",
		},
		[]string{"namespace"},
	)

	lastGrade = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refgrader_calibration_grade",
			Help: "Most recent calibration grade (0.0-1.0)",
		},
		[]string{"namespace"},
	)
)

// MetricsObserver exports observations as Prometheus series labelled by
// namespace.
type MetricsObserver struct {
	checks   prometheus.Counter
	failures prometheus.Counter
	grade    prometheus.Gauge
}

// NewMetricsObserver returns the observer for namespace.
func NewMetricsObserver(namespace string) *MetricsObserver {
	labels := prometheus.Labels{"namespace": namespace}
	return &MetricsObserver{
		checks:   checkCounter.With(labels),
		failures: checkFailures.With(labels),
		grade:    lastGrade.With(labels),
	}
}

func (m *MetricsObserver) Increment()                    { m.checks.Inc() }
func (m *MetricsObserver) Fail(string)                   { m.failures.Inc() }
func (m *MetricsObserver) Grade(score float64, _ string) { m.grade.Set(score) }
func (m *MetricsObserver) Log(string)                    {}
func (m *MetricsObserver) Total() int64                  { return 0 }

// LogObserver writes failures and grades to the context logger.
type LogObserver struct {
	ctx       context.Context
	namespace string
}

// NewLogObserver returns an observer logging under namespace.
func NewLogObserver(ctx context.Context, namespace string) *LogObserver {
	return &LogObserver{ctx: ctx, namespace: namespace}
}

func (l *LogObserver) Fail(msg string) {
	clog.FromContext(l.ctx).With("namespace", l.namespace).Warn(msg)
}

func (l *LogObserver) Log(msg string) {
	clog.FromContext(l.ctx).With("namespace", l.namespace).Debug(msg)
}

func (l *LogObserver) Grade(score float64, reasoning string) {
	clog.FromContext(l.ctx).With("namespace", l.namespace).Debug(fmt.Sprintf("Grade %.2f: %s", score, reasoning))
}

func (l *LogObserver) Increment()   {}
func (l *LogObserver) Total() int64 { return 0 }

// fanout forwards to several observers.
type fanout []Observer

func (f fanout) Fail(msg string) {
	for _, o := range f {
		o.Fail(msg)
	}
}

func (f fanout) Log(msg string) {
	for _, o := range f {
		o.Log(msg)
	}
}

func (f fanout) Grade(score float64, reasoning string) {
	for _, o := range f {
		o.Grade(score, reasoning)
	}
}

func (f fanout) Increment() {
	for _, o := range f {
		o.Increment()
	}
}

func (f fanout) Total() int64 { return 0 }

// DefaultFactory collects results and also logs and exports them.
func DefaultFactory(ctx context.Context) func(string) *Collector {
	return func(namespace string) *Collector {
		return NewCollector(fanout{NewLogObserver(ctx, namespace), NewMetricsObserver(namespace)})
	}
}
