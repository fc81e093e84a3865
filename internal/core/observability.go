// Package core wires the content store, workflow engine, molecular action
// executor, batch algorithms, and report generator behind a single service
// facade, and provides the built-in commit rules and observability hooks.
package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder observes the outcome and latency of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, op string, success bool, duration time.Duration)
}

// Tracer records operation spans.
type Tracer interface {
	Trace(ctx context.Context, op string, success bool, duration time.Duration)
}

// NoopMetricsRecorder discards observations.
type NoopMetricsRecorder struct{}

// Observe implements MetricsRecorder.
func (NoopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// NoopTracer discards spans.
type NoopTracer struct{}

// Trace implements Tracer.
func (NoopTracer) Trace(context.Context, string, bool, time.Duration) {}

// ExpvarMetricsRecorder publishes per-operation counters and cumulative
// latency under an expvar map.
type ExpvarMetricsRecorder struct {
	root *expvar.Map
}

// NewExpvarMetricsRecorder publishes a new expvar map under name.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	return &ExpvarMetricsRecorder{root: expvar.NewMap(name)}
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.root.Add(op+"."+outcome, 1)
	r.root.Add(op+".duration_ms", duration.Milliseconds())
}

// PrometheusMetricsRecorder exports operation counters and latency histograms
// through a prometheus registerer.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers the collectors with reg.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	r := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termcore",
			Name:      "operations_total",
			Help:      "Service operations by name and outcome.",
		}, []string{"op", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "termcore",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if err := reg.Register(r.operations); err != nil {
		return nil, fmt.Errorf("register operations counter: %w", err)
	}
	if err := reg.Register(r.durations); err != nil {
		return nil, fmt.Errorf("register duration histogram: %w", err)
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.operations.WithLabelValues(op, outcome).Inc()
	r.durations.WithLabelValues(op).Observe(duration.Seconds())
}

// JSONTracer writes one JSON line per span.
type JSONTracer struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewJSONTracer builds a tracer writing to out.
func NewJSONTracer(out io.Writer) *JSONTracer {
	return &JSONTracer{out: out, now: func() time.Time { return time.Now().UTC() }}
}

// Trace implements Tracer.
func (t *JSONTracer) Trace(_ context.Context, op string, success bool, duration time.Duration) {
	record := struct {
		Time       string `json:"time"`
		Op         string `json:"op"`
		Success    bool   `json:"success"`
		DurationMS int64  `json:"duration_ms"`
	}{
		Time:       t.now().Format(time.RFC3339Nano),
		Op:         op,
		Success:    success,
		DurationMS: duration.Milliseconds(),
	}
	line, err := json.Marshal(record)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.out.Write(append(line, '\n'))
}
