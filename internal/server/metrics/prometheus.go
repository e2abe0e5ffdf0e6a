package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports events as a latency histogram and an outcome
// counter, both labelled by operation.
type PrometheusRecorder struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
	dropped  prometheus.Counter
}

// NewPrometheusRecorder registers the upload metrics on reg.
func NewPrometheusRecorder(namespace string, reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if namespace == "" {
		namespace = "mediavault"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &PrometheusRecorder{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "operation_duration_seconds",
			Help:      "Latency of upload pipeline operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "operation_total",
			Help:      "Count of upload pipeline operations by outcome.",
		}, []string{"operation", "outcome"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "events_dropped_total",
			Help:      "Metric events dropped because the recorder queue was full.",
		}),
	}

	var err error
	if r.duration, err = register(reg, r.duration); err != nil {
		return nil, err
	}
	if r.total, err = register(reg, r.total); err != nil {
		return nil, err
	}
	if r.dropped, err = register(reg, r.dropped); err != nil {
		return nil, err
	}
	return r, nil
}

// register returns the already registered collector when an identical one
// exists, so constructing the recorder twice on one registry is harmless.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register upload metric: %w", err)
	}
	return c, nil
}

func (r *PrometheusRecorder) RecordEvent(e Event) {
	if r == nil {
		return
	}
	outcome := "success"
	if !e.Success {
		outcome = "failure"
	}
	r.duration.WithLabelValues(e.Operation, outcome).Observe(e.Duration.Seconds())
	r.total.WithLabelValues(e.Operation, outcome).Inc()
}

// Dropped increments the dropped-events counter; pass it to NewAsyncRecorder.
func (r *PrometheusRecorder) Dropped() {
	if r == nil {
		return
	}
	r.dropped.Inc()
}

var _ Recorder = (*PrometheusRecorder)(nil)
