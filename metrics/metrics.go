// Package metrics exposes classification counters and latencies to Prometheus.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "diagramtype"

// Collector records classification outcomes. A nil *Collector is a no-op.
type Collector struct {
	classifications *prometheus.CounterVec
	failures        *prometheus.CounterVec
	duration        prometheus.Histogram
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classifications by resulting category key.",
		}, []string{"key"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_failures_total",
			Help:      "Classifications aborted by a failing detector.",
		}, []string{"key"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_duration_seconds",
			Help:      "Time spent normalizing and classifying one input.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}

	for _, col := range []prometheus.Collector{c.classifications, c.failures, c.duration} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, nil
}

// ObserveClassification records a successful classification.
func (c *Collector) ObserveClassification(key string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.classifications.WithLabelValues(key).Inc()
	c.duration.Observe(elapsed.Seconds())
}

// ObserveFailure records a classification aborted by the detector for key.
func (c *Collector) ObserveFailure(key string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.failures.WithLabelValues(key).Inc()
	c.duration.Observe(elapsed.Seconds())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
