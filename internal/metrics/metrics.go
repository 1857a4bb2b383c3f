// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its registry so tests can create as many as they like.
// Recording methods are safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	Interactions      *prometheus.CounterVec
	StageFailures     *prometheus.CounterVec
	InferenceDuration prometheus.Histogram
	InferenceAttempts *prometheus.CounterVec
	GraphOps          *prometheus.CounterVec
	Actions           *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Interactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interactions_total",
				Help:      "Interactions processed, by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		StageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_failures_total",
				Help:      "Interactions that failed, by failing stage and error kind",
			},
			[]string{"stage", "kind"},
		),
		InferenceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "inference_duration_seconds",
				Help:      "Wall time of a gateway call including retries",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
		),
		InferenceAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inference_attempts_total",
				Help:      "Backend calls made by the gateway, by result",
			},
			[]string{"result"},
		),
		GraphOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_ops_total",
				Help:      "Graph update ops, by op type and status",
			},
			[]string{"op_type", "status"},
		),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Executed actions, by action type and status",
			},
			[]string{"action_type", "status"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	c.registry.MustRegister(
		c.Interactions, c.StageFailures, c.InferenceDuration, c.InferenceAttempts,
		c.GraphOps, c.Actions, c.HTTPRequests, c.HTTPDuration,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry returns the registry metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordInteraction(channel string, failed bool, stage, kind string) {
	if c == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "failed"
		c.StageFailures.WithLabelValues(stage, kind).Inc()
	}
	c.Interactions.WithLabelValues(channel, outcome).Inc()
}

func (c *Collector) RecordInference(d time.Duration) {
	if c == nil {
		return
	}
	c.InferenceDuration.Observe(d.Seconds())
}

func (c *Collector) RecordInferenceAttempt(result string) {
	if c == nil {
		return
	}
	c.InferenceAttempts.WithLabelValues(result).Inc()
}

func (c *Collector) RecordGraphOp(opType, status string) {
	if c == nil {
		return
	}
	c.GraphOps.WithLabelValues(opType, status).Inc()
}

func (c *Collector) RecordAction(actionType, status string) {
	if c == nil {
		return
	}
	c.Actions.WithLabelValues(actionType, status).Inc()
}

func (c *Collector) RecordHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
