// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMetricsPath is where the server exposes metrics when enabled.
const DefaultMetricsPath = "/metrics"

// Metrics holds the Prometheus collectors of one Dock. Each Metrics owns its
// registry so several docks can live in one process. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	UnknownTotal    prometheus.Counter
	HandshakesTotal *prometheus.CounterVec
	SendsTotal      *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace (default "dock").
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dock"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Requests dispatched to registered endpoints, by outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time spent in the dispatch pipeline",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"endpoint"},
		),
		UnknownTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unknown_requests_total",
				Help:      "Requests addressed to names that are not registered",
			},
		),
		HandshakesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handshakes_total",
				Help:      "Version handshakes, by result",
			},
			[]string{"result"},
		),
		SendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_sends_total",
				Help:      "Client requests sent, by result",
			},
			[]string{"endpoint", "result"},
		),
	}
}

// Registry returns the Prometheus registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(endpoint string, kind OutcomeKind, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, kind.String()).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) observeUnknown() {
	if m == nil {
		return
	}
	m.UnknownTotal.Inc()
}

func (m *Metrics) observeHandshake(result string) {
	if m == nil {
		return
	}
	m.HandshakesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) observeSend(endpoint, result string) {
	if m == nil {
		return
	}
	m.SendsTotal.WithLabelValues(endpoint, result).Inc()
}
