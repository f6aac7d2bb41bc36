// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the authd Prometheus collectors.
type Metrics struct {
	AuthOperations  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	SessionsSwept   prometheus.Counter
}

// NewMetrics creates the authd collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_auth_operations_total",
				Help: "Completed auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authd_http_request_duration_seconds",
				Help:    "HTTP request latency by method, route and status",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "route", "status"},
		),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authd_sessions_swept_total",
			Help: "Expired sessions removed by the background sweeper",
		}),
	}

	reg.MustRegister(m.AuthOperations, m.RequestDuration, m.SessionsSwept)
	return m
}

// RecordAuthOperation counts one finished auth operation.
func (m *Metrics) RecordAuthOperation(operation, outcome string) {
	m.AuthOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveRequest records the latency of one HTTP request. route is the
// matched route template, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// RecordSweep adds n removed sessions.
func (m *Metrics) RecordSweep(n int64) {
	if n > 0 {
		m.SessionsSwept.Add(float64(n))
	}
}
