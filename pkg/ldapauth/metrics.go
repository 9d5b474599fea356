// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ldapauth

import "github.com/prometheus/client_golang/prometheus"

const (
	resultSuccess            = "success"
	resultCached             = "cached"
	resultInvalidCredentials = "invalid_credentials"
	resultNotAuthorized      = "not_authorized"
	resultError              = "error"
)

type metrics struct {
	registerer   prometheus.Registerer
	attempts     *prometheus.CounterVec
	bindDuration prometheus.Histogram
}

func newMetrics() *metrics {
	return &metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ldapauth",
			Name:      "attempts_total",
			Help:      "Authentication attempts by result.",
		}, []string{"result"}),
		bindDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ldapauth",
			Name:      "bind_duration_seconds",
			Help:      "Latency of LDAP bind operations.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *metrics) register() error {
	if m.registerer == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{m.attempts, m.bindDuration} {
		if err := m.registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *metrics) attempt(result string) {
	m.attempts.WithLabelValues(result).Inc()
}
