// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the QA API.
//
// Metrics are exposed via the /metrics endpoint; use with Prometheus and
// Grafana for dashboards and alerting. All metric operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "assetgraph"

const qaSubsystem = "qa"

// QAMetrics holds the Prometheus metrics for the question endpoint.
//
// # Fields
//
//   - RequestsTotal: Counter of QA requests by status.
//   - RequestDurationSeconds: Histogram of end-to-end request latency.
//   - AnswersByQueryType: Counter of answers by pipeline used.
type QAMetrics struct {
	RequestsTotal          *prometheus.CounterVec
	RequestDurationSeconds *prometheus.HistogramVec
	AnswersByQueryType     *prometheus.CounterVec
}

var metrics *QAMetrics

// InitMetrics registers the QA metrics. Call once at startup; repeated
// calls return the already-registered collectors.
func InitMetrics() *QAMetrics {
	if metrics != nil {
		return metrics
	}
	metrics = &QAMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: qaSubsystem,
			Name:      "requests_total",
			Help:      "QA requests by HTTP status class.",
		}, []string{"status"}),
		RequestDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: qaSubsystem,
			Name:      "request_duration_seconds",
			Help:      "End-to-end QA request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		AnswersByQueryType: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: qaSubsystem,
			Name:      "answers_total",
			Help:      "Answers produced, by query type.",
		}, []string{"query_type"}),
	}
	return metrics
}

// ObserveRequest records one completed request.
func ObserveRequest(status string, queryType string, started time.Time) {
	if metrics == nil {
		return
	}
	metrics.RequestsTotal.WithLabelValues(status).Inc()
	metrics.RequestDurationSeconds.WithLabelValues(status).Observe(time.Since(started).Seconds())
	if queryType != "" {
		metrics.AnswersByQueryType.WithLabelValues(queryType).Inc()
	}
}
