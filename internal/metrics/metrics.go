// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package metrics provides Prometheus instrumentation for the event
// pipeline, risk aggregator, alerting, WebSocket fan-out, and HTTP API.
// Metrics are exposed at /metrics in Prometheus text format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics
	EventsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total raw security events consumed from the stream",
		},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total events dropped before processing",
		},
		[]string{"reason"}, // "stale_epoch", "malformed", "panic"
	)

	EventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_processed_total",
			Help: "Total events fully processed by the pipeline",
		},
	)

	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_processing_duration_seconds",
			Help:    "End-to-end pipeline latency per event",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	// Threat metrics
	ThreatsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threats_detected_total",
			Help: "Total threats detected, by severity",
		},
		[]string{"severity"},
	)

	ThreatScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "threat_score",
			Help:    "Distribution of composite threat scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	// Analyzer metrics
	AnalyzerFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analyzer_fallbacks_total",
			Help: "Total analyses served by the rule-based fallback",
		},
	)

	AnalyzerBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analyzer_circuit_breaker_state",
			Help: "Analyzer circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	// Alert metrics
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_created_total",
			Help: "Total alerts created, by priority",
		},
		[]string{"priority"},
	)

	PlaybookExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playbook_executions_total",
			Help: "Total playbook executions",
		},
		[]string{"playbook_id", "triggered"},
	)

	// Risk metrics
	RiskIndexValue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_index_value",
			Help: "Current organizational risk index in [0, 100]",
		},
	)

	RiskPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_publishes_total",
			Help: "Total risk snapshot publishes, by reason",
		},
		[]string{"reason"}, // "change", "heartbeat", "baseline_reset"
	)

	EpochAdoptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epoch_adoptions_total",
			Help: "Total times the active scenario epoch changed",
		},
	)

	// Event stream metrics
	StreamPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_publishes_total",
			Help: "Total messages published to outbound topics",
		},
		[]string{"topic"},
	)

	StreamPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_publish_errors_total",
			Help: "Total failed publishes to outbound topics",
		},
		[]string{"topic"},
	)

	StreamPoisoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_poisoned_total",
			Help: "Total messages routed to the poison queue",
		},
	)

	// WebSocket metrics
	WSClientsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients_active",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total WebSocket messages broadcast, by type",
		},
		[]string{"message_type"},
	)

	WSClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_clients_evicted_total",
			Help: "Total clients evicted for full send buffers",
		},
	)

	// HTTP API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Store metrics
	StoreWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_write_errors_total",
			Help: "Total failed store writes",
		},
		[]string{"kind"}, // "threat", "alert", "execution"
	)
)

// RecordEventProcessed records one fully processed event and its latency.
func RecordEventProcessed(duration time.Duration) {
	EventsProcessed.Inc()
	ProcessingDuration.Observe(duration.Seconds())
}

// RecordThreat records a detected threat's severity and score.
func RecordThreat(severity string, score int) {
	ThreatsDetected.WithLabelValues(severity).Inc()
	ThreatScore.Observe(float64(score))
}

// RecordAlert records one created alert.
func RecordAlert(priority string) {
	AlertsCreated.WithLabelValues(priority).Inc()
}

// RecordRiskPublish records one published risk snapshot.
func RecordRiskPublish(value float64, reason string) {
	RiskIndexValue.Set(value)
	RiskPublishes.WithLabelValues(reason).Inc()
}

// RecordAPIRequest records one HTTP API request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordStreamPublish records one outbound publish attempt.
func RecordStreamPublish(topic string, err error) {
	if err != nil {
		StreamPublishErrors.WithLabelValues(topic).Inc()
		return
	}
	StreamPublishes.WithLabelValues(topic).Inc()
}
