// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the incident agent.
//
// Metrics are exposed via the /metrics endpoint of the ops server. All
// operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "aleutian"
	agentSubsystem   = "respond_agent"
)

// Event outcome label values.
const (
	OutcomeProcessed    = "processed"
	OutcomeIgnored      = "ignored"
	OutcomeDeduplicated = "deduplicated"
	OutcomeFailed       = "failed"
)

// AgentMetrics holds all Prometheus metrics for the incident agent.
type AgentMetrics struct {
	// EventsTotal counts consumed events by domain and outcome.
	// Labels: domain (k8s, infra, db), outcome (processed, ignored,
	// deduplicated, failed)
	EventsTotal *prometheus.CounterVec

	// ProcessingDurationSeconds measures full-pipeline latency per event.
	// Labels: domain
	ProcessingDurationSeconds *prometheus.HistogramVec

	// DecisionsPublishedTotal counts published decisions.
	// Labels: domain, status (success, error)
	DecisionsPublishedTotal *prometheus.CounterVec

	// ProviderThrottlesTotal counts throttled LLM calls.
	ProviderThrottlesTotal prometheus.Counter

	// ProviderRetriesTotal counts LLM retry attempts by error kind.
	// Labels: kind (throttled, transient, fatal)
	ProviderRetriesTotal *prometheus.CounterVec

	// RejectedCommandsTotal counts diagnostic commands blocked by the
	// whitelist, at planning or execution time.
	RejectedCommandsTotal prometheus.Counter

	// LimiterWaitSeconds reports the most recent forced cooldown length.
	LimiterWaitSeconds prometheus.Gauge
}

// DefaultMetrics is the singleton instance. Nil until InitMetrics runs, so
// library code must go through the Record helpers below.
var DefaultMetrics *AgentMetrics

// InitMetrics creates and registers all agent metrics. Call once at startup;
// a second call panics on duplicate registration.
func InitMetrics() *AgentMetrics {
	DefaultMetrics = &AgentMetrics{
		EventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "events_total",
				Help:      "Total consumed incident events by domain and outcome",
			},
			[]string{"domain", "outcome"},
		),

		ProcessingDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "processing_duration_seconds",
				Help:      "Full analysis pipeline duration per event",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"domain"},
		),

		DecisionsPublishedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "decisions_published_total",
				Help:      "Total decisions published to the broker",
			},
			[]string{"domain", "status"},
		),

		ProviderThrottlesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "provider_throttles_total",
				Help:      "Total LLM calls rejected by provider rate limits",
			},
		),

		ProviderRetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "provider_retries_total",
				Help:      "Total LLM retry attempts by error kind",
			},
			[]string{"kind"},
		),

		RejectedCommandsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "rejected_commands_total",
				Help:      "Total diagnostic commands blocked by the whitelist",
			},
		),

		LimiterWaitSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "limiter_wait_seconds",
				Help:      "Most recent forced rate-limiter cooldown in seconds",
			},
		),
	}
	return DefaultMetrics
}

// The Record helpers are nil-safe so packages can instrument themselves
// without caring whether metrics were initialized (they are not in tests).

func RecordEvent(domain, outcome string) {
	if DefaultMetrics != nil {
		DefaultMetrics.EventsTotal.WithLabelValues(domain, outcome).Inc()
	}
}

func RecordProcessingDuration(domain string, seconds float64) {
	if DefaultMetrics != nil {
		DefaultMetrics.ProcessingDurationSeconds.WithLabelValues(domain).Observe(seconds)
	}
}

func RecordDecisionPublished(domain, status string) {
	if DefaultMetrics != nil {
		DefaultMetrics.DecisionsPublishedTotal.WithLabelValues(domain, status).Inc()
	}
}

func RecordProviderThrottle(waitSeconds float64) {
	if DefaultMetrics != nil {
		DefaultMetrics.ProviderThrottlesTotal.Inc()
		DefaultMetrics.LimiterWaitSeconds.Set(waitSeconds)
	}
}

func RecordProviderRetry(kind string) {
	if DefaultMetrics != nil {
		DefaultMetrics.ProviderRetriesTotal.WithLabelValues(kind).Inc()
	}
}

func RecordRejectedCommand() {
	if DefaultMetrics != nil {
		DefaultMetrics.RejectedCommandsTotal.Inc()
	}
}
