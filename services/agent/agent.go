// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent runs the incident analysis pipeline: ignore filter, dedup
// window, resource discovery, runbook retrieval, diagnostic planning and
// execution, and decision synthesis. Every branch is terminal: one consumed
// event always yields exactly one Decision.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/jinterlante1206/AleutianRespond/services/agent/datatypes"
	"github.com/jinterlante1206/AleutianRespond/services/agent/kube"
	"github.com/jinterlante1206/AleutianRespond/services/agent/observability"
)

var agentTracer = otel.Tracer("aleutian.respond.agent")

// ignorePatterns are the platform's own components. Alerts about them are
// acknowledged but never analyzed, otherwise the agent would chase its own
// infrastructure.
var ignorePatterns = []string{
	"prometheus",
	"alertmanager",
	"grafana",
	"node-exporter",
	"kube-state-metrics",
	"nats",
	"weaviate",
}

// ContextBuilder supplies the runbook knowledge block for an incident.
type ContextBuilder interface {
	BuildContext(ctx context.Context, event *datatypes.IncidentEvent) string
}

// Discoverer lists the live resources in a namespace.
type Discoverer interface {
	Discover(ctx context.Context, namespace string) *kube.DiscoveredResources
}

// Planner proposes the validated diagnostic command plan.
type Planner interface {
	PlanCommands(ctx context.Context, event *datatypes.IncidentEvent, runbookContext, namespace string,
		discovered *kube.DiscoveredResources, matched kube.MatchedResources) []string
}

// Executor runs a diagnostic plan and returns the evidence report.
type Executor interface {
	Execute(ctx context.Context, commands []string) string
}

// DecisionSynthesizer produces the final Decision from gathered evidence.
type DecisionSynthesizer interface {
	Synthesize(ctx context.Context, event *datatypes.IncidentEvent, runbookContext, diagnosticsReport string) *datatypes.Decision
}

// Agent owns one end-to-end analysis pipeline. All collaborators are
// injected; the dedup cache is the only mutable state and is safe for
// concurrent use, so a single Agent may serve multiple broker workers.
type Agent struct {
	dedup       *DedupCache
	contextual  ContextBuilder
	discovery   Discoverer
	planner     Planner
	executor    Executor
	synthesizer DecisionSynthesizer
}

// NewAgent wires the pipeline stages together.
func NewAgent(
	dedup *DedupCache,
	contextBuilder ContextBuilder,
	discovery Discoverer,
	planner Planner,
	executor Executor,
	synthesizer DecisionSynthesizer,
) *Agent {
	return &Agent{
		dedup:       dedup,
		contextual:  contextBuilder,
		discovery:   discovery,
		planner:     planner,
		executor:    executor,
		synthesizer: synthesizer,
	}
}

// Analyze runs the full pipeline for one event and always returns a
// Decision. Unexpected panics in the pipeline stages are converted into a
// zero-confidence fallback Decision rather than crashing the consumer.
func (a *Agent) Analyze(ctx context.Context, event *datatypes.IncidentEvent) (decision *datatypes.Decision) {
	ctx, span := agentTracer.Start(ctx, "Agent.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("incident.event_id", event.EventId),
		attribute.String("incident.service", event.ServiceName),
		attribute.String("incident.domain", event.Domain),
	)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("pipeline panic: %v", r)
			slog.Error("Analysis pipeline panicked",
				"event_id", event.EventId, "panic", r)
			span.RecordError(err)
			span.SetStatus(codes.Error, "pipeline panic")
			observability.RecordEvent(event.Domain, observability.OutcomeFailed)
			decision = datatypes.NewFallbackDecision(event.EventId, err.Error())
		}
		observability.RecordProcessingDuration(event.Domain, time.Since(started).Seconds())
	}()

	if reason, ignored := ignoredService(event.ServiceName); ignored {
		slog.Info("Ignoring platform self-alert",
			"event_id", event.EventId, "service", event.ServiceName, "pattern", reason)
		span.SetAttributes(attribute.String("incident.outcome", observability.OutcomeIgnored))
		observability.RecordEvent(event.Domain, observability.OutcomeIgnored)
		d := datatypes.NewDecision(event.EventId)
		d.Analysis = fmt.Sprintf("Ignored: service %q matches platform component pattern %q", event.ServiceName, reason)
		return d
	}

	if a.dedup.Seen(event.ServiceName, event.Domain) {
		slog.Info("Suppressing recently processed incident",
			"event_id", event.EventId, "service", event.ServiceName, "domain", event.Domain)
		span.SetAttributes(attribute.String("incident.outcome", observability.OutcomeDeduplicated))
		observability.RecordEvent(event.Domain, observability.OutcomeDeduplicated)
		d := datatypes.NewDecision(event.EventId)
		d.Analysis = fmt.Sprintf("Recently processed: incident for (%s, %s) is within the dedup window", event.ServiceName, event.Domain)
		return d
	}
	a.dedup.Mark(event.ServiceName, event.Domain)

	namespace := event.Namespace()

	// Discovery and runbook retrieval have no data dependency; run both
	// concurrently. Neither can fail: each degrades internally.
	var (
		discovered     *kube.DiscoveredResources
		runbookContext string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		discovered = a.discovery.Discover(gctx, namespace)
		return nil
	})
	g.Go(func() error {
		runbookContext = a.contextual.BuildContext(gctx, event)
		return nil
	})
	_ = g.Wait()

	matched := kube.MatchResources(event.ServiceName, discovered)

	plan := a.planner.PlanCommands(ctx, event, runbookContext, namespace, discovered, matched)
	report := a.executor.Execute(ctx, plan)

	decision = a.synthesizer.Synthesize(ctx, event, runbookContext, report)

	outcome := observability.OutcomeProcessed
	if decision.ConfidenceScore == 0 {
		outcome = observability.OutcomeFailed
	}
	span.SetAttributes(
		attribute.String("incident.outcome", outcome),
		attribute.Float64("decision.confidence", decision.ConfidenceScore),
		attribute.Int("decision.actions", len(decision.ProposedActions)),
	)
	observability.RecordEvent(event.Domain, outcome)
	return decision
}

// ignoredService reports whether the service name matches a platform
// component pattern, returning the matching pattern.
func ignoredService(serviceName string) (string, bool) {
	name := strings.ToLower(serviceName)
	for _, pattern := range ignorePatterns {
		if strings.Contains(name, pattern) {
			return pattern, true
		}
	}
	return "", false
}
