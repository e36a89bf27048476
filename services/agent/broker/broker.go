// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package broker connects the agent to NATS: it consumes incident events
// from the per-domain event subjects and publishes the resulting decisions
// to the matching decision subjects.
package broker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/jinterlante1206/AleutianRespond/services/agent/datatypes"
	"github.com/jinterlante1206/AleutianRespond/services/agent/observability"
)

const (
	// QueueGroup makes multiple agent replicas share the event stream
	// instead of each processing every event.
	QueueGroup = "respond-agents"

	decisionSubjectPrefix = "decisions."
)

// EventSubjects are the inbound per-domain alert subjects.
var EventSubjects = []string{"events.k8s", "events.infra", "events.db"}

// Analyzer is the pipeline boundary the broker drives.
type Analyzer interface {
	Analyze(ctx context.Context, event *datatypes.IncidentEvent) *datatypes.Decision
}

// Broker consumes incident events and publishes decisions.
type Broker struct {
	nc       *nats.Conn
	analyzer Analyzer
	subs     []*nats.Subscription
}

// New creates a broker over an established NATS connection.
func New(nc *nats.Conn, analyzer Analyzer) *Broker {
	return &Broker{nc: nc, analyzer: analyzer}
}

// Run subscribes to all event subjects and blocks until ctx is cancelled,
// then drains the subscriptions so in-flight handlers finish.
func (b *Broker) Run(ctx context.Context) error {
	for _, subject := range EventSubjects {
		subject := subject
		sub, err := b.nc.QueueSubscribe(subject, QueueGroup, func(msg *nats.Msg) {
			b.handle(ctx, msg.Data)
		})
		if err != nil {
			b.drain()
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
		slog.Info("Subscribed to event subject", "subject", subject, "queue", QueueGroup)
	}

	<-ctx.Done()

	slog.Info("Shutting down broker, draining subscriptions")
	b.drain()
	return nil
}

// handle processes one inbound message end to end. Failures are logged and
// counted, never propagated: a bad message must not take the consumer down.
func (b *Broker) handle(ctx context.Context, data []byte) {
	subject, payload, err := b.process(ctx, data)
	if err != nil {
		slog.Error("Failed to process incident event", "error", err)
		return
	}

	if err := b.nc.Publish(subject, payload); err != nil {
		slog.Error("Failed to publish decision", "subject", subject, "error", err)
		observability.RecordDecisionPublished(domainOf(subject), "error")
		return
	}
	observability.RecordDecisionPublished(domainOf(subject), "success")
}

// process decodes the event, runs the analysis pipeline, and encodes the
// decision with its outbound subject.
func (b *Broker) process(ctx context.Context, data []byte) (subject string, payload []byte, err error) {
	event, err := datatypes.DecodeIncidentEvent(data)
	if err != nil {
		observability.RecordEvent("unknown", observability.OutcomeFailed)
		return "", nil, fmt.Errorf("invalid incident event: %w", err)
	}

	slog.Info("Consuming incident event",
		"event_id", event.EventId,
		"service", event.ServiceName,
		"domain", event.Domain)

	decision := b.analyzer.Analyze(ctx, event)

	payload, err = decision.Encode()
	if err != nil {
		return "", nil, err
	}
	return DecisionSubject(event.Domain), payload, nil
}

// drain drains every live subscription; errors are logged only.
func (b *Broker) drain() {
	for _, sub := range b.subs {
		if err := sub.Drain(); err != nil {
			slog.Warn("Failed to drain subscription", "subject", sub.Subject, "error", err)
		}
	}
	b.subs = nil
}

// DecisionSubject maps an event domain to its outbound subject.
func DecisionSubject(domain string) string {
	if domain == "" {
		domain = "unknown"
	}
	return decisionSubjectPrefix + domain
}

func domainOf(subject string) string {
	return subject[len(decisionSubjectPrefix):]
}
