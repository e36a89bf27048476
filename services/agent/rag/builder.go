// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rag builds the knowledge context for an incident: embed a query
// derived from the event, find the closest runbook in the vector store, and
// pull its body from object storage. Every failure path degrades to a
// placeholder string so the analysis pipeline never blocks on retrieval.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/jinterlante1206/AleutianRespond/services/agent/datatypes"
)

// MaxRunbookChars caps the runbook body injected into the prompt.
const MaxRunbookChars = 3000

// Placeholder contexts returned when retrieval degrades.
const (
	ContextNoRunbook   = "No specific runbook found. Use general troubleshooting."
	ContextFetchFailed = "Runbook found but failed to retrieve content."
	ContextUnavailable = "Context retrieval failed."
)

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher finds the single closest runbook reference for a query vector.
// A nil reference with a nil error means nothing matched.
type Searcher interface {
	Search(ctx context.Context, vector []float32) (*RunbookRef, error)
}

// Fetcher retrieves a runbook body from object storage.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, path string) (string, error)
}

// RunbookRef points at a stored runbook document.
type RunbookRef struct {
	Title     string
	Bucket    string
	Path      string
	Certainty float64
}

// Builder assembles the runbook context block for one incident.
type Builder struct {
	embedder Embedder
	searcher Searcher
	fetcher  Fetcher
}

// NewBuilder wires the three retrieval stages together.
func NewBuilder(embedder Embedder, searcher Searcher, fetcher Fetcher) *Builder {
	return &Builder{
		embedder: embedder,
		searcher: searcher,
		fetcher:  fetcher,
	}
}

// BuildContext returns the runbook block for the event, or a placeholder
// string describing how far retrieval got. It never returns an error: a
// missing runbook is a normal condition, not a pipeline failure.
func (b *Builder) BuildContext(ctx context.Context, event *datatypes.IncidentEvent) string {
	query := fmt.Sprintf("%s %s", event.ServiceName, event.PayloadText())

	vector, err := b.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("Runbook retrieval failed at embedding", "event_id", event.EventId, "error", err)
		return ContextUnavailable
	}

	ref, err := b.searcher.Search(ctx, vector)
	if err != nil {
		slog.Warn("Runbook retrieval failed at search", "event_id", event.EventId, "error", err)
		return ContextUnavailable
	}
	if ref == nil {
		slog.Info("No runbook matched incident", "event_id", event.EventId, "service", event.ServiceName)
		return ContextNoRunbook
	}

	slog.Info("Found runbook for incident",
		"event_id", event.EventId,
		"title", ref.Title,
		"certainty", ref.Certainty)

	content, err := b.fetcher.Fetch(ctx, ref.Bucket, ref.Path)
	if err != nil {
		slog.Warn("Runbook body fetch failed",
			"event_id", event.EventId,
			"bucket", ref.Bucket,
			"path", ref.Path,
			"error", err)
		return ContextFetchFailed
	}

	if len(content) > MaxRunbookChars {
		// Back up to a rune boundary so the cap never emits invalid UTF-8.
		cut := MaxRunbookChars
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}

	return fmt.Sprintf("RELEVANT RUNBOOK FOUND:\nTitle: %s\nContent:\n%s", ref.Title, content)
}
