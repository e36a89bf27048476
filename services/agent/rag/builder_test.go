// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rag

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/jinterlante1206/AleutianRespond/services/agent/datatypes"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	query  string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.query = text
	return f.vector, f.err
}

type fakeSearcher struct {
	ref *RunbookRef
	err error
}

func (f *fakeSearcher) Search(ctx context.Context, vector []float32) (*RunbookRef, error) {
	return f.ref, f.err
}

type fakeFetcher struct {
	content string
	err     error
	bucket  string
	path    string
}

func (f *fakeFetcher) Fetch(ctx context.Context, bucket, path string) (string, error) {
	f.bucket = bucket
	f.path = path
	return f.content, f.err
}

func testEvent(t *testing.T) *datatypes.IncidentEvent {
	t.Helper()
	return &datatypes.IncidentEvent{
		EventId:     "evt-1",
		Domain:      "k8s",
		ServiceName: "payment-service",
		OriginalEvent: datatypes.OriginalEvent{
			RawPayload: json.RawMessage(`"CrashLoopBackOff detected"`),
		},
	}
}

func TestBuildContextHappyPath(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	searcher := &fakeSearcher{ref: &RunbookRef{
		Title:  "Pod CrashLoop Recovery",
		Bucket: "runbooks",
		Path:   "k8s/crashloop.md",
	}}
	fetcher := &fakeFetcher{content: "1. Check recent deploys.\n2. Inspect logs."}

	got := NewBuilder(embedder, searcher, fetcher).BuildContext(context.Background(), testEvent(t))

	assert.Contains(t, got, "RELEVANT RUNBOOK FOUND:")
	assert.Contains(t, got, "Title: Pod CrashLoop Recovery")
	assert.Contains(t, got, "Check recent deploys")
	assert.Equal(t, "runbooks", fetcher.bucket)
	assert.Equal(t, "k8s/crashloop.md", fetcher.path)
	// The query combines the service name with the alert payload.
	assert.Contains(t, embedder.query, "payment-service")
	assert.Contains(t, embedder.query, "CrashLoopBackOff")
}

func TestBuildContextNoMatch(t *testing.T) {
	builder := NewBuilder(
		&fakeEmbedder{vector: []float32{0.1}},
		&fakeSearcher{ref: nil},
		&fakeFetcher{},
	)

	got := builder.BuildContext(context.Background(), testEvent(t))
	assert.Equal(t, ContextNoRunbook, got)
}

func TestBuildContextEmbedFailure(t *testing.T) {
	builder := NewBuilder(
		&fakeEmbedder{err: errors.New("provider down")},
		&fakeSearcher{},
		&fakeFetcher{},
	)

	got := builder.BuildContext(context.Background(), testEvent(t))
	assert.Equal(t, ContextUnavailable, got)
}

func TestBuildContextSearchFailure(t *testing.T) {
	builder := NewBuilder(
		&fakeEmbedder{vector: []float32{0.1}},
		&fakeSearcher{err: errors.New("weaviate unreachable")},
		&fakeFetcher{},
	)

	got := builder.BuildContext(context.Background(), testEvent(t))
	assert.Equal(t, ContextUnavailable, got)
}

func TestBuildContextFetchFailure(t *testing.T) {
	builder := NewBuilder(
		&fakeEmbedder{vector: []float32{0.1}},
		&fakeSearcher{ref: &RunbookRef{Title: "t", Bucket: "b", Path: "p"}},
		&fakeFetcher{err: errors.New("object not found")},
	)

	got := builder.BuildContext(context.Background(), testEvent(t))
	assert.Equal(t, ContextFetchFailed, got)
}

func TestBuildContextTruncatesLongRunbooks(t *testing.T) {
	builder := NewBuilder(
		&fakeEmbedder{vector: []float32{0.1}},
		&fakeSearcher{ref: &RunbookRef{Title: "big", Bucket: "b", Path: "p"}},
		&fakeFetcher{content: strings.Repeat("x", MaxRunbookChars*2)},
	)

	got := builder.BuildContext(context.Background(), testEvent(t))
	assert.Contains(t, got, "Title: big")
	assert.Equal(t, MaxRunbookChars, strings.Count(got, "x"))
}

func TestBuildContextTruncationKeepsValidUTF8(t *testing.T) {
	// Place a multi-byte rune straddling the cap: the cut must back up to
	// the rune boundary instead of emitting a partial encoding.
	content := strings.Repeat("x", MaxRunbookChars-1) + "é" + strings.Repeat("y", 10)
	builder := NewBuilder(
		&fakeEmbedder{vector: []float32{0.1}},
		&fakeSearcher{ref: &RunbookRef{Title: "multirune", Bucket: "b", Path: "p"}},
		&fakeFetcher{content: content},
	)

	got := builder.BuildContext(context.Background(), testEvent(t))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, MaxRunbookChars-1, strings.Count(got, "x"))
	assert.NotContains(t, got, "y")
}
