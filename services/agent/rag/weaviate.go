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
	"errors"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// RunbookClassName is the Weaviate class holding runbook index entries.
const RunbookClassName = "Runbook"

// WeaviateSearcher resolves query vectors to runbook references via a
// top-1 nearVector search over the runbook index class.
type WeaviateSearcher struct {
	client        *weaviate.Client
	className     string
	defaultBucket string
}

// NewWeaviateSearcher creates a searcher over the runbook class.
// defaultBucket is used when an index entry carries no bucket of its own.
func NewWeaviateSearcher(client *weaviate.Client, defaultBucket string) (*WeaviateSearcher, error) {
	if client == nil {
		return nil, errors.New("weaviate client must not be nil")
	}
	return &WeaviateSearcher{
		client:        client,
		className:     RunbookClassName,
		defaultBucket: defaultBucket,
	}, nil
}

// Search returns the closest runbook reference for the vector, or nil when
// the index has no entry for it.
func (s *WeaviateSearcher) Search(ctx context.Context, vector []float32) (*RunbookRef, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	// certainty is always [0,1] regardless of the index distance metric.
	fields := []graphql.Field{
		{Name: "title"},
		{Name: "bucket"},
		{Name: "path"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search error: %s", result.Errors[0].Message)
	}

	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	objects, ok := data[s.className].([]interface{})
	if !ok || len(objects) == 0 {
		return nil, nil
	}
	obj, ok := objects[0].(map[string]interface{})
	if !ok {
		return nil, nil
	}

	ref := &RunbookRef{
		Title:  getString(obj, "title"),
		Bucket: getString(obj, "bucket"),
		Path:   getString(obj, "path"),
	}
	if ref.Bucket == "" {
		ref.Bucket = s.defaultBucket
	}
	if additional, ok := obj["_additional"].(map[string]interface{}); ok {
		if certainty, ok := additional["certainty"].(float64); ok {
			ref.Certainty = certainty
		}
	}

	if ref.Path == "" {
		slog.Warn("Runbook index entry has no storage path, skipping", "title", ref.Title)
		return nil, nil
	}
	return ref, nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
