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
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSFetcher reads runbook bodies out of Google Cloud Storage.
type GCSFetcher struct {
	client *storage.Client
}

// NewGCSFetcher creates a fetcher. saKeyPath may be empty, in which case
// application default credentials apply.
func NewGCSFetcher(ctx context.Context, saKeyPath string) (*GCSFetcher, error) {
	var opts []option.ClientOption
	if saKeyPath != "" {
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSFetcher{client: client}, nil
}

// Fetch reads the object at gs://bucket/path and returns it as text.
func (f *GCSFetcher) Fetch(ctx context.Context, bucket, path string) (string, error) {
	reader, err := f.client.Bucket(bucket).Object(path).NewReader(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open gs://%s/%s: %w", bucket, path, err)
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read gs://%s/%s: %w", bucket, path, err)
	}
	return string(body), nil
}

// Close releases the underlying storage client.
func (f *GCSFetcher) Close() error {
	return f.client.Close()
}
