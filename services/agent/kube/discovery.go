// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kube lists the live resources in an incident's namespace so the
// diagnostic planner works against real names instead of guessed ones. All
// queries are read-only listings through the cluster CLI.
package kube

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// listTimeout bounds one resource-type listing. A slow or unreachable
	// API server costs at most this much per type.
	listTimeout = 10 * time.Second

	// maxNamesPerType keeps the prompt small in large namespaces.
	maxNamesPerType = 20
)

// DiscoveredResources holds the bare resource names found in a namespace.
type DiscoveredResources struct {
	Pods        []string
	Deployments []string
	Services    []string
	ReplicaSets []string
}

// Empty reports whether discovery found nothing at all.
func (d *DiscoveredResources) Empty() bool {
	return len(d.Pods) == 0 && len(d.Deployments) == 0 &&
		len(d.Services) == 0 && len(d.ReplicaSets) == 0
}

// Discovery lists cluster resources via the kubectl binary.
type Discovery struct {
	// binary is the CLI to invoke; tests point it at a stub.
	binary string
}

// NewDiscovery returns a Discovery using the kubectl on PATH.
func NewDiscovery() *Discovery {
	return &Discovery{binary: "kubectl"}
}

// Discover lists pods, deployments, services and replicasets in the
// namespace in parallel. A failing or timed-out listing yields an empty
// slice for that type; the other listings proceed regardless.
func (d *Discovery) Discover(ctx context.Context, namespace string) *DiscoveredResources {
	discovered := &DiscoveredResources{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for kind, dest := range map[string]*[]string{
		"pods":        &discovered.Pods,
		"deployments": &discovered.Deployments,
		"services":    &discovered.Services,
		"replicasets": &discovered.ReplicaSets,
	} {
		kind, dest := kind, dest
		g.Go(func() error {
			names := d.list(gctx, kind, namespace)
			mu.Lock()
			*dest = names
			mu.Unlock()
			return nil
		})
	}
	// Goroutines never return errors; failures degrade to empty lists.
	_ = g.Wait()

	slog.Info("Discovered namespace resources",
		"namespace", namespace,
		"pods", len(discovered.Pods),
		"deployments", len(discovered.Deployments),
		"services", len(discovered.Services),
		"replicasets", len(discovered.ReplicaSets))
	return discovered
}

// list runs one `kubectl get <kind> -o name -n <namespace>` with its own
// timeout and parses the output into bare names.
func (d *Discovery) list(ctx context.Context, kind, namespace string) []string {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binary, "get", kind, "-o", "name", "-n", namespace)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		slog.Warn("Resource listing failed",
			"kind", kind,
			"namespace", namespace,
			"error", err,
			"stderr", strings.TrimSpace(stderr.String()))
		return nil
	}
	return parseNames(stdout.String(), maxNamesPerType)
}

// parseNames converts `-o name` output (one `kind/name` per line) into bare
// names, capped at limit.
func parseNames(output string, limit int) []string {
	var names []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if idx := strings.IndexByte(line, '/'); idx >= 0 {
			line = line[idx+1:]
		}
		if line == "" {
			continue
		}
		names = append(names, line)
		if len(names) >= limit {
			break
		}
	}
	return names
}
