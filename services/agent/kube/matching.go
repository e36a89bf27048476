// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kube

import "strings"

// MatchedResources are the discovered names that plausibly belong to the
// alerting service.
type MatchedResources struct {
	Pods        []string
	Deployments []string
}

// MatchResources finds discovered pods and deployments whose names contain
// the service name or one of its hyphen-delimited parts, case-insensitively.
// An empty service name matches nothing.
func MatchResources(serviceName string, discovered *DiscoveredResources) MatchedResources {
	tokens := matchTokens(serviceName)
	if len(tokens) == 0 || discovered == nil {
		return MatchedResources{}
	}
	return MatchedResources{
		Pods:        filterByTokens(discovered.Pods, tokens),
		Deployments: filterByTokens(discovered.Deployments, tokens),
	}
}

// matchTokens returns the lowercased service name plus its hyphen parts.
// Fragments under 3 chars match too much to be useful.
func matchTokens(serviceName string) []string {
	name := strings.ToLower(strings.TrimSpace(serviceName))
	if name == "" {
		return nil
	}
	tokens := []string{name}
	for _, part := range strings.Split(name, "-") {
		if len(part) >= 3 && part != name {
			tokens = append(tokens, part)
		}
	}
	return tokens
}

func filterByTokens(names, tokens []string) []string {
	var matched []string
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, token := range tokens {
			if strings.Contains(lower, token) {
				matched = append(matched, name)
				break
			}
		}
	}
	return matched
}
