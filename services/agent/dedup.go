// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"sync"
	"time"
)

// DefaultDedupTTL is how long a (service, domain) pair stays suppressed
// after processing.
const DefaultDedupTTL = 5 * time.Minute

type dedupKey struct {
	service string
	domain  string
}

// DedupCache suppresses repeat processing of the same incident source
// within a TTL window. Entries older than twice the TTL are purged on
// access. Safe for concurrent use.
type DedupCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[dedupKey]time.Time

	// now is swapped out in tests.
	now func() time.Time
}

// NewDedupCache creates a cache with the given TTL; non-positive values
// fall back to DefaultDedupTTL.
func NewDedupCache(ttl time.Duration) *DedupCache {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &DedupCache{
		ttl:     ttl,
		entries: make(map[dedupKey]time.Time),
		now:     time.Now,
	}
}

// Seen reports whether the (service, domain) pair was processed within the
// TTL. It does not record anything: the timestamp refreshes only when the
// event actually proceeds, via Mark.
func (c *DedupCache) Seen(service, domain string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.purgeLocked(now)

	processedAt, ok := c.entries[dedupKey{service: service, domain: domain}]
	return ok && now.Sub(processedAt) < c.ttl
}

// Mark records that processing started for the pair.
func (c *DedupCache) Mark(service, domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.purgeLocked(now)
	c.entries[dedupKey{service: service, domain: domain}] = now
}

// purgeLocked drops entries older than twice the TTL. Caller holds mu.
func (c *DedupCache) purgeLocked(now time.Time) {
	horizon := 2 * c.ttl
	for key, processedAt := range c.entries {
		if now.Sub(processedAt) > horizon {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of live entries, for tests and introspection.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
