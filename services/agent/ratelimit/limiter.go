// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ratelimit implements admission control for LLM provider calls.
//
// The limiter combines a proactive token bucket (sustained requests-per-minute
// budget) with a reactive cooldown driven by provider feedback: a 429 response
// or a Retry-After hint forces a wait window and drains the bucket so that the
// instant the window passes we do not immediately burst back into the quota.
//
// All state lives behind one mutex. Waiting happens outside the lock in short
// increments so concurrent callers re-observe updated state instead of
// sleeping on a stale wait computed before another goroutine reported a 429.
package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// DefaultCooldown is applied when the provider throttles us without saying
// for how long. Matches the free-tier reset interval of the hosted providers.
const DefaultCooldown = 60 * time.Second

// pollInterval bounds each sleep so waiters stay responsive to state changes
// and context cancellation.
const pollInterval = time.Second

// Limiter is a thread-safe token bucket with reactive cooldown.
type Limiter struct {
	rpm             float64
	tokensPerSecond float64
	maxTokens       float64
	enabled         bool

	mu              sync.Mutex
	tokens          float64
	lastRefill      time.Time
	forcedWaitUntil time.Time
}

// NewLimiter creates a limiter allowing requestsPerMinute sustained calls.
// Burst capacity is max(1, round(requestsPerMinute)). A disabled limiter
// (self-hosted backends) admits every caller immediately.
func NewLimiter(requestsPerMinute float64, enabled bool) *Limiter {
	maxTokens := math.Round(requestsPerMinute)
	if maxTokens < 1 {
		maxTokens = 1
	}
	return &Limiter{
		rpm:             requestsPerMinute,
		tokensPerSecond: requestsPerMinute / 60.0,
		maxTokens:       maxTokens,
		enabled:         enabled,
		tokens:          maxTokens,
		lastRefill:      time.Now(),
	}
}

// Acquire blocks until one request unit is available or ctx is done.
// Returns ctx.Err() on timeout or cancellation.
func (l *Limiter) Acquire(ctx context.Context) error {
	if !l.enabled {
		return nil
	}

	for {
		wait := l.tryAcquire(time.Now())
		if wait == 0 {
			return nil
		}

		// Sleep in short increments even when the computed wait exceeds the
		// context deadline: ReportThrottled and UpdateFromHeaders can shorten
		// a forced cooldown while we wait, so the wait is re-derived each
		// iteration rather than trusted once.
		sleep := wait
		if sleep > pollInterval {
			sleep = pollInterval
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// tryAcquire consumes a token if one is available and otherwise returns how
// long the caller must wait. A forced cooldown deadline always wins over
// token accounting.
func (l *Limiter) tryAcquire(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.forcedWaitUntil.IsZero() && now.Before(l.forcedWaitUntil) {
		return l.forcedWaitUntil.Sub(now)
	}

	l.refillLocked(now)

	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return 0
	}

	needed := 1.0 - l.tokens
	return time.Duration(needed / l.tokensPerSecond * float64(time.Second))
}

// refillLocked accrues tokens since the last refill, capped at bucket size.
func (l *Limiter) refillLocked(now time.Time) {
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		l.tokens = math.Min(l.maxTokens, l.tokens+elapsed*l.tokensPerSecond)
		l.lastRefill = now
	}
}

// ReportThrottled records a provider throttle (429). When the provider gave
// no Retry-After hint, hasHint must be false and DefaultCooldown applies.
// The bucket is drained to zero so the first call after the cooldown still
// has to earn a token.
func (l *Limiter) ReportThrottled(retryAfter time.Duration, hasHint bool) {
	if !l.enabled {
		return
	}

	wait := retryAfter
	if !hasHint || wait <= 0 {
		wait = DefaultCooldown
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.forcedWaitUntil = time.Now().Add(wait)
	l.tokens = 0
	l.lastRefill = time.Now()
}

// UpdateFromHeaders opportunistically adjusts the cooldown from response
// metadata. Recognized signals, first resolvable wins:
//
//	Retry-After / X-Retry-After  - seconds or HTTP-date
//	X-RateLimit-Reset            - epoch timestamp of the quota reset
func (l *Limiter) UpdateFromHeaders(headers map[string]string) {
	if !l.enabled || len(headers) == 0 {
		return
	}

	var wait time.Duration
	var found bool
	for _, key := range []string{"Retry-After", "retry-after", "X-Retry-After", "x-retry-after"} {
		if value, ok := headers[key]; ok {
			if wait, found = ParseRetryAfter(value); found {
				break
			}
		}
	}
	if !found {
		for _, key := range []string{"X-RateLimit-Reset", "x-ratelimit-reset"} {
			if value, ok := headers[key]; ok {
				if reset, err := strconv.ParseFloat(value, 64); err == nil {
					until := time.Until(time.Unix(int64(reset), 0))
					if until > 0 {
						wait, found = until, true
					}
				}
				break
			}
		}
	}

	if found && wait > 0 {
		l.mu.Lock()
		l.forcedWaitUntil = time.Now().Add(wait)
		l.mu.Unlock()
	}
}

// ParseRetryAfter parses a Retry-After value, either a plain seconds count
// ("30", "1.5") or an HTTP-date. Dates in the past report false.
func ParseRetryAfter(value string) (time.Duration, bool) {
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds * float64(time.Second)), true
	}
	if t, err := http.ParseTime(value); err == nil {
		until := time.Until(t)
		if until <= 0 {
			return 0, false
		}
		return until, true
	}
	return 0, false
}

// AvailableTokens reports the current token count for monitoring. It does
// not mutate persistent state, so it is safe to poll while callers wait.
func (l *Limiter) AvailableTokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	elapsed := time.Since(l.lastRefill).Seconds()
	return math.Min(l.maxTokens, l.tokens+elapsed*l.tokensPerSecond)
}
