// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm wraps the model provider with the resilience layer every
// caller in the agent shares: proactive rate limiting, reactive cooldowns
// fed back from provider responses, and per-kind retry schedules.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jinterlante1206/AleutianRespond/services/agent/observability"
	"github.com/jinterlante1206/AleutianRespond/services/agent/ratelimit"
)

// Retry schedule constants. Throttled waits prefer the provider hint; the
// exponential fallbacks mirror the per-kind budgets in the error taxonomy.
const (
	throttledBase    = 10 * time.Second
	throttledCeiling = 120 * time.Second
	transientBase    = 5 * time.Second
	transientCeiling = 60 * time.Second
	unexpectedBase   = 2 * time.Second

	// DefaultCallTimeout bounds a single provider round trip.
	DefaultCallTimeout = 120 * time.Second
)

// GenerateOptions tunes one generation call.
type GenerateOptions struct {
	System      string
	Temperature float32
	MaxTokens   int
}

// ClientConfig configures the retrying client.
type ClientConfig struct {
	// MaxRetries is the total number of attempts per call (not additional
	// retries). Values below 1 are coerced to 1.
	MaxRetries int

	// CallTimeout bounds each individual provider call. Zero means
	// DefaultCallTimeout.
	CallTimeout time.Duration
}

// Client is the retrying, rate-limited entry point for all LLM traffic.
// Safe for concurrent use; the limiter serializes admission.
type Client struct {
	provider    Provider
	limiter     *ratelimit.Limiter
	maxRetries  int
	callTimeout time.Duration

	// sleep is swapped out in tests so retry schedules stay observable
	// without real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient wires a provider to the shared rate limiter.
func NewClient(provider Provider, limiter *ratelimit.Limiter, cfg ClientConfig) *Client {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Client{
		provider:    provider,
		limiter:     limiter,
		maxRetries:  cfg.MaxRetries,
		callTimeout: cfg.CallTimeout,
		sleep:       sleepContext,
	}
}

// Generate runs one prompt through the provider, retrying per the error
// taxonomy. Fails only after exhausting all attempts.
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return "", fmt.Errorf("rate limit acquire: %w", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		result, err := c.provider.Complete(callCtx, CompletionRequest{
			System:      opts.System,
			Prompt:      prompt,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
		})
		cancel()

		if err == nil {
			c.limiter.UpdateFromHeaders(result.Headers)
			return result.Text, nil
		}

		lastErr = err
		if waitErr := c.backoff(ctx, Classify(err), attempt); waitErr != nil {
			return "", waitErr
		}
	}

	return "", fmt.Errorf("llm call failed after %d attempts: %w", c.maxRetries, lastErr)
}

// Embed computes an embedding with the same retry shape as Generate, except
// non-throttle failures all share the generic backoff branch.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("rate limit acquire: %w", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		vector, err := c.provider.Embed(callCtx, text)
		cancel()

		if err == nil {
			return vector, nil
		}

		lastErr = err
		classified := Classify(err)
		if classified.Kind == KindThrottled {
			if waitErr := c.backoff(ctx, classified, attempt); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		if attempt == c.maxRetries-1 {
			break
		}
		wait := unexpectedBase * (1 << attempt)
		slog.Warn("Embedding call failed, retrying",
			"attempt", attempt+1,
			"max_attempts", c.maxRetries,
			"wait", wait,
			"error", err)
		if waitErr := c.sleep(ctx, wait); waitErr != nil {
			return nil, waitErr
		}
	}

	return nil, fmt.Errorf("embedding call failed after %d attempts: %w", c.maxRetries, lastErr)
}

// backoff reports throttles to the limiter and sleeps per the error kind.
func (c *Client) backoff(ctx context.Context, perr *ProviderError, attempt int) error {
	var wait time.Duration
	observability.RecordProviderRetry(perr.Kind.String())

	switch perr.Kind {
	case KindThrottled:
		c.limiter.ReportThrottled(perr.RetryAfter, perr.HasRetryAfter)
		wait = throttledBase * (1 << attempt)
		if perr.HasRetryAfter {
			wait = perr.RetryAfter
		}
		if wait > throttledCeiling {
			wait = throttledCeiling
		}
		observability.RecordProviderThrottle(wait.Seconds())
		slog.Warn("Provider throttled request",
			"attempt", attempt+1,
			"max_attempts", c.maxRetries,
			"wait", wait,
			"retry_after_hint", perr.HasRetryAfter)

	case KindTransient:
		wait = transientBase * (1 << attempt)
		if wait > transientCeiling {
			wait = transientCeiling
		}
		slog.Warn("Provider transient error",
			"attempt", attempt+1,
			"max_attempts", c.maxRetries,
			"wait", wait,
			"error", perr.Err)

	default:
		if attempt == c.maxRetries-1 {
			// Last attempt already failed; no point sleeping before the
			// terminal error surfaces.
			return nil
		}
		wait = unexpectedBase * (1 << attempt)
		slog.Warn("Provider unexpected error",
			"attempt", attempt+1,
			"max_attempts", c.maxRetries,
			"wait", wait,
			"error", perr.Err)
	}

	return c.sleep(ctx, wait)
}

// sleepContext waits for d unless ctx finishes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
