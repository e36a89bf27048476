// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/jinterlante1206/AleutianRespond/services/agent/ratelimit"
)

// ErrorKind partitions provider failures into the three classes the retry
// driver cares about. The classification happens exactly once, at the call
// boundary; everything above consumes the tagged error.
type ErrorKind int

const (
	// KindThrottled means the provider rejected the call for quota reasons
	// (HTTP 429). Retryable after a cooldown; may carry a Retry-After hint.
	KindThrottled ErrorKind = iota

	// KindTransient means a provider-side outage (5xx, connection reset).
	// Retryable with exponential backoff.
	KindTransient

	// KindFatal covers everything else: bad requests, auth failures,
	// unexpected local errors. Retried with a short backoff only because the
	// cause may be environmental; never treated as a quota signal.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindThrottled:
		return "throttled"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ProviderError is the tagged result of classifying a raw provider failure.
type ProviderError struct {
	Kind          ErrorKind
	RetryAfter    time.Duration
	HasRetryAfter bool
	Err           error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider %s error: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsThrottled reports whether err classifies as a provider quota rejection.
func IsThrottled(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Kind == KindThrottled
}

// retryAfterPattern matches the "retry after N" phrasing some providers put
// in error bodies when no Retry-After header is available.
var retryAfterPattern = regexp.MustCompile(`retry after (\d+(?:\.\d+)?)`)

// Classify decides the error kind for a raw provider failure. Errors that
// are already classified pass through unchanged so fakes and wrapped calls
// compose.
func Classify(err error) *ProviderError {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}

	kind := KindFatal
	var status int

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == 429:
		kind = KindThrottled
	case status >= 500 && status <= 599:
		kind = KindTransient
	}

	classified := &ProviderError{Kind: kind, Err: err}
	if kind == KindThrottled {
		if hint, ok := extractRetryAfter(err); ok {
			classified.RetryAfter = hint
			classified.HasRetryAfter = true
		}
	}
	return classified
}

// extractRetryAfter digs a retry hint out of a throttling error: structured
// header metadata first, then the "retry after N" message pattern as a last
// resort.
func extractRetryAfter(err error) (time.Duration, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		// Some gateways stash the header value in the error code field.
		if code, ok := apiErr.Code.(string); ok {
			if d, ok := ratelimit.ParseRetryAfter(code); ok {
				return d, true
			}
		}
	}

	message := strings.ToLower(err.Error())
	if match := retryAfterPattern.FindStringSubmatch(message); match != nil {
		if seconds, convErr := strconv.ParseFloat(match[1], 64); convErr == nil && seconds > 0 {
			return time.Duration(seconds * float64(time.Second)), true
		}
	}
	return 0, false
}
