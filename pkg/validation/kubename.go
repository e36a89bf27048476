// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// subprocess calls or prompts. Using these validators prevents injection
// attacks (command injection, flag smuggling, path traversal).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// namePattern matches a valid RFC 1123 DNS label, the format Kubernetes
// requires for namespace and most resource names.
// Allows: lowercase letters, digits, hyphens (not leading or trailing)
// Max length: 63 characters
var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?$`)

// ValidateKubeName validates a Kubernetes object name before it is
// interpolated into a kubectl invocation.
//
// Valid names:
//   - 1-63 characters
//   - Lowercase letters a-z
//   - Digits 0-9
//   - Hyphens (-) except at the start or end
//
// Returns an error if the name is invalid.
//
// Example:
//
//	if err := validation.ValidateKubeName(namespace); err != nil {
//	    return nil, fmt.Errorf("invalid namespace: %w", err)
//	}
//	// Safe to use as a kubectl argument
func ValidateKubeName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid name format: %q (must be 1-63 lowercase alphanumeric chars or hyphens, starting and ending with an alphanumeric)", name)
	}

	return nil
}

// SanitizeKubeName normalizes and validates an object name.
// Returns the lowercase name if valid, or an error if invalid.
//
// Use this when you need both validation and normalization:
//
//	safeName, err := validation.SanitizeKubeName(userInput)
//	if err != nil {
//	    return err
//	}
//	// safeName is lowercase and validated
func SanitizeKubeName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if err := ValidateKubeName(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
