// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagnostics

import (
	"strings"
	"unicode/utf8"

	"github.com/jinterlante1206/AleutianRespond/pkg/validation"
)

const (
	// MaxPayloadChars caps alert payload text interpolated into prompts.
	MaxPayloadChars = 1000

	// MaxNamespaceChars matches the DNS label limit for namespace names.
	MaxNamespaceChars = 63
)

// shellMeta are the characters stripped from free text before it reaches a
// prompt. Defense in depth; the whitelist remains the hard control.
const shellMeta = ";|&$`"

// SanitizeFreeText strips shell metacharacters and truncates to limit.
func SanitizeFreeText(text string, limit int) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(shellMeta, r) {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()
	if limit > 0 {
		cleaned = TruncateText(cleaned, limit)
	}
	return cleaned
}

// TruncateText caps s at limit bytes, backing up so the cut never splits a
// multi-byte rune. Split runes would inject invalid UTF-8 into prompts.
func TruncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// SanitizeNamespace cleans a namespace for interpolation into commands and
// prompts, falling back to "default" when nothing valid survives.
func SanitizeNamespace(namespace string) string {
	cleaned := strings.TrimSpace(SanitizeFreeText(namespace, MaxNamespaceChars))
	safe, err := validation.SanitizeKubeName(cleaned)
	if err != nil {
		return "default"
	}
	return safe
}
