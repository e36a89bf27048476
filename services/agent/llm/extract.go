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
	"encoding/json"
	"strings"
)

// ExtractJSON recovers a JSON document from unstructured model output.
// It tries, in order: the trimmed text itself, the contents of the first
// fenced code block, the first balanced {...} span, and the first balanced
// [...] span. Returns nil when nothing parseable is found so callers can
// apply their own recovery strategy instead of handling an error.
func ExtractJSON(text string) []byte {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed)
	}

	if fenced := fencedBlock(trimmed); fenced != "" && json.Valid([]byte(fenced)) {
		return []byte(fenced)
	}

	if span := balancedSpan(trimmed, '{', '}'); span != "" && json.Valid([]byte(span)) {
		return []byte(span)
	}

	if span := balancedSpan(trimmed, '[', ']'); span != "" && json.Valid([]byte(span)) {
		return []byte(span)
	}

	return nil
}

// fencedBlock returns the contents of the first ``` fenced block, with any
// language tag on the opening line stripped.
func fencedBlock(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return ""
	}
	rest := text[start+3:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	block := rest[:end]
	// Drop a language tag like "json" on the opening line.
	if newline := strings.IndexByte(block, '\n'); newline >= 0 {
		firstLine := strings.TrimSpace(block[:newline])
		if firstLine != "" && !strings.ContainsAny(firstLine, "{}[]\"") {
			block = block[newline+1:]
		}
	}
	return strings.TrimSpace(block)
}

// balancedSpan finds the first open..close span with balanced nesting,
// skipping delimiters inside JSON string literals.
func balancedSpan(text string, open, closing byte) string {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
