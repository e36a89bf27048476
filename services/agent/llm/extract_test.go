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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONCleanInput(t *testing.T) {
	input := `{"analysis": "pod is crash looping", "confidence_score": 0.8}`

	got := ExtractJSON(input)
	require.NotNil(t, got)

	var want, parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(input), &want))
	require.NoError(t, json.Unmarshal(got, &parsed))
	assert.Equal(t, want, parsed, "clean JSON must round-trip unchanged")
}

func TestExtractJSONFencedBlock(t *testing.T) {
	input := "Here is my answer:\n```json\n{\"commands\": [\"kubectl get pods -n default\"]}\n```\nLet me know if you need more."

	got := ExtractJSON(input)
	require.NotNil(t, got)

	var parsed struct {
		Commands []string `json:"commands"`
	}
	require.NoError(t, json.Unmarshal(got, &parsed))
	assert.Equal(t, []string{"kubectl get pods -n default"}, parsed.Commands)
}

func TestExtractJSONFencedBlockWithoutLanguageTag(t *testing.T) {
	input := "```\n{\"a\": 1}\n```"
	got := ExtractJSON(input)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"a": 1}`, string(got))
}

func TestExtractJSONSurroundedByProse(t *testing.T) {
	input := `Based on the runbook, the answer is {"analysis": "scale up", "proposed_actions": []} which should resolve it.`

	got := ExtractJSON(input)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"analysis": "scale up", "proposed_actions": []}`, string(got))
}

func TestExtractJSONNestedBracesInStrings(t *testing.T) {
	input := `noise {"analysis": "error was {code: 500}", "params": {"a": "}"}} trailing`

	got := ExtractJSON(input)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"analysis": "error was {code: 500}", "params": {"a": "}"}}`, string(got))
}

func TestExtractJSONArray(t *testing.T) {
	input := `The commands are ["kubectl get pods -n default", "kubectl top pods -n default"] as requested.`

	got := ExtractJSON(input)
	require.NotNil(t, got)

	var commands []string
	require.NoError(t, json.Unmarshal(got, &commands))
	assert.Len(t, commands, 2)
}

func TestExtractJSONNothingParseable(t *testing.T) {
	assert.Nil(t, ExtractJSON("I am unable to answer in JSON right now."))
	assert.Nil(t, ExtractJSON(""))
	assert.Nil(t, ExtractJSON("unbalanced { brace"))
}
