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
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinterlante1206/AleutianRespond/services/agent/datatypes"
	"github.com/jinterlante1206/AleutianRespond/services/agent/llm"
)

// scriptedGenerator returns queued responses in order, repeating the last
// one once exhausted.
type scriptedGenerator struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	i := g.calls
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	g.calls++
	return g.responses[i], nil
}

func synthEvent() *datatypes.IncidentEvent {
	return &datatypes.IncidentEvent{
		EventId:     "evt-42",
		Domain:      "k8s",
		ServiceName: "checkout",
		OriginalEvent: datatypes.OriginalEvent{
			RawPayload: json.RawMessage(`"CrashLoopBackOff"`),
		},
	}
}

const validDecisionJSON = `{
	"analysis": "Pod is crash-looping after the last deploy.",
	"confidence_score": 0.85,
	"proposed_actions": [
		{
			"action_type": "restart_pod",
			"target": "checkout-7f9c",
			"params": {"namespace": "default"},
			"reasoning": "Clear the crash loop."
		},
		{
			"action_type": "scale_deployment",
			"target": "deployment/checkout",
			"params": {"replicas": 3},
			"reasoning": "Absorb the retry load."
		}
	]
}`

func TestSynthesizeParsesDecision(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{validDecisionJSON}}

	decision := NewSynthesizer(gen).Synthesize(context.Background(), synthEvent(), "runbook", "diagnostics")

	require.NotNil(t, decision)
	assert.Equal(t, "evt-42", decision.IncidentId)
	assert.NotEmpty(t, decision.DecisionId)
	assert.InDelta(t, 0.85, decision.ConfidenceScore, 1e-9)
	require.Len(t, decision.ProposedActions, 2)

	restart := decision.ProposedActions[0]
	assert.Equal(t, datatypes.ActionRestartPod, restart.ActionType)
	assert.Equal(t, "checkout-7f9c", restart.Target)
	assert.Equal(t, decision.DecisionId, restart.DecisionId)
	assert.NotEmpty(t, restart.ActionId)

	// Numeric params are coerced to strings without a decimal point.
	scale := decision.ProposedActions[1]
	assert.Equal(t, "3", scale.Params["replicas"])
}

func TestSynthesizeClampsConfidence(t *testing.T) {
	// The score comes from untrusted model output; anything above zero is
	// eligible for automated action, so it must be bounded to [0, 1].
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{name: "above range", raw: "7.5", want: 1.0},
		{name: "below range", raw: "-0.4", want: 0.0},
		{name: "upper bound", raw: "1.0", want: 1.0},
		{name: "lower bound", raw: "0.0", want: 0.0},
		{name: "in range", raw: "0.6", want: 0.6},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := &scriptedGenerator{responses: []string{`{
				"analysis": "a",
				"confidence_score": ` + tc.raw + `,
				"proposed_actions": []
			}`}}

			decision := NewSynthesizer(gen).Synthesize(context.Background(), synthEvent(), "", "")
			assert.InDelta(t, tc.want, decision.ConfidenceScore, 1e-9)
		})
	}
}

func TestSynthesizeUnknownActionType(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{
		"analysis": "a",
		"confidence_score": 0.5,
		"proposed_actions": [{"action_type": "delete_namespace", "target": "prod", "params": {}, "reasoning": "no"}]
	}`}}

	decision := NewSynthesizer(gen).Synthesize(context.Background(), synthEvent(), "", "")
	require.Len(t, decision.ProposedActions, 1)
	assert.Equal(t, datatypes.ActionUnknown, decision.ProposedActions[0].ActionType)
}

func TestSynthesizeFallbackOnGeneratorError(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("provider exhausted")}

	decision := NewSynthesizer(gen).Synthesize(context.Background(), synthEvent(), "", "")

	require.NotNil(t, decision)
	assert.Zero(t, decision.ConfidenceScore)
	assert.Contains(t, decision.Analysis, "Agent failed:")
	assert.Contains(t, decision.Analysis, "provider exhausted")
	assert.Empty(t, decision.ProposedActions)
}

func TestSynthesizeReformatRecovery(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"Sure! Here is my analysis in plain prose, no JSON at all.",
		validDecisionJSON,
	}}

	decision := NewSynthesizer(gen).Synthesize(context.Background(), synthEvent(), "", "")

	assert.Equal(t, 2, gen.calls)
	assert.InDelta(t, 0.85, decision.ConfidenceScore, 1e-9)
	// The corrective prompt carries the model's own prior output.
	assert.Contains(t, gen.prompts[1], "plain prose")
}

func TestSynthesizeDegradedAfterFailedReformat(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"still not json " + strings.Repeat("x", 2000),
	}}

	decision := NewSynthesizer(gen).Synthesize(context.Background(), synthEvent(), "", "")

	assert.Equal(t, 2, gen.calls)
	assert.Zero(t, decision.ConfidenceScore)
	assert.Contains(t, decision.Analysis, "Parse Error")
	assert.Contains(t, decision.Analysis, "still not json")
	assert.LessOrEqual(t, len(decision.Analysis), maxRawOutputInAnalysis+100)
}

func TestDecisionPromptContainsEvidence(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{validDecisionJSON}}

	NewSynthesizer(gen).Synthesize(context.Background(), synthEvent(),
		"RELEVANT RUNBOOK FOUND: crashloop.md", "=== COMMAND: kubectl get pods ===")

	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "evt-42")
	assert.Contains(t, prompt, "checkout")
	assert.Contains(t, prompt, "crashloop.md")
	assert.Contains(t, prompt, "kubectl get pods")
	assert.Contains(t, prompt, "rollback_deployment")
	assert.Contains(t, prompt, "CrashLoopBackOff")
}
