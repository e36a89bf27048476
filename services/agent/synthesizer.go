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
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/jinterlante1206/AleutianRespond/services/agent/datatypes"
	"github.com/jinterlante1206/AleutianRespond/services/agent/diagnostics"
	"github.com/jinterlante1206/AleutianRespond/services/agent/llm"
)

// maxRawOutputInAnalysis caps the unparseable model output embedded in a
// degraded decision.
const maxRawOutputInAnalysis = 1000

// Synthesizer turns incident evidence into the final remediation Decision.
type Synthesizer struct {
	llm diagnostics.Generator
}

// NewSynthesizer creates a synthesizer over the given LLM client.
func NewSynthesizer(generator diagnostics.Generator) *Synthesizer {
	return &Synthesizer{llm: generator}
}

// llmDecision is the JSON shape the model is asked to produce.
type llmDecision struct {
	Analysis        string      `json:"analysis"`
	ConfidenceScore float64     `json:"confidence_score"`
	ProposedActions []llmAction `json:"proposed_actions"`
}

type llmAction struct {
	ActionType string                 `json:"action_type"`
	Target     string                 `json:"target"`
	Params     map[string]interface{} `json:"params"`
	Reasoning  string                 `json:"reasoning"`
}

// Synthesize asks the model for a remediation decision over the gathered
// evidence. It always returns a Decision: provider failure yields the
// fallback, unparseable output yields a degraded zero-confidence decision
// after one corrective reformat attempt.
func (s *Synthesizer) Synthesize(ctx context.Context, event *datatypes.IncidentEvent, runbookContext, diagnosticsReport string) *datatypes.Decision {
	prompt := buildDecisionPrompt(event, runbookContext, diagnosticsReport)

	raw, err := s.llm.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.2})
	if err != nil {
		slog.Error("Decision generation failed", "event_id", event.EventId, "error", err)
		return datatypes.NewFallbackDecision(event.EventId, err.Error())
	}

	extracted := llm.ExtractJSON(raw)
	if extracted == nil {
		extracted = s.reformat(ctx, event, raw)
	}
	if extracted == nil {
		slog.Error("Model output is not parseable JSON after correction",
			"event_id", event.EventId)
		return degradedDecision(event.EventId, raw)
	}

	var parsed llmDecision
	if err := json.Unmarshal(extracted, &parsed); err != nil {
		slog.Error("Decision JSON has unexpected shape",
			"event_id", event.EventId, "error", err)
		return degradedDecision(event.EventId, raw)
	}

	decision := datatypes.NewDecision(event.EventId)
	decision.Analysis = parsed.Analysis
	if decision.Analysis == "" {
		decision.Analysis = "No analysis provided"
	}
	decision.ConfidenceScore = clampConfidence(parsed.ConfidenceScore)
	if decision.ConfidenceScore != parsed.ConfidenceScore {
		slog.Warn("Model confidence out of range, clamping",
			"event_id", event.EventId, "raw_confidence", parsed.ConfidenceScore)
	}
	for _, action := range parsed.ProposedActions {
		decision.AddAction(
			datatypes.ParseActionType(action.ActionType),
			action.Target,
			action.Reasoning,
			coerceParams(action.Params),
		)
	}

	slog.Info("Synthesized decision",
		"event_id", event.EventId,
		"decision_id", decision.DecisionId,
		"confidence", decision.ConfidenceScore,
		"actions", len(decision.ProposedActions))
	return decision
}

// reformat issues the single corrective follow-up call: the model is asked
// to reshape its own prior output into the required JSON.
func (s *Synthesizer) reformat(ctx context.Context, event *datatypes.IncidentEvent, raw string) []byte {
	slog.Warn("Model output is not parseable JSON, asking for reformat",
		"event_id", event.EventId)

	prompt := fmt.Sprintf(`Your previous answer was not valid JSON.
Reformat it into EXACTLY this JSON structure and return nothing else:
{
    "analysis": "string explanation",
    "confidence_score": float,
    "proposed_actions": [
        {
            "action_type": "string",
            "target": "string (resource name)",
            "params": { "key": "value" },
            "reasoning": "string"
        }
    ]
}

PREVIOUS ANSWER:
%s`, raw)

	corrected, err := s.llm.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0})
	if err != nil {
		slog.Warn("Reformat call failed", "event_id", event.EventId, "error", err)
		return nil
	}
	return llm.ExtractJSON(corrected)
}

// degradedDecision embeds the truncated raw model output so operators can
// see what the model actually said. Zero confidence means "do not auto-act".
func degradedDecision(eventId, raw string) *datatypes.Decision {
	raw = diagnostics.TruncateText(raw, maxRawOutputInAnalysis)
	d := datatypes.NewDecision(eventId)
	d.Analysis = fmt.Sprintf("Parse Error: model output was not valid JSON. Raw Output: %s", raw)
	d.ConfidenceScore = 0.0
	return d
}

// clampConfidence bounds a model-reported confidence to [0, 1]. Downstream
// consumers treat anything above zero as eligible for automated action, so an
// untrusted out-of-range value must never pass through. NaN reports zero.
func clampConfidence(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// coerceParams flattens arbitrary JSON param values into the string map the
// decision schema carries.
func coerceParams(params map[string]interface{}) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for key, value := range params {
		switch v := value.(type) {
		case string:
			out[key] = v
		case float64:
			// JSON numbers arrive as float64; render integers without
			// the decimal point.
			if v == float64(int64(v)) {
				out[key] = fmt.Sprintf("%d", int64(v))
			} else {
				out[key] = fmt.Sprintf("%v", v)
			}
		default:
			out[key] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

// buildDecisionPrompt renders the final remediation prompt with the strict
// action schema.
func buildDecisionPrompt(event *datatypes.IncidentEvent, runbookContext, diagnosticsReport string) string {
	payload := diagnostics.SanitizeFreeText(event.PayloadText(), diagnostics.MaxPayloadChars)

	var b strings.Builder
	fmt.Fprintf(&b, `You are a Senior Site Reliability Engineer (SRE).
Analyze the following incident and propose remediation actions.

INCIDENT DETAILS:
ID: %s
Service: %s
Domain: %s

CONTEXT (RUNBOOKS):
%s

RAW ALERT DATA:
%s

DIAGNOSTIC REPORT:
%s

YOUR TASK:
1. Identify the root cause based on the runbook, alert data, and diagnostics.
2. Propose safe remediation actions.

STRICT ACTION SCHEMA (YOU MUST FOLLOW THESE PARAMETERS):
- Action: "restart_pod"
  Target: Pod Name (e.g., "kafka-ingest-123")
  Params: { "namespace": "default" }

- Action: "scale_deployment"
  Target: Deployment Name (e.g., "deployment/kafka-ingest")
  Params: { "replicas": "integer_string" } OR { "replicas_increment": "integer_string" }
  (DO NOT use 'replicas_increase', 'replicas_increase_by', or any other variation. ONLY 'replicas' or 'replicas_increment'.)

- Action: "rolling_restart_deployment"
  Target: Deployment Name (e.g., "deployment/kafka-ingest")
  Params: { "namespace": "default" }

- Action: "rollback_deployment"
  Target: Deployment Name (e.g., "deployment/kafka-ingest")
  Params: { "namespace": "default" }

3. Provide a confidence score (0.0 to 1.0).

OUTPUT FORMAT:
Return ONLY valid JSON matching this structure:
{
    "analysis": "string explanation",
    "confidence_score": float,
    "proposed_actions": [
        {
            "action_type": "string",
            "target": "string (resource name)",
            "params": { "key": "value" },
            "reasoning": "string"
        }
    ]
}
`, event.EventId, event.ServiceName, event.Domain, runbookContext, payload, diagnosticsReport)
	return b.String()
}
