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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinterlante1206/AleutianRespond/pkg/validation"
	"github.com/jinterlante1206/AleutianRespond/services/agent/datatypes"
	"github.com/jinterlante1206/AleutianRespond/services/agent/kube"
	"github.com/jinterlante1206/AleutianRespond/services/agent/llm"
	"github.com/jinterlante1206/AleutianRespond/services/agent/observability"
)

// MaxPlannedCommands caps the diagnostic plan length.
const MaxPlannedCommands = 5

// Generator is the LLM surface the planner needs.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error)
}

// Planner asks the model which read-only commands would illuminate the
// incident, then filters the answer through the whitelist.
type Planner struct {
	llm Generator
}

// NewPlanner creates a planner over the given LLM client.
func NewPlanner(generator Generator) *Planner {
	return &Planner{llm: generator}
}

// PlanCommands returns an ordered, validated diagnostic plan of at most
// MaxPlannedCommands commands. If the model fails, returns nothing usable,
// or every proposal is rejected, the deterministic fallback plan applies.
func (p *Planner) PlanCommands(
	ctx context.Context,
	event *datatypes.IncidentEvent,
	runbookContext string,
	namespace string,
	discovered *kube.DiscoveredResources,
	matched kube.MatchedResources,
) []string {
	namespace = SanitizeNamespace(namespace)

	prompt := buildPlanPrompt(event, runbookContext, namespace, discovered, matched)
	raw, err := p.llm.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.1})
	if err != nil {
		slog.Warn("Diagnostic planning call failed, using fallback plan",
			"event_id", event.EventId, "error", err)
		return FallbackPlan(namespace, discovered, matched)
	}

	commands := parsePlan(raw)
	if len(commands) == 0 {
		slog.Warn("Diagnostic plan yielded no usable commands, using fallback plan",
			"event_id", event.EventId)
		return FallbackPlan(namespace, discovered, matched)
	}
	return commands
}

// parsePlan extracts the commands list from model output and keeps only
// whitelisted entries, capped at MaxPlannedCommands.
func parsePlan(raw string) []string {
	extracted := llm.ExtractJSON(raw)
	if extracted == nil {
		return nil
	}

	var plan struct {
		Commands []string `json:"commands"`
	}
	if err := json.Unmarshal(extracted, &plan); err != nil {
		slog.Warn("Diagnostic plan JSON has unexpected shape", "error", err)
		return nil
	}

	var commands []string
	for _, command := range plan.Commands {
		command = strings.TrimSpace(command)
		verdict := ValidateCommand(command)
		if !verdict.Allowed {
			observability.RecordRejectedCommand()
			slog.Warn("Rejected proposed diagnostic command",
				"command", command, "reason", verdict.Reason)
			continue
		}
		commands = append(commands, command)
		if len(commands) >= MaxPlannedCommands {
			break
		}
	}
	return commands
}

// FallbackPlan is the deterministic minimal plan used when planning fails:
// describe and tail the most plausible resource, then list recent events.
func FallbackPlan(namespace string, discovered *kube.DiscoveredResources, matched kube.MatchedResources) []string {
	namespace = SanitizeNamespace(namespace)

	var plan []string
	if pod := firstOf(matched.Pods, discovered.Pods); pod != "" {
		plan = append(plan,
			fmt.Sprintf("kubectl describe pod %s -n %s", pod, namespace),
			fmt.Sprintf("kubectl logs %s -n %s --tail=50", pod, namespace),
		)
	} else if deployment := firstOf(matched.Deployments, discovered.Deployments); deployment != "" {
		plan = append(plan,
			fmt.Sprintf("kubectl describe deployment %s -n %s", deployment, namespace),
		)
	}
	plan = append(plan, fmt.Sprintf("kubectl get events -n %s --sort-by=.lastTimestamp", namespace))
	return plan
}

// firstOf returns the first candidate that is a valid kubectl argument.
// Candidates come from subprocess output and get interpolated into commands,
// so malformed names are skipped rather than trusted.
func firstOf(groups ...[]string) string {
	for _, group := range groups {
		for _, name := range group {
			if err := validation.ValidateKubeName(name); err != nil {
				slog.Warn("Skipping malformed resource name in fallback plan", "error", err)
				continue
			}
			return name
		}
	}
	return ""
}

// buildPlanPrompt renders the planning prompt from sanitized inputs.
func buildPlanPrompt(
	event *datatypes.IncidentEvent,
	runbookContext string,
	namespace string,
	discovered *kube.DiscoveredResources,
	matched kube.MatchedResources,
) string {
	payload := SanitizeFreeText(event.PayloadText(), MaxPayloadChars)

	var b strings.Builder
	fmt.Fprintf(&b, `You are a Senior Site Reliability Engineer (SRE).
An alert fired and you need to gather diagnostic evidence before deciding on remediation.

INCIDENT DETAILS:
Service: %s
Domain: %s
Namespace: %s

RAW ALERT DATA:
%s

CONTEXT (RUNBOOKS):
%s
`, event.ServiceName, event.Domain, namespace, payload, runbookContext)

	if !discovered.Empty() {
		b.WriteString("\nRESOURCES IN THE NAMESPACE:\n")
		writeResourceList(&b, "Pods", discovered.Pods)
		writeResourceList(&b, "Deployments", discovered.Deployments)
		writeResourceList(&b, "Services", discovered.Services)
		writeResourceList(&b, "ReplicaSets", discovered.ReplicaSets)
	}
	if len(matched.Pods) > 0 || len(matched.Deployments) > 0 {
		b.WriteString("\nRESOURCES MATCHING THE ALERTING SERVICE (prefer these):\n")
		writeResourceList(&b, "Pods", matched.Pods)
		writeResourceList(&b, "Deployments", matched.Deployments)
	}

	fmt.Fprintf(&b, `
YOUR TASK:
Propose up to %d read-only kubectl commands to investigate this incident.
Every command MUST start with "kubectl" followed by one of: get, describe, logs, top.
Use ONLY resource names listed above. Always include "-n %s".

OUTPUT FORMAT:
Return ONLY valid JSON matching this structure:
{
    "commands": ["kubectl ...", "kubectl ..."]
}
`, MaxPlannedCommands, namespace)
	return b.String()
}

func writeResourceList(b *strings.Builder, label string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(names, ", "))
}
