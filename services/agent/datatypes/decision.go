// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ActionType is the closed set of remediation verbs the downstream executor
// understands. Anything the model invents outside this set degrades to
// ActionUnknown so the executor can refuse it explicitly.
type ActionType string

const (
	ActionRestartPod               ActionType = "restart_pod"
	ActionScaleDeployment          ActionType = "scale_deployment"
	ActionRollingRestartDeployment ActionType = "rolling_restart_deployment"
	ActionRollbackDeployment       ActionType = "rollback_deployment"
	ActionUnknown                  ActionType = "unknown"
)

// ParseActionType maps free-form model output onto the closed enum.
func ParseActionType(s string) ActionType {
	switch ActionType(s) {
	case ActionRestartPod, ActionScaleDeployment, ActionRollingRestartDeployment, ActionRollbackDeployment:
		return ActionType(s)
	default:
		return ActionUnknown
	}
}

// Action is a single proposed remediation step. Actions are exclusively
// owned by their parent Decision; DecisionId is a non-owning back-reference.
type Action struct {
	ActionId   string            `json:"actionId"`
	DecisionId string            `json:"decisionId"`
	ActionType ActionType        `json:"actionType"`
	Target     string            `json:"target"`
	Params     map[string]string `json:"params"`
	Reasoning  string            `json:"reasoning"`
}

// Decision is the agent's verdict for one incident. Exactly one Decision is
// produced per consumed event; a zero ConfidenceScore tells downstream
// consumers not to auto-act.
type Decision struct {
	DecisionId      string   `json:"decisionId"`
	IncidentId      string   `json:"incidentId"`
	Analysis        string   `json:"analysis"`
	ConfidenceScore float64  `json:"confidenceScore"`
	ProposedActions []Action `json:"proposedActions"`
}

// NewDecision creates an empty Decision bound to the source event.
func NewDecision(incidentId string) *Decision {
	return &Decision{
		DecisionId: uuid.New().String(),
		IncidentId: incidentId,
	}
}

// NewFallbackDecision creates the degraded zero-confidence Decision used
// whenever the pipeline cannot complete. The analysis names the failure so
// operators can triage without log access.
func NewFallbackDecision(incidentId, reason string) *Decision {
	d := NewDecision(incidentId)
	d.Analysis = fmt.Sprintf("Agent failed: %s", reason)
	d.ConfidenceScore = 0.0
	return d
}

// AddAction appends an action with a fresh id and the back-reference set.
func (d *Decision) AddAction(actionType ActionType, target, reasoning string, params map[string]string) {
	if params == nil {
		params = map[string]string{}
	}
	d.ProposedActions = append(d.ProposedActions, Action{
		ActionId:   uuid.New().String(),
		DecisionId: d.DecisionId,
		ActionType: actionType,
		Target:     target,
		Params:     params,
		Reasoning:  reasoning,
	})
}

// Encode serializes the Decision for publication.
func (d *Decision) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode decision %s: %w", d.DecisionId, err)
	}
	return data, nil
}
