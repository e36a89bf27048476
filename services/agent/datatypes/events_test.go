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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIncidentEvent(t *testing.T) {
	body := []byte(`{
		"eventId": "evt-123",
		"domain": "k8s",
		"serviceName": "checkout",
		"relatedResources": ["pod/checkout-abc"],
		"originalEvent": {
			"rawPayload": "CrashLoopBackOff",
			"metadata": {"namespace": "shop", "received_by": "router"}
		}
	}`)

	event, err := DecodeIncidentEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "evt-123", event.EventId)
	assert.Equal(t, "k8s", event.Domain)
	assert.Equal(t, "checkout", event.ServiceName)
	assert.Equal(t, "CrashLoopBackOff", event.PayloadText())
	assert.Equal(t, "shop", event.Namespace())
}

func TestDecodeIncidentEventRejectsMissingId(t *testing.T) {
	_, err := DecodeIncidentEvent([]byte(`{"domain":"k8s"}`))
	assert.Error(t, err)
}

func TestDecodeIncidentEventRejectsGarbage(t *testing.T) {
	_, err := DecodeIncidentEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestPayloadTextPassesThroughObjects(t *testing.T) {
	event := &IncidentEvent{
		OriginalEvent: OriginalEvent{RawPayload: []byte(`{"alert":"OOMKilled"}`)},
	}
	assert.Equal(t, `{"alert":"OOMKilled"}`, event.PayloadText())
}

func TestNamespaceDefaults(t *testing.T) {
	event := &IncidentEvent{}
	assert.Equal(t, "default", event.Namespace())
}

func TestParseActionType(t *testing.T) {
	tests := []struct {
		input string
		want  ActionType
	}{
		{"restart_pod", ActionRestartPod},
		{"scale_deployment", ActionScaleDeployment},
		{"rolling_restart_deployment", ActionRollingRestartDeployment},
		{"rollback_deployment", ActionRollbackDeployment},
		{"replicas_increase", ActionUnknown},
		{"", ActionUnknown},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseActionType(tc.input), "input %q", tc.input)
	}
}

func TestAddActionSetsBackReference(t *testing.T) {
	d := NewDecision("evt-9")
	d.AddAction(ActionRestartPod, "checkout-abc", "crash looping", nil)

	require.Len(t, d.ProposedActions, 1)
	action := d.ProposedActions[0]
	assert.NotEmpty(t, action.ActionId)
	assert.Equal(t, d.DecisionId, action.DecisionId)
	assert.NotNil(t, action.Params)
}

func TestNewFallbackDecision(t *testing.T) {
	d := NewFallbackDecision("evt-9", "provider unreachable")
	assert.Equal(t, "evt-9", d.IncidentId)
	assert.Zero(t, d.ConfidenceScore)
	assert.Contains(t, d.Analysis, "Agent failed: provider unreachable")
}
