// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package broker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinterlante1206/AleutianRespond/services/agent/datatypes"
)

type fakeAnalyzer struct {
	calls int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, event *datatypes.IncidentEvent) *datatypes.Decision {
	f.calls++
	d := datatypes.NewDecision(event.EventId)
	d.Analysis = "looks fine"
	d.ConfidenceScore = 0.7
	return d
}

func TestDecisionSubject(t *testing.T) {
	assert.Equal(t, "decisions.k8s", DecisionSubject("k8s"))
	assert.Equal(t, "decisions.infra", DecisionSubject("infra"))
	assert.Equal(t, "decisions.db", DecisionSubject("db"))
	assert.Equal(t, "decisions.unknown", DecisionSubject(""))
}

func TestProcessRoutesDecisionByDomain(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	b := New(nil, analyzer)

	event := []byte(`{
		"eventId": "evt-5",
		"domain": "db",
		"serviceName": "orders-postgres",
		"originalEvent": {"rawPayload": "connection pool exhausted", "metadata": {}}
	}`)

	subject, payload, err := b.process(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, "decisions.db", subject)
	assert.Equal(t, 1, analyzer.calls)

	var decision datatypes.Decision
	require.NoError(t, json.Unmarshal(payload, &decision))
	assert.Equal(t, "evt-5", decision.IncidentId)
	assert.InDelta(t, 0.7, decision.ConfidenceScore, 1e-9)
}

func TestProcessRejectsMalformedEvent(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	b := New(nil, analyzer)

	_, _, err := b.process(context.Background(), []byte("not json"))
	require.Error(t, err)
	assert.Zero(t, analyzer.calls)

	_, _, err = b.process(context.Background(), []byte(`{"domain": "k8s"}`))
	require.Error(t, err, "missing eventId must be rejected")
	assert.Zero(t, analyzer.calls)
}
