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
	"strings"
)

// OriginalEvent carries the upstream alert exactly as the router saw it.
// RawPayload is opaque to the agent; it is only ever echoed into prompts.
type OriginalEvent struct {
	RawPayload json.RawMessage   `json:"rawPayload"`
	Metadata   map[string]string `json:"metadata"`
}

// IncidentEvent is the enriched domain event consumed from the broker.
// Field names follow the protojson convention used on the wire by the
// upstream router (eventId, serviceName, ...).
type IncidentEvent struct {
	EventId          string        `json:"eventId"`
	Domain           string        `json:"domain"`
	ServiceName      string        `json:"serviceName"`
	RelatedResources []string      `json:"relatedResources"`
	OriginalEvent    OriginalEvent `json:"originalEvent"`
}

// DecodeIncidentEvent parses a broker message body into an IncidentEvent.
func DecodeIncidentEvent(data []byte) (*IncidentEvent, error) {
	var event IncidentEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode incident event: %w", err)
	}
	if event.EventId == "" {
		return nil, fmt.Errorf("incident event missing eventId")
	}
	return &event, nil
}

// PayloadText renders the raw alert payload as text for prompt embedding.
// JSON string payloads are unquoted; everything else is passed through as-is.
func (e *IncidentEvent) PayloadText() string {
	raw := e.OriginalEvent.RawPayload
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// Namespace returns the Kubernetes namespace hint carried in the event
// metadata, or "default" when the router did not set one.
func (e *IncidentEvent) Namespace() string {
	if ns := e.OriginalEvent.Metadata["namespace"]; ns != "" {
		return ns
	}
	return "default"
}
