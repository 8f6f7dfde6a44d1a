// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package models

// SimulateEventRequest injects a synthetic security event through the full
// pipeline, exactly as if it had arrived on the inbound stream.
type SimulateEventRequest struct {
	EventType  string            `json:"event_type" validate:"required"`
	SourceIP   string            `json:"source_ip" validate:"required,ip"`
	Username   string            `json:"username,omitempty"`
	Message    string            `json:"message,omitempty"`
	ScenarioID string            `json:"scenario_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SimulateEventResponse confirms the injected event.
type SimulateEventResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}
