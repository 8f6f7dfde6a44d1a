// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package models

import "time"

// SecurityEvent is a raw security log entry as consumed from the inbound
// event stream. Producers (log shippers, the simulation generator) publish
// these to the security.raw.logs topic.
type SecurityEvent struct {
	// EventID uniquely identifies the event at the producer.
	EventID string `json:"event_id"`

	// Timestamp is when the event occurred at the source.
	Timestamp time.Time `json:"timestamp"`

	// EventType is the producer-assigned category, e.g. "brute_force",
	// "port_scan", "api_request". Free-form; the analyzer maps it to a
	// ThreatType.
	EventType string `json:"event_type"`

	// SourceIP is the originating address of the activity.
	SourceIP string `json:"source_ip"`

	// DestinationIP is the target address, when known.
	DestinationIP string `json:"destination_ip,omitempty"`

	// Username is the account involved, when known.
	Username string `json:"username,omitempty"`

	// Message is the raw log line or human-readable description.
	Message string `json:"message,omitempty"`

	// ScenarioID tags the event with the simulation scenario (epoch) that
	// produced it. Empty for events from real sources.
	ScenarioID string `json:"scenario_id,omitempty"`

	// Metadata carries producer-specific extras (ports, protocols, counts).
	Metadata map[string]string `json:"metadata,omitempty"`
}
