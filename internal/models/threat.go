// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package models

import "time"

// Analysis is the analyzer's verdict on a single security event, produced
// either by the AI collaborator or by the rule-based fallback.
type Analysis struct {
	Severity   Severity   `json:"severity"`
	ThreatType ThreatType `json:"threat_type"`

	// Confidence is the analyzer's certainty in [0.0, 1.0].
	Confidence float64 `json:"confidence"`

	// Description is a short human-readable summary of the verdict.
	Description string `json:"description,omitempty"`

	// Explanation is the analyzer's reasoning.
	Explanation string `json:"explanation,omitempty"`

	// Signals lists the observations that contributed to the verdict.
	Signals []string `json:"signals,omitempty"`

	// RecommendedActions suggests operator responses.
	RecommendedActions []string `json:"recommended_actions,omitempty"`

	// TechniqueID is the MITRE ATT&CK technique the analyzer identified,
	// when it provides one.
	TechniqueID string `json:"technique_id,omitempty"`

	// Fallback is true when the rule-based classifier produced this
	// analysis instead of the AI collaborator.
	Fallback bool `json:"fallback,omitempty"`
}

// GeoContext is the geographic enrichment attached to a threat based on its
// source IP.
type GeoContext struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`

	// Multiplier scales the threat score for traffic from this origin.
	Multiplier float64 `json:"multiplier"`

	// Zone groups origins for dashboard display, e.g. "HOSTILE_ZONE",
	// "INTERNAL_ZONE", "EXTERNAL".
	Zone string `json:"zone"`

	// Hostile is true for origins in the hostile zone.
	Hostile bool `json:"hostile"`
}

// MITRETechnique maps a threat type onto the MITRE ATT&CK framework.
type MITRETechnique struct {
	TechniqueID   string `json:"technique_id"`
	TechniqueName string `json:"technique_name"`
	Tactic        string `json:"tactic"`
	URL           string `json:"url,omitempty"`
}

// Threat is a fully enriched, scored security event as published on the
// security.analyzed.threats topic and stored for API queries.
type Threat struct {
	// ID is the threat identifier, format THR-XXXXXXXX.
	ID string `json:"id"`

	// EventID links back to the originating SecurityEvent.
	EventID string `json:"event_id"`

	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	SourceIP  string    `json:"source_ip"`
	Username  string    `json:"username,omitempty"`
	Message   string    `json:"message,omitempty"`

	Analysis Analysis `json:"analysis"`

	// Score is the composite threat score in [0, 100].
	Score int `json:"score"`

	Geo   GeoContext      `json:"geo"`
	MITRE *MITRETechnique `json:"mitre,omitempty"`

	// ScenarioID is the epoch the originating event belonged to.
	ScenarioID string `json:"scenario_id,omitempty"`

	// ProcessedAt is when the pipeline finished enrichment.
	ProcessedAt time.Time `json:"processed_at"`

	// ProcessingLatencyMS is the time spent in the pipeline from ingest
	// to assembly.
	ProcessingLatencyMS int64 `json:"processing_latency_ms"`
}
