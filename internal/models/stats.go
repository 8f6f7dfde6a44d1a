// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package models

import "time"

// DashboardStats aggregates pipeline counters for the dashboard and the
// WebSocket initial_state payload.
type DashboardStats struct {
	TotalEvents   int64 `json:"total_events"`
	TotalThreats  int64 `json:"total_threats"`
	ActiveAlerts  int   `json:"active_alerts"`
	DroppedEvents int64 `json:"dropped_events"`

	// BySeverity counts threats per severity level.
	BySeverity map[Severity]int64 `json:"by_severity"`

	// ByThreatType counts threats per classification.
	ByThreatType map[ThreatType]int64 `json:"by_threat_type"`

	// TopSourceCountries lists the most frequent threat origins.
	TopSourceCountries []CountryCount `json:"top_source_countries,omitempty"`

	// EventsPerMinute is the recent ingest rate.
	EventsPerMinute float64 `json:"events_per_minute"`

	GeneratedAt time.Time `json:"generated_at"`
}

// CountryCount pairs a country code with a threat count.
type CountryCount struct {
	CountryCode string `json:"country_code"`
	Country     string `json:"country"`
	Count       int64  `json:"count"`
}

// ThreatStatsSummary is the response for the threat stats endpoint.
type ThreatStatsSummary struct {
	Total        int64                `json:"total"`
	BySeverity   map[Severity]int64   `json:"by_severity"`
	ByThreatType map[ThreatType]int64 `json:"by_threat_type"`
	AverageScore float64              `json:"average_score"`
	MaxScore     int                  `json:"max_score"`
	Window       string               `json:"window,omitempty"`
}
