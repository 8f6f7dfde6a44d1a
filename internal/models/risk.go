// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package models

import "time"

// RiskLevel buckets the risk index value for display.
type RiskLevel string

// Risk levels from calm to on-fire.
const (
	RiskNormal     RiskLevel = "NORMAL"
	RiskElevated   RiskLevel = "ELEVATED"
	RiskSuspicious RiskLevel = "SUSPICIOUS"
	RiskCritical   RiskLevel = "CRITICAL"
)

// RiskTrend describes the short-term direction of the risk index.
type RiskTrend string

// Trend directions.
const (
	TrendRising  RiskTrend = "RISING"
	TrendFalling RiskTrend = "FALLING"
	TrendStable  RiskTrend = "STABLE"
)

// RiskSnapshot is a point-in-time reading of the aggregate risk index, as
// published on security.risk.index and pushed to WebSocket clients.
type RiskSnapshot struct {
	// Value is the current risk index in [0, 100].
	Value float64 `json:"value"`

	Level RiskLevel `json:"level"`
	Trend RiskTrend `json:"trend"`

	// ScenarioID is the epoch this reading belongs to.
	ScenarioID string `json:"scenario_id,omitempty"`

	// ThreatCount is the number of threats that have contributed since
	// the last baseline reset.
	ThreatCount int `json:"threat_count"`

	// Reason records why the snapshot was published: "change",
	// "heartbeat", or "baseline_reset". Empty for unpublished reads.
	Reason string `json:"reason,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// TimelinePoint is one entry in the recent risk history ring.
type TimelinePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Level     RiskLevel `json:"level"`
}
