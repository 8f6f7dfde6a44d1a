// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package alerts maps scored threats onto operator-facing alerts: a pure
// priority classifier plus the alert lifecycle service (create,
// acknowledge, investigate, resolve).
package alerts

import "github.com/threatstream/threatstream/internal/models"

// Risk score cutoffs that promote HIGH and MEDIUM severities one
// priority tier.
const (
	highSeverityP1Score   = 80
	mediumSeverityP2Score = 60
)

// Classify maps severity and composite risk score to a priority tier.
// Pure and total: every input yields one of P1..P4, and for a fixed score
// the priority never rises as severity falls.
func Classify(severity models.Severity, riskScore int) models.AlertPriority {
	switch severity {
	case models.SeverityCritical:
		return models.PriorityP1
	case models.SeverityHigh:
		if riskScore >= highSeverityP1Score {
			return models.PriorityP1
		}
		return models.PriorityP2
	case models.SeverityMedium:
		if riskScore >= mediumSeverityP2Score {
			return models.PriorityP2
		}
		return models.PriorityP3
	default:
		return models.PriorityP4
	}
}

// ShouldAlert reports whether a threat of this severity raises an alert.
// Alerts exist only for CRITICAL and HIGH threats.
func ShouldAlert(severity models.Severity) bool {
	return severity == models.SeverityCritical || severity == models.SeverityHigh
}
