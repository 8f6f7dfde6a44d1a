// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package models

import "time"

// AlertPriority is the operator-facing urgency of an alert.
type AlertPriority string

// Alert priorities, P1 most urgent.
const (
	PriorityP1 AlertPriority = "P1"
	PriorityP2 AlertPriority = "P2"
	PriorityP3 AlertPriority = "P3"
	PriorityP4 AlertPriority = "P4"
)

// Rank returns a comparable ordering value; higher is more urgent.
func (p AlertPriority) Rank() int {
	switch p {
	case PriorityP1:
		return 4
	case PriorityP2:
		return 3
	case PriorityP3:
		return 2
	case PriorityP4:
		return 1
	}
	return 0
}

// AlertStatus is the lifecycle state of an alert.
//
// Valid transitions: NEW → ACKNOWLEDGED → INVESTIGATING → RESOLVED or
// FALSE_POSITIVE. RESOLVED and FALSE_POSITIVE are terminal.
type AlertStatus string

// Alert lifecycle states.
const (
	AlertNew           AlertStatus = "NEW"
	AlertAcknowledged  AlertStatus = "ACKNOWLEDGED"
	AlertInvestigating AlertStatus = "INVESTIGATING"
	AlertResolved      AlertStatus = "RESOLVED"
	AlertFalsePositive AlertStatus = "FALSE_POSITIVE"
)

// Open reports whether the alert still needs operator attention.
func (s AlertStatus) Open() bool {
	switch s {
	case AlertNew, AlertAcknowledged, AlertInvestigating:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle step.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	switch s {
	case AlertNew:
		return next == AlertAcknowledged || next == AlertInvestigating ||
			next == AlertResolved || next == AlertFalsePositive
	case AlertAcknowledged:
		return next == AlertInvestigating || next == AlertResolved || next == AlertFalsePositive
	case AlertInvestigating:
		return next == AlertResolved || next == AlertFalsePositive
	}
	return false
}

// Alert is an operator-facing notification raised for threats that cross
// the alerting threshold. Published on security.critical.alerts.
type Alert struct {
	// ID is the alert identifier, format ALT-XXXXXXXX.
	ID string `json:"id"`

	// ThreatID links to the triggering threat.
	ThreatID string `json:"threat_id"`

	Priority   AlertPriority `json:"priority"`
	Severity   Severity      `json:"severity"`
	ThreatType ThreatType    `json:"threat_type"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SourceIP    string `json:"source_ip"`

	// Score is the threat score at alert creation time.
	Score int `json:"score"`

	Status AlertStatus `json:"status"`

	// Assignee is the operator currently owning the alert.
	Assignee string `json:"assignee,omitempty"`

	// PlaybookExecutionID is set when a response playbook auto-executed
	// for this alert.
	PlaybookExecutionID string `json:"playbook_execution_id,omitempty"`

	CreatedAt       time.Time  `json:"created_at"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
	InvestigatingAt *time.Time `json:"investigating_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}
