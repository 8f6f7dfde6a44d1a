// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package models

import "time"

// Playbook is a predefined incident response procedure that can run
// automatically when a matching alert fires, or manually via the API.
type Playbook struct {
	// ID is the playbook identifier, e.g. "pb-brute-001".
	ID string `json:"id"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// TriggerTypes lists the threat types that activate this playbook.
	TriggerTypes []ThreatType `json:"trigger_types"`

	// MinSeverity is the least severe verdict that still triggers the
	// playbook automatically.
	MinSeverity Severity `json:"min_severity"`

	// AutoExecute runs the playbook without operator approval when a
	// matching alert is created.
	AutoExecute bool `json:"auto_execute"`

	// Steps are executed in order.
	Steps []PlaybookStep `json:"steps"`
}

// PlaybookStep is one action within a playbook.
type PlaybookStep struct {
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

// ExecutionStatus is the lifecycle state of a playbook run.
type ExecutionStatus string

// Playbook execution states.
const (
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
)

// PlaybookExecution records one run of a playbook against an alert.
type PlaybookExecution struct {
	// ID is the execution identifier, format EXE-XXXXXXXX.
	ID string `json:"id"`

	PlaybookID string `json:"playbook_id"`
	AlertID    string `json:"alert_id,omitempty"`

	Status ExecutionStatus `json:"status"`

	// Triggered records whether the run was automatic or manual.
	Triggered string `json:"triggered"` // "auto" or "manual"

	Actions []ActionResult `json:"actions"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ActionResult is the outcome of one playbook step.
type ActionResult struct {
	Action     string    `json:"action"`
	Success    bool      `json:"success"`
	Detail     string    `json:"detail,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}
