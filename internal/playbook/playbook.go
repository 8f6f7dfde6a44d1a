// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package playbook provides the incident response playbook catalog and
// simulated execution. Actions are side-effect free stand-ins for real
// remediation calls; each run produces a persisted execution record.
package playbook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/threatstream/threatstream/internal/logging"
	"github.com/threatstream/threatstream/internal/metrics"
	"github.com/threatstream/threatstream/internal/models"
)

// ErrNotFound is returned when no playbook with the given id exists.
var ErrNotFound = errors.New("playbook not found")

// Store persists execution records.
type Store interface {
	SaveExecution(ctx context.Context, exec *models.PlaybookExecution) error
	ListExecutions(ctx context.Context) ([]models.PlaybookExecution, error)
}

// catalog is the built-in playbook set, keyed by id.
var catalog = []models.Playbook{
	{
		ID:          "pb-brute-001",
		Name:        "Brute Force Mitigation",
		Description: "Contain credential-stuffing and password-guessing attacks",
		TriggerTypes: []models.ThreatType{
			models.ThreatBruteForce,
		},
		MinSeverity: models.SeverityHigh,
		AutoExecute: true,
		Steps: []models.PlaybookStep{
			{Action: "block_source_ip", Description: "Block the attacking IP at the edge firewall"},
			{Action: "lock_account", Description: "Temporarily lock the targeted account"},
			{Action: "notify_soc", Description: "Page the on-call SOC analyst"},
		},
	},
	{
		ID:          "pb-ddos-001",
		Name:        "DDoS Protection",
		Description: "Absorb and deflect volumetric attacks",
		TriggerTypes: []models.ThreatType{
			models.ThreatDDoSAttack,
		},
		MinSeverity: models.SeverityHigh,
		AutoExecute: true,
		Steps: []models.PlaybookStep{
			{Action: "enable_rate_limiting", Description: "Tighten edge rate limits"},
			{Action: "activate_cdn_shield", Description: "Route traffic through scrubbing"},
			{Action: "notify_soc", Description: "Page the on-call SOC analyst"},
		},
	},
	{
		ID:          "pb-sql-001",
		Name:        "SQL Injection Response",
		Description: "Investigate and contain injection attempts",
		TriggerTypes: []models.ThreatType{
			models.ThreatSQLInjection,
		},
		MinSeverity: models.SeverityHigh,
		AutoExecute: false,
		Steps: []models.PlaybookStep{
			{Action: "block_source_ip", Description: "Block the attacking IP at the edge firewall"},
			{Action: "snapshot_waf_logs", Description: "Capture WAF logs for forensics"},
			{Action: "audit_database_access", Description: "Review recent queries from the affected application user"},
		},
	},
}

// NewExecutionID returns a fresh execution identifier.
func NewExecutionID() string {
	return "EXE-" + strings.ToUpper(uuid.New().String()[:8])
}

// Service runs playbooks and records executions. Safe for concurrent use.
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService builds a playbook Service backed by store.
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		logger: logging.WithComponent("playbook"),
	}
}

// Catalog returns all known playbooks.
func (s *Service) Catalog() []models.Playbook {
	out := make([]models.Playbook, len(catalog))
	copy(out, catalog)
	return out
}

// Get returns the playbook with the given id.
func (s *Service) Get(id string) (models.Playbook, error) {
	for _, pb := range catalog {
		if pb.ID == id {
			return pb, nil
		}
	}
	return models.Playbook{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// MatchAuto returns the auto-execute playbooks triggered by the given
// threat type and severity.
func (s *Service) MatchAuto(threatType models.ThreatType, severity models.Severity) []models.Playbook {
	var matched []models.Playbook
	for _, pb := range catalog {
		if !pb.AutoExecute {
			continue
		}
		if !severity.AtLeast(pb.MinSeverity) {
			continue
		}
		for _, t := range pb.TriggerTypes {
			if t == threatType {
				matched = append(matched, pb)
				break
			}
		}
	}
	return matched
}

// Execute runs the playbook with simulated actions and persists the
// execution record. triggered is "auto" or "manual".
func (s *Service) Execute(ctx context.Context, playbookID, alertID, triggered string) (*models.PlaybookExecution, error) {
	pb, err := s.Get(playbookID)
	if err != nil {
		return nil, err
	}

	exec := &models.PlaybookExecution{
		ID:         NewExecutionID(),
		PlaybookID: pb.ID,
		AlertID:    alertID,
		Status:     models.ExecutionRunning,
		Triggered:  triggered,
		StartedAt:  time.Now().UTC(),
	}

	for _, step := range pb.Steps {
		if err := ctx.Err(); err != nil {
			exec.Status = models.ExecutionFailed
			break
		}
		exec.Actions = append(exec.Actions, models.ActionResult{
			Action:     step.Action,
			Success:    true,
			Detail:     fmt.Sprintf("simulated: %s", step.Description),
			ExecutedAt: time.Now().UTC(),
		})
	}

	if exec.Status == models.ExecutionRunning {
		exec.Status = models.ExecutionCompleted
	}
	now := time.Now().UTC()
	exec.CompletedAt = &now

	if err := s.store.SaveExecution(ctx, exec); err != nil {
		s.logger.Error().Err(err).
			Str("execution_id", exec.ID).
			Str("playbook_id", pb.ID).
			Msg("Failed to persist playbook execution")
	}

	metrics.PlaybookExecutions.WithLabelValues(pb.ID, triggered).Inc()
	s.logger.Info().
		Str("execution_id", exec.ID).
		Str("playbook_id", pb.ID).
		Str("alert_id", alertID).
		Str("triggered", triggered).
		Str("status", string(exec.Status)).
		Msg("Playbook executed")

	return exec, nil
}

// ExecuteForAlert auto-runs every matching playbook for a newly created
// alert and returns the id of the first execution, if any.
func (s *Service) ExecuteForAlert(ctx context.Context, alert *models.Alert) string {
	matched := s.MatchAuto(alert.ThreatType, alert.Severity)
	var firstExecID string
	for _, pb := range matched {
		exec, err := s.Execute(ctx, pb.ID, alert.ID, "auto")
		if err != nil {
			s.logger.Error().Err(err).
				Str("playbook_id", pb.ID).
				Str("alert_id", alert.ID).
				Msg("Auto playbook execution failed")
			continue
		}
		if firstExecID == "" {
			firstExecID = exec.ID
		}
	}
	return firstExecID
}

// Executions lists recent execution records, newest first.
func (s *Service) Executions(ctx context.Context, limit int) ([]models.PlaybookExecution, error) {
	execs, err := s.store.ListExecutions(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(execs) {
		execs = execs[:limit]
	}
	return execs, nil
}
