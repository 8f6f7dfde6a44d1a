// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/threatstream/threatstream/internal/logging"
	"github.com/threatstream/threatstream/internal/models"
)

// Sentinel errors for lifecycle operations.
var (
	// ErrNotFound is returned when the alert does not exist.
	ErrNotFound = errors.New("alert not found")

	// ErrInvalidTransition is returned for illegal status changes.
	ErrInvalidTransition = errors.New("invalid alert status transition")

	// ErrNotAlertable is returned when the threat severity does not
	// warrant an alert.
	ErrNotAlertable = errors.New("threat severity below alert threshold")
)

// Store is the persistence surface the service needs.
type Store interface {
	SaveAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	ListAlerts(ctx context.Context, onlyOpen bool) ([]models.Alert, error)
}

// Service owns alert creation and lifecycle transitions.
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService returns a Service backed by store.
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		logger: logging.WithComponent("alerts"),
	}
}

// NewID returns a fresh alert identifier, format ALT-XXXXXXXX.
func NewID() string {
	return "ALT-" + strings.ToUpper(uuid.New().String()[:8])
}

// FromThreat builds (but does not persist) an alert for a CRITICAL or
// HIGH threat. Returns ErrNotAlertable otherwise.
func FromThreat(threat *models.Threat) (*models.Alert, error) {
	if !ShouldAlert(threat.Analysis.Severity) {
		return nil, ErrNotAlertable
	}

	title := fmt.Sprintf("%s detected from %s", threat.Analysis.ThreatType, threat.SourceIP)
	description := threat.Analysis.Description
	if description == "" {
		description = threat.Analysis.Explanation
	}

	return &models.Alert{
		ID:          NewID(),
		ThreatID:    threat.ID,
		Priority:    Classify(threat.Analysis.Severity, threat.Score),
		Severity:    threat.Analysis.Severity,
		ThreatType:  threat.Analysis.ThreatType,
		Title:       title,
		Description: description,
		SourceIP:    threat.SourceIP,
		Score:       threat.Score,
		Status:      models.AlertNew,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Create classifies and persists an alert for threat. A persistence
// failure is returned to the caller but the alert value is still handed
// back so broadcast can proceed on partial success.
func (s *Service) Create(ctx context.Context, threat *models.Threat) (*models.Alert, error) {
	alert, err := FromThreat(threat)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveAlert(ctx, alert); err != nil {
		s.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Alert persistence failed")
		return alert, fmt.Errorf("save alert %s: %w", alert.ID, err)
	}

	s.logger.Info().
		Str("alert_id", alert.ID).
		Str("threat_id", threat.ID).
		Str("priority", string(alert.Priority)).
		Msg("Alert created")
	return alert, nil
}

// AttachExecution records the playbook execution that auto-ran for the
// alert. Persistence is best effort; the in-memory alert is always updated.
func (s *Service) AttachExecution(ctx context.Context, alert *models.Alert, executionID string) {
	alert.PlaybookExecutionID = executionID
	if err := s.store.SaveAlert(ctx, alert); err != nil {
		s.logger.Error().Err(err).
			Str("alert_id", alert.ID).
			Str("execution_id", executionID).
			Msg("Failed to persist playbook execution link")
	}
}

// Get returns one alert by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.Alert, error) {
	return s.store.GetAlert(ctx, id)
}

// Active lists alerts that still need operator attention, newest first.
func (s *Service) Active(ctx context.Context) ([]models.Alert, error) {
	return s.store.ListAlerts(ctx, true)
}

// All lists every stored alert, newest first.
func (s *Service) All(ctx context.Context) ([]models.Alert, error) {
	return s.store.ListAlerts(ctx, false)
}

// Transition moves an alert to the next lifecycle status, stamping the
// transition time and optional assignee. Illegal transitions return
// ErrInvalidTransition.
func (s *Service) Transition(ctx context.Context, id string, next models.AlertStatus, assignee string) (*models.Alert, error) {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	if !alert.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, alert.Status, next)
	}

	now := time.Now().UTC()
	alert.Status = next
	if assignee != "" {
		alert.Assignee = assignee
	}
	switch next {
	case models.AlertAcknowledged:
		alert.AcknowledgedAt = &now
	case models.AlertInvestigating:
		alert.InvestigatingAt = &now
	case models.AlertResolved, models.AlertFalsePositive:
		alert.ResolvedAt = &now
	}

	if err := s.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("save alert %s: %w", id, err)
	}

	s.logger.Info().
		Str("alert_id", id).
		Str("status", string(next)).
		Str("assignee", assignee).
		Msg("Alert status updated")
	return alert, nil
}

// Acknowledge is shorthand for the NEW -> ACKNOWLEDGED transition.
func (s *Service) Acknowledge(ctx context.Context, id, assignee string) (*models.Alert, error) {
	return s.Transition(ctx, id, models.AlertAcknowledged, assignee)
}

// Resolve is shorthand for the transition to RESOLVED.
func (s *Service) Resolve(ctx context.Context, id, assignee string) (*models.Alert, error) {
	return s.Transition(ctx, id, models.AlertResolved, assignee)
}
