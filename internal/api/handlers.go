// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/threatstream/threatstream/internal/alerts"
	"github.com/threatstream/threatstream/internal/config"
	"github.com/threatstream/threatstream/internal/epoch"
	"github.com/threatstream/threatstream/internal/eventstream"
	"github.com/threatstream/threatstream/internal/logging"
	"github.com/threatstream/threatstream/internal/models"
	"github.com/threatstream/threatstream/internal/playbook"
	"github.com/threatstream/threatstream/internal/risk"
	"github.com/threatstream/threatstream/internal/store"
)

// ThreatReader is the read-side persistence surface the handlers need.
type ThreatReader interface {
	GetThreat(ctx context.Context, id string) (*models.Threat, error)
	RecentThreats(ctx context.Context, limit int, severity models.Severity) ([]models.Threat, error)
	ThreatStats(ctx context.Context) (*models.ThreatStatsSummary, error)
	TopSourceCountries(ctx context.Context, n int) ([]models.CountryCount, error)
}

// StatsProvider supplies dashboard counters from the live pipeline.
type StatsProvider interface {
	DashboardStats(ctx context.Context) *models.DashboardStats
}

// EventPublisher injects simulated events into the inbound stream.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *models.SecurityEvent) error
}

// Handler holds the API endpoint implementations.
type Handler struct {
	cfg       config.APIConfig
	reader    ThreatReader
	alerts    *alerts.Service
	playbooks *playbook.Service
	risk      *risk.Aggregator
	epochs    *epoch.State
	stats     StatsProvider
	publisher EventPublisher

	startTime time.Time
}

// NewHandler wires the endpoint implementations. publisher may be nil;
// the simulate endpoint then answers 503.
func NewHandler(
	cfg config.APIConfig,
	reader ThreatReader,
	alertSvc *alerts.Service,
	playbookSvc *playbook.Service,
	aggregator *risk.Aggregator,
	epochs *epoch.State,
	stats StatsProvider,
	publisher EventPublisher,
) *Handler {
	return &Handler{
		cfg:       cfg,
		reader:    reader,
		alerts:    alertSvc,
		playbooks: playbookSvc,
		risk:      aggregator,
		epochs:    epochs,
		stats:     stats,
		publisher: publisher,
		startTime: time.Now(),
	}
}

type healthData struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Epoch         string  `json:"epoch,omitempty"`
	EpochSet      bool    `json:"epoch_set"`
}

// Health reports liveness plus the current scenario epoch.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	data := healthData{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if h.epochs != nil {
		data.Epoch, data.EpochSet = h.epochs.Current()
	}

	rw.Success(data)
}

// RecentThreats returns the newest threats, optionally filtered by
// severity.
func (h *Handler) RecentThreats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := RecentThreatsRequest{
		Limit:    queryInt(r, "limit", h.cfg.DefaultPageSize),
		Severity: strings.ToUpper(r.URL.Query().Get("severity")),
	}
	if req.Limit > h.cfg.MaxPageSize {
		req.Limit = h.cfg.MaxPageSize
	}
	if details := validateRequest(&req); details != nil {
		rw.ValidationFailed("invalid query parameters", details)
		return
	}

	threats, err := h.reader.RecentThreats(r.Context(), req.Limit, models.Severity(req.Severity))
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Failed to list recent threats")
		rw.Internal(ErrCodeStorage, "failed to list threats")
		return
	}

	rw.Success(models.ThreatsResponse{
		Threats: threats,
		Pagination: models.PaginationInfo{
			Limit:   req.Limit,
			HasMore: len(threats) == req.Limit,
		},
	})
}

// ThreatByID returns a single threat.
func (h *Handler) ThreatByID(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	threat, err := h.reader.GetThreat(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rw.NotFound("threat not found")
			return
		}
		logging.CtxErr(r.Context(), err).Str("threat_id", id).Msg("Failed to load threat")
		rw.Internal(ErrCodeStorage, "failed to load threat")
		return
	}

	rw.Success(threat)
}

// ThreatStats returns aggregate threat counts.
func (h *Handler) ThreatStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	summary, err := h.reader.ThreatStats(r.Context())
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Failed to compute threat stats")
		rw.Internal(ErrCodeStorage, "failed to compute stats")
		return
	}

	rw.Success(summary)
}

// ActiveAlerts returns all open alerts.
func (h *Handler) ActiveAlerts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	active, err := h.alerts.Active(r.Context())
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Failed to list active alerts")
		rw.Internal(ErrCodeStorage, "failed to list alerts")
		return
	}

	rw.Success(models.AlertsResponse{Alerts: active, Total: len(active)})
}

// AllAlerts returns the full alert history.
func (h *Handler) AllAlerts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	all, err := h.alerts.All(r.Context())
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Failed to list alerts")
		rw.Internal(ErrCodeStorage, "failed to list alerts")
		return
	}

	rw.Success(models.AlertsResponse{Alerts: all, Total: len(all)})
}

// AlertByID returns a single alert.
func (h *Handler) AlertByID(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	alert, err := h.alerts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, alerts.ErrNotFound) || errors.Is(err, store.ErrNotFound) {
			rw.NotFound("alert not found")
			return
		}
		logging.CtxErr(r.Context(), err).Str("alert_id", id).Msg("Failed to load alert")
		rw.Internal(ErrCodeStorage, "failed to load alert")
		return
	}

	rw.Success(alert)
}

// AcknowledgeAlert moves an alert to ACKNOWLEDGED.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	h.transitionAlert(w, r, h.alerts.Acknowledge)
}

// ResolveAlert moves an alert to RESOLVED.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	h.transitionAlert(w, r, h.alerts.Resolve)
}

func (h *Handler) transitionAlert(
	w http.ResponseWriter,
	r *http.Request,
	transition func(ctx context.Context, id, assignee string) (*models.Alert, error),
) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	var req AlertActionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rw.BadRequest("invalid request body")
			return
		}
	}
	if details := validateRequest(&req); details != nil {
		rw.ValidationFailed("invalid request body", details)
		return
	}

	alert, err := transition(r.Context(), id, req.Assignee)
	switch {
	case err == nil:
		rw.Success(alert)
	case errors.Is(err, alerts.ErrNotFound) || errors.Is(err, store.ErrNotFound):
		rw.NotFound("alert not found")
	case errors.Is(err, alerts.ErrInvalidTransition):
		rw.Conflict(err.Error())
	default:
		logging.CtxErr(r.Context(), err).Str("alert_id", id).Msg("Alert transition failed")
		rw.Internal(ErrCodeStorage, "alert transition failed")
	}
}

// Playbooks returns the playbook catalog.
func (h *Handler) Playbooks(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(h.playbooks.Catalog())
}

// PlaybookExecutions returns the execution history.
func (h *Handler) PlaybookExecutions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit := queryInt(r, "limit", h.cfg.DefaultPageSize)
	execs, err := h.playbooks.Executions(r.Context(), limit)
	if err != nil {
		logging.CtxErr(r.Context(), err).Msg("Failed to list playbook executions")
		rw.Internal(ErrCodeStorage, "failed to list executions")
		return
	}

	rw.Success(execs)
}

// ExecutePlaybook runs a playbook manually.
func (h *Handler) ExecutePlaybook(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	var req ExecutePlaybookRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rw.BadRequest("invalid request body")
			return
		}
	}
	if details := validateRequest(&req); details != nil {
		rw.ValidationFailed("invalid request body", details)
		return
	}

	exec, err := h.playbooks.Execute(r.Context(), id, req.AlertID, "manual")
	if err != nil {
		if errors.Is(err, playbook.ErrNotFound) {
			rw.NotFound("playbook not found")
			return
		}
		logging.CtxErr(r.Context(), err).Str("playbook_id", id).Msg("Playbook execution failed")
		rw.Internal(ErrCodeInternal, "playbook execution failed")
		return
	}

	rw.Success(exec)
}

// AnalyticsRisk returns the current risk index snapshot.
func (h *Handler) AnalyticsRisk(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(h.risk.Snapshot())
}

// AnalyticsTimeline returns the risk index history.
func (h *Handler) AnalyticsTimeline(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := TimelineRequest{Limit: queryInt(r, "limit", 0)}
	if details := validateRequest(&req); details != nil {
		rw.ValidationFailed("invalid query parameters", details)
		return
	}

	timeline := h.risk.Timeline()
	if req.Limit > 0 && len(timeline) > req.Limit {
		timeline = timeline[len(timeline)-req.Limit:]
	}

	rw.Success(timeline)
}

// AnalyticsDashboard returns the aggregate dashboard counters.
func (h *Handler) AnalyticsDashboard(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(h.stats.DashboardStats(r.Context()))
}

// SimulateEvent injects a synthetic security event into the inbound
// stream. The event travels the same path as events from real sources.
func (h *Handler) SimulateEvent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.publisher == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodePublish, "event stream unavailable")
		return
	}

	var req models.SimulateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if details := validateRequest(&req); details != nil {
		rw.ValidationFailed("invalid event", details)
		return
	}

	event := &models.SecurityEvent{
		EventID:    uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		EventType:  req.EventType,
		SourceIP:   req.SourceIP,
		Username:   req.Username,
		Message:    req.Message,
		ScenarioID: req.ScenarioID,
		Metadata:   req.Metadata,
	}

	if err := h.publisher.PublishEvent(r.Context(), event); err != nil {
		logging.CtxErr(r.Context(), err).
			Str("topic", eventstream.TopicRawEvents).
			Msg("Failed to publish simulated event")
		rw.Internal(ErrCodePublish, "failed to publish event")
		return
	}

	rw.Accepted(models.SimulateEventResponse{
		EventID: event.EventID,
		Status:  "queued",
	})
}
