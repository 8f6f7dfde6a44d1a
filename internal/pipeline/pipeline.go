// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package pipeline orchestrates event processing: epoch gating, geo
// enrichment, analysis, scoring, threat assembly, and the independent
// fan-out to storage, the message stream, the risk aggregator, alerting,
// and the WebSocket hub.
//
// Fan-out steps fail independently: a dead store or broker never blocks
// broadcasts, and vice versa. A panic while processing one event is
// recovered, counted, and never takes the consumer down.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/threatstream/threatstream/internal/alerts"
	"github.com/threatstream/threatstream/internal/epoch"
	"github.com/threatstream/threatstream/internal/geo"
	"github.com/threatstream/threatstream/internal/logging"
	"github.com/threatstream/threatstream/internal/metrics"
	"github.com/threatstream/threatstream/internal/mitre"
	"github.com/threatstream/threatstream/internal/models"
	"github.com/threatstream/threatstream/internal/playbook"
	"github.com/threatstream/threatstream/internal/risk"
	"github.com/threatstream/threatstream/internal/scoring"
)

// detectionRingCap bounds the recent detection timestamps used for the
// events-per-minute rate.
const detectionRingCap = 100

// Analyzer classifies events; the concrete implementation degrades to a
// rule fallback and never fails.
type Analyzer interface {
	Analyze(ctx context.Context, event *models.SecurityEvent) models.Analysis
}

// Publisher is the outbound stream surface the pipeline needs.
type Publisher interface {
	PublishThreat(ctx context.Context, threat *models.Threat) error
	PublishAlert(ctx context.Context, alert *models.Alert) error
}

// Broadcaster is the WebSocket fan-out surface the pipeline needs.
type Broadcaster interface {
	BroadcastNewThreat(threat *models.Threat)
	BroadcastNewAlert(alert *models.Alert)
}

// ThreatStore is the persistence surface the pipeline needs.
type ThreatStore interface {
	SaveThreat(ctx context.Context, threat *models.Threat) error
	RecentThreats(ctx context.Context, limit int, severity models.Severity) ([]models.Threat, error)
	ThreatStats(ctx context.Context) (*models.ThreatStatsSummary, error)
	TopSourceCountries(ctx context.Context, n int) ([]models.CountryCount, error)
}

// Pipeline wires the processing stages together.
type Pipeline struct {
	gate       *epoch.Gate
	geo        *geo.Resolver
	analyzer   Analyzer
	scorer     *scoring.Engine
	aggregator *risk.Aggregator
	alerts     *alerts.Service
	playbooks  *playbook.Service
	store      ThreatStore
	publisher  Publisher
	hub        Broadcaster
	logger     zerolog.Logger

	totalEvents   atomic.Int64
	droppedEvents atomic.Int64
	totalThreats  atomic.Int64
	totalAlerts   atomic.Int64

	ringMu        sync.Mutex
	detectionRing []time.Time
	latencyTail   []int64
}

// New constructs a Pipeline. publisher and hub may be nil (tests,
// degraded operation); the corresponding fan-out steps are skipped.
func New(
	gate *epoch.Gate,
	geoResolver *geo.Resolver,
	analyzer Analyzer,
	scorer *scoring.Engine,
	aggregator *risk.Aggregator,
	alertSvc *alerts.Service,
	playbookSvc *playbook.Service,
	store ThreatStore,
	publisher Publisher,
	hub Broadcaster,
) *Pipeline {
	return &Pipeline{
		gate:       gate,
		geo:        geoResolver,
		analyzer:   analyzer,
		scorer:     scorer,
		aggregator: aggregator,
		alerts:     alertSvc,
		playbooks:  playbookSvc,
		store:      store,
		publisher:  publisher,
		hub:        hub,
		logger:     logging.WithComponent("pipeline"),
	}
}

// SetBroadcaster attaches the WebSocket hub after construction. The hub
// needs the pipeline as its state provider, so the two are wired in two
// steps before anything runs.
func (p *Pipeline) SetBroadcaster(hub Broadcaster) {
	p.hub = hub
}

// NewThreatID returns a fresh threat identifier, format THR-XXXXXXXX.
func NewThreatID() string {
	return "THR-" + strings.ToUpper(uuid.New().String()[:8])
}

// HandleEvent processes one raw security event end to end. It always
// returns nil: drops are deliberate, fan-out failures are independent,
// and panics are recovered, so the stream consumer never retries an
// event the pipeline has already judged.
func (p *Pipeline) HandleEvent(ctx context.Context, event *models.SecurityEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.EventsDropped.WithLabelValues("panic").Inc()
			p.droppedEvents.Add(1)
			p.logger.Error().
				Interface("panic", r).
				Str("event_id", event.EventID).
				Msg("Recovered panic while processing event")
			err = nil
		}
	}()

	metrics.EventsConsumed.Inc()
	p.totalEvents.Add(1)

	if p.gate.Admit(event) == epoch.Dropped {
		metrics.EventsDropped.WithLabelValues("stale_epoch").Inc()
		p.droppedEvents.Add(1)
		return nil
	}

	start := time.Now()
	threat := p.buildThreat(ctx, event, start)
	p.fanOut(ctx, threat)

	latency := time.Since(start)
	metrics.RecordEventProcessed(latency)
	metrics.RecordThreat(string(threat.Analysis.Severity), threat.Score)
	p.recordDetection(start, latency)

	return nil
}

// buildThreat runs the enrichment stages and assembles the threat.
func (p *Pipeline) buildThreat(ctx context.Context, event *models.SecurityEvent, start time.Time) *models.Threat {
	geoCtx := p.geo.Lookup(event.SourceIP)

	analysis := p.analyzer.Analyze(ctx, event)
	if analysis.Fallback {
		metrics.AnalyzerFallbacks.Inc()
	}

	score := p.scorer.Score(analysis, geoCtx)

	technique := mitre.Lookup(analysis.ThreatType)
	if technique == nil && analysis.TechniqueID != "" {
		technique = mitre.LookupByID(analysis.TechniqueID)
	}

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = start
	}

	return &models.Threat{
		ID:                  NewThreatID(),
		EventID:             event.EventID,
		Timestamp:           timestamp,
		EventType:           event.EventType,
		SourceIP:            event.SourceIP,
		Username:            event.Username,
		Message:             event.Message,
		Analysis:            analysis,
		Score:               score,
		Geo:                 geoCtx,
		MITRE:               technique,
		ScenarioID:          event.ScenarioID,
		ProcessedAt:         time.Now().UTC(),
		ProcessingLatencyMS: time.Since(start).Milliseconds(),
	}
}

// fanOut runs the independent downstream steps. Each failure is logged
// and counted without stopping the others.
func (p *Pipeline) fanOut(ctx context.Context, threat *models.Threat) {
	p.totalThreats.Add(1)

	if p.store != nil {
		if err := p.store.SaveThreat(ctx, threat); err != nil {
			metrics.StoreWriteErrors.WithLabelValues("threat").Inc()
			p.logger.Error().Err(err).Str("threat_id", threat.ID).Msg("Threat persistence failed")
		}
	}

	if p.publisher != nil {
		if err := p.publisher.PublishThreat(ctx, threat); err != nil {
			p.logger.Error().Err(err).Str("threat_id", threat.ID).Msg("Threat publish failed")
		}
	}

	if p.hub != nil {
		p.hub.BroadcastNewThreat(threat)
	}

	p.aggregator.Contribute(threat.Analysis.Severity, threat.Analysis.Confidence)

	if alerts.ShouldAlert(threat.Analysis.Severity) {
		p.raiseAlert(ctx, threat)
	}
}

// raiseAlert creates, publishes, and broadcasts an alert, then auto-runs
// matching playbooks. A failed save still produces a live alert so the
// dashboard sees it.
func (p *Pipeline) raiseAlert(ctx context.Context, threat *models.Threat) {
	alert, err := p.alerts.Create(ctx, threat)
	if err != nil && alert == nil {
		p.logger.Error().Err(err).Str("threat_id", threat.ID).Msg("Alert creation failed")
		return
	}

	p.totalAlerts.Add(1)
	metrics.RecordAlert(string(alert.Priority))

	if p.playbooks != nil {
		if execID := p.playbooks.ExecuteForAlert(ctx, alert); execID != "" {
			p.alerts.AttachExecution(ctx, alert, execID)
		}
	}

	if p.publisher != nil {
		if err := p.publisher.PublishAlert(ctx, alert); err != nil {
			p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("Alert publish failed")
		}
	}

	if p.hub != nil {
		p.hub.BroadcastNewAlert(alert)
	}
}

func (p *Pipeline) recordDetection(at time.Time, latency time.Duration) {
	p.ringMu.Lock()
	defer p.ringMu.Unlock()

	p.detectionRing = append(p.detectionRing, at)
	if len(p.detectionRing) > detectionRingCap {
		p.detectionRing = p.detectionRing[len(p.detectionRing)-detectionRingCap:]
	}
	p.latencyTail = append(p.latencyTail, latency.Milliseconds())
	if len(p.latencyTail) > detectionRingCap {
		p.latencyTail = p.latencyTail[len(p.latencyTail)-detectionRingCap:]
	}
}

// eventsPerMinute derives the recent ingest rate from the detection ring.
func (p *Pipeline) eventsPerMinute(now time.Time) float64 {
	p.ringMu.Lock()
	defer p.ringMu.Unlock()

	cutoff := now.Add(-time.Minute)
	count := 0
	for _, ts := range p.detectionRing {
		if ts.After(cutoff) {
			count++
		}
	}
	return float64(count)
}

// RecentThreats satisfies the WebSocket state provider.
func (p *Pipeline) RecentThreats(limit int) []*models.Threat {
	if p.store == nil {
		return nil
	}
	threats, err := p.store.RecentThreats(context.Background(), limit, "")
	if err != nil {
		p.logger.Error().Err(err).Msg("Recent threats lookup failed")
		return nil
	}
	out := make([]*models.Threat, len(threats))
	for i := range threats {
		out[i] = &threats[i]
	}
	return out
}

// ActiveAlerts satisfies the WebSocket state provider.
func (p *Pipeline) ActiveAlerts() []*models.Alert {
	active, err := p.alerts.Active(context.Background())
	if err != nil {
		p.logger.Error().Err(err).Msg("Active alerts lookup failed")
		return nil
	}
	out := make([]*models.Alert, len(active))
	for i := range active {
		out[i] = &active[i]
	}
	return out
}

// DashboardStats assembles the dashboard counters.
func (p *Pipeline) DashboardStats(ctx context.Context) *models.DashboardStats {
	now := time.Now().UTC()
	stats := &models.DashboardStats{
		TotalEvents:     p.totalEvents.Load(),
		TotalThreats:    p.totalThreats.Load(),
		DroppedEvents:   p.droppedEvents.Load(),
		BySeverity:      make(map[models.Severity]int64),
		ByThreatType:    make(map[models.ThreatType]int64),
		EventsPerMinute: p.eventsPerMinute(now),
		GeneratedAt:     now,
	}

	if p.store != nil {
		if summary, err := p.store.ThreatStats(ctx); err == nil {
			stats.BySeverity = summary.BySeverity
			stats.ByThreatType = summary.ByThreatType
		}
		if countries, err := p.store.TopSourceCountries(ctx, 5); err == nil {
			stats.TopSourceCountries = countries
		}
	}

	if active, err := p.alerts.Active(ctx); err == nil {
		stats.ActiveAlerts = len(active)
	}

	return stats
}
