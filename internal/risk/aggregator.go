// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package risk owns the single mutable risk-index state machine: signed
// per-threat contributions, periodic decay toward a floor, trend
// classification over a bounded history, and the change-or-heartbeat
// publish policy.
//
// One Aggregator is constructed at startup and injected into the pipeline,
// the WebSocket handshake, and the periodic tick services. All state lives
// behind a single mutex; no lock is held across a publish call.
package risk

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/threatstream/threatstream/internal/epoch"
	"github.com/threatstream/threatstream/internal/logging"
	"github.com/threatstream/threatstream/internal/models"
)

// Publish reasons recorded on emitted snapshots.
const (
	ReasonChange        = "change"
	ReasonHeartbeat     = "heartbeat"
	ReasonBaselineReset = "baseline_reset"
)

// Config holds the aggregator tunables. The shape (signed contributions,
// bounded history, clamped value, floor above zero) is fixed; the numbers
// are policy.
type Config struct {
	// SeverityWeights is the signed contribution weight per severity.
	// INFO is negative: confirmed-normal traffic reduces the index.
	SeverityWeights map[models.Severity]float64 `koanf:"severity_weights"`

	// Floor is the irreducible baseline risk; decay never goes below it
	// and baseline resets return to it.
	Floor float64 `koanf:"floor"`

	// DecayFactor multiplies the value on each decay tick.
	DecayFactor float64 `koanf:"decay_factor"`

	// DecayInterval is the decay tick period.
	DecayInterval time.Duration `koanf:"decay_interval"`

	// HistoryCapacity bounds the trend history ring.
	HistoryCapacity int `koanf:"history_capacity"`

	// TrendRecentSamples is how many newest samples form the "recent"
	// mean for trend classification.
	TrendRecentSamples int `koanf:"trend_recent_samples"`

	// TrendMargin is the dead band around equal means.
	TrendMargin float64 `koanf:"trend_margin"`

	// ChangeThreshold is the minimum |value - last_published| that
	// triggers a change publish.
	ChangeThreshold float64 `koanf:"change_threshold"`

	// HeartbeatInterval bounds staleness: publish at least this often.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// PublishCheckInterval is how often the publish policy is evaluated.
	PublishCheckInterval time.Duration `koanf:"publish_check_interval"`

	// Level thresholds: value >= CriticalAt is CRITICAL, >= SuspiciousAt
	// is SUSPICIOUS, >= ElevatedAt is ELEVATED, else NORMAL.
	ElevatedAt   float64 `koanf:"elevated_at"`
	SuspiciousAt float64 `koanf:"suspicious_at"`
	CriticalAt   float64 `koanf:"critical_at"`
}

// DefaultConfig returns the standard aggregator tunables.
func DefaultConfig() Config {
	return Config{
		SeverityWeights: map[models.Severity]float64{
			models.SeverityCritical: 15,
			models.SeverityHigh:     8,
			models.SeverityMedium:   3,
			models.SeverityLow:      1,
			models.SeverityInfo:     -3,
		},
		Floor:                10,
		DecayFactor:          0.98,
		DecayInterval:        30 * time.Second,
		HistoryCapacity:      30,
		TrendRecentSamples:   3,
		TrendMargin:          2.0,
		ChangeThreshold:      1,
		HeartbeatInterval:    10 * time.Second,
		PublishCheckInterval: time.Second,
		ElevatedAt:           31,
		SuspiciousAt:         61,
		CriticalAt:           86,
	}
}

// Aggregator is the risk-index state machine. Safe for concurrent use.
type Aggregator struct {
	cfg    Config
	epochs *epoch.State
	logger zerolog.Logger

	mu          sync.Mutex
	value       float64
	history     []models.TimelinePoint
	trend       models.RiskTrend
	threatCount int

	lastPublishedValue float64
	published          bool
	lastPublishTime    time.Time
}

// NewAggregator builds an Aggregator starting at the baseline floor.
func NewAggregator(cfg Config, epochs *epoch.State) *Aggregator {
	defaults := DefaultConfig()
	if len(cfg.SeverityWeights) == 0 {
		cfg.SeverityWeights = defaults.SeverityWeights
	}
	if cfg.Floor == 0 {
		cfg.Floor = defaults.Floor
	}
	if cfg.DecayFactor == 0 {
		cfg.DecayFactor = defaults.DecayFactor
	}
	if cfg.DecayInterval == 0 {
		cfg.DecayInterval = defaults.DecayInterval
	}
	if cfg.HistoryCapacity == 0 {
		cfg.HistoryCapacity = defaults.HistoryCapacity
	}
	if cfg.TrendRecentSamples == 0 {
		cfg.TrendRecentSamples = defaults.TrendRecentSamples
	}
	if cfg.TrendMargin == 0 {
		cfg.TrendMargin = defaults.TrendMargin
	}
	if cfg.ChangeThreshold == 0 {
		cfg.ChangeThreshold = defaults.ChangeThreshold
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.PublishCheckInterval == 0 {
		cfg.PublishCheckInterval = defaults.PublishCheckInterval
	}
	if cfg.ElevatedAt == 0 {
		cfg.ElevatedAt = defaults.ElevatedAt
	}
	if cfg.SuspiciousAt == 0 {
		cfg.SuspiciousAt = defaults.SuspiciousAt
	}
	if cfg.CriticalAt == 0 {
		cfg.CriticalAt = defaults.CriticalAt
	}

	a := &Aggregator{
		cfg:    cfg,
		epochs: epochs,
		logger: logging.WithComponent("risk"),
		value:  cfg.Floor,
		trend:  models.TrendStable,
	}
	// The starting baseline is the first history point, so the trend can
	// classify as soon as enough contributions arrive.
	a.history = append(a.history, models.TimelinePoint{
		Timestamp: time.Now(),
		Value:     a.value,
		Level:     a.LevelFor(a.value),
	})
	return a
}

// Contribute applies one scored threat's signed contribution:
// weight(severity) * confidence, clamped to [0, 100].
func (a *Aggregator) Contribute(severity models.Severity, confidence float64) models.RiskSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	contribution := a.cfg.SeverityWeights[severity] * clamp01(confidence)
	a.value = clamp(a.value+contribution, 0, 100)
	a.threatCount++
	a.recordLocked()

	return a.snapshotLocked("")
}

// Decay applies one decay tick: value = max(floor, value * decay_factor).
func (a *Aggregator) Decay() models.RiskSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	decayed := a.value * a.cfg.DecayFactor
	if decayed < a.cfg.Floor {
		decayed = a.cfg.Floor
	}
	a.value = decayed
	a.recordLocked()

	return a.snapshotLocked("")
}

// Snapshot returns the current risk reading without mutating state.
func (a *Aggregator) Snapshot() models.RiskSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked("")
}

// Timeline returns a copy of the recent history ring, oldest first.
func (a *Aggregator) Timeline() []models.TimelinePoint {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]models.TimelinePoint, len(a.history))
	copy(out, a.history)
	return out
}

// ResetBaseline returns the aggregator to the floor with empty history and
// STABLE trend. Called when a reconnection handshake reveals an epoch
// change; the returned snapshot is the explicit baseline reading served to
// the reconnecting client.
func (a *Aggregator) ResetBaseline() models.RiskSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.value = a.cfg.Floor
	a.history = a.history[:0]
	a.trend = models.TrendStable
	a.threatCount = 0
	a.published = false
	a.lastPublishedValue = 0
	a.lastPublishTime = time.Time{}

	a.logger.Info().Float64("value", a.value).Msg("Risk baseline reset")

	return a.snapshotLocked(ReasonBaselineReset)
}

// PublishFunc delivers one snapshot downstream. A non-nil error means the
// publish did not happen and the policy bookkeeping must not advance.
type PublishFunc func(models.RiskSnapshot) error

// CheckPublish evaluates the publish policy once and, when due, emits a
// snapshot via publish. Bookkeeping advances only after publish returns
// nil, so a failed downstream publish leaves the pending change pending.
func (a *Aggregator) CheckPublish(publish PublishFunc) (bool, error) {
	a.mu.Lock()

	reason, due := a.publishDueLocked(time.Now())
	if !due {
		a.mu.Unlock()
		return false, nil
	}
	snapshot := a.snapshotLocked(reason)
	a.mu.Unlock()

	// No lock across the publish call.
	if err := publish(snapshot); err != nil {
		return false, err
	}

	a.mu.Lock()
	a.published = true
	a.lastPublishedValue = snapshot.Value
	a.lastPublishTime = time.Now()
	a.mu.Unlock()

	a.logger.Debug().
		Float64("value", snapshot.Value).
		Str("reason", reason).
		Msg("Risk snapshot published")
	return true, nil
}

// publishDueLocked implements the change-or-heartbeat policy.
func (a *Aggregator) publishDueLocked(now time.Time) (string, bool) {
	if !a.published {
		return ReasonChange, true
	}
	if abs(a.value-a.lastPublishedValue) >= a.cfg.ChangeThreshold {
		return ReasonChange, true
	}
	if now.Sub(a.lastPublishTime) >= a.cfg.HeartbeatInterval {
		return ReasonHeartbeat, true
	}
	return "", false
}

// RunDecay applies decay ticks until ctx is cancelled.
func (a *Aggregator) RunDecay(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.DecayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.Decay()
		}
	}
}

// RunPublish evaluates the publish policy on its interval until ctx is
// cancelled. Publish failures are logged and retried on the next tick.
func (a *Aggregator) RunPublish(ctx context.Context, publish PublishFunc) error {
	ticker := time.NewTicker(a.cfg.PublishCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.CheckPublish(publish); err != nil {
				a.logger.Warn().Err(err).Msg("Risk snapshot publish failed")
			}
		}
	}
}

// LevelFor maps a risk value onto its display band.
func (a *Aggregator) LevelFor(value float64) models.RiskLevel {
	switch {
	case value >= a.cfg.CriticalAt:
		return models.RiskCritical
	case value >= a.cfg.SuspiciousAt:
		return models.RiskSuspicious
	case value >= a.cfg.ElevatedAt:
		return models.RiskElevated
	default:
		return models.RiskNormal
	}
}

// recordLocked appends the current value to the history ring and
// recomputes the trend. Caller holds a.mu.
func (a *Aggregator) recordLocked() {
	point := models.TimelinePoint{
		Timestamp: time.Now(),
		Value:     a.value,
		Level:     a.LevelFor(a.value),
	}
	a.history = append(a.history, point)
	if len(a.history) > a.cfg.HistoryCapacity {
		a.history = a.history[len(a.history)-a.cfg.HistoryCapacity:]
	}
	a.trend = a.trendLocked()
}

// trendLocked compares the mean of the newest samples to the mean of all
// older samples. Caller holds a.mu.
func (a *Aggregator) trendLocked() models.RiskTrend {
	recent := a.cfg.TrendRecentSamples
	if len(a.history) <= recent {
		// Not enough older samples to compare against.
		return models.TrendStable
	}

	recentSum := 0.0
	for _, p := range a.history[len(a.history)-recent:] {
		recentSum += p.Value
	}
	olderSum := 0.0
	older := a.history[:len(a.history)-recent]
	for _, p := range older {
		olderSum += p.Value
	}

	recentMean := recentSum / float64(recent)
	olderMean := olderSum / float64(len(older))

	switch {
	case recentMean > olderMean+a.cfg.TrendMargin:
		return models.TrendRising
	case recentMean < olderMean-a.cfg.TrendMargin:
		return models.TrendFalling
	default:
		return models.TrendStable
	}
}

// snapshotLocked builds a snapshot stamped with the current epoch.
// Caller holds a.mu.
func (a *Aggregator) snapshotLocked(reason string) models.RiskSnapshot {
	scenario := ""
	if a.epochs != nil {
		scenario, _ = a.epochs.Current()
	}
	return models.RiskSnapshot{
		Value:       a.value,
		Level:       a.LevelFor(a.value),
		Trend:       a.trend,
		ScenarioID:  scenario,
		ThreatCount: a.threatCount,
		Reason:      reason,
		Timestamp:   time.Now(),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
