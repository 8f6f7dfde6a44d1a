// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatstream/threatstream/internal/alerts"
	"github.com/threatstream/threatstream/internal/epoch"
	"github.com/threatstream/threatstream/internal/geo"
	"github.com/threatstream/threatstream/internal/models"
	"github.com/threatstream/threatstream/internal/playbook"
	"github.com/threatstream/threatstream/internal/risk"
	"github.com/threatstream/threatstream/internal/scoring"
)

type fakeAnalyzer struct {
	analysis models.Analysis
	panics   bool
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ *models.SecurityEvent) models.Analysis {
	if f.panics {
		panic("analyzer blew up")
	}
	return f.analysis
}

type fakeStore struct {
	mu      sync.Mutex
	threats []*models.Threat
	alerts  map[string]*models.Alert
	execs   []models.PlaybookExecution
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{alerts: make(map[string]*models.Alert)}
}

func (f *fakeStore) SaveThreat(_ context.Context, threat *models.Threat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.threats = append(f.threats, threat)
	return nil
}

func (f *fakeStore) RecentThreats(_ context.Context, limit int, _ models.Severity) ([]models.Threat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Threat, 0, len(f.threats))
	for i := len(f.threats) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.threats[i])
	}
	return out, nil
}

func (f *fakeStore) ThreatStats(_ context.Context) (*models.ThreatStatsSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := &models.ThreatStatsSummary{
		Total:        int64(len(f.threats)),
		BySeverity:   make(map[models.Severity]int64),
		ByThreatType: make(map[models.ThreatType]int64),
	}
	for _, t := range f.threats {
		summary.BySeverity[t.Analysis.Severity]++
		summary.ByThreatType[t.Analysis.ThreatType]++
	}
	return summary, nil
}

func (f *fakeStore) TopSourceCountries(_ context.Context, n int) ([]models.CountryCount, error) {
	return nil, nil
}

func (f *fakeStore) SaveAlert(_ context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts[alert.ID] = alert
	return nil
}

func (f *fakeStore) GetAlert(_ context.Context, id string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.alerts[id]; ok {
		return a, nil
	}
	return nil, alerts.ErrNotFound
}

func (f *fakeStore) ListAlerts(_ context.Context, onlyOpen bool) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for _, a := range f.alerts {
		if onlyOpen && !a.Status.Open() {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeStore) SaveExecution(_ context.Context, exec *models.PlaybookExecution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, *exec)
	return nil
}

func (f *fakeStore) ListExecutions(_ context.Context) ([]models.PlaybookExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PlaybookExecution(nil), f.execs...), nil
}

type fakePublisher struct {
	mu      sync.Mutex
	threats []*models.Threat
	alerts  []*models.Alert
	err     error
}

func (f *fakePublisher) PublishThreat(_ context.Context, threat *models.Threat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.threats = append(f.threats, threat)
	return nil
}

func (f *fakePublisher) PublishAlert(_ context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, alert)
	return nil
}

type fakeHub struct {
	mu      sync.Mutex
	threats []*models.Threat
	alerts  []*models.Alert
}

func (f *fakeHub) BroadcastNewThreat(threat *models.Threat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threats = append(f.threats, threat)
}

func (f *fakeHub) BroadcastNewAlert(alert *models.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
}

type harness struct {
	pipeline   *Pipeline
	store      *fakeStore
	publisher  *fakePublisher
	hub        *fakeHub
	aggregator *risk.Aggregator
	epochs     *epoch.State
}

func newHarness(t *testing.T, analysis models.Analysis) *harness {
	t.Helper()
	return newHarnessWith(t, &fakeAnalyzer{analysis: analysis})
}

func newHarnessWith(t *testing.T, a Analyzer) *harness {
	t.Helper()

	epochs := epoch.NewState()
	store := newFakeStore()
	publisher := &fakePublisher{}
	hub := &fakeHub{}
	aggregator := risk.NewAggregator(risk.DefaultConfig(), epochs)

	p := New(
		epoch.NewGate(epochs),
		geo.NewResolver(geo.DefaultConfig()),
		a,
		scoring.NewEngine(scoring.DefaultConfig()),
		aggregator,
		alerts.NewService(store),
		playbook.NewService(store),
		store,
		publisher,
		hub,
	)

	return &harness{
		pipeline:   p,
		store:      store,
		publisher:  publisher,
		hub:        hub,
		aggregator: aggregator,
		epochs:     epochs,
	}
}

func criticalAnalysis() models.Analysis {
	return models.Analysis{
		Severity:   models.SeverityCritical,
		ThreatType: models.ThreatBruteForce,
		Confidence: 0.9,
	}
}

func TestHandleEvent_FullFanOut(t *testing.T) {
	h := newHarness(t, criticalAnalysis())

	err := h.pipeline.HandleEvent(context.Background(), &models.SecurityEvent{
		EventID:    "evt-1",
		EventType:  "brute_force",
		SourceIP:   "203.0.113.7",
		Username:   "root",
		ScenarioID: "scenario-a",
	})
	require.NoError(t, err)

	// Threat persisted, published, broadcast.
	require.Len(t, h.store.threats, 1)
	threat := h.store.threats[0]
	assert.True(t, strings.HasPrefix(threat.ID, "THR-"))
	assert.Equal(t, "evt-1", threat.EventID)
	assert.Equal(t, "scenario-a", threat.ScenarioID)
	assert.Positive(t, threat.Score)
	require.NotNil(t, threat.MITRE)
	assert.Equal(t, "T1110", threat.MITRE.TechniqueID)
	require.Len(t, h.publisher.threats, 1)
	require.Len(t, h.hub.threats, 1)

	// CRITICAL raises an alert with an auto-executed playbook.
	require.Len(t, h.publisher.alerts, 1)
	require.Len(t, h.hub.alerts, 1)
	alert := h.hub.alerts[0]
	assert.Equal(t, models.PriorityP1, alert.Priority)
	assert.True(t, strings.HasPrefix(alert.PlaybookExecutionID, "EXE-"))
	require.Len(t, h.store.execs, 1)
	assert.Equal(t, "auto", h.store.execs[0].Triggered)

	// Risk index moved off the floor.
	assert.Greater(t, h.aggregator.Snapshot().Value, risk.DefaultConfig().Floor)

	// Epoch adopted from the first scenario-tagged event.
	current, set := h.epochs.Current()
	assert.True(t, set)
	assert.Equal(t, "scenario-a", current)
}

func TestHandleEvent_InfoSeverityNoAlert(t *testing.T) {
	h := newHarness(t, models.Analysis{
		Severity:   models.SeverityInfo,
		ThreatType: models.ThreatNormalTraffic,
		Confidence: 0.95,
	})

	err := h.pipeline.HandleEvent(context.Background(), &models.SecurityEvent{
		EventID:   "evt-2",
		EventType: "normal_traffic",
		SourceIP:  "10.0.0.5",
	})
	require.NoError(t, err)

	assert.Len(t, h.store.threats, 1)
	assert.Empty(t, h.publisher.alerts)
	assert.Empty(t, h.hub.alerts)
}

func TestHandleEvent_StaleEpochDropped(t *testing.T) {
	h := newHarness(t, criticalAnalysis())
	h.epochs.Adopt("scenario-a")

	err := h.pipeline.HandleEvent(context.Background(), &models.SecurityEvent{
		EventID:    "evt-3",
		EventType:  "brute_force",
		SourceIP:   "203.0.113.7",
		ScenarioID: "scenario-b",
	})
	require.NoError(t, err)

	assert.Empty(t, h.store.threats)
	assert.Empty(t, h.hub.threats)

	stats := h.pipeline.DashboardStats(context.Background())
	assert.Equal(t, int64(1), stats.DroppedEvents)
	assert.Equal(t, int64(0), stats.TotalThreats)
}

func TestHandleEvent_EpochChangeSignalAdmits(t *testing.T) {
	h := newHarness(t, criticalAnalysis())
	h.epochs.Adopt("scenario-a")

	err := h.pipeline.HandleEvent(context.Background(), &models.SecurityEvent{
		EventID:    "evt-4",
		EventType:  "brute_force",
		SourceIP:   "203.0.113.7",
		ScenarioID: "scenario-b",
		Metadata:   map[string]string{"epoch_change": "true"},
	})
	require.NoError(t, err)

	assert.Len(t, h.store.threats, 1)
	current, _ := h.epochs.Current()
	assert.Equal(t, "scenario-b", current)
}

func TestHandleEvent_StoreFailureDoesNotBlockFanOut(t *testing.T) {
	h := newHarness(t, criticalAnalysis())
	h.store.saveErr = errors.New("disk full")

	err := h.pipeline.HandleEvent(context.Background(), &models.SecurityEvent{
		EventID:   "evt-5",
		EventType: "brute_force",
		SourceIP:  "203.0.113.7",
	})
	require.NoError(t, err)

	assert.Len(t, h.publisher.threats, 1)
	assert.Len(t, h.hub.threats, 1)
}

func TestHandleEvent_PublisherFailureDoesNotBlockBroadcast(t *testing.T) {
	h := newHarness(t, criticalAnalysis())
	h.publisher.err = errors.New("broker down")

	err := h.pipeline.HandleEvent(context.Background(), &models.SecurityEvent{
		EventID:   "evt-6",
		EventType: "brute_force",
		SourceIP:  "203.0.113.7",
	})
	require.NoError(t, err)

	assert.Len(t, h.store.threats, 1)
	assert.Len(t, h.hub.threats, 1)
	assert.Len(t, h.hub.alerts, 1)
}

func TestHandleEvent_PanicRecovered(t *testing.T) {
	h := newHarnessWith(t, &fakeAnalyzer{panics: true})

	err := h.pipeline.HandleEvent(context.Background(), &models.SecurityEvent{
		EventID:   "evt-7",
		EventType: "brute_force",
		SourceIP:  "203.0.113.7",
	})
	require.NoError(t, err)

	stats := h.pipeline.DashboardStats(context.Background())
	assert.Equal(t, int64(1), stats.DroppedEvents)
}

func TestStateProvider(t *testing.T) {
	h := newHarness(t, criticalAnalysis())

	for _, id := range []string{"evt-a", "evt-b", "evt-c"} {
		require.NoError(t, h.pipeline.HandleEvent(context.Background(), &models.SecurityEvent{
			EventID:   id,
			EventType: "brute_force",
			SourceIP:  "203.0.113.7",
		}))
	}

	threats := h.pipeline.RecentThreats(2)
	assert.Len(t, threats, 2)

	active := h.pipeline.ActiveAlerts()
	assert.Len(t, active, 3)
	for _, a := range active {
		assert.True(t, a.Status.Open())
	}
}

func TestDashboardStats(t *testing.T) {
	h := newHarness(t, criticalAnalysis())

	require.NoError(t, h.pipeline.HandleEvent(context.Background(), &models.SecurityEvent{
		EventID:   "evt-8",
		EventType: "brute_force",
		SourceIP:  "203.0.113.7",
	}))

	stats := h.pipeline.DashboardStats(context.Background())
	assert.Equal(t, int64(1), stats.TotalEvents)
	assert.Equal(t, int64(1), stats.TotalThreats)
	assert.Equal(t, 1, stats.ActiveAlerts)
	assert.Equal(t, int64(1), stats.BySeverity[models.SeverityCritical])
	assert.Equal(t, 1.0, stats.EventsPerMinute)
	assert.False(t, stats.GeneratedAt.IsZero())
}
