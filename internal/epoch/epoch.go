// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package epoch owns the process-wide scenario epoch and the admission
// gate that drops events belonging to superseded scenario runs.
//
// The epoch is a monotonically-replaced identifier tagging which scenario
// run a batch of events belongs to. It starts unset, is set by the first
// epoch-tagged event, and is replaced (never merged) by an explicit
// epoch-change signal or a client handshake. A single State handle is
// constructed at startup and injected into every component that reads or
// advances it; there are no package-level globals.
package epoch

import (
	"sync"

	"github.com/threatstream/threatstream/internal/logging"
	"github.com/threatstream/threatstream/internal/models"
)

// MetadataEpochChange is the event metadata key that marks an explicit
// epoch-change signal. An event carrying this key with value "true"
// replaces the current epoch with its own scenario ID and is admitted.
const MetadataEpochChange = "epoch_change"

// Decision is the outcome of gating one event.
type Decision int

// Gate outcomes.
const (
	// Admitted means the event passed with the epoch unchanged.
	Admitted Decision = iota

	// AdmittedNew means the event introduced a new epoch and passed.
	AdmittedNew

	// Dropped means the event belongs to a superseded scenario run.
	Dropped
)

// String returns a human-readable decision name.
func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case AdmittedNew:
		return "admitted_new"
	case Dropped:
		return "dropped"
	}
	return "unknown"
}

// State is the shared scenario epoch handle. All methods are safe for
// concurrent use. The zero value is not usable; construct with NewState.
type State struct {
	mu      sync.RWMutex
	current string
	set     bool

	// generation increments on every epoch change, so readers can detect
	// a replacement even when the same identifier is reused.
	generation uint64
}

// NewState returns a State with no epoch set (no gating).
func NewState() *State {
	return &State{}
}

// Current returns the current epoch and whether one is set.
func (s *State) Current() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.set
}

// Generation returns the number of epoch changes since startup.
func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Matches reports whether id equals the current epoch. An unset epoch
// matches everything (no gating yet).
func (s *State) Matches(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.set || s.current == id
}

// Adopt replaces the current epoch with id and reports whether this
// changed the value. Used by the reconnection handshake and by explicit
// epoch-change signals.
func (s *State) Adopt(id string) bool {
	if id == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set && s.current == id {
		return false
	}
	s.current = id
	s.set = true
	s.generation++
	return true
}

// decide applies the gate contract for an event tagged with scenarioID.
// explicitChange marks an epoch-change signal; the introducing event is
// never itself considered stale.
func (s *State) decide(scenarioID string, explicitChange bool) Decision {
	if scenarioID == "" {
		return Admitted
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !s.set:
		s.current = scenarioID
		s.set = true
		s.generation++
		return AdmittedNew
	case s.current == scenarioID:
		return Admitted
	case explicitChange:
		s.current = scenarioID
		s.generation++
		return AdmittedNew
	default:
		return Dropped
	}
}

// Gate evaluates the epoch admission contract for raw events. It must run
// synchronously before any other pipeline work so no enrichment or scoring
// cost is spent on events already known to be obsolete.
type Gate struct {
	state *State
}

// NewGate returns a Gate over the shared state handle.
func NewGate(state *State) *Gate {
	return &Gate{state: state}
}

// State returns the underlying epoch handle.
func (g *Gate) State() *State {
	return g.state
}

// Admit decides whether event may enter the pipeline. Dropped events are
// traced at debug level only; a drop is routine, not an error.
func (g *Gate) Admit(event *models.SecurityEvent) Decision {
	explicit := event.Metadata[MetadataEpochChange] == "true"
	decision := g.state.decide(event.ScenarioID, explicit)

	switch decision {
	case AdmittedNew:
		logging.Info().
			Str("scenario_id", event.ScenarioID).
			Str("event_id", event.EventID).
			Msg("Scenario epoch adopted")
	case Dropped:
		current, _ := g.state.Current()
		logging.Debug().
			Str("scenario_id", event.ScenarioID).
			Str("current_epoch", current).
			Str("event_id", event.EventID).
			Msg("Stale-epoch event dropped")
	}

	return decision
}
