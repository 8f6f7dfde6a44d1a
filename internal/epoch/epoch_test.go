// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package epoch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatstream/threatstream/internal/models"
)

func event(scenarioID string, metadata map[string]string) *models.SecurityEvent {
	return &models.SecurityEvent{
		EventID:    "evt-1",
		EventType:  "port_scan",
		SourceIP:   "10.0.0.1",
		ScenarioID: scenarioID,
		Metadata:   metadata,
	}
}

func TestGate_NoScenarioAlwaysAdmitted(t *testing.T) {
	t.Parallel()

	gate := NewGate(NewState())

	assert.Equal(t, Admitted, gate.Admit(event("", nil)))

	// Still admitted after an epoch is set.
	gate.State().Adopt("A")
	assert.Equal(t, Admitted, gate.Admit(event("", nil)))
}

func TestGate_FirstTaggedEventSetsEpoch(t *testing.T) {
	t.Parallel()

	state := NewState()
	gate := NewGate(state)

	_, set := state.Current()
	require.False(t, set)

	assert.Equal(t, AdmittedNew, gate.Admit(event("B", nil)))

	current, set := state.Current()
	assert.True(t, set)
	assert.Equal(t, "B", current)
}

func TestGate_StaleEventDropped(t *testing.T) {
	t.Parallel()

	state := NewState()
	state.Adopt("A")
	gate := NewGate(state)

	assert.Equal(t, Dropped, gate.Admit(event("B", nil)))

	// The epoch must not move on a drop.
	current, _ := state.Current()
	assert.Equal(t, "A", current)
}

func TestGate_MatchingEventAdmitted(t *testing.T) {
	t.Parallel()

	state := NewState()
	state.Adopt("A")
	gate := NewGate(state)

	assert.Equal(t, Admitted, gate.Admit(event("A", nil)))
}

func TestGate_ExplicitChangeSignalAdvancesEpoch(t *testing.T) {
	t.Parallel()

	state := NewState()
	state.Adopt("A")
	gate := NewGate(state)

	meta := map[string]string{MetadataEpochChange: "true"}
	assert.Equal(t, AdmittedNew, gate.Admit(event("B", meta)))

	current, _ := state.Current()
	assert.Equal(t, "B", current)

	// Events from the old run are now stale.
	assert.Equal(t, Dropped, gate.Admit(event("A", nil)))
}

func TestState_AdoptReportsChange(t *testing.T) {
	t.Parallel()

	state := NewState()

	assert.True(t, state.Adopt("A"))
	assert.False(t, state.Adopt("A"), "re-adopting the same epoch is a no-op")
	assert.True(t, state.Adopt("B"))
	assert.False(t, state.Adopt(""), "empty epoch is ignored")

	assert.Equal(t, uint64(2), state.Generation())
}

func TestState_Matches(t *testing.T) {
	t.Parallel()

	state := NewState()
	assert.True(t, state.Matches("anything"), "unset epoch matches everything")

	state.Adopt("A")
	assert.True(t, state.Matches("A"))
	assert.False(t, state.Matches("B"))
}

func TestState_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	state := NewState()
	gate := NewGate(state)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			gate.Admit(event("A", nil))
		}()
		go func() {
			defer wg.Done()
			state.Current()
			state.Matches("A")
		}()
	}
	wg.Wait()

	current, set := state.Current()
	assert.True(t, set)
	assert.Equal(t, "A", current)
}
