// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityRank_Ordering(t *testing.T) {
	t.Parallel()

	ordered := []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Rank(), ordered[i-1].Rank(),
			"%s should outrank %s", ordered[i], ordered[i-1])
	}
}

func TestSeverityRank_Unknown(t *testing.T) {
	t.Parallel()

	assert.Equal(t, -1, Severity("BOGUS").Rank())
	assert.False(t, Severity("BOGUS").Valid())
}

func TestSeverityAtLeast(t *testing.T) {
	t.Parallel()

	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
	assert.True(t, SeverityInfo.AtLeast(Severity("BOGUS")))
}

func TestThreatTypeValid(t *testing.T) {
	t.Parallel()

	valid := []ThreatType{
		ThreatBruteForce, ThreatSQLInjection, ThreatDDoSAttack,
		ThreatRansomware, ThreatMalware, ThreatPortScan,
		ThreatDataExfiltration, ThreatNormalTraffic, ThreatUnknown,
	}
	for _, tt := range valid {
		assert.True(t, tt.Valid(), "%s should be valid", tt)
	}
	assert.False(t, ThreatType("PIGEON_ATTACK").Valid())
}

func TestAlertStatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from    AlertStatus
		to      AlertStatus
		allowed bool
	}{
		{AlertNew, AlertAcknowledged, true},
		{AlertNew, AlertResolved, true},
		{AlertAcknowledged, AlertInvestigating, true},
		{AlertInvestigating, AlertResolved, true},
		{AlertInvestigating, AlertFalsePositive, true},
		{AlertResolved, AlertAcknowledged, false},
		{AlertFalsePositive, AlertNew, false},
		{AlertAcknowledged, AlertNew, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestAlertStatusOpen(t *testing.T) {
	t.Parallel()

	assert.True(t, AlertNew.Open())
	assert.True(t, AlertAcknowledged.Open())
	assert.True(t, AlertInvestigating.Open())
	assert.False(t, AlertResolved.Open())
	assert.False(t, AlertFalsePositive.Open())
}

func TestAlertPriorityRank(t *testing.T) {
	t.Parallel()

	assert.Greater(t, PriorityP1.Rank(), PriorityP2.Rank())
	assert.Greater(t, PriorityP2.Rank(), PriorityP3.Rank())
	assert.Greater(t, PriorityP3.Rank(), PriorityP4.Rank())
	assert.Equal(t, 0, AlertPriority("P9").Rank())
}
