// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/threatstream/threatstream/internal/models"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		severity models.Severity
		score    int
		want     models.AlertPriority
	}{
		{"critical always P1", models.SeverityCritical, 0, models.PriorityP1},
		{"critical high score P1", models.SeverityCritical, 85, models.PriorityP1},
		{"high with score 80 promotes to P1", models.SeverityHigh, 80, models.PriorityP1},
		{"high with score 50 stays P2", models.SeverityHigh, 50, models.PriorityP2},
		{"high just under cutoff", models.SeverityHigh, 79, models.PriorityP2},
		{"medium with score 60 promotes to P2", models.SeverityMedium, 60, models.PriorityP2},
		{"medium with score 59 stays P3", models.SeverityMedium, 59, models.PriorityP3},
		{"low is P4", models.SeverityLow, 100, models.PriorityP4},
		{"info is P4", models.SeverityInfo, 100, models.PriorityP4},
		{"unknown severity is P4", models.Severity("BOGUS"), 100, models.PriorityP4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.severity, tt.score))
		})
	}
}

func TestClassify_MonotoneInSeverity(t *testing.T) {
	t.Parallel()

	// For any fixed score, urgency never increases as severity decreases.
	ordered := []models.Severity{
		models.SeverityCritical, models.SeverityHigh, models.SeverityMedium,
		models.SeverityLow, models.SeverityInfo,
	}
	for score := 0; score <= 100; score += 5 {
		prev := 5 // above P1's rank
		for _, sev := range ordered {
			rank := Classify(sev, score).Rank()
			assert.LessOrEqual(t, rank, prev,
				"severity %s score %d", sev, score)
			prev = rank
		}
	}
}

func TestShouldAlert(t *testing.T) {
	t.Parallel()

	assert.True(t, ShouldAlert(models.SeverityCritical))
	assert.True(t, ShouldAlert(models.SeverityHigh))
	assert.False(t, ShouldAlert(models.SeverityMedium))
	assert.False(t, ShouldAlert(models.SeverityLow))
	assert.False(t, ShouldAlert(models.SeverityInfo))
}
