// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package playbook

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatstream/threatstream/internal/models"
)

type memStore struct {
	mu    sync.Mutex
	execs []models.PlaybookExecution
	err   error
}

func (m *memStore) SaveExecution(_ context.Context, exec *models.PlaybookExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.execs = append(m.execs, *exec)
	return nil
}

func (m *memStore) ListExecutions(_ context.Context) ([]models.PlaybookExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PlaybookExecution, len(m.execs))
	copy(out, m.execs)
	return out, nil
}

func TestCatalog(t *testing.T) {
	svc := NewService(&memStore{})

	pbs := svc.Catalog()
	require.Len(t, pbs, 3)

	ids := make(map[string]models.Playbook, len(pbs))
	for _, pb := range pbs {
		ids[pb.ID] = pb
	}

	assert.True(t, ids["pb-brute-001"].AutoExecute)
	assert.True(t, ids["pb-ddos-001"].AutoExecute)
	assert.False(t, ids["pb-sql-001"].AutoExecute)

	for _, pb := range pbs {
		assert.NotEmpty(t, pb.Steps, pb.ID)
		assert.NotEmpty(t, pb.TriggerTypes, pb.ID)
	}
}

func TestGet(t *testing.T) {
	svc := NewService(&memStore{})

	pb, err := svc.Get("pb-ddos-001")
	require.NoError(t, err)
	assert.Equal(t, "DDoS Protection", pb.Name)

	_, err = svc.Get("pb-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMatchAuto(t *testing.T) {
	svc := NewService(&memStore{})

	matched := svc.MatchAuto(models.ThreatBruteForce, models.SeverityCritical)
	require.Len(t, matched, 1)
	assert.Equal(t, "pb-brute-001", matched[0].ID)

	// Below the playbook's minimum severity.
	assert.Empty(t, svc.MatchAuto(models.ThreatBruteForce, models.SeverityMedium))

	// Manual-only playbooks never auto-match.
	assert.Empty(t, svc.MatchAuto(models.ThreatSQLInjection, models.SeverityCritical))

	assert.Empty(t, svc.MatchAuto(models.ThreatPortScan, models.SeverityCritical))
}

func TestExecute_SimulatesAllSteps(t *testing.T) {
	store := &memStore{}
	svc := NewService(store)

	exec, err := svc.Execute(context.Background(), "pb-brute-001", "ALT-TEST0001", "manual")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(exec.ID, "EXE-"))
	assert.Equal(t, "pb-brute-001", exec.PlaybookID)
	assert.Equal(t, "ALT-TEST0001", exec.AlertID)
	assert.Equal(t, models.ExecutionCompleted, exec.Status)
	assert.Equal(t, "manual", exec.Triggered)
	require.NotNil(t, exec.CompletedAt)
	require.Len(t, exec.Actions, 3)
	for _, action := range exec.Actions {
		assert.True(t, action.Success)
		assert.NotEmpty(t, action.Detail)
		assert.False(t, action.ExecutedAt.IsZero())
	}

	stored, err := store.ListExecutions(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, exec.ID, stored[0].ID)
}

func TestExecute_UnknownPlaybook(t *testing.T) {
	svc := NewService(&memStore{})

	_, err := svc.Execute(context.Background(), "pb-nope", "", "manual")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecute_StoreFailureStillReturnsExecution(t *testing.T) {
	svc := NewService(&memStore{err: errors.New("disk full")})

	exec, err := svc.Execute(context.Background(), "pb-ddos-001", "", "manual")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, exec.Status)
}

func TestExecute_CancelledContext(t *testing.T) {
	svc := NewService(&memStore{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec, err := svc.Execute(ctx, "pb-brute-001", "", "auto")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, exec.Status)
	assert.Empty(t, exec.Actions)
}

func TestExecuteForAlert(t *testing.T) {
	store := &memStore{}
	svc := NewService(store)

	alert := &models.Alert{
		ID:         "ALT-TEST0002",
		Severity:   models.SeverityCritical,
		ThreatType: models.ThreatDDoSAttack,
	}

	execID := svc.ExecuteForAlert(context.Background(), alert)
	assert.True(t, strings.HasPrefix(execID, "EXE-"))

	stored, err := store.ListExecutions(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "auto", stored[0].Triggered)
	assert.Equal(t, alert.ID, stored[0].AlertID)
}

func TestExecuteForAlert_NoMatch(t *testing.T) {
	svc := NewService(&memStore{})

	execID := svc.ExecuteForAlert(context.Background(), &models.Alert{
		ID:         "ALT-TEST0003",
		Severity:   models.SeverityHigh,
		ThreatType: models.ThreatPortScan,
	})
	assert.Empty(t, execID)
}

func TestNewExecutionID_Format(t *testing.T) {
	id := NewExecutionID()
	assert.Len(t, id, 12)
	assert.True(t, strings.HasPrefix(id, "EXE-"))
	assert.Equal(t, strings.ToUpper(id), id)
}
