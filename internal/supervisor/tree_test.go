// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatstream/threatstream/internal/logging"
	"github.com/threatstream/threatstream/internal/supervisor/services"
)

func testLogger() *slog.Logger {
	return slog.New(logging.NewSlogHandler())
}

func TestDefaultTreeConfig(t *testing.T) {
	cfg := DefaultTreeConfig()
	assert.Equal(t, 5.0, cfg.FailureThreshold)
	assert.Equal(t, 15*time.Second, cfg.FailureBackoff)
}

func TestTreeAppliesDefaults(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{})
	assert.Equal(t, 10*time.Second, tree.config.ShutdownTimeout)
}

func TestTreeRunsAndStopsServices(t *testing.T) {
	tree := NewTree(testLogger(), DefaultTreeConfig())

	started := make(chan struct{})
	tree.AddMessagingService(services.NewRunnerService("probe", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("service never started")
	}

	cancel()
	select {
	case err := <-errCh:
		require.True(t, err == nil || errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestTreeRestartsFailedService(t *testing.T) {
	tree := NewTree(testLogger(), DefaultTreeConfig())

	runs := make(chan struct{}, 4)
	tree.AddDataService(services.NewRunnerService("flaky", func(ctx context.Context) error {
		runs <- struct{}{}
		return errors.New("transient failure")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	// The service fails immediately; suture restarts it.
	for i := 0; i < 2; i++ {
		select {
		case <-runs:
		case <-time.After(10 * time.Second):
			t.Fatalf("expected restart %d never happened", i+1)
		}
	}
}
