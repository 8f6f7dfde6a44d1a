// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package main is the entry point for the ThreatStream server.
//
// ThreatStream consumes raw security events from NATS JetStream, gates
// them against the active scenario epoch, enriches and scores them,
// maintains a decaying organization-wide risk index, raises alerts with
// automated response playbooks, and pushes everything to dashboards
// over WebSocket in real time.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML, env)
//  2. Logging: zerolog, structured JSON by default
//  3. Store: BadgerDB for threats, alerts, and playbook executions
//  4. Event stream: embedded or external NATS with JetStream
//  5. Pipeline: epoch gate, geo enrichment, analyzer, scoring, risk
//  6. Supervision tree: suture restarts failed components with backoff
//
// # Configuration
//
// Everything is configurable via environment variables (see
// internal/config) or a YAML file located through CONFIG_PATH. Useful
// starting points:
//
//	export NATS_EMBEDDED=true
//	export STORE_PATH=./data/threatstream
//	export ANALYZER_ENABLED=true
//	export OPENAI_API_KEY=sk-...
//	./threatstream
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// connections, the stream router waits for in-flight messages, and the
// store flushes and closes.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/threatstream/threatstream/internal/alerts"
	"github.com/threatstream/threatstream/internal/analyzer"
	"github.com/threatstream/threatstream/internal/api"
	"github.com/threatstream/threatstream/internal/config"
	"github.com/threatstream/threatstream/internal/epoch"
	"github.com/threatstream/threatstream/internal/eventstream"
	"github.com/threatstream/threatstream/internal/geo"
	"github.com/threatstream/threatstream/internal/logging"
	"github.com/threatstream/threatstream/internal/metrics"
	"github.com/threatstream/threatstream/internal/models"
	"github.com/threatstream/threatstream/internal/pipeline"
	"github.com/threatstream/threatstream/internal/playbook"
	"github.com/threatstream/threatstream/internal/risk"
	"github.com/threatstream/threatstream/internal/scoring"
	"github.com/threatstream/threatstream/internal/store"
	"github.com/threatstream/threatstream/internal/supervisor"
	"github.com/threatstream/threatstream/internal/supervisor/services"
	ws "github.com/threatstream/threatstream/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Bool("embedded_nats", cfg.Stream.EmbeddedServer).
		Bool("analyzer_enabled", cfg.Analyzer.Enabled).
		Msg("Starting ThreatStream")

	// Persistence.
	db, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	// Event stream: embedded server first so clients have somewhere to
	// connect.
	if cfg.Stream.EmbeddedServer {
		embedded, err := eventstream.NewEmbeddedServer(cfg.Stream)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		defer func() {
			if err := embedded.Shutdown(context.Background()); err != nil {
				logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
			}
		}()
		cfg.Stream.URL = embedded.ClientURL()
		logging.Info().Str("url", cfg.Stream.URL).Msg("Embedded NATS server ready")
	}

	wmLogger := eventstream.NewWatermillLogger()

	publisher, err := eventstream.NewPublisher(cfg.Stream, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create stream publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing stream publisher")
		}
	}()

	subscriber, err := eventstream.NewSubscriber(cfg.Stream, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create stream subscriber")
	}
	defer func() {
		if err := subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing stream subscriber")
		}
	}()

	// Core pipeline collaborators.
	epochs := epoch.NewState()
	aggregator := risk.NewAggregator(cfg.Risk, epochs)
	alertSvc := alerts.NewService(db)
	playbookSvc := playbook.NewService(db)

	proc := pipeline.New(
		epoch.NewGate(epochs),
		geo.NewResolver(cfg.Geo),
		analyzer.New(cfg.Analyzer),
		scoring.NewEngine(cfg.Scoring),
		aggregator,
		alertSvc,
		playbookSvc,
		db,
		publisher,
		nil, // hub attached below via SetBroadcaster
	)

	hub := ws.NewHub(cfg.WebSocket, epochs, aggregator, proc)
	proc.SetBroadcaster(hub)

	// Stream router: raw events feed the pipeline.
	router, err := eventstream.NewRouter(cfg.Stream, publisher.WatermillPublisher(), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create stream router")
	}
	router.AddEventHandler("threat-pipeline", eventstream.TopicRawEvents,
		subscriber.WatermillSubscriber(), proc.HandleEvent)

	// HTTP surface.
	handler := api.NewHandler(cfg.API, db, alertSvc, playbookSvc, aggregator, epochs, proc, publisher)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(cfg.API, handler, hub).Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Risk snapshots fan out to the stream, the dashboards, and the
	// metrics endpoint.
	publishRisk := func(snapshot models.RiskSnapshot) error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Stream.CloseTimeout)
		defer cancel()

		if err := publisher.PublishRiskSnapshot(ctx, &snapshot); err != nil {
			return err
		}
		hub.BroadcastRiskUpdate(snapshot)
		hub.BroadcastRiskTimeline(aggregator.Timeline())
		metrics.RecordRiskPublish(snapshot.Value, snapshot.Reason)
		return nil
	}

	// Supervision tree.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	tree.AddDataService(services.NewRunnerService("store-gc", db.RunGC))
	tree.AddMessagingService(services.NewStreamRouterService(router))
	tree.AddMessagingService(services.NewRunnerService("websocket-hub", hub.Run))
	tree.AddMessagingService(services.NewRunnerService("websocket-heartbeat", hub.RunHeartbeat))
	tree.AddMessagingService(services.NewRunnerService("risk-decay", aggregator.RunDecay))
	tree.AddMessagingService(services.NewRunnerService("risk-publish", func(ctx context.Context) error {
		return aggregator.RunPublish(ctx, publishRisk)
	}))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	// Run until SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Supervision tree starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervision tree exited with error")
		os.Exit(1)
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	logging.Info().Msg("ThreatStream stopped")
}
