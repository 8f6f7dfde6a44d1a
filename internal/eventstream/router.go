// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package eventstream

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/threatstream/threatstream/internal/metrics"
	"github.com/threatstream/threatstream/internal/models"
)

// EventHandlerFunc processes one decoded security event. A returned error
// triggers the router's retry policy; exhausting retries routes the raw
// message to the poison queue.
type EventHandlerFunc func(ctx context.Context, event *models.SecurityEvent) error

// Router wraps the Watermill router with panic recovery, retry with
// exponential backoff, and poison queue middleware.
type Router struct {
	router     *message.Router
	serializer *Serializer
	logger     watermill.LoggerAdapter
}

// NewRouter creates a router with the standard middleware chain.
// poisonPublisher may be nil to disable the poison queue.
func NewRouter(cfg Config, poisonPublisher message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	if poisonPublisher != nil && cfg.PoisonQueueTopic != "" {
		poison, err := middleware.PoisonQueue(poisonPublisher, cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	return &Router{
		router:     wmRouter,
		serializer: NewSerializer(),
		logger:     logger,
	}, nil
}

// AddEventHandler registers a no-publisher handler that decodes raw
// security events from topic and passes them to fn. Malformed payloads
// are acked and counted rather than retried; they can never succeed.
func (r *Router) AddEventHandler(name, topic string, subscriber message.Subscriber, fn EventHandlerFunc) {
	r.router.AddNoPublisherHandler(
		name,
		topic,
		subscriber,
		func(msg *message.Message) error {
			event, err := r.serializer.Unmarshal(msg.Payload)
			if err != nil {
				metrics.EventsDropped.WithLabelValues("malformed").Inc()
				r.logger.Error("Skipping malformed event payload", err, watermill.LogFields{
					"message_uuid": msg.UUID,
					"topic":        topic,
				})
				return nil
			}
			return fn(msg.Context(), event)
		},
	)
}

// Run starts the router and blocks until context cancellation.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel that closes once the router is running.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close gracefully stops the router, waiting up to CloseTimeout for
// in-flight messages.
func (r *Router) Close() error {
	return r.router.Close()
}
