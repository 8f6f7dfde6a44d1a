// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package eventstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/threatstream/threatstream/internal/metrics"
	"github.com/threatstream/threatstream/internal/models"
)

// Publisher wraps a Watermill NATS publisher with circuit breaker
// protection and automatic reconnection handling.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	mu        sync.RWMutex
	closed    bool
	logger    watermill.LoggerAdapter
}

// NewPublisher creates a resilient Watermill NATS publisher with message
// ID tracking for JetStream deduplication.
func NewPublisher(cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "stream-publisher",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Publisher circuit breaker state change", watermill.LogFields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return &Publisher{
		publisher: pub,
		breaker:   breaker,
		logger:    logger,
	}, nil
}

// Publish sends a message to the topic with circuit breaker protection.
// The message UUID doubles as the Nats-Msg-Id for deduplication.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(topic, msg)
	})

	metrics.RecordStreamPublish(topic, err)
	return err
}

// publishJSON marshals v and publishes it with a fresh message UUID.
func (p *Publisher) publishJSON(ctx context.Context, topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return p.Publish(ctx, topic, message.NewMessage(uuid.New().String(), data))
}

// PublishThreat publishes an enriched threat on the analyzed topic.
func (p *Publisher) PublishThreat(ctx context.Context, threat *models.Threat) error {
	data, err := json.Marshal(threat)
	if err != nil {
		return fmt.Errorf("marshal threat: %w", err)
	}

	msg := message.NewMessage(threat.ID, data)
	msg.Metadata.Set("severity", string(threat.Analysis.Severity))
	msg.Metadata.Set("threat_type", string(threat.Analysis.ThreatType))

	return p.Publish(ctx, TopicAnalyzedThreats, msg)
}

// PublishAlert publishes an alert on the critical alerts topic.
func (p *Publisher) PublishAlert(ctx context.Context, alert *models.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	msg := message.NewMessage(alert.ID, data)
	msg.Metadata.Set("priority", string(alert.Priority))

	return p.Publish(ctx, TopicCriticalAlerts, msg)
}

// PublishRiskSnapshot publishes a risk snapshot on the risk index topic.
func (p *Publisher) PublishRiskSnapshot(ctx context.Context, snapshot *models.RiskSnapshot) error {
	return p.publishJSON(ctx, TopicRiskIndex, snapshot)
}

// PublishEvent publishes a raw security event, used by the simulation API.
func (p *Publisher) PublishEvent(ctx context.Context, event *models.SecurityEvent) error {
	data, err := NewSerializer().Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.EventID, data)
	msg.Metadata.Set("event_type", event.EventType)
	if event.ScenarioID != "" {
		msg.Metadata.Set("scenario_id", event.ScenarioID)
	}

	return p.Publish(ctx, TopicRawEvents, msg)
}

// WatermillPublisher returns the underlying Watermill publisher, for
// components that require the native interface (poison queue middleware).
func (p *Publisher) WatermillPublisher() message.Publisher {
	return p.publisher
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.publisher.Close()
}
