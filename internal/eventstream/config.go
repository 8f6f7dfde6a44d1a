// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package eventstream

import "time"

// Well-known topics on the security event stream.
const (
	// TopicRawEvents carries raw security events from producers.
	TopicRawEvents = "security.raw.logs"

	// TopicAnalyzedThreats carries fully enriched, scored threats.
	TopicAnalyzedThreats = "security.analyzed.threats"

	// TopicCriticalAlerts carries operator-facing alerts.
	TopicCriticalAlerts = "security.critical.alerts"

	// TopicRiskIndex carries published risk snapshots.
	TopicRiskIndex = "security.risk.index"

	// TopicPoison receives raw messages that fail after all retries.
	TopicPoison = "security.raw.poison"
)

// Config holds NATS / Watermill event stream settings.
type Config struct {
	// URL is the NATS server address. Ignored when EmbeddedServer is set;
	// the embedded server's client URL is used instead.
	URL string `koanf:"url"`

	// EmbeddedServer runs an in-process NATS JetStream server for
	// single-instance deployments.
	EmbeddedServer bool   `koanf:"embedded_server"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	// QueueGroup load-balances consumption across instances.
	QueueGroup string `koanf:"queue_group"`

	// DurableName is the JetStream durable consumer prefix.
	DurableName string `koanf:"durable_name"`

	// SubscribersCount is the number of concurrent topic subscribers.
	SubscribersCount int `koanf:"subscribers_count"`

	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout"`
	CloseTimeout   time.Duration `koanf:"close_timeout"`
	MaxDeliver     int           `koanf:"max_deliver"`
	MaxAckPending  int           `koanf:"max_ack_pending"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`

	// Router retry policy for transient handler failures.
	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`

	// PoisonQueueTopic receives messages that exhaust retries. Empty
	// disables the poison queue.
	PoisonQueueTopic string `koanf:"poison_queue_topic"`

	// BreakerFailureThreshold trips the publish circuit breaker after
	// this many consecutive failures.
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
}

// DefaultConfig returns production defaults for the event stream.
func DefaultConfig() Config {
	return Config{
		URL:                     "nats://127.0.0.1:4222",
		EmbeddedServer:          true,
		Host:                    "127.0.0.1",
		Port:                    4222,
		StoreDir:                "./data/nats/jetstream",
		MaxMemory:               1 << 30,
		MaxStore:                10 << 30,
		QueueGroup:              "threatstream",
		DurableName:             "threat-pipeline",
		SubscribersCount:        4,
		AckWaitTimeout:          30 * time.Second,
		CloseTimeout:            30 * time.Second,
		MaxDeliver:              5,
		MaxAckPending:           1000,
		MaxReconnects:           -1,
		ReconnectWait:           2 * time.Second,
		RetryMaxRetries:         3,
		RetryInitialInterval:    100 * time.Millisecond,
		RetryMaxInterval:        10 * time.Second,
		RetryMultiplier:         2.0,
		PoisonQueueTopic:        TopicPoison,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          30 * time.Second,
	}
}
