// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/threatstream/config.yaml",
	"/etc/threatstream/config.yml",
}

// ConfigPathEnvVar overrides the config file search entirely.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variable names map onto koanf paths:
	// HTTP_PORT -> server.port, NATS_URL -> stream.url.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as
// comma-separated slices when they arrive as env var strings.
var sliceConfigPaths = []string{
	"api.cors_origins",
	"geo.hostile_countries",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings; YAML values are
// already slices and pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names onto koanf config
// paths. Unmapped keys return "" and are skipped, so random environment
// variables cannot pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_read_timeout":     "server.read_timeout",
		"http_write_timeout":    "server.write_timeout",
		"http_idle_timeout":     "server.idle_timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// API
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",
		"cors_origins":          "api.cors_origins",
		"rate_limit_requests":   "api.rate_limit_requests",
		"rate_limit_window":     "api.rate_limit_window",
		"disable_rate_limit":    "api.rate_limit_disabled",

		// Event stream (NATS / JetStream)
		"nats_url":             "stream.url",
		"nats_embedded":        "stream.embedded_server",
		"nats_host":            "stream.host",
		"nats_port":            "stream.port",
		"nats_store_dir":       "stream.store_dir",
		"nats_max_memory":      "stream.max_memory",
		"nats_max_store":       "stream.max_store",
		"nats_queue_group":     "stream.queue_group",
		"nats_durable_name":    "stream.durable_name",
		"nats_subscribers":     "stream.subscribers_count",
		"nats_ack_wait":        "stream.ack_wait_timeout",
		"nats_close_timeout":   "stream.close_timeout",
		"nats_max_deliver":     "stream.max_deliver",
		"nats_max_ack_pending": "stream.max_ack_pending",
		"nats_max_reconnects":  "stream.max_reconnects",
		"nats_reconnect_wait":  "stream.reconnect_wait",
		"nats_retry_count":     "stream.retry_max_retries",
		"nats_retry_interval":  "stream.retry_initial_interval",
		"nats_poison_topic":    "stream.poison_queue_topic",

		// WebSocket
		"ws_send_buffer":        "websocket.send_buffer_size",
		"ws_broadcast_buffer":   "websocket.broadcast_buffer_size",
		"ws_heartbeat_interval": "websocket.heartbeat_interval",
		"ws_initial_threats":    "websocket.initial_threats",

		// Store (Badger)
		"store_path":        "store.path",
		"store_in_memory":   "store.in_memory",
		"store_threat_ttl":  "store.threat_ttl",
		"store_gc_interval": "store.gc_interval",

		// Scoring
		"scoring_confidence_weight": "scoring.confidence_weight",
		"scoring_geo_weight":        "scoring.geo_weight",

		// Risk index
		"risk_floor":              "risk.floor",
		"risk_decay_factor":       "risk.decay_factor",
		"risk_decay_interval":     "risk.decay_interval",
		"risk_change_threshold":   "risk.change_threshold",
		"risk_heartbeat_interval": "risk.heartbeat_interval",

		// Geo enrichment
		"geo_hostile_countries":  "geo.hostile_countries",
		"geo_default_multiplier": "geo.default_multiplier",

		// AI analyzer
		"analyzer_enabled":        "analyzer.enabled",
		"analyzer_base_url":       "analyzer.base_url",
		"analyzer_api_key":        "analyzer.api_key",
		"openai_api_key":          "analyzer.api_key",
		"analyzer_model":          "analyzer.model",
		"analyzer_timeout":        "analyzer.timeout",
		"analyzer_max_concurrent": "analyzer.max_concurrent",
		"analyzer_rps":            "analyzer.requests_per_second",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload. The caller is
// responsible for mutex protection when swapping configuration during
// reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
