// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package config loads and validates the ThreatStream configuration from
// three layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/threatstream/threatstream/internal/analyzer"
	"github.com/threatstream/threatstream/internal/eventstream"
	"github.com/threatstream/threatstream/internal/geo"
	"github.com/threatstream/threatstream/internal/risk"
	"github.com/threatstream/threatstream/internal/scoring"
	"github.com/threatstream/threatstream/internal/store"
	"github.com/threatstream/threatstream/internal/websocket"
)

// Config is the root configuration for the ThreatStream server.
type Config struct {
	Server    ServerConfig       `koanf:"server"`
	Logging   LoggingConfig      `koanf:"logging"`
	API       APIConfig          `koanf:"api"`
	Stream    eventstream.Config `koanf:"stream"`
	WebSocket websocket.Config   `koanf:"websocket"`
	Store     store.Config       `koanf:"store"`
	Scoring   scoring.Config     `koanf:"scoring"`
	Risk      risk.Config        `koanf:"risk"`
	Geo       geo.Config         `koanf:"geo"`
	Analyzer  analyzer.Config    `koanf:"analyzer"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `koanf:"host" validate:"required"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
}

// LoggingConfig controls the zerolog setup. It mirrors the logging
// package's own Config, which carries no koanf tags of its own.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// APIConfig controls the REST API surface.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size" validate:"min=1"`
	MaxPageSize     int `koanf:"max_page_size" validate:"min=1"`

	// CORSOrigins lists allowed browser origins; "*" allows all.
	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns the host:port the HTTP server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// defaultConfig returns a fully populated Config with sensible defaults.
// These are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		API: APIConfig{
			DefaultPageSize:   50,
			MaxPageSize:       500,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Stream:    eventstream.DefaultConfig(),
		WebSocket: websocket.DefaultConfig(),
		Store:     store.DefaultConfig(),
		Scoring:   scoring.DefaultConfig(),
		Risk:      risk.DefaultConfig(),
		Geo:       geo.DefaultConfig(),
		Analyzer:  analyzer.DefaultConfig(),
	}
}

var validate = validator.New()

// Validate checks the configuration for values that would make the
// server misbehave at runtime rather than fail fast at startup.
func (c *Config) Validate() error {
	if err := validate.Struct(c.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validate.Struct(c.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if err := validate.Struct(c.API); err != nil {
		return fmt.Errorf("api config: %w", err)
	}

	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api config: max_page_size %d below default_page_size %d",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}

	if c.Stream.URL == "" && !c.Stream.EmbeddedServer {
		return fmt.Errorf("stream config: url required when embedded_server is disabled")
	}

	if c.Risk.Floor < 0 || c.Risk.Floor > 100 {
		return fmt.Errorf("risk config: floor %.1f outside [0, 100]", c.Risk.Floor)
	}
	if c.Risk.DecayFactor <= 0 || c.Risk.DecayFactor >= 1 {
		return fmt.Errorf("risk config: decay_factor %.3f outside (0, 1)", c.Risk.DecayFactor)
	}
	if !(c.Risk.ElevatedAt < c.Risk.SuspiciousAt && c.Risk.SuspiciousAt < c.Risk.CriticalAt) {
		return fmt.Errorf("risk config: level thresholds must be strictly increasing")
	}

	if c.Scoring.ConfidenceWeight <= 0 || c.Scoring.ConfidenceWeight > 100 {
		return fmt.Errorf("scoring config: confidence_weight %.1f outside (0, 100]", c.Scoring.ConfidenceWeight)
	}

	if c.Analyzer.Enabled && c.Analyzer.APIKey == "" {
		return fmt.Errorf("analyzer config: api_key required when analyzer is enabled")
	}

	return nil
}
