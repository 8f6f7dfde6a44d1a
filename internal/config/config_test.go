// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 50, cfg.API.DefaultPageSize)
	assert.True(t, cfg.Stream.EmbeddedServer)
	assert.False(t, cfg.Analyzer.Enabled)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.API.CORSOrigins)
	assert.Equal(t, "threatstream", cfg.Stream.QueueGroup)
	// The confidence weight is a points ceiling, not a fraction.
	assert.Equal(t, 20.0, cfg.Scoring.ConfidenceWeight)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("NATS_SUBSCRIBERS", "8")
	t.Setenv("RISK_FLOOR", "12.5")
	t.Setenv("STORE_IN_MEMORY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Stream.SubscribersCount)
	assert.Equal(t, 12.5, cfg.Risk.Floor)
	assert.True(t, cfg.Store.InMemory)
}

func TestLoadEnvSliceFields(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://soc.example.com, https://dash.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"https://soc.example.com", "https://dash.example.com"},
		cfg.API.CORSOrigins)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 7070
logging:
  level: warn
risk:
  floor: 20
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 20.0, cfg.Risk.Floor)
	// Untouched sections keep their defaults.
	assert.Equal(t, 50, cfg.API.DefaultPageSize)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("HTTP_PORT", "6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"max page below default", func(c *Config) { c.API.MaxPageSize = 10 }},
		{"no stream url without embedded", func(c *Config) {
			c.Stream.EmbeddedServer = false
			c.Stream.URL = ""
		}},
		{"risk floor negative", func(c *Config) { c.Risk.Floor = -1 }},
		{"decay factor out of range", func(c *Config) { c.Risk.DecayFactor = 1.5 }},
		{"thresholds not increasing", func(c *Config) {
			c.Risk.ElevatedAt = 80
			c.Risk.SuspiciousAt = 50
		}},
		{"confidence weight", func(c *Config) { c.Scoring.ConfidenceWeight = -5 }},
		{"confidence weight too large", func(c *Config) { c.Scoring.ConfidenceWeight = 150 }},
		{"analyzer enabled without key", func(c *Config) {
			c.Analyzer.Enabled = true
			c.Analyzer.APIKey = ""
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	assert.Equal(t, "server.port", envTransformFunc("HTTP_PORT"))
	assert.Equal(t, "stream.url", envTransformFunc("NATS_URL"))
	assert.Equal(t, "analyzer.api_key", envTransformFunc("OPENAI_API_KEY"))
	// Unmapped keys are skipped entirely.
	assert.Empty(t, envTransformFunc("PATH"))
	assert.Empty(t, envTransformFunc("HOME"))
}

func TestFindConfigFilePrefersEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	assert.Equal(t, path, findConfigFile())
}

func TestFindConfigFileMissingEnvPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")
	// Falls through to the default search, which finds nothing in a
	// test working directory.
	assert.Empty(t, findConfigFile())
}
