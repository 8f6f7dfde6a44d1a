// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package analyzer is the analysis collaborator: it classifies raw
// security events into severity, threat type, and confidence.
//
// The primary path calls an OpenAI-compatible chat model. That path is
// guarded three ways: a per-call timeout, a bounded concurrency semaphore
// with a client-side rate limiter, and a circuit breaker that short-stops
// calls after consecutive failures. Whenever the primary path is
// unavailable, times out, or returns garbage, the deterministic rule-based
// fallback produces the analysis instead — Analyze never fails.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/threatstream/threatstream/internal/cache"
	"github.com/threatstream/threatstream/internal/logging"
	"github.com/threatstream/threatstream/internal/models"
)

// Config holds analyzer settings.
type Config struct {
	// Enabled turns the AI path on. When false, every event takes the
	// rule-based fallback.
	Enabled bool `koanf:"enabled"`

	// BaseURL points at an OpenAI-compatible endpoint. Empty uses the
	// default OpenAI API.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates to the endpoint.
	APIKey string `koanf:"api_key"`

	// Model is the chat model name.
	Model string `koanf:"model"`

	// Timeout bounds one analysis call.
	Timeout time.Duration `koanf:"timeout"`

	// MaxConcurrent bounds outstanding AI calls; callers over the limit
	// wait rather than spawning unbounded work.
	MaxConcurrent int64 `koanf:"max_concurrent"`

	// RequestsPerSecond and Burst shape the client-side rate limit.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`

	// BreakerFailureThreshold trips the circuit after this many
	// consecutive failures.
	BreakerFailureThreshold uint32 `koanf:"breaker_failure_threshold"`

	// BreakerTimeout is how long the circuit stays open before probing.
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`

	// CacheSize and CacheTTL shape the verdict cache. Recurring event
	// signatures reuse the cached verdict instead of a model call.
	CacheSize int           `koanf:"cache_size"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
}

// DefaultConfig returns the standard analyzer settings.
func DefaultConfig() Config {
	return Config{
		Enabled:                 false,
		Model:                   "gpt-4o-mini",
		Timeout:                 5 * time.Second,
		MaxConcurrent:           8,
		RequestsPerSecond:       5,
		Burst:                   10,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          30 * time.Second,
		CacheSize:               2048,
		CacheTTL:                5 * time.Minute,
	}
}

// Analyzer classifies security events. Safe for concurrent use.
type Analyzer struct {
	cfg      Config
	client   *openai.Client
	breaker  *gobreaker.CircuitBreaker[models.Analysis]
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	verdicts *cache.LRU[models.Analysis]
	logger   zerolog.Logger
}

// New builds an Analyzer from cfg.
func New(cfg Config) *Analyzer {
	defaults := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = defaults.MaxConcurrent
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if cfg.Burst == 0 {
		cfg.Burst = defaults.Burst
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = defaults.BreakerFailureThreshold
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = defaults.BreakerTimeout
	}

	if cfg.CacheSize == 0 {
		cfg.CacheSize = defaults.CacheSize
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}

	a := &Analyzer{
		cfg:      cfg,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		verdicts: cache.NewLRU[models.Analysis](cfg.CacheSize, cfg.CacheTTL),
		logger:   logging.WithComponent("analyzer"),
	}

	a.breaker = gobreaker.NewCircuitBreaker[models.Analysis](gobreaker.Settings{
		Name:    "ai-analyzer",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			a.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Analyzer circuit breaker state change")
		},
	})

	if cfg.Enabled {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		a.client = openai.NewClientWithConfig(clientCfg)
	}

	return a
}

// Analyze classifies one event. It degrades to the rule-based fallback on
// any AI-path failure and therefore always returns a usable analysis.
func (a *Analyzer) Analyze(ctx context.Context, event *models.SecurityEvent) models.Analysis {
	if !a.cfg.Enabled || a.client == nil {
		return Fallback(event)
	}

	key := verdictKey(event)
	if cached, ok := a.verdicts.Get(key); ok {
		return cached
	}

	analysis, err := a.analyzeAI(ctx, event)
	if err != nil {
		a.logger.Debug().
			Err(err).
			Str("event_id", event.EventID).
			Msg("AI analysis unavailable, using rule fallback")
		return Fallback(event)
	}

	a.verdicts.Add(key, analysis)
	return analysis
}

// verdictKey groups events the model would judge identically. Scenario
// is part of the key so verdicts never leak across epochs.
func verdictKey(event *models.SecurityEvent) string {
	return event.EventType + "|" + event.SourceIP + "|" + event.ScenarioID
}

// analyzeAI runs the guarded AI path.
func (a *Analyzer) analyzeAI(ctx context.Context, event *models.SecurityEvent) (models.Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return models.Analysis{}, fmt.Errorf("acquire analysis slot: %w", err)
	}
	defer a.sem.Release(1)

	if err := a.limiter.Wait(ctx); err != nil {
		return models.Analysis{}, fmt.Errorf("rate limit wait: %w", err)
	}

	return a.breaker.Execute(func() (models.Analysis, error) {
		return a.callModel(ctx, event)
	})
}

const systemPrompt = `You are a security analyst. Classify the given security event.
Respond with ONLY a JSON object, no prose, with these fields:
  severity: one of CRITICAL, HIGH, MEDIUM, LOW, INFO
  threat_type: one of BRUTE_FORCE, SQL_INJECTION, DDOS_ATTACK, RANSOMWARE, MALWARE, PORT_SCAN, DATA_EXFILTRATION, NORMAL_TRAFFIC, UNKNOWN
  confidence: number between 0.0 and 1.0
  description: one-sentence summary
  explanation: short reasoning
  signals: array of observed indicators
  recommended_actions: array of suggested responses
  technique_id: MITRE ATT&CK technique id if applicable, else empty`

func (a *Analyzer) callModel(ctx context.Context, event *models.SecurityEvent) (models.Analysis, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("marshal event: %w", err)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
	})
	if err != nil {
		return models.Analysis{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Analysis{}, fmt.Errorf("chat completion returned no choices")
	}

	analysis, err := ParseModelResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return models.Analysis{}, err
	}
	return analysis, nil
}

// ParseModelResponse decodes the model's JSON verdict, tolerating the
// markdown code fences chat models like to wrap JSON in, and rejecting
// verdicts with out-of-vocabulary fields.
func ParseModelResponse(content string) (models.Analysis, error) {
	content = stripFences(content)

	var analysis models.Analysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return models.Analysis{}, fmt.Errorf("decode model response: %w", err)
	}

	if !analysis.Severity.Valid() {
		return models.Analysis{}, fmt.Errorf("model returned unknown severity %q", analysis.Severity)
	}
	if !analysis.ThreatType.Valid() {
		return models.Analysis{}, fmt.Errorf("model returned unknown threat type %q", analysis.ThreatType)
	}
	if analysis.Confidence < 0 || analysis.Confidence > 1 {
		return models.Analysis{}, fmt.Errorf("model returned confidence %v out of range", analysis.Confidence)
	}

	return analysis, nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
