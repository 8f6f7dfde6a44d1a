// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package scoring computes the composite per-threat risk score.
//
// The score is a deterministic weighted sum of four bounded components:
// severity tier, analyzer confidence, attack category, and geographic
// multiplier, clamped to [0, 100]. The engine is a pure function of its
// inputs; the weights are configuration, the four-component structure and
// the clamp are not.
package scoring

import (
	"math"

	"github.com/threatstream/threatstream/internal/models"
)

// Config holds the scoring weights.
type Config struct {
	// SeverityPoints maps each severity tier to its contribution.
	SeverityPoints map[models.Severity]int `koanf:"severity_points"`

	// ConfidenceWeight scales analyzer confidence: round(confidence * weight).
	ConfidenceWeight float64 `koanf:"confidence_weight"`

	// HighRiskPoints is the contribution for high-risk attack categories.
	HighRiskPoints int `koanf:"high_risk_points"`

	// MediumRiskPoints is the contribution for medium-risk categories.
	MediumRiskPoints int `koanf:"medium_risk_points"`

	// DefaultCategoryPoints applies to every other category.
	DefaultCategoryPoints int `koanf:"default_category_points"`

	// GeoWeight scales the geo multiplier: round(multiplier * weight).
	GeoWeight float64 `koanf:"geo_weight"`

	// HighRiskCategories and MediumRiskCategories partition the threat
	// types; anything not listed gets DefaultCategoryPoints.
	HighRiskCategories   []models.ThreatType `koanf:"high_risk_categories"`
	MediumRiskCategories []models.ThreatType `koanf:"medium_risk_categories"`
}

// DefaultConfig returns the standard scoring weights.
func DefaultConfig() Config {
	return Config{
		SeverityPoints: map[models.Severity]int{
			models.SeverityCritical: 40,
			models.SeverityHigh:     30,
			models.SeverityMedium:   20,
			models.SeverityLow:      10,
			models.SeverityInfo:     0,
		},
		ConfidenceWeight:      20,
		HighRiskPoints:        20,
		MediumRiskPoints:      15,
		DefaultCategoryPoints: 10,
		GeoWeight:             10,
		HighRiskCategories: []models.ThreatType{
			models.ThreatBruteForce,
			models.ThreatSQLInjection,
			models.ThreatRansomware,
			models.ThreatDDoSAttack,
		},
		MediumRiskCategories: []models.ThreatType{
			models.ThreatDataExfiltration,
			models.ThreatMalware,
			models.ThreatPortScan,
		},
	}
}

// Engine scores threats. Safe for concurrent use; it holds no mutable state.
type Engine struct {
	cfg        Config
	highRisk   map[models.ThreatType]struct{}
	mediumRisk map[models.ThreatType]struct{}
}

// NewEngine builds an Engine from cfg. Zero-valued weight maps fall back
// to defaults so a partially-populated config cannot zero out a component.
func NewEngine(cfg Config) *Engine {
	defaults := DefaultConfig()
	if len(cfg.SeverityPoints) == 0 {
		cfg.SeverityPoints = defaults.SeverityPoints
	}
	if cfg.ConfidenceWeight == 0 {
		cfg.ConfidenceWeight = defaults.ConfidenceWeight
	}
	if cfg.GeoWeight == 0 {
		cfg.GeoWeight = defaults.GeoWeight
	}
	if len(cfg.HighRiskCategories) == 0 {
		cfg.HighRiskCategories = defaults.HighRiskCategories
	}
	if len(cfg.MediumRiskCategories) == 0 {
		cfg.MediumRiskCategories = defaults.MediumRiskCategories
	}
	if cfg.HighRiskPoints == 0 {
		cfg.HighRiskPoints = defaults.HighRiskPoints
	}
	if cfg.MediumRiskPoints == 0 {
		cfg.MediumRiskPoints = defaults.MediumRiskPoints
	}
	if cfg.DefaultCategoryPoints == 0 {
		cfg.DefaultCategoryPoints = defaults.DefaultCategoryPoints
	}

	e := &Engine{
		cfg:        cfg,
		highRisk:   make(map[models.ThreatType]struct{}, len(cfg.HighRiskCategories)),
		mediumRisk: make(map[models.ThreatType]struct{}, len(cfg.MediumRiskCategories)),
	}
	for _, c := range cfg.HighRiskCategories {
		e.highRisk[c] = struct{}{}
	}
	for _, c := range cfg.MediumRiskCategories {
		e.mediumRisk[c] = struct{}{}
	}
	return e
}

// Score computes the composite risk score for one analyzed event.
func (e *Engine) Score(analysis models.Analysis, geo models.GeoContext) int {
	score := e.cfg.SeverityPoints[analysis.Severity]
	score += int(math.Round(clamp01(analysis.Confidence) * e.cfg.ConfidenceWeight))
	score += e.categoryPoints(analysis.ThreatType)
	score += int(math.Round(geo.Multiplier * e.cfg.GeoWeight))

	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

func (e *Engine) categoryPoints(t models.ThreatType) int {
	if _, ok := e.highRisk[t]; ok {
		return e.cfg.HighRiskPoints
	}
	if _, ok := e.mediumRisk[t]; ok {
		return e.cfg.MediumRiskPoints
	}
	return e.cfg.DefaultCategoryPoints
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
