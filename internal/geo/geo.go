// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package geo enriches threats with a deterministic geographic context
// derived from the source IP. Private addresses map to the internal zone;
// public addresses map to a country by first-octet bucket, with
// per-country risk multipliers feeding the scoring engine.
//
// The first-octet mapping is a simulation-grade stand-in for a real
// GeoIP database, kept deterministic so scoring stays reproducible.
package geo

import (
	"net/netip"

	"github.com/threatstream/threatstream/internal/models"
)

// Zones reported in GeoContext.
const (
	ZoneInternal = "INTERNAL_ZONE"
	ZoneHostile  = "HOSTILE_ZONE"
	ZoneExternal = "EXTERNAL"
)

// Config holds the geo risk policy.
type Config struct {
	// Multipliers overrides the per-country risk multiplier.
	Multipliers map[string]float64 `koanf:"multipliers"`

	// HostileCountries lists country codes in the hostile zone.
	HostileCountries []string `koanf:"hostile_countries"`

	// DefaultMultiplier applies to countries with no override.
	DefaultMultiplier float64 `koanf:"default_multiplier"`
}

// DefaultConfig returns the standard geo risk policy.
func DefaultConfig() Config {
	return Config{
		Multipliers: map[string]float64{
			"RU": 1.5,
			"CN": 1.4,
			"KP": 1.8,
			"IR": 1.3,
		},
		HostileCountries:  []string{"RU", "CN", "KP", "IR"},
		DefaultMultiplier: 1.0,
	}
}

// octetBucket maps a first-octet range to a country.
type octetBucket struct {
	max     uint8
	code    string
	country string
}

// First-octet buckets, checked in order.
var octetBuckets = []octetBucket{
	{50, "US", "United States"},
	{80, "CN", "China"},
	{100, "RU", "Russia"},
	{120, "DE", "Germany"},
	{140, "GB", "United Kingdom"},
	{160, "IN", "India"},
	{180, "BR", "Brazil"},
	{200, "KP", "North Korea"},
	{220, "IR", "Iran"},
}

// Resolver performs geo lookups. Safe for concurrent use.
type Resolver struct {
	cfg     Config
	hostile map[string]struct{}
}

// NewResolver builds a Resolver from cfg, falling back to defaults for
// empty fields.
func NewResolver(cfg Config) *Resolver {
	defaults := DefaultConfig()
	if len(cfg.Multipliers) == 0 {
		cfg.Multipliers = defaults.Multipliers
	}
	if len(cfg.HostileCountries) == 0 {
		cfg.HostileCountries = defaults.HostileCountries
	}
	if cfg.DefaultMultiplier == 0 {
		cfg.DefaultMultiplier = defaults.DefaultMultiplier
	}

	r := &Resolver{
		cfg:     cfg,
		hostile: make(map[string]struct{}, len(cfg.HostileCountries)),
	}
	for _, c := range cfg.HostileCountries {
		r.hostile[c] = struct{}{}
	}
	return r
}

// Lookup returns the geographic context for ip. Unparseable addresses get
// the neutral external context so scoring still proceeds.
func (r *Resolver) Lookup(ip string) models.GeoContext {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return models.GeoContext{
			Country:     "Unknown",
			CountryCode: "XX",
			Multiplier:  r.cfg.DefaultMultiplier,
			Zone:        ZoneExternal,
		}
	}

	if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
		return models.GeoContext{
			Country:     "Internal",
			CountryCode: "XX",
			Multiplier:  1.0,
			Zone:        ZoneInternal,
		}
	}

	code, country := bucketFor(addr)
	multiplier := r.cfg.DefaultMultiplier
	if m, ok := r.cfg.Multipliers[code]; ok {
		multiplier = m
	}
	_, hostile := r.hostile[code]

	zone := ZoneExternal
	if hostile {
		zone = ZoneHostile
	}

	return models.GeoContext{
		Country:     country,
		CountryCode: code,
		Multiplier:  multiplier,
		Zone:        zone,
		Hostile:     hostile,
	}
}

// bucketFor maps an address to its country bucket by first octet.
// Non-IPv4 addresses fall into the default bucket.
func bucketFor(addr netip.Addr) (code, country string) {
	if !addr.Is4() {
		return "US", "United States"
	}
	first := addr.As4()[0]
	for _, b := range octetBuckets {
		if first <= b.max {
			return b.code, b.country
		}
	}
	return "US", "United States"
}
