// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package models defines the shared data types that flow through the
// ThreatStream pipeline: raw security events, AI analysis results, scored
// threats, alerts, risk index snapshots, and the API/WebSocket envelopes
// that carry them to clients.
//
// These types are plain data holders with JSON tags matching the wire
// format. Behavior lives in the packages that operate on them (scoring,
// risk, alerts, pipeline); keeping models free of business logic avoids
// import cycles between those packages.
package models
