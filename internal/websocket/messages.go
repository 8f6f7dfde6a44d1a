// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package websocket

import (
	"time"

	"github.com/threatstream/threatstream/internal/models"
)

// Inbound message types.
const (
	MessageTypeHandshake    = "handshake"
	MessageTypeRequestState = "request_state"
	MessageTypeSubscribe    = "subscribe"
	MessageTypeUnsubscribe  = "unsubscribe"
	MessageTypePing         = "ping"
)

// Outbound message types.
const (
	MessageTypeInitialState       = "initial_state"
	MessageTypeNewThreat          = "new_threat"
	MessageTypeNewAlert           = "new_alert"
	MessageTypeRiskUpdate         = "risk_update"
	MessageTypeRiskTimelineUpdate = "risk_timeline_update"
	MessageTypeHeartbeat          = "heartbeat"
	MessageTypePong               = "pong"
)

// Message is the envelope for all WebSocket traffic.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// inboundMessage is the client-to-server envelope. Epoch accompanies
// handshake; Channels accompany subscribe/unsubscribe.
type inboundMessage struct {
	Type     string   `json:"type"`
	Epoch    string   `json:"epoch,omitempty"`
	Channels []string `json:"channels,omitempty"`
}

// InitialStateData is the full dashboard state sent on connection.
//
// After an epoch mismatch the lists are empty, BaselineReset is true, and
// Risk carries the freshly reset baseline: the client's view of the new
// scenario starts clean rather than mixing epochs.
type InitialStateData struct {
	Epoch         string                `json:"epoch,omitempty"`
	Risk          models.RiskSnapshot   `json:"risk"`
	Timeline      []models.TimelinePoint `json:"timeline"`
	RecentThreats []*models.Threat      `json:"recent_threats"`
	ActiveAlerts  []*models.Alert       `json:"active_alerts"`
	BaselineReset bool                  `json:"baseline_reset,omitempty"`
}

// HeartbeatData accompanies periodic heartbeat messages.
type HeartbeatData struct {
	Timestamp time.Time `json:"timestamp"`
	Clients   int       `json:"clients"`
}
