// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package websocket implements the real-time fan-out surface: a hub that
// tracks connected dashboard clients and broadcasts threats, alerts, and
// risk updates, with an epoch-aware reconnection handshake.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/threatstream/threatstream/internal/epoch"
	"github.com/threatstream/threatstream/internal/logging"
	"github.com/threatstream/threatstream/internal/metrics"
	"github.com/threatstream/threatstream/internal/models"
)

// Config holds hub settings.
type Config struct {
	// SendBufferSize is the per-client outbound queue. Clients whose
	// queue fills are evicted rather than allowed to stall broadcasts.
	SendBufferSize int `koanf:"send_buffer_size"`

	// BroadcastBufferSize is the hub's shared broadcast queue.
	BroadcastBufferSize int `koanf:"broadcast_buffer_size"`

	// HeartbeatInterval is the periodic heartbeat broadcast period.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// InitialThreats is how many recent threats the initial state carries.
	InitialThreats int `koanf:"initial_threats"`
}

// DefaultConfig returns the standard hub settings.
func DefaultConfig() Config {
	return Config{
		SendBufferSize:      256,
		BroadcastBufferSize: 256,
		HeartbeatInterval:   30 * time.Second,
		InitialThreats:      50,
	}
}

// RiskController is the slice of the risk aggregator the hub needs for
// the reconnection handshake.
type RiskController interface {
	Snapshot() models.RiskSnapshot
	Timeline() []models.TimelinePoint
	ResetBaseline() models.RiskSnapshot
}

// StateProvider supplies the cached dashboard state for initial_state.
type StateProvider interface {
	RecentThreats(limit int) []*models.Threat
	ActiveAlerts() []*models.Alert
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	cfg      Config
	epochs   *epoch.State
	risk     RiskController
	provider StateProvider
	logger   zerolog.Logger
}

// NewHub creates a hub wired to the epoch state, risk aggregator, and
// dashboard state provider.
func NewHub(cfg Config, epochs *epoch.State, risk RiskController, provider StateProvider) *Hub {
	defaults := DefaultConfig()
	if cfg.SendBufferSize == 0 {
		cfg.SendBufferSize = defaults.SendBufferSize
	}
	if cfg.BroadcastBufferSize == 0 {
		cfg.BroadcastBufferSize = defaults.BroadcastBufferSize
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.InitialThreats == 0 {
		cfg.InitialThreats = defaults.InitialThreats
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, cfg.BroadcastBufferSize),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		cfg:        cfg,
		epochs:     epochs,
		risk:       risk,
		provider:   provider,
		logger:     logging.WithComponent("websocket-hub"),
	}
}

// Run starts the hub with context support for graceful shutdown.
// Lifecycle events take priority over broadcasts so client state is
// consistent before messages are delivered.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// RunHeartbeat periodically broadcasts a heartbeat so clients can detect
// stalled connections. Designed to run as a supervised service.
func (h *Hub) RunHeartbeat(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.Broadcast(MessageTypeHeartbeat, HeartbeatData{
				Timestamp: time.Now().UTC(),
				Clients:   h.ClientCount(),
			})
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSClientsActive.Set(float64(total))
	h.logger.Info().Int("total_clients", total).Msg("WebSocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSClientsActive.Set(float64(total))
	h.logger.Info().Int("total_clients", total).Msg("WebSocket client disconnected")
}

// broadcastToClients delivers a message to all subscribed clients in
// client-id order. Clients with full send buffers are evicted.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		if !client.subscribed(message.Type) {
			continue
		}
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSClientsEvicted.Inc()
		h.logger.Warn().Uint64("client_id", client.id).Msg("Evicting WebSocket client with full send buffer")
	}
	if len(toRemove) > 0 {
		metrics.WSClientsActive.Set(float64(len(h.clients)))
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WSClientsActive.Set(0)
	h.logger.Info().Int("clients_closed", len(clients)).Msg("WebSocket hub stopped")
}

// Broadcast queues a message for delivery to all clients. Messages are
// dropped rather than blocking the caller when the queue is full.
func (h *Hub) Broadcast(messageType string, data any) {
	message := Message{Type: messageType, Data: data}

	select {
	case h.broadcast <- message:
		metrics.WSMessagesSent.WithLabelValues(messageType).Inc()
	default:
		h.logger.Warn().Str("message_type", messageType).Msg("Broadcast channel full, dropping message")
	}
}

// BroadcastNewThreat fans out an enriched threat.
func (h *Hub) BroadcastNewThreat(threat *models.Threat) {
	h.Broadcast(MessageTypeNewThreat, threat)
}

// BroadcastNewAlert fans out a newly created alert.
func (h *Hub) BroadcastNewAlert(alert *models.Alert) {
	h.Broadcast(MessageTypeNewAlert, alert)
}

// BroadcastRiskUpdate fans out a published risk snapshot.
func (h *Hub) BroadcastRiskUpdate(snapshot models.RiskSnapshot) {
	h.Broadcast(MessageTypeRiskUpdate, snapshot)
}

// BroadcastRiskTimeline fans out the current risk timeline.
func (h *Hub) BroadcastRiskTimeline(points []models.TimelinePoint) {
	h.Broadcast(MessageTypeRiskTimelineUpdate, points)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleHandshake resolves the client's declared epoch against the active
// one and replies with initial_state directly on the client's queue.
//
// A client with no epoch, or one matching the active epoch, receives the
// full cached state. A mismatched epoch means the client reconnected into
// a new scenario: the hub adopts the client's epoch, resets the risk
// baseline, and sends a clean-slate state.
func (h *Hub) handleHandshake(client *Client, clientEpoch string) {
	current, set := h.epochs.Current()

	if clientEpoch == "" || !set || h.epochs.Matches(clientEpoch) {
		client.enqueue(Message{Type: MessageTypeInitialState, Data: h.fullState()})
		return
	}

	h.epochs.Adopt(clientEpoch)
	snapshot := h.risk.ResetBaseline()
	metrics.EpochAdoptions.Inc()

	h.logger.Info().
		Str("previous_epoch", current).
		Str("epoch", clientEpoch).
		Msg("Epoch adopted from reconnecting client, baseline reset")

	client.enqueue(Message{Type: MessageTypeInitialState, Data: &InitialStateData{
		Epoch:         clientEpoch,
		Risk:          snapshot,
		Timeline:      h.risk.Timeline(),
		RecentThreats: []*models.Threat{},
		ActiveAlerts:  []*models.Alert{},
		BaselineReset: true,
	}})
}

// handleRequestState resends the full cached state.
func (h *Hub) handleRequestState(client *Client) {
	client.enqueue(Message{Type: MessageTypeInitialState, Data: h.fullState()})
}

func (h *Hub) fullState() *InitialStateData {
	current, _ := h.epochs.Current()

	state := &InitialStateData{
		Epoch:         current,
		Risk:          h.risk.Snapshot(),
		Timeline:      h.risk.Timeline(),
		RecentThreats: []*models.Threat{},
		ActiveAlerts:  []*models.Alert{},
	}
	if h.provider != nil {
		if threats := h.provider.RecentThreats(h.cfg.InitialThreats); threats != nil {
			state.RecentThreats = threats
		}
		if alerts := h.provider.ActiveAlerts(); alerts != nil {
			state.ActiveAlerts = alerts
		}
	}
	return state
}
