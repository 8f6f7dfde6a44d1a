// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatstream/threatstream/internal/epoch"
	"github.com/threatstream/threatstream/internal/models"
)

type fakeRisk struct {
	snapshot   models.RiskSnapshot
	timeline   []models.TimelinePoint
	resetCalls int
}

func (f *fakeRisk) Snapshot() models.RiskSnapshot      { return f.snapshot }
func (f *fakeRisk) Timeline() []models.TimelinePoint   { return f.timeline }
func (f *fakeRisk) ResetBaseline() models.RiskSnapshot {
	f.resetCalls++
	return models.RiskSnapshot{
		Value:  10,
		Level:  models.RiskNormal,
		Trend:  models.TrendStable,
		Reason: "baseline_reset",
	}
}

type fakeProvider struct {
	threats []*models.Threat
	alerts  []*models.Alert
}

func (f *fakeProvider) RecentThreats(limit int) []*models.Threat { return f.threats }
func (f *fakeProvider) ActiveAlerts() []*models.Alert            { return f.alerts }

func newTestHub(t *testing.T, epochs *epoch.State) (*Hub, *fakeRisk, *fakeProvider) {
	t.Helper()
	risk := &fakeRisk{
		snapshot: models.RiskSnapshot{Value: 55, Level: models.RiskElevated},
		timeline: []models.TimelinePoint{{Value: 55, Level: models.RiskElevated}},
	}
	provider := &fakeProvider{
		threats: []*models.Threat{{ID: "THR-AAAA0001"}},
		alerts:  []*models.Alert{{ID: "ALT-AAAA0001", Status: models.AlertNew}},
	}
	return NewHub(Config{}, epochs, risk, provider), risk, provider
}

func newTestClient(hub *Hub) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		send: make(chan Message, hub.cfg.SendBufferSize),
		subs: make(map[string]bool),
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestHandshake_MatchingEpochGetsFullState(t *testing.T) {
	epochs := epoch.NewState()
	epochs.Adopt("scenario-a")
	hub, risk, _ := newTestHub(t, epochs)

	client := newTestClient(hub)
	hub.handleHandshake(client, "scenario-a")

	msg := receive(t, client)
	assert.Equal(t, MessageTypeInitialState, msg.Type)

	state, ok := msg.Data.(*InitialStateData)
	require.True(t, ok)
	assert.Equal(t, "scenario-a", state.Epoch)
	assert.False(t, state.BaselineReset)
	assert.Len(t, state.RecentThreats, 1)
	assert.Len(t, state.ActiveAlerts, 1)
	assert.Equal(t, 55.0, state.Risk.Value)
	assert.Zero(t, risk.resetCalls)
}

func TestHandshake_NoEpochGetsFullState(t *testing.T) {
	epochs := epoch.NewState()
	epochs.Adopt("scenario-a")
	hub, risk, _ := newTestHub(t, epochs)

	client := newTestClient(hub)
	hub.handleHandshake(client, "")

	msg := receive(t, client)
	state := msg.Data.(*InitialStateData)
	assert.False(t, state.BaselineReset)
	assert.Zero(t, risk.resetCalls)
}

func TestHandshake_MismatchAdoptsAndResets(t *testing.T) {
	epochs := epoch.NewState()
	epochs.Adopt("scenario-a")
	hub, risk, _ := newTestHub(t, epochs)

	client := newTestClient(hub)
	hub.handleHandshake(client, "scenario-b")

	msg := receive(t, client)
	state := msg.Data.(*InitialStateData)
	assert.True(t, state.BaselineReset)
	assert.Equal(t, "scenario-b", state.Epoch)
	assert.Empty(t, state.RecentThreats)
	assert.Empty(t, state.ActiveAlerts)
	assert.Equal(t, 1, risk.resetCalls)

	current, set := epochs.Current()
	assert.True(t, set)
	assert.Equal(t, "scenario-b", current)
}

func TestHandshake_UnsetEpochStateGetsFullState(t *testing.T) {
	hub, risk, _ := newTestHub(t, epoch.NewState())

	client := newTestClient(hub)
	hub.handleHandshake(client, "scenario-x")

	msg := receive(t, client)
	state := msg.Data.(*InitialStateData)
	assert.False(t, state.BaselineReset)
	assert.Zero(t, risk.resetCalls)
}

func TestBroadcast_EvictsSlowClients(t *testing.T) {
	hub, _, _ := newTestHub(t, epoch.NewState())

	fast := newTestClient(hub)
	slow := newTestClient(hub)
	slow.send = make(chan Message, 1)
	slow.send <- Message{Type: "filler"}

	hub.clients[fast] = true
	hub.clients[slow] = true

	hub.broadcastToClients(Message{Type: MessageTypeNewThreat})

	assert.Contains(t, hub.clients, fast)
	assert.NotContains(t, hub.clients, slow)
	assert.Equal(t, MessageTypeNewThreat, receive(t, fast).Type)
}

func TestBroadcast_RespectsSubscriptions(t *testing.T) {
	hub, _, _ := newTestHub(t, epoch.NewState())

	client := newTestClient(hub)
	client.subscribe([]string{MessageTypeRiskUpdate})
	hub.clients[client] = true

	hub.broadcastToClients(Message{Type: MessageTypeNewThreat})
	hub.broadcastToClients(Message{Type: MessageTypeRiskUpdate})

	msg := receive(t, client)
	assert.Equal(t, MessageTypeRiskUpdate, msg.Type)
	assert.Empty(t, client.send)

	client.unsubscribe([]string{MessageTypeRiskUpdate})
	hub.broadcastToClients(Message{Type: MessageTypeNewThreat})
	assert.Equal(t, MessageTypeNewThreat, receive(t, client).Type)
}

func TestRun_RegisterUnregister(t *testing.T) {
	hub, _, _ := newTestHub(t, epoch.NewState())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	client := newTestClient(hub)
	hub.Register <- client
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister <- client
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestBroadcastHelpers(t *testing.T) {
	hub, _, _ := newTestHub(t, epoch.NewState())

	hub.BroadcastNewThreat(&models.Threat{ID: "THR-AAAA0002"})
	hub.BroadcastRiskUpdate(models.RiskSnapshot{Value: 20})

	msg := <-hub.broadcast
	assert.Equal(t, MessageTypeNewThreat, msg.Type)
	msg = <-hub.broadcast
	assert.Equal(t, MessageTypeRiskUpdate, msg.Type)
}

func TestServeWS_PushesInitialStateOnConnect(t *testing.T) {
	epochs := epoch.NewState()
	epochs.Adopt("scenario-a")
	hub, _, _ := newTestHub(t, epochs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	// A bare connection, no epoch parameter and no handshake message.
	conn, resp, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg struct {
		Type string           `json:"type"`
		Data InitialStateData `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeInitialState, msg.Type)
	assert.Equal(t, "scenario-a", msg.Data.Epoch)
	assert.Len(t, msg.Data.RecentThreats, 1)
	assert.Len(t, msg.Data.ActiveAlerts, 1)
}
