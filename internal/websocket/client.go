// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/threatstream/threatstream/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// clientIDCounter assigns each client a monotonically increasing id so
// broadcast and shutdown order is deterministic.
var clientIDCounter atomic.Uint64

// Client is the middleman between one WebSocket connection and the hub.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message

	// subs filters broadcast types. Empty means subscribed to everything.
	subsMu sync.RWMutex
	subs   map[string]bool
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, hub.cfg.SendBufferSize),
		subs: make(map[string]bool),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// Start begins the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// subscribed reports whether the client wants messages of the given type.
func (c *Client) subscribed(messageType string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	if len(c.subs) == 0 {
		return true
	}
	return c.subs[messageType]
}

func (c *Client) subscribe(channels []string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range channels {
		c.subs[ch] = true
	}
}

func (c *Client) unsubscribe(channels []string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range channels {
		delete(c.subs, ch)
	}
}

// enqueue places a message directly on the client's send queue, bypassing
// the hub broadcast. Used for handshake replies.
func (c *Client) enqueue(msg Message) {
	select {
	case c.send <- msg:
	default:
	}
}

// readPump pumps inbound messages from the connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("Unexpected WebSocket close")
			}
			break
		}
		c.handleInbound(msg)
	}
}

func (c *Client) handleInbound(msg inboundMessage) {
	switch msg.Type {
	case MessageTypeHandshake:
		c.hub.handleHandshake(c, msg.Epoch)
	case MessageTypeRequestState:
		c.hub.handleRequestState(c)
	case MessageTypeSubscribe:
		c.subscribe(msg.Channels)
	case MessageTypeUnsubscribe:
		c.unsubscribe(msg.Channels)
	case MessageTypePing:
		c.enqueue(Message{Type: MessageTypePong})
	}
}

// writePump pumps messages from the send queue to the connection and
// keeps the connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("Failed to set write deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				logging.Error().Err(err).Msg("Failed to write WebSocket message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
