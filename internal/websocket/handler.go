// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/threatstream/threatstream/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Dashboard clients connect from arbitrary origins (dev servers,
	// embedded panels); auth happens at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request and registers the client with the hub.
// Every connection receives initial_state up front: clients declaring an
// epoch via the query parameter go through the reconnection handshake,
// everyone else gets the full cached state.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := NewClient(h, conn)
	h.Register <- client
	client.Start()

	h.handleHandshake(client, r.URL.Query().Get("epoch"))
}
