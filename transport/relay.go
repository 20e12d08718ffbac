// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package transport is a local demo relay, not the gossip fabric itself: a
// single WebSocket hub that peers dial into, so the inbound pipeline can be
// exercised end-to-end without a real libp2p/gossipsub network underneath
// it. Every frame received on a connection is handed to the pipeline as
// (transportSender, payloadBytes); any reply the pipeline produces is
// written back to the connection it came from and the frame is not
// rebroadcast. A frame for which the handler returns no reply and no error
// is rebroadcast to every other connected peer, which is the shared-topic
// gossip behaviour the rest of the node depends on; the relay cannot tell
// an applied frame from one the pipeline dropped, so both are rebroadcast.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sage-x-project/p2pkv/connreg"
	"github.com/sage-x-project/p2pkv/internal/logger"
)

// Handler processes one inbound frame from a peer and optionally returns a
// reply to send back to that same peer. cmd/p2pkv's serve command adapts
// pipeline.Pipeline.HandleMessage to this signature.
type Handler func(ctx context.Context, transportSender string, payload []byte) ([]byte, error)

// Relay is a WebSocket hub: it admits peers through the connection registry,
// dispatches every inbound frame to a Handler, and rebroadcasts each frame
// that got no reply and no error to the rest of the mesh.
type Relay struct {
	handler      Handler
	connections  *connreg.Registry
	upgrader     websocket.Upgrader
	readTimeout  time.Duration
	writeTimeout time.Duration
	log          logger.Logger

	mu    sync.RWMutex
	peers map[string]*websocket.Conn
}

// NewRelay builds a Relay. connections gates every dial against the node's
// admission policy before a socket is accepted into the mesh.
func NewRelay(handler Handler, connections *connreg.Registry, log logger.Logger) *Relay {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Relay{
		handler:     handler,
		connections: connections,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		readTimeout:  60 * time.Second,
		writeTimeout: 30 * time.Second,
		log:          log,
		peers:        make(map[string]*websocket.Conn),
	}
}

// Handler upgrades incoming HTTP requests to WebSocket connections. The
// caller identifies itself with the "peer_id" query parameter; the relay
// derives the remote IP from the request for the connection-limit check.
func (r *Relay) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		peerID := req.URL.Query().Get("peer_id")
		if peerID == "" {
			http.Error(w, "peer_id query parameter is required", http.StatusBadRequest)
			return
		}

		ip := remoteIP(req)
		if err := r.connections.Connected(req.Context(), peerID, ip); err != nil {
			http.Error(w, fmt.Sprintf("admission denied: %v", err), http.StatusForbidden)
			return
		}

		conn, err := r.upgrader.Upgrade(w, req, nil)
		if err != nil {
			r.connections.Disconnected(peerID)
			return
		}

		r.addPeer(peerID, conn)
		defer r.removePeer(peerID, conn)
		defer func() { _ = conn.Close() }()

		r.serve(req.Context(), peerID, conn)
	})
}

func (r *Relay) serve(ctx context.Context, peerID string, conn *websocket.Conn) {
	log := r.log.WithFields(logger.String("peer_id", peerID))
	for {
		if err := conn.SetReadDeadline(time.Now().Add(r.readTimeout)); err != nil {
			return
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("relay read error", logger.Error(err))
			}
			return
		}

		reply, err := r.handler(ctx, peerID, payload)
		if err != nil {
			log.Error("relay handler error", logger.Error(err))
			continue
		}

		if reply != nil {
			r.sendTo(log, conn, reply)
			continue
		}

		r.broadcast(log, peerID, payload)
	}
}

// broadcast rebroadcasts a frame to every connected peer other
// than its sender, emulating the shared gossip topic.
func (r *Relay) broadcast(log logger.Logger, senderID string, payload []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, conn := range r.peers {
		if id == senderID {
			continue
		}
		r.sendTo(log, conn, payload)
	}
}

func (r *Relay) sendTo(log logger.Logger, conn *websocket.Conn, payload []byte) {
	if err := conn.SetWriteDeadline(time.Now().Add(r.writeTimeout)); err != nil {
		log.Error("relay failed to set write deadline", logger.Error(err))
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		log.Error("relay failed to write frame", logger.Error(err))
	}
}

func (r *Relay) addPeer(peerID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[peerID] = conn
}

func (r *Relay) removePeer(peerID string, conn *websocket.Conn) {
	r.mu.Lock()
	if r.peers[peerID] == conn {
		delete(r.peers, peerID)
	}
	r.mu.Unlock()
	r.connections.Disconnected(peerID)
}

// PeerCount returns the number of currently connected peers.
func (r *Relay) PeerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Close closes every active connection and clears the peer table.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, conn := range r.peers {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
		r.connections.Disconnected(id)
	}
	r.peers = make(map[string]*websocket.Conn)
	return nil
}

func remoteIP(r *http.Request) net.IP {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if ip := net.ParseIP(forwarded); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}
