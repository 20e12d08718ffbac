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

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client dials a Relay and exchanges frames with it. It is the peer-side
// counterpart to Relay, used by the relay tests.
type Client struct {
	url          string
	dialTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient builds a Client for the given relay URL (e.g.
// "ws://localhost:8080/ws?peer_id=...").
func NewClient(url string) *Client {
	return &Client{
		url:          url,
		dialTimeout:  10 * time.Second,
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
	}
}

// Connect dials the relay.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	dialer := &websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("transport: dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("transport: dial failed: %w", err)
	}
	c.conn = conn
	return nil
}

// Send writes a frame to the relay.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("transport: not connected")
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return fmt.Errorf("transport: write failed: %w", err)
	}
	return nil
}

// Receive blocks for the next frame from the relay.
func (c *Client) Receive() ([]byte, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("transport: not connected")
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return nil, fmt.Errorf("transport: set read deadline: %w", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("transport: read failed: %w", err)
	}
	return payload, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
