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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sage-x-project/p2pkv/admission"
	"github.com/sage-x-project/p2pkv/config"
	"github.com/sage-x-project/p2pkv/connreg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURLFor(t *testing.T, testServer *httptest.Server, peerID string) string {
	t.Helper()
	return "ws" + strings.TrimPrefix(testServer.URL, "http") + "/ws?peer_id=" + peerID
}

func newTestRelay(handler Handler) (*Relay, *httptest.Server) {
	gate := admission.New(config.SecurityConfig{MaxConnectionsPerIP: 10}, nil)
	connections := connreg.New(gate)
	relay := NewRelay(handler, connections, nil)
	server := httptest.NewServer(relay.Handler())
	return relay, server
}

func TestRelayEchoesHandlerReply(t *testing.T) {
	handler := func(ctx context.Context, sender string, payload []byte) ([]byte, error) {
		return append([]byte("echo:"), payload...), nil
	}
	relay, server := newTestRelay(handler)
	defer server.Close()
	defer relay.Close()

	client := NewClient(wsURLFor(t, server, "peer-a"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	require.NoError(t, client.Send([]byte("hello")))

	reply, err := client.Receive()
	require.NoError(t, err)
	assert.Equal(t, "echo:hello", string(reply))
}

func TestRelayBroadcastsWhenHandlerReturnsNilReply(t *testing.T) {
	var handled []string
	handler := func(ctx context.Context, sender string, payload []byte) ([]byte, error) {
		handled = append(handled, sender)
		return nil, nil
	}
	relay, server := newTestRelay(handler)
	defer server.Close()
	defer relay.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sender := NewClient(wsURLFor(t, server, "peer-sender"))
	require.NoError(t, sender.Connect(ctx))
	defer sender.Close()

	receiver := NewClient(wsURLFor(t, server, "peer-receiver"))
	require.NoError(t, receiver.Connect(ctx))
	defer receiver.Close()

	// Give the relay a moment to register both connections before sending.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sender.Send([]byte("gossip")))

	reply, err := receiver.Receive()
	require.NoError(t, err)
	assert.Equal(t, "gossip", string(reply))
}

func TestRelayRejectsMissingPeerID(t *testing.T) {
	handler := func(ctx context.Context, sender string, payload []byte) ([]byte, error) { return nil, nil }
	relay, server := newTestRelay(handler)
	defer server.Close()
	defer relay.Close()

	resp, err := http.Get(server.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRelayEnforcesConnectionLimit(t *testing.T) {
	gate := admission.New(config.SecurityConfig{MaxConnectionsPerIP: 1}, nil)
	connections := connreg.New(gate)
	handler := func(ctx context.Context, sender string, payload []byte) ([]byte, error) { return nil, nil }
	relay := NewRelay(handler, connections, nil)
	server := httptest.NewServer(relay.Handler())
	defer server.Close()
	defer relay.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := NewClient(wsURLFor(t, server, "peer-1"))
	require.NoError(t, first.Connect(ctx))
	defer first.Close()

	second := NewClient(wsURLFor(t, server, "peer-2"))
	err := second.Connect(ctx)
	assert.Error(t, err)
}
