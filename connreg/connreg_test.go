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

package connreg

import (
	"context"
	"net"
	"testing"

	"github.com/sage-x-project/p2pkv/admission"
	"github.com/sage-x-project/p2pkv/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectedRecordsBinding(t *testing.T) {
	ctx := context.Background()
	gate := admission.New(config.SecurityConfig{MaxConnectionsPerIP: 10}, nil)
	reg := New(gate)

	require.NoError(t, reg.Connected(ctx, "peer-1", net.ParseIP("10.0.0.1")))
	assert.True(t, reg.IsConnected("peer-1"))
	assert.Equal(t, 1, reg.Count())
}

func TestDisconnectedRemovesBindingAndReleasesSlot(t *testing.T) {
	ctx := context.Background()
	gate := admission.New(config.SecurityConfig{MaxConnectionsPerIP: 1}, nil)
	reg := New(gate)
	ip := net.ParseIP("10.0.0.1")

	require.NoError(t, reg.Connected(ctx, "peer-1", ip))
	reg.Disconnected("peer-1")
	assert.False(t, reg.IsConnected("peer-1"))

	// The slot freed by disconnecting peer-1 allows a fresh admission.
	require.NoError(t, reg.Connected(ctx, "peer-2", ip))
}

func TestConnectedFailsOverConnectionLimit(t *testing.T) {
	ctx := context.Background()
	gate := admission.New(config.SecurityConfig{MaxConnectionsPerIP: 1}, nil)
	reg := New(gate)
	ip := net.ParseIP("10.0.0.1")

	require.NoError(t, reg.Connected(ctx, "peer-1", ip))
	err := reg.Connected(ctx, "peer-2", ip)
	assert.ErrorIs(t, err, admission.ErrConnectionLimit)
}

func TestConnectedReleasesSlotWhenPeerBlocked(t *testing.T) {
	ctx := context.Background()
	gate := admission.New(config.SecurityConfig{MaxConnectionsPerIP: 1, BlockedPeers: []string{"peer-1"}}, nil)
	reg := New(gate)
	ip := net.ParseIP("10.0.0.1")

	err := reg.Connected(ctx, "peer-1", ip)
	assert.ErrorIs(t, err, admission.ErrPeerBlocked)
	assert.False(t, reg.IsConnected("peer-1"))

	// Since the blocked peer's connection slot was released, a different
	// peer from the same IP can still get in.
	require.NoError(t, reg.Connected(ctx, "peer-2", ip))
}

func TestSnapshotReturnsCopies(t *testing.T) {
	ctx := context.Background()
	gate := admission.New(config.SecurityConfig{MaxConnectionsPerIP: 10}, nil)
	reg := New(gate)
	require.NoError(t, reg.Connected(ctx, "peer-1", net.ParseIP("10.0.0.1")))

	snap := reg.Snapshot()
	require.Len(t, snap, 1)
	snap[0].PeerID = "tampered"

	fresh := reg.Snapshot()
	assert.Equal(t, "peer-1", fresh[0].PeerID)
}
