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

// Package connreg tracks the live peer-id -> ip binding for every currently
// connected transport session. It is the authority for "is this sender
// currently connected": the inbound pipeline drops messages from senders
// not present here.
package connreg

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sage-x-project/p2pkv/admission"
)

// Binding is one live connection's identity/address pair.
type Binding struct {
	PeerID      string
	IP          net.IP
	ConnectedAt time.Time
}

// Registry maps connected peer IDs to their remote IP.
type Registry struct {
	gate *admission.Gate

	mu     sync.RWMutex
	byPeer map[string]*Binding
}

// New creates a Registry that consults gate for every connection-established
// event.
func New(gate *admission.Gate) *Registry {
	return &Registry{gate: gate, byPeer: make(map[string]*Binding)}
}

// Connected runs the connection-limit check, then the peer-allowed check,
// in that order, and records the binding only if both succeed. If the
// peer-allowed check fails after the connection slot was claimed, the slot
// is released.
func (r *Registry) Connected(ctx context.Context, peerID string, ip net.IP) error {
	if err := r.gate.CheckConnectionLimit(ip); err != nil {
		return err
	}

	if err := r.gate.CheckPeerAllowed(ctx, peerID); err != nil {
		r.gate.ReleaseConnection(ip)
		return err
	}

	r.mu.Lock()
	r.byPeer[peerID] = &Binding{PeerID: peerID, IP: ip, ConnectedAt: time.Now().UTC()}
	r.mu.Unlock()
	return nil
}

// Disconnected removes peerID's binding and releases its IP's connection
// slot. It is a no-op if peerID was never connected.
func (r *Registry) Disconnected(peerID string) {
	r.mu.Lock()
	binding, ok := r.byPeer[peerID]
	if ok {
		delete(r.byPeer, peerID)
	}
	r.mu.Unlock()

	if ok {
		r.gate.ReleaseConnection(binding.IP)
	}
}

// IsConnected reports whether peerID currently has a recorded binding.
func (r *Registry) IsConnected(peerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byPeer[peerID]
	return ok
}

// Snapshot returns every currently live binding.
func (r *Registry) Snapshot() []*Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bindings := make([]*Binding, 0, len(r.byPeer))
	for _, b := range r.byPeer {
		copyB := *b
		bindings = append(bindings, &copyB)
	}
	return bindings
}

// Count returns the number of currently connected peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPeer)
}
