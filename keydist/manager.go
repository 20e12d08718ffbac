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

// Package keydist is the key-distribution protocol layer: it bootstraps
// Ed25519 public keys between whitelisted peers (request/response/
// announce), relays whitelist-join requests for external adjudication,
// and carries trust recommendations into the whitelist's one-hop chain.
// Every inbound message is checked for freshness and processed at most
// once, keyed by the caller-supplied fingerprint of the enclosing envelope
// (its payload and signature).
package keydist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sage-x-project/p2pkv/config"
	"github.com/sage-x-project/p2pkv/identity"
	"github.com/sage-x-project/p2pkv/internal/logger"
	"github.com/sage-x-project/p2pkv/whitelist"
	"golang.org/x/sync/singleflight"
)

// pendingRequestWindow is how long a KeyRequest for the same target
// suppresses a duplicate request.
const pendingRequestWindow = 5 * time.Minute

// cleanupHorizon bounds how long pending-request and replay entries are
// kept once Cleanup is called.
const cleanupHorizon = time.Hour

// Manager holds the key-distribution protocol's state: a handle to the
// whitelist, the local identity, configuration, and the two time-bounded
// maps (pending requests, processed-message replay cache).
type Manager struct {
	whitelist *whitelist.Whitelist
	cfg       config.KeyDistributionConfig
	local     *identity.Identity
	log       logger.Logger

	mu              sync.Mutex
	pendingRequests map[string]time.Time
	processed       map[string]time.Time

	requestGroup singleflight.Group
}

// New builds a Manager bound to wl and local, configured by cfg.
func New(wl *whitelist.Whitelist, cfg config.KeyDistributionConfig, local *identity.Identity, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Manager{
		whitelist:       wl,
		cfg:             cfg,
		local:           local,
		log:             log,
		pendingRequests: make(map[string]time.Time),
		processed:       make(map[string]time.Time),
	}
}

// HandleMessage processes one already-unwrapped, already-verified
// key-distribution message from sender. fingerprint is the enclosing
// envelope's replay-cache key (computed by the caller, which still holds
// the signature this message was stripped of). It returns an optional
// reply message to be signed and published by the caller.
func (m *Manager) HandleMessage(ctx context.Context, msg *Message, sender, fingerprint string) (*Message, error) {
	if time.Since(msg.Timestamp) > m.cfg.MaxMessageAge {
		m.log.Warn("key distribution message too old", logger.String("sender", sender), logger.String("kind", string(msg.Kind)))
		return nil, nil
	}

	if m.seen(fingerprint) {
		m.log.Debug("dropping replayed key distribution message", logger.String("sender", sender))
		return nil, nil
	}

	switch msg.Kind {
	case KeyRequest:
		return m.handleKeyRequest(ctx, msg, sender)
	case KeyResponse:
		return m.handleKeyResponse(ctx, msg, sender)
	case KeyAnnouncement:
		return m.handleKeyAnnouncement(ctx, msg, sender)
	case WhitelistRequest:
		return m.handleWhitelistRequest(ctx, msg, sender)
	case TrustRecommendation:
		return m.handleTrustRecommendation(ctx, msg, sender)
	default:
		return nil, fmt.Errorf("keydist: unknown message kind %q", msg.Kind)
	}
}

// seen records fingerprint as processed and reports whether it was already
// present, opportunistically evicting entries older than MaxMessageAge.
func (m *Manager) seen(fingerprint string) bool {
	cutoff := time.Now().Add(-m.cfg.MaxMessageAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.processed[fingerprint]; ok {
		return true
	}
	m.processed[fingerprint] = time.Now()

	for fp, seenAt := range m.processed {
		if seenAt.Before(cutoff) {
			delete(m.processed, fp)
		}
	}
	return false
}

func (m *Manager) handleKeyRequest(ctx context.Context, msg *Message, sender string) (*Message, error) {
	if sender != msg.Requestor {
		m.log.Warn("key request sender mismatch", logger.String("sender", sender), logger.String("requestor", msg.Requestor))
		return nil, nil
	}

	whitelisted, err := m.whitelist.IsWhitelisted(ctx, msg.Requestor)
	if err != nil {
		return nil, err
	}
	if !whitelisted {
		m.log.Warn("key request from non-whitelisted peer", logger.String("requestor", msg.Requestor))
		return nil, nil
	}

	if !m.cfg.AutoShareKeys {
		return nil, nil
	}

	if msg.Target == m.local.PeerID() {
		return &Message{Kind: KeyResponse, Target: msg.Target, PublicKey: m.local.PublicKey(), Timestamp: time.Now().UTC()}, nil
	}

	publicKey, ok, err := m.whitelist.GetPublicKey(ctx, msg.Target)
	if err != nil {
		return nil, err
	}
	if !ok {
		m.log.Info("no known public key for requested target", logger.String("target", msg.Target))
		return nil, nil
	}
	return &Message{Kind: KeyResponse, Target: msg.Target, PublicKey: publicKey, Timestamp: time.Now().UTC()}, nil
}

func (m *Manager) handleKeyResponse(ctx context.Context, msg *Message, sender string) (*Message, error) {
	whitelisted, err := m.whitelist.IsWhitelisted(ctx, sender)
	if err != nil {
		return nil, err
	}
	if !whitelisted {
		m.log.Warn("key response from non-whitelisted peer", logger.String("sender", sender))
		return nil, nil
	}

	if _, err := identity.VerifyPeerKey(msg.Target, msg.PublicKey); err != nil {
		m.log.Warn("key response public key does not match target", logger.String("target", msg.Target))
		return nil, nil
	}

	m.mu.Lock()
	if _, ok := m.pendingRequests[msg.Target]; ok {
		delete(m.pendingRequests, msg.Target)
	} else {
		m.log.Info("received unrequested key", logger.String("target", msg.Target))
	}
	m.mu.Unlock()

	if err := m.updateStoredKey(ctx, msg.Target, msg.PublicKey); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *Manager) handleKeyAnnouncement(ctx context.Context, msg *Message, sender string) (*Message, error) {
	if sender != msg.PeerID {
		m.log.Warn("key announcement peer id mismatch", logger.String("sender", sender), logger.String("peer_id", msg.PeerID))
		return nil, nil
	}

	whitelisted, err := m.whitelist.IsWhitelisted(ctx, sender)
	if err != nil {
		return nil, err
	}
	if !whitelisted {
		m.log.Warn("key announcement from non-whitelisted peer", logger.String("sender", sender))
		return nil, nil
	}

	if _, err := identity.VerifyPeerKey(msg.PeerID, msg.PublicKey); err != nil {
		m.log.Warn("announced public key does not match peer id", logger.String("peer_id", msg.PeerID))
		return nil, nil
	}

	if err := m.updateStoredKey(ctx, msg.PeerID, msg.PublicKey); err != nil {
		return nil, err
	}
	return nil, nil
}

// updateStoredKey refreshes peerID's stored public key, preserving its
// name and expiry. Like the whitelist's own upsert, this resets the
// entry's recommendation state — updating a key is a direct-whitelist
// operation, not a recommendation. The update is gated on IsWhitelisted,
// not mere row existence, so an unauthenticated response naming a peer
// that only exists as a recommendation placeholder is dropped instead of
// silently promoting that row.
func (m *Manager) updateStoredKey(ctx context.Context, peerID string, publicKey []byte) error {
	whitelisted, err := m.whitelist.IsWhitelisted(ctx, peerID)
	if err != nil {
		return err
	}
	if !whitelisted {
		m.log.Info("dropping key update for non-whitelisted peer", logger.String("peer_id", peerID))
		return nil
	}

	entries, err := m.whitelist.ListPeers(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.PeerID == peerID {
			return m.whitelist.AddPeer(ctx, peerID, entry.Name, publicKey, entry.ExpiresAt)
		}
	}
	return nil
}

func (m *Manager) handleWhitelistRequest(ctx context.Context, msg *Message, sender string) (*Message, error) {
	if !m.cfg.AcceptWhitelistRequests {
		m.log.Info("whitelist requests disabled, ignoring", logger.String("sender", sender))
		return nil, nil
	}

	if sender != msg.PeerID {
		m.log.Warn("whitelist request peer id mismatch", logger.String("sender", sender), logger.String("peer_id", msg.PeerID))
		return nil, nil
	}

	if _, err := identity.VerifyPeerKey(msg.PeerID, msg.PublicKey); err != nil {
		m.log.Warn("whitelist request public key does not match peer id", logger.String("peer_id", msg.PeerID))
		return nil, nil
	}

	// Security-sensitive: recorded for external adjudication. The protocol
	// layer never self-adds to the whitelist on the basis of this message.
	m.log.Info("received whitelist request", logger.String("sender", sender), logger.String("name", msg.Name))
	return nil, nil
}

func (m *Manager) handleTrustRecommendation(ctx context.Context, msg *Message, sender string) (*Message, error) {
	if sender != msg.Recommender {
		m.log.Warn("trust recommendation sender mismatch", logger.String("sender", sender), logger.String("recommender", msg.Recommender))
		return nil, nil
	}

	whitelisted, err := m.whitelist.IsWhitelisted(ctx, msg.Recommender)
	if err != nil {
		return nil, err
	}
	if !whitelisted {
		m.log.Warn("trust recommendation from non-whitelisted peer", logger.String("recommender", msg.Recommender))
		return nil, nil
	}

	if msg.Recommender == msg.Recommended {
		m.log.Warn("peer attempted to recommend itself", logger.String("peer", msg.Recommender))
		return nil, nil
	}

	if err := m.whitelist.AddRecommendation(ctx, msg.Recommended, msg.Recommender, msg.Name); err != nil {
		m.log.Warn("failed to add trust recommendation", logger.Error(err))
	}
	return nil, nil
}

// RequestMissingKeys emits a KeyRequest for every whitelisted peer with no
// stored public key and no request still inside the pending window.
// Concurrent calls collapse into a single in-flight scan via singleflight,
// so two simultaneous callers never double-register the same pending
// request or emit duplicate requests.
func (m *Manager) RequestMissingKeys(ctx context.Context) ([]*Message, error) {
	if !m.cfg.AutoRequestKeys {
		return nil, nil
	}

	result, err, _ := m.requestGroup.Do("request_missing_keys", func() (interface{}, error) {
		return m.requestMissingKeys(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*Message), nil
}

func (m *Manager) requestMissingKeys(ctx context.Context) ([]*Message, error) {
	entries, err := m.whitelist.ListPeers(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var requests []*Message

	for _, entry := range entries {
		if len(entry.PublicKey) > 0 {
			continue
		}

		whitelisted, err := m.whitelist.IsWhitelisted(ctx, entry.PeerID)
		if err != nil {
			return nil, err
		}
		if !whitelisted {
			continue
		}

		m.mu.Lock()
		if requestedAt, ok := m.pendingRequests[entry.PeerID]; ok && now.Sub(requestedAt) < pendingRequestWindow {
			m.mu.Unlock()
			continue
		}
		m.pendingRequests[entry.PeerID] = now
		m.mu.Unlock()

		m.log.Info("requesting public key", logger.String("peer_id", entry.PeerID))
		requests = append(requests, &Message{
			Kind:      KeyRequest,
			Requestor: m.local.PeerID(),
			Target:    entry.PeerID,
			Timestamp: now,
		})
	}
	return requests, nil
}

// CreateKeyAnnouncement emits a self-announcement of the local identity's
// public key.
func (m *Manager) CreateKeyAnnouncement() *Message {
	return &Message{
		Kind:      KeyAnnouncement,
		PeerID:    m.local.PeerID(),
		PublicKey: m.local.PublicKey(),
		Timestamp: time.Now().UTC(),
	}
}

// CreateWhitelistRequest emits a request to join the whitelist, identifying
// the local node.
func (m *Manager) CreateWhitelistRequest(name string) *Message {
	return &Message{
		Kind:      WhitelistRequest,
		PeerID:    m.local.PeerID(),
		PublicKey: m.local.PublicKey(),
		Name:      name,
		Timestamp: time.Now().UTC(),
	}
}

// Cleanup evicts pending-request and replay-cache entries older than one
// hour.
func (m *Manager) Cleanup() {
	cutoff := time.Now().Add(-cleanupHorizon)

	m.mu.Lock()
	defer m.mu.Unlock()

	for peerID, requestedAt := range m.pendingRequests {
		if requestedAt.Before(cutoff) {
			delete(m.pendingRequests, peerID)
		}
	}
	for fp, seenAt := range m.processed {
		if seenAt.Before(cutoff) {
			delete(m.processed, fp)
		}
	}
}
