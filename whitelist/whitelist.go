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

// Package whitelist is the persistent store of trusted peer identities,
// fronted by a thin in-memory positive cache of non-expired peer IDs. It
// also resolves one-hop recommendation-based trust: a peer is trusted if
// it is directly whitelisted, or if any peer that vouched for it is
// itself currently whitelisted. The chain deliberately does not extend
// past one hop.
package whitelist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sage-x-project/p2pkv/identity"
	"github.com/sage-x-project/p2pkv/pkg/storage"
)

// ErrSelfRecommendation is returned when a peer attempts to recommend itself.
var ErrSelfRecommendation = errors.New("whitelist: a peer cannot recommend itself")

// ErrRecommenderNotWhitelisted is returned when add_recommendation is
// called for a recommender that is not currently whitelisted.
var ErrRecommenderNotWhitelisted = errors.New("whitelist: recommender is not whitelisted")

// Whitelist is the peer whitelist: a durable store plus a cache of
// currently-trusted peer IDs.
type Whitelist struct {
	store storage.WhitelistStore

	mu    sync.RWMutex
	cache map[string]struct{}
}

// New wraps store and loads the initial cache of non-expired peers.
func New(ctx context.Context, store storage.WhitelistStore) (*Whitelist, error) {
	w := &Whitelist{store: store, cache: make(map[string]struct{})}
	if err := w.ReloadCache(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// AddPeer upserts a whitelist entry. If publicKey is supplied, it must
// derive peerID. Adding resets the entry's recommendation state to empty —
// a peer that is directly whitelisted starts from a clean trust slate.
func (w *Whitelist) AddPeer(ctx context.Context, peerID, name string, publicKey []byte, expiresAt *time.Time) error {
	if len(publicKey) > 0 {
		if _, err := identity.VerifyPeerKey(peerID, publicKey); err != nil {
			return fmt.Errorf("whitelist: add %s: %w", peerID, err)
		}
	}

	entry := &storage.WhitelistEntry{
		PeerID:    peerID,
		Name:      name,
		PublicKey: publicKey,
		Direct:    true,
		AddedAt:   time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	if err := w.store.Add(ctx, entry); err != nil {
		return fmt.Errorf("whitelist: add %s: %w", peerID, err)
	}

	w.mu.Lock()
	w.cache[peerID] = struct{}{}
	w.mu.Unlock()
	return nil
}

// RemovePeer deletes peerID's row and evicts it from the cache.
func (w *Whitelist) RemovePeer(ctx context.Context, peerID string) error {
	if err := w.store.Remove(ctx, peerID); err != nil {
		return fmt.Errorf("whitelist: remove %s: %w", peerID, err)
	}
	w.evict(peerID)
	return nil
}

// IsWhitelisted reports whether peerID has a non-expired, directly-added
// whitelist row. A row that exists only as a recommendation placeholder
// (Direct == false) never counts, even though it has a row and is not
// expired — only add_peer produces a row IsWhitelisted will honor.
// A cache hit is re-validated against the store so an expiry that has
// elapsed since the cache was populated is still honored.
func (w *Whitelist) IsWhitelisted(ctx context.Context, peerID string) (bool, error) {
	entry, err := w.store.Get(ctx, peerID)
	if err != nil {
		w.evict(peerID)
		return false, nil
	}

	if !entry.Direct || entryExpired(entry) {
		w.evict(peerID)
		return false, nil
	}

	w.mu.Lock()
	w.cache[peerID] = struct{}{}
	w.mu.Unlock()
	return true, nil
}

// ListPeers returns every whitelist row, including expired ones, ordered
// by peer ID.
func (w *Whitelist) ListPeers(ctx context.Context) ([]*storage.WhitelistEntry, error) {
	entries, err := w.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("whitelist: list: %w", err)
	}
	return entries, nil
}

// GetPublicKey returns peerID's stored public key, if any.
func (w *Whitelist) GetPublicKey(ctx context.Context, peerID string) ([]byte, bool, error) {
	entry, err := w.store.Get(ctx, peerID)
	if err != nil {
		return nil, false, nil
	}
	if len(entry.PublicKey) == 0 {
		return nil, false, nil
	}
	return entry.PublicKey, true, nil
}

// ReloadCache recomputes the cache from every currently non-expired row.
func (w *Whitelist) ReloadCache(ctx context.Context) error {
	entries, err := w.store.List(ctx)
	if err != nil {
		return fmt.Errorf("whitelist: reload cache: %w", err)
	}

	cache := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.Direct && !entryExpired(entry) {
			cache[entry.PeerID] = struct{}{}
		}
	}

	w.mu.Lock()
	w.cache = cache
	w.mu.Unlock()
	return nil
}

// AddRecommendation records that recommender vouches for target. It fails
// if recommender is not currently whitelisted or if target == recommender.
// The recommendation alone never whitelists target — it only feeds
// IsTrustedByChain.
func (w *Whitelist) AddRecommendation(ctx context.Context, target, recommender, name string) error {
	if target == recommender {
		return ErrSelfRecommendation
	}

	whitelisted, err := w.IsWhitelisted(ctx, recommender)
	if err != nil {
		return err
	}
	if !whitelisted {
		return ErrRecommenderNotWhitelisted
	}

	entry, err := w.store.Get(ctx, target)
	if err != nil {
		entry = &storage.WhitelistEntry{
			PeerID:  target,
			Name:    name,
			Direct:  false,
			AddedAt: time.Now().UTC(),
		}
	} else if entry.Name == "" && name != "" {
		entry.Name = name
	}

	if !containsString(entry.RecommendedBy, recommender) {
		entry.RecommendedBy = append(entry.RecommendedBy, recommender)
		entry.RecommendationCount = len(entry.RecommendedBy)
	}

	if err := w.store.Add(ctx, entry); err != nil {
		return fmt.Errorf("whitelist: add recommendation for %s: %w", target, err)
	}
	return nil
}

// IsTrustedByChain reports whether peerID is trusted: either directly
// whitelisted, or recommended by a peer that is currently whitelisted.
// This is a one-hop extension, never a transitive closure.
func (w *Whitelist) IsTrustedByChain(ctx context.Context, peerID string) (bool, error) {
	whitelisted, err := w.IsWhitelisted(ctx, peerID)
	if err != nil {
		return false, err
	}
	if whitelisted {
		return true, nil
	}

	entry, err := w.store.Get(ctx, peerID)
	if err != nil {
		return false, nil
	}
	if entry.RecommendationCount <= 0 {
		return false, nil
	}

	for _, recommender := range entry.RecommendedBy {
		ok, err := w.IsWhitelisted(ctx, recommender)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (w *Whitelist) evict(peerID string) {
	w.mu.Lock()
	delete(w.cache, peerID)
	w.mu.Unlock()
}

func entryExpired(entry *storage.WhitelistEntry) bool {
	return entry.ExpiresAt != nil && !entry.ExpiresAt.After(time.Now().UTC())
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
