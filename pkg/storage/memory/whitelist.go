// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/sage-x-project/p2pkv/pkg/storage"
)

// WhitelistStore implements storage.WhitelistStore over an in-memory map.
type WhitelistStore struct {
	store *Store
}

// Add inserts or replaces a whitelist entry.
func (w *WhitelistStore) Add(ctx context.Context, entry *storage.WhitelistEntry) error {
	w.store.whitelistMu.Lock()
	defer w.store.whitelistMu.Unlock()

	entryCopy := *entry
	entryCopy.PublicKey = append([]byte(nil), entry.PublicKey...)
	entryCopy.RecommendedBy = append([]string(nil), entry.RecommendedBy...)
	if entry.ExpiresAt != nil {
		expiresAt := *entry.ExpiresAt
		entryCopy.ExpiresAt = &expiresAt
	}
	w.store.whitelist[entry.PeerID] = &entryCopy
	return nil
}

// Get retrieves a whitelist entry by peer ID.
func (w *WhitelistStore) Get(ctx context.Context, peerID string) (*storage.WhitelistEntry, error) {
	w.store.whitelistMu.RLock()
	defer w.store.whitelistMu.RUnlock()

	entry, exists := w.store.whitelist[peerID]
	if !exists {
		return nil, fmt.Errorf("peer not whitelisted: %s", peerID)
	}

	return copyWhitelistEntry(entry), nil
}

// Remove deletes a whitelist entry by peer ID.
func (w *WhitelistStore) Remove(ctx context.Context, peerID string) error {
	w.store.whitelistMu.Lock()
	defer w.store.whitelistMu.Unlock()

	if _, exists := w.store.whitelist[peerID]; !exists {
		return fmt.Errorf("peer not whitelisted: %s", peerID)
	}
	delete(w.store.whitelist, peerID)
	return nil
}

// List returns every whitelisted peer, sorted by peer ID.
func (w *WhitelistStore) List(ctx context.Context) ([]*storage.WhitelistEntry, error) {
	w.store.whitelistMu.RLock()
	defer w.store.whitelistMu.RUnlock()

	entries := make([]*storage.WhitelistEntry, 0, len(w.store.whitelist))
	for _, entry := range w.store.whitelist {
		entries = append(entries, copyWhitelistEntry(entry))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].PeerID < entries[j].PeerID })
	return entries, nil
}

// ListRecommendedBy returns peers recommended by the given peer ID.
func (w *WhitelistStore) ListRecommendedBy(ctx context.Context, recommenderPeerID string) ([]*storage.WhitelistEntry, error) {
	w.store.whitelistMu.RLock()
	defer w.store.whitelistMu.RUnlock()

	var entries []*storage.WhitelistEntry
	for _, entry := range w.store.whitelist {
		for _, recommender := range entry.RecommendedBy {
			if recommender == recommenderPeerID {
				entries = append(entries, copyWhitelistEntry(entry))
				break
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].PeerID < entries[j].PeerID })
	return entries, nil
}

// Count returns the number of whitelisted peers.
func (w *WhitelistStore) Count(ctx context.Context) (int64, error) {
	w.store.whitelistMu.RLock()
	defer w.store.whitelistMu.RUnlock()
	return int64(len(w.store.whitelist)), nil
}

func copyWhitelistEntry(entry *storage.WhitelistEntry) *storage.WhitelistEntry {
	entryCopy := *entry
	entryCopy.PublicKey = append([]byte(nil), entry.PublicKey...)
	entryCopy.RecommendedBy = append([]string(nil), entry.RecommendedBy...)
	if entry.ExpiresAt != nil {
		expiresAt := *entry.ExpiresAt
		entryCopy.ExpiresAt = &expiresAt
	}
	return &entryCopy
}
