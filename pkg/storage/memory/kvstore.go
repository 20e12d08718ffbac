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
	"time"

	"github.com/sage-x-project/p2pkv/pkg/storage"
)

// KVStore implements storage.KVStore over an in-memory map.
type KVStore struct {
	store *Store
}

// Put applies last-writer-wins semantics: a write is ignored only if an
// existing entry carries a strictly newer timestamp. Ties are won by the
// incoming write.
func (k *KVStore) Put(ctx context.Context, key string, value []byte, timestamp time.Time) error {
	k.store.entriesMu.Lock()
	defer k.store.entriesMu.Unlock()

	if existing, ok := k.store.entries[key]; ok && existing.Timestamp.After(timestamp) {
		return nil
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	k.store.entries[key] = &storage.KVEntry{
		Key:       key,
		Value:     valueCopy,
		Timestamp: timestamp,
	}
	return nil
}

// Get retrieves an entry by key.
func (k *KVStore) Get(ctx context.Context, key string) (*storage.KVEntry, error) {
	k.store.entriesMu.RLock()
	defer k.store.entriesMu.RUnlock()

	entry, exists := k.store.entries[key]
	if !exists {
		return nil, fmt.Errorf("key not found: %s", key)
	}

	entryCopy := *entry
	return &entryCopy, nil
}

// Delete physically removes key's row, but only when timestamp is strictly
// newer than the stored entry's timestamp — a tie is won by the existing
// put. Deleting a key with no stored row is a no-op: no tombstone is left
// behind, so a put that later arrives out of order with an older timestamp
// than this delete will be re-admitted.
func (k *KVStore) Delete(ctx context.Context, key string, timestamp time.Time) error {
	k.store.entriesMu.Lock()
	defer k.store.entriesMu.Unlock()

	existing, exists := k.store.entries[key]
	if !exists {
		return nil
	}

	if !timestamp.After(existing.Timestamp) {
		return nil
	}

	delete(k.store.entries, key)
	return nil
}

// List returns every entry, sorted by key for deterministic output.
func (k *KVStore) List(ctx context.Context) ([]*storage.KVEntry, error) {
	k.store.entriesMu.RLock()
	defer k.store.entriesMu.RUnlock()

	entries := make([]*storage.KVEntry, 0, len(k.store.entries))
	for _, entry := range k.store.entries {
		entryCopy := *entry
		entries = append(entries, &entryCopy)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Count returns the number of stored entries.
func (k *KVStore) Count(ctx context.Context) (int64, error) {
	k.store.entriesMu.RLock()
	defer k.store.entriesMu.RUnlock()

	return int64(len(k.store.entries)), nil
}
