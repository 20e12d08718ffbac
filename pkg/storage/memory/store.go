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
	"sync"

	"github.com/sage-x-project/p2pkv/pkg/storage"
)

// Store implements the storage.Store interface with in-memory storage.
type Store struct {
	entries   map[string]*storage.KVEntry
	whitelist map[string]*storage.WhitelistEntry

	entriesMu   sync.RWMutex
	whitelistMu sync.RWMutex

	kvStore        *KVStore
	whitelistStore *WhitelistStore
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	s := &Store{
		entries:   make(map[string]*storage.KVEntry),
		whitelist: make(map[string]*storage.WhitelistEntry),
	}

	s.kvStore = &KVStore{store: s}
	s.whitelistStore = &WhitelistStore{store: s}

	return s
}

// KVStore returns the key/value store.
func (s *Store) KVStore() storage.KVStore {
	return s.kvStore
}

// WhitelistStore returns the whitelist store.
func (s *Store) WhitelistStore() storage.WhitelistStore {
	return s.whitelistStore
}

// Close closes the store (no-op for memory store).
func (s *Store) Close() error {
	return nil
}

// Ping checks the store (always succeeds for memory store).
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Clear removes all data (useful for testing).
func (s *Store) Clear() {
	s.entriesMu.Lock()
	s.entries = make(map[string]*storage.KVEntry)
	s.entriesMu.Unlock()

	s.whitelistMu.Lock()
	s.whitelist = make(map[string]*storage.WhitelistEntry)
	s.whitelistMu.Unlock()
}
