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

// Package kvstore is the node's durable last-writer-wins key/value map. It
// is a thin semantic layer over pkg/storage.KVStore: the persistence
// backend (sqlite or postgres) already enforces the LWW ordering rule, so
// this package's job is to expose the public operations and the wire-level
// sync-mutation type the envelope pipeline dispatches into it.
package kvstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sage-x-project/p2pkv/pkg/storage"
)

// MutationKind tags a SyncMutation as a put or a delete.
type MutationKind string

const (
	// MutationPut carries a new value for a key.
	MutationPut MutationKind = "put"
	// MutationDelete removes a key.
	MutationDelete MutationKind = "delete"
)

// SyncMutation is the wire-level replicated operation: a timestamped put
// or delete, gossiped between peers inside a signed envelope.
type SyncMutation struct {
	Kind      MutationKind `json:"kind"`
	Key       string       `json:"key"`
	Value     []byte       `json:"value,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Entry is a live key/value pair as returned by Get/List.
type Entry struct {
	Key       string
	Value     []byte
	Timestamp time.Time
}

// Store is the node's key/value store, backed by a durable storage.KVStore.
type Store struct {
	backend storage.KVStore
}

// New wraps a storage backend as a Store.
func New(backend storage.KVStore) *Store {
	return &Store{backend: backend}
}

// Put stamps value with the current wall clock and applies it.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.PutWithTimestamp(ctx, key, value, time.Now().UTC())
}

// PutWithTimestamp applies a put at the given timestamp. It never fails on
// ordering: a stale put is silently ignored (the backend enforces this).
func (s *Store) PutWithTimestamp(ctx context.Context, key string, value []byte, timestamp time.Time) error {
	if err := s.backend.Put(ctx, key, value, timestamp); err != nil {
		return fmt.Errorf("kvstore: put %q: %w", key, err)
	}
	return nil
}

// Get returns the live value for key, or an error if absent or deleted.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	entry, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("kvstore: get %q: %w", key, err)
	}
	return &Entry{Key: key, Value: entry.Value, Timestamp: entry.Timestamp}, nil
}

// DeleteWithTimestamp removes key's row if timestamp strictly beats the
// stored entry's timestamp; otherwise it is a no-op.
func (s *Store) DeleteWithTimestamp(ctx context.Context, key string, timestamp time.Time) error {
	if err := s.backend.Delete(ctx, key, timestamp); err != nil {
		return fmt.Errorf("kvstore: delete %q: %w", key, err)
	}
	return nil
}

// List returns every live entry in key-ascending order.
func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	raw, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("kvstore: list: %w", err)
	}

	entries := make([]*Entry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, &Entry{Key: e.Key, Value: e.Value, Timestamp: e.Timestamp})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Count returns the number of live entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	count, err := s.backend.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("kvstore: count: %w", err)
	}
	return count, nil
}

// Apply applies a SyncMutation (from a verified inbound envelope) to the
// store, dispatching on its kind.
func (s *Store) Apply(ctx context.Context, mutation *SyncMutation) error {
	switch mutation.Kind {
	case MutationPut:
		return s.PutWithTimestamp(ctx, mutation.Key, mutation.Value, mutation.Timestamp)
	case MutationDelete:
		return s.DeleteWithTimestamp(ctx, mutation.Key, mutation.Timestamp)
	default:
		return fmt.Errorf("kvstore: unknown mutation kind %q", mutation.Kind)
	}
}
