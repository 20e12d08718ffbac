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

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sage-x-project/p2pkv/pkg/storage"
)

// KVStore implements storage.KVStore over a SQLite kv_store table.
type KVStore struct {
	db *sql.DB
}

// Put applies last-writer-wins semantics: a write is ignored only if an
// existing row carries a strictly newer timestamp. Ties are won by the
// incoming write.
func (k *KVStore) Put(ctx context.Context, key string, value []byte, timestamp time.Time) error {
	var existing int64
	err := k.db.QueryRowContext(ctx, `SELECT timestamp FROM kv_store WHERE key = ?`, key).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing timestamp for %s: %w", key, err)
	}
	if err == nil && existing > timestamp.Unix() {
		return nil
	}

	_, err = k.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv_store (key, value, timestamp) VALUES (?, ?, ?)`,
		key, value, timestamp.Unix())
	if err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}
	return nil
}

// Get retrieves an entry by key.
func (k *KVStore) Get(ctx context.Context, key string) (*storage.KVEntry, error) {
	var entry storage.KVEntry
	var ts int64
	err := k.db.QueryRowContext(ctx, `SELECT key, value, timestamp FROM kv_store WHERE key = ?`, key).
		Scan(&entry.Key, &entry.Value, &ts)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	entry.Timestamp = time.Unix(ts, 0).UTC()
	return &entry, nil
}

// Delete physically removes key's row, but only when timestamp is strictly
// newer than the stored row's timestamp — a tie is won by the existing
// put. Deleting a key with no stored row is a no-op: no tombstone is left
// behind, so a put that later arrives out of order with an older timestamp
// than this delete will be re-admitted.
func (k *KVStore) Delete(ctx context.Context, key string, timestamp time.Time) error {
	var existing int64
	err := k.db.QueryRowContext(ctx, `SELECT timestamp FROM kv_store WHERE key = ?`, key).Scan(&existing)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check existing timestamp for %s: %w", key, err)
	}
	if existing >= timestamp.Unix() {
		return nil
	}

	_, err = k.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// List returns every entry, ordered by key.
func (k *KVStore) List(ctx context.Context) ([]*storage.KVEntry, error) {
	rows, err := k.db.QueryContext(ctx, `SELECT key, value, timestamp FROM kv_store ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var entries []*storage.KVEntry
	for rows.Next() {
		var entry storage.KVEntry
		var ts int64
		if err := rows.Scan(&entry.Key, &entry.Value, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entry.Timestamp = time.Unix(ts, 0).UTC()
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (k *KVStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := k.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv_store`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count keys: %w", err)
	}
	return count, nil
}
