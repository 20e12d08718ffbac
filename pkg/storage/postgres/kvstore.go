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

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sage-x-project/p2pkv/pkg/storage"
)

// KVStore implements storage.KVStore for PostgreSQL.
type KVStore struct {
	db *pgxpool.Pool
}

// Put upserts key/value, applying last-writer-wins: the write is skipped
// when the stored row carries a strictly newer timestamp.
func (k *KVStore) Put(ctx context.Context, key string, value []byte, timestamp time.Time) error {
	query := `
		INSERT INTO kv_store (key, value, timestamp)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, timestamp = EXCLUDED.timestamp
		WHERE kv_store.timestamp <= EXCLUDED.timestamp
	`

	if _, err := k.db.Exec(ctx, query, key, value, timestamp); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}
	return nil
}

// Get retrieves an entry by key.
func (k *KVStore) Get(ctx context.Context, key string) (*storage.KVEntry, error) {
	query := `SELECT key, value, timestamp FROM kv_store WHERE key = $1`

	var entry storage.KVEntry
	err := k.db.QueryRow(ctx, query, key).Scan(&entry.Key, &entry.Value, &entry.Timestamp)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return &entry, nil
}

// Delete physically removes key's row, applying last-writer-wins: the
// delete is skipped unless timestamp is strictly newer than the stored
// row's timestamp. Deleting a key with no stored row is a no-op — no
// tombstone is left behind, so a put that later arrives out of order with
// an older timestamp than this delete will be re-admitted.
func (k *KVStore) Delete(ctx context.Context, key string, timestamp time.Time) error {
	query := `DELETE FROM kv_store WHERE key = $1 AND timestamp < $2`

	if _, err := k.db.Exec(ctx, query, key, timestamp); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// List returns every entry ordered by key.
func (k *KVStore) List(ctx context.Context) ([]*storage.KVEntry, error) {
	query := `SELECT key, value, timestamp FROM kv_store ORDER BY key`

	rows, err := k.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var entries []*storage.KVEntry
	for rows.Next() {
		var entry storage.KVEntry
		if err := rows.Scan(&entry.Key, &entry.Value, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (k *KVStore) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM kv_store`

	var count int64
	if err := k.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count keys: %w", err)
	}
	return count, nil
}
