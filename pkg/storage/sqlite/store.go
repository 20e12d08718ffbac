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

// Package sqlite is the default embedded backend, matching the node's
// single-file deployment model: one kv_store/peer_whitelist database per
// peer, created on first start.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sage-x-project/p2pkv/pkg/storage"
)

// Store implements storage.Store over a single SQLite database file.
type Store struct {
	db        *sql.DB
	kv        *KVStore
	whitelist *WhitelistStore
}

const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key TEXT PRIMARY KEY,
	value BLOB,
	timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS peer_whitelist (
	peer_id TEXT PRIMARY KEY,
	name TEXT,
	public_key BLOB,
	direct INTEGER NOT NULL DEFAULT 0,
	added_at INTEGER NOT NULL,
	expires_at INTEGER,
	recommended_by TEXT DEFAULT '[]',
	recommendation_count INTEGER DEFAULT 0
);
`

// NewStore opens (creating if necessary) the SQLite database at path and
// ensures its schema exists.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	store := &Store{db: db}
	store.kv = &KVStore{db: db}
	store.whitelist = &WhitelistStore{db: db}
	return store, nil
}

// KVStore returns the key/value store.
func (s *Store) KVStore() storage.KVStore {
	return s.kv
}

// WhitelistStore returns the whitelist store.
func (s *Store) WhitelistStore() storage.WhitelistStore {
	return s.whitelist
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
