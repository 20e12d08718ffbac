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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sage-x-project/p2pkv/pkg/storage"
)

// Store implements the storage.Store interface for PostgreSQL.
type Store struct {
	pool      *pgxpool.Pool
	kv        *KVStore
	whitelist *WhitelistStore
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// schema is applied by NewStore so a fresh database is ready to use; it
// mirrors the kv_store/peer_whitelist tables of the sqlite backend.
const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key TEXT PRIMARY KEY,
	value BYTEA,
	timestamp TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS peer_whitelist (
	peer_id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	public_key BYTEA,
	direct BOOLEAN NOT NULL DEFAULT FALSE,
	added_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ,
	recommended_by TEXT NOT NULL DEFAULT '[]',
	recommendation_count INTEGER NOT NULL DEFAULT 0
);
`

// NewStore creates a new PostgreSQL store and ensures its schema exists.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	store := &Store{pool: pool}
	store.kv = &KVStore{db: pool}
	store.whitelist = &WhitelistStore{db: pool}

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

// Close closes the database connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
