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
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sage-x-project/p2pkv/pkg/storage"
)

// WhitelistStore implements storage.WhitelistStore for PostgreSQL.
type WhitelistStore struct {
	db *pgxpool.Pool
}

// Add inserts or replaces a whitelist entry.
func (w *WhitelistStore) Add(ctx context.Context, entry *storage.WhitelistEntry) error {
	recommendedBy, err := marshalRecommendedBy(entry.RecommendedBy)
	if err != nil {
		return fmt.Errorf("failed to encode recommended_by for %s: %w", entry.PeerID, err)
	}

	query := `
		INSERT INTO peer_whitelist (peer_id, name, public_key, direct, added_at, expires_at, recommended_by, recommendation_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (peer_id) DO UPDATE
		SET name = EXCLUDED.name, public_key = EXCLUDED.public_key, direct = EXCLUDED.direct,
		    added_at = EXCLUDED.added_at, expires_at = EXCLUDED.expires_at,
		    recommended_by = EXCLUDED.recommended_by, recommendation_count = EXCLUDED.recommendation_count
	`

	_, err = w.db.Exec(ctx, query,
		entry.PeerID, entry.Name, entry.PublicKey, entry.Direct, entry.AddedAt, entry.ExpiresAt,
		recommendedBy, entry.RecommendationCount)
	if err != nil {
		return fmt.Errorf("failed to add whitelist entry for %s: %w", entry.PeerID, err)
	}
	return nil
}

// Get retrieves a whitelist entry by peer ID.
func (w *WhitelistStore) Get(ctx context.Context, peerID string) (*storage.WhitelistEntry, error) {
	query := `
		SELECT peer_id, name, public_key, direct, added_at, expires_at, recommended_by, recommendation_count
		FROM peer_whitelist WHERE peer_id = $1
	`

	var entry storage.WhitelistEntry
	var recommendedBy string
	err := w.db.QueryRow(ctx, query, peerID).Scan(
		&entry.PeerID, &entry.Name, &entry.PublicKey, &entry.Direct, &entry.AddedAt, &entry.ExpiresAt,
		&recommendedBy, &entry.RecommendationCount)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("peer not whitelisted: %s", peerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get whitelist entry for %s: %w", peerID, err)
	}
	if entry.RecommendedBy, err = unmarshalRecommendedBy(recommendedBy); err != nil {
		return nil, fmt.Errorf("failed to decode recommended_by for %s: %w", peerID, err)
	}
	return &entry, nil
}

// Remove deletes a whitelist entry by peer ID.
func (w *WhitelistStore) Remove(ctx context.Context, peerID string) error {
	result, err := w.db.Exec(ctx, `DELETE FROM peer_whitelist WHERE peer_id = $1`, peerID)
	if err != nil {
		return fmt.Errorf("failed to remove whitelist entry for %s: %w", peerID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("peer not whitelisted: %s", peerID)
	}
	return nil
}

// List returns every whitelisted peer, ordered by peer ID.
func (w *WhitelistStore) List(ctx context.Context) ([]*storage.WhitelistEntry, error) {
	return w.query(ctx, `
		SELECT peer_id, name, public_key, direct, added_at, expires_at, recommended_by, recommendation_count
		FROM peer_whitelist ORDER BY peer_id
	`)
}

// ListRecommendedBy returns peers recommended by the given peer ID. The
// recommended_by column is a small JSON array rather than an indexable
// column, so the filter is applied in Go after decoding each row.
func (w *WhitelistStore) ListRecommendedBy(ctx context.Context, recommenderPeerID string) ([]*storage.WhitelistEntry, error) {
	all, err := w.query(ctx, `
		SELECT peer_id, name, public_key, direct, added_at, expires_at, recommended_by, recommendation_count
		FROM peer_whitelist ORDER BY peer_id
	`)
	if err != nil {
		return nil, err
	}

	var entries []*storage.WhitelistEntry
	for _, entry := range all {
		for _, recommender := range entry.RecommendedBy {
			if recommender == recommenderPeerID {
				entries = append(entries, entry)
				break
			}
		}
	}
	return entries, nil
}

func (w *WhitelistStore) query(ctx context.Context, query string, args ...interface{}) ([]*storage.WhitelistEntry, error) {
	rows, err := w.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query whitelist: %w", err)
	}
	defer rows.Close()

	var entries []*storage.WhitelistEntry
	for rows.Next() {
		var entry storage.WhitelistEntry
		var recommendedBy string
		if err := rows.Scan(&entry.PeerID, &entry.Name, &entry.PublicKey, &entry.Direct, &entry.AddedAt, &entry.ExpiresAt,
			&recommendedBy, &entry.RecommendationCount); err != nil {
			return nil, fmt.Errorf("failed to scan whitelist entry: %w", err)
		}
		if entry.RecommendedBy, err = unmarshalRecommendedBy(recommendedBy); err != nil {
			return nil, fmt.Errorf("failed to decode recommended_by for %s: %w", entry.PeerID, err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating whitelist: %w", err)
	}
	return entries, nil
}

// Count returns the number of whitelisted peers.
func (w *WhitelistStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := w.db.QueryRow(ctx, `SELECT COUNT(*) FROM peer_whitelist`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count whitelist: %w", err)
	}
	return count, nil
}

func marshalRecommendedBy(peerIDs []string) (string, error) {
	if len(peerIDs) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(peerIDs)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func unmarshalRecommendedBy(encoded string) ([]string, error) {
	if encoded == "" {
		return nil, nil
	}
	var peerIDs []string
	if err := json.Unmarshal([]byte(encoded), &peerIDs); err != nil {
		return nil, err
	}
	return peerIDs, nil
}
