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

package storage

import "time"

// KVEntry is a single last-writer-wins key/value record. A delete physically
// removes the row rather than leaving a tombstone: a put that arrives later
// but carries an older timestamp than a delete that has already happened
// will be re-admitted, since there is nothing left recording the delete.
type KVEntry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WhitelistEntry represents one trusted peer in the whitelist. PublicKey is
// the peer's Ed25519 public key; PeerID is the SHA-256 content hash of it.
// RecommendedBy holds the peer IDs of every peer that has vouched for this
// entry, supporting one-hop transitive trust resolution. Direct is false for
// a row that exists only because it was named as a recommendation target —
// such a row is visible to List but must never be treated as whitelisted on
// its own.
type WhitelistEntry struct {
	PeerID              string     `json:"peer_id"`
	Name                string     `json:"name,omitempty"`
	PublicKey           []byte     `json:"public_key,omitempty"`
	Direct              bool       `json:"direct"`
	AddedAt             time.Time  `json:"added_at"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	RecommendedBy       []string   `json:"recommended_by,omitempty"`
	RecommendationCount int        `json:"recommendation_count"`
}
