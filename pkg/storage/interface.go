package storage

import (
	"context"
	"time"
)

// KVStore defines the interface for last-writer-wins key/value persistence.
type KVStore interface {
	// Put writes key/value if timestamp is not older than any stored entry
	// (ties go to the incoming put).
	Put(ctx context.Context, key string, value []byte, timestamp time.Time) error

	// Get retrieves a live (non-deleted) entry by key.
	Get(ctx context.Context, key string) (*KVEntry, error)

	// Delete removes key's row if timestamp is strictly newer than the
	// stored entry's timestamp. No tombstone is kept.
	Delete(ctx context.Context, key string, timestamp time.Time) error

	// List returns every live (non-deleted) entry.
	List(ctx context.Context) ([]*KVEntry, error)

	// Count returns the number of live entries.
	Count(ctx context.Context) (int64, error)
}

// WhitelistStore defines the interface for peer whitelist persistence.
type WhitelistStore interface {
	// Add inserts or replaces a whitelist entry.
	Add(ctx context.Context, entry *WhitelistEntry) error

	// Get retrieves a whitelist entry by peer ID.
	Get(ctx context.Context, peerID string) (*WhitelistEntry, error)

	// Remove deletes a whitelist entry by peer ID.
	Remove(ctx context.Context, peerID string) error

	// List returns every whitelisted peer.
	List(ctx context.Context) ([]*WhitelistEntry, error)

	// ListRecommendedBy returns peers recommended by the given peer ID,
	// used to resolve one-hop transitive trust.
	ListRecommendedBy(ctx context.Context, recommenderPeerID string) ([]*WhitelistEntry, error)

	// Count returns the number of whitelisted peers.
	Count(ctx context.Context) (int64, error)
}

// Store combines all storage interfaces backing a single node.
type Store interface {
	KVStore() KVStore
	WhitelistStore() WhitelistStore

	// Close closes the storage connection.
	Close() error

	// Ping checks the storage connection.
	Ping(ctx context.Context) error
}
