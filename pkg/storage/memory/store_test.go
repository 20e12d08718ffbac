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
	"testing"
	"time"

	"github.com/sage-x-project/p2pkv/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("PutAndGet", func(t *testing.T) {
		store := NewStore()
		kv := store.KVStore()

		require.NoError(t, kv.Put(ctx, "foo", []byte("bar"), now))

		entry, err := kv.Get(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, []byte("bar"), entry.Value)
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := NewStore()
		_, err := store.KVStore().Get(ctx, "missing")
		assert.Error(t, err)
	})

	t.Run("PutOlderTimestampIgnored", func(t *testing.T) {
		store := NewStore()
		kv := store.KVStore()

		require.NoError(t, kv.Put(ctx, "key", []byte("new"), now))
		require.NoError(t, kv.Put(ctx, "key", []byte("old"), now.Add(-time.Minute)))

		entry, err := kv.Get(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), entry.Value)
	})

	t.Run("PutTieWonByIncoming", func(t *testing.T) {
		store := NewStore()
		kv := store.KVStore()

		require.NoError(t, kv.Put(ctx, "key", []byte("first"), now))
		require.NoError(t, kv.Put(ctx, "key", []byte("second"), now))

		entry, err := kv.Get(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), entry.Value)
	})

	t.Run("DeleteRequiresStrictlyNewerTimestamp", func(t *testing.T) {
		store := NewStore()
		kv := store.KVStore()

		require.NoError(t, kv.Put(ctx, "key", []byte("value"), now))

		// Tie: the existing put wins.
		require.NoError(t, kv.Delete(ctx, "key", now))
		_, err := kv.Get(ctx, "key")
		require.NoError(t, err)

		require.NoError(t, kv.Delete(ctx, "key", now.Add(time.Minute)))
		_, err = kv.Get(ctx, "key")
		assert.Error(t, err)
	})

	t.Run("DeleteOnMissingKeyIsNoopWithoutTombstone", func(t *testing.T) {
		store := NewStore()
		kv := store.KVStore()

		require.NoError(t, kv.Delete(ctx, "ghost", now))
		_, err := kv.Get(ctx, "ghost")
		assert.Error(t, err)

		// No tombstone was left behind: a late put is re-admitted.
		require.NoError(t, kv.Put(ctx, "ghost", []byte("late"), now.Add(-time.Second)))
		entry, err := kv.Get(ctx, "ghost")
		require.NoError(t, err)
		assert.Equal(t, []byte("late"), entry.Value)
	})

	t.Run("ListAndCountExcludeDeletedRows", func(t *testing.T) {
		store := NewStore()
		kv := store.KVStore()

		require.NoError(t, kv.Put(ctx, "a", []byte("1"), now))
		require.NoError(t, kv.Put(ctx, "b", []byte("2"), now))
		require.NoError(t, kv.Delete(ctx, "b", now.Add(time.Second)))

		entries, err := kv.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "a", entries[0].Key)

		count, err := kv.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestWhitelistStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("AddAndGet", func(t *testing.T) {
		store := NewStore()
		wl := store.WhitelistStore()

		entry := &storage.WhitelistEntry{
			PeerID:    "peer-1",
			Name:      "alice",
			PublicKey: []byte{1, 2, 3},
			AddedAt:   now,
		}
		require.NoError(t, wl.Add(ctx, entry))

		got, err := wl.Get(ctx, "peer-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Name)
		assert.Equal(t, []byte{1, 2, 3}, got.PublicKey)
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := NewStore()
		_, err := store.WhitelistStore().Get(ctx, "nobody")
		assert.Error(t, err)
	})

	t.Run("RemoveMissing", func(t *testing.T) {
		store := NewStore()
		err := store.WhitelistStore().Remove(ctx, "nobody")
		assert.Error(t, err)
	})

	t.Run("ListSortedByPeerID", func(t *testing.T) {
		store := NewStore()
		wl := store.WhitelistStore()

		require.NoError(t, wl.Add(ctx, &storage.WhitelistEntry{PeerID: "z", PublicKey: []byte{1}, AddedAt: now}))
		require.NoError(t, wl.Add(ctx, &storage.WhitelistEntry{PeerID: "a", PublicKey: []byte{2}, AddedAt: now}))

		entries, err := wl.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "a", entries[0].PeerID)
		assert.Equal(t, "z", entries[1].PeerID)
	})

	t.Run("ListRecommendedBy", func(t *testing.T) {
		store := NewStore()
		wl := store.WhitelistStore()

		require.NoError(t, wl.Add(ctx, &storage.WhitelistEntry{
			PeerID:              "peer-2",
			PublicKey:           []byte{3},
			AddedAt:             now,
			RecommendedBy:       []string{"peer-1", "peer-9"},
			RecommendationCount: 2,
		}))
		require.NoError(t, wl.Add(ctx, &storage.WhitelistEntry{
			PeerID:    "peer-3",
			PublicKey: []byte{4},
			AddedAt:   now,
		}))

		entries, err := wl.ListRecommendedBy(ctx, "peer-1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "peer-2", entries[0].PeerID)
	})

	t.Run("CopiesDoNotAliasStoredState", func(t *testing.T) {
		store := NewStore()
		wl := store.WhitelistStore()

		require.NoError(t, wl.Add(ctx, &storage.WhitelistEntry{
			PeerID:        "peer-4",
			PublicKey:     []byte{5},
			AddedAt:       now,
			RecommendedBy: []string{"peer-1"},
		}))

		got, err := wl.Get(ctx, "peer-4")
		require.NoError(t, err)
		got.RecommendedBy[0] = "tampered"
		got.PublicKey[0] = 0xff

		fresh, err := wl.Get(ctx, "peer-4")
		require.NoError(t, err)
		assert.Equal(t, "peer-1", fresh.RecommendedBy[0])
		assert.Equal(t, byte(5), fresh.PublicKey[0])
	})

	t.Run("Count", func(t *testing.T) {
		store := NewStore()
		wl := store.WhitelistStore()

		require.NoError(t, wl.Add(ctx, &storage.WhitelistEntry{PeerID: "a", PublicKey: []byte{1}, AddedAt: now}))
		require.NoError(t, wl.Add(ctx, &storage.WhitelistEntry{PeerID: "b", PublicKey: []byte{2}, AddedAt: now}))

		count, err := wl.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})
}
