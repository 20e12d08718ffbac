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

package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/sage-x-project/p2pkv/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return New(memory.NewStore().KVStore())
}

// S1: two puts on the same key, later timestamp first; the later value wins.
func TestS1LWWPutPut(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	base := time.Now().UTC()

	require.NoError(t, store.PutWithTimestamp(ctx, "x", []byte("a"), base.Add(100*time.Second)))
	require.NoError(t, store.PutWithTimestamp(ctx, "x", []byte("b"), base.Add(50*time.Second)))

	entry, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), entry.Value)
}

// S2: a delete older than the last put is ignored.
func TestS2DeleteOlderIgnored(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	base := time.Now().UTC()

	require.NoError(t, store.PutWithTimestamp(ctx, "x", []byte("a"), base.Add(100*time.Second)))
	require.NoError(t, store.DeleteWithTimestamp(ctx, "x", base.Add(50*time.Second)))

	entry, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), entry.Value)
}

// S3: a delete strictly newer than the last put wins.
func TestS3DeleteNewerWins(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	base := time.Now().UTC()

	require.NoError(t, store.PutWithTimestamp(ctx, "x", []byte("a"), base.Add(100*time.Second)))
	require.NoError(t, store.DeleteWithTimestamp(ctx, "x", base.Add(101*time.Second)))

	_, err := store.Get(ctx, "x")
	assert.Error(t, err)
}

func TestPutDefaultsToNow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	require.NoError(t, store.Put(ctx, "k", []byte("v")))
	entry, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), entry.Value)
}

func TestListIsKeyAscending(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	now := time.Now().UTC()

	require.NoError(t, store.PutWithTimestamp(ctx, "b", []byte("2"), now))
	require.NoError(t, store.PutWithTimestamp(ctx, "a", []byte("1"), now))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestApplyDispatchesByMutationKind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	now := time.Now().UTC()

	require.NoError(t, store.Apply(ctx, &SyncMutation{Kind: MutationPut, Key: "x", Value: []byte("v"), Timestamp: now}))
	entry, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), entry.Value)

	require.NoError(t, store.Apply(ctx, &SyncMutation{Kind: MutationDelete, Key: "x", Timestamp: now.Add(time.Second)}))
	_, err = store.Get(ctx, "x")
	assert.Error(t, err)
}

func TestApplyRejectsUnknownKind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	err := store.Apply(ctx, &SyncMutation{Kind: "bogus", Key: "x", Timestamp: time.Now().UTC()})
	assert.Error(t, err)
}
