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

package whitelist

import (
	"context"
	"testing"
	"time"

	"github.com/sage-x-project/p2pkv/pkg/storage"
	"github.com/sage-x-project/p2pkv/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWhitelist(t *testing.T) *Whitelist {
	ctx := context.Background()
	w, err := New(ctx, memory.NewStore().WhitelistStore())
	require.NoError(t, err)
	return w
}

func TestAddThenIsWhitelisted(t *testing.T) {
	ctx := context.Background()
	w := newTestWhitelist(t)

	require.NoError(t, w.AddPeer(ctx, "peer-1", "alice", nil, nil))

	ok, err := w.IsWhitelisted(ctx, "peer-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAddThenRemoveIsNotWhitelisted(t *testing.T) {
	ctx := context.Background()
	w := newTestWhitelist(t)

	require.NoError(t, w.AddPeer(ctx, "peer-1", "alice", nil, nil))
	require.NoError(t, w.RemovePeer(ctx, "peer-1"))

	ok, err := w.IsWhitelisted(ctx, "peer-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// S4: whitelist expiry.
func TestS4WhitelistExpiry(t *testing.T) {
	ctx := context.Background()
	w := newTestWhitelist(t)

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, w.AddPeer(ctx, "peer-1", "", nil, &past))

	ok, err := w.IsWhitelisted(ctx, "peer-1")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := w.ListPeers(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, w.ReloadCache(ctx))
	w.mu.RLock()
	_, cached := w.cache["peer-1"]
	w.mu.RUnlock()
	assert.False(t, cached)
}

// S5: one-hop trust chain.
func TestS5TrustChainOneHop(t *testing.T) {
	ctx := context.Background()
	w := newTestWhitelist(t)

	require.NoError(t, w.AddPeer(ctx, "w1", "", nil, nil))

	trusted, err := w.IsTrustedByChain(ctx, "x")
	require.NoError(t, err)
	assert.False(t, trusted)

	require.NoError(t, w.AddRecommendation(ctx, "x", "w1", ""))

	trusted, err = w.IsTrustedByChain(ctx, "x")
	require.NoError(t, err)
	assert.True(t, trusted)

	require.NoError(t, w.RemovePeer(ctx, "w1"))

	trusted, err = w.IsTrustedByChain(ctx, "x")
	require.NoError(t, err)
	assert.False(t, trusted)
}

func TestTrustChainNeverExtendsTwoHops(t *testing.T) {
	ctx := context.Background()
	w := newTestWhitelist(t)

	require.NoError(t, w.AddPeer(ctx, "w1", "", nil, nil))
	require.NoError(t, w.AddRecommendation(ctx, "x", "w1", ""))
	// AddRecommendation refuses x as a recommender (x is not directly
	// whitelisted), so y's row naming x is written straight to the store.
	require.NoError(t, w.store.Add(ctx, &storage.WhitelistEntry{PeerID: "y", RecommendedBy: []string{"x"}, RecommendationCount: 1, AddedAt: time.Now().UTC()}))

	// x is trusted via w1 (one hop), but y is recommended by x, which is
	// only chain-trusted, not directly whitelisted — so y must not be
	// trusted (that would be two hops).
	trusted, err := w.IsTrustedByChain(ctx, "y")
	require.NoError(t, err)
	assert.False(t, trusted)
}

func TestAddRecommendationRejectsSelfRecommendation(t *testing.T) {
	ctx := context.Background()
	w := newTestWhitelist(t)
	require.NoError(t, w.AddPeer(ctx, "w1", "", nil, nil))

	err := w.AddRecommendation(ctx, "w1", "w1", "")
	assert.ErrorIs(t, err, ErrSelfRecommendation)
}

func TestAddRecommendationRejectsNonWhitelistedRecommender(t *testing.T) {
	ctx := context.Background()
	w := newTestWhitelist(t)

	err := w.AddRecommendation(ctx, "x", "not-whitelisted", "")
	assert.ErrorIs(t, err, ErrRecommenderNotWhitelisted)
}

func TestAddRecommendationDedupesRecommenders(t *testing.T) {
	ctx := context.Background()
	w := newTestWhitelist(t)
	require.NoError(t, w.AddPeer(ctx, "w1", "", nil, nil))

	require.NoError(t, w.AddRecommendation(ctx, "x", "w1", ""))
	require.NoError(t, w.AddRecommendation(ctx, "x", "w1", ""))

	entry, err := w.store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Len(t, entry.RecommendedBy, 1)
	assert.Equal(t, 1, entry.RecommendationCount)
}

func TestAddRecommendationPreservesDirectlySetName(t *testing.T) {
	ctx := context.Background()
	w := newTestWhitelist(t)
	require.NoError(t, w.AddPeer(ctx, "w1", "", nil, nil))
	require.NoError(t, w.AddPeer(ctx, "x", "direct-name", nil, nil))

	require.NoError(t, w.AddRecommendation(ctx, "x", "w1", "recommendation-name"))

	entry, err := w.store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "direct-name", entry.Name)
}
