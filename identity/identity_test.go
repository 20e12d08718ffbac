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

package identity

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDerivesPeerID(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	assert.NotEmpty(t, id.PeerID())
	assert.Equal(t, PeerID(id.PublicKey()), id.PeerID())
	assert.Len(t, id.PublicKey(), ed25519.PublicKeySize)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.True(t, Verify(a.PeerID(), a.PublicKey()))
	assert.False(t, Verify(a.PeerID(), b.PublicKey()))
}

func TestRequireReturnsTypedErrorOnMismatch(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	err = Require(a.PeerID(), b.PublicKey())
	assert.ErrorIs(t, err, ErrPeerIDMismatch)
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	msg := []byte("replicate me")
	sig, err := id.Sign(msg)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(id.PublicKey(), msg, sig))
}

func TestVerifyPeerKeyRejectsWrongLength(t *testing.T) {
	_, err := VerifyPeerKey("deadbeef", []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestVerifyPeerKeyAcceptsMatchingKey(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	pub, err := VerifyPeerKey(id.PeerID(), id.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, id.PublicKey(), pub)
}
