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

package envelope

import (
	"testing"

	"github.com/sage-x-project/p2pkv/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func TestSignThenVerifyRoundTrip(t *testing.T) {
	id, err := identity.Generate()
	require.NoError(t, err)

	env, err := Sign(testPayload{Key: "x", Value: "1"}, id)
	require.NoError(t, err)
	assert.Equal(t, id.PeerID(), env.Signer)

	require.NoError(t, env.VerifyWithIdentity(id))
}

func TestVerifyFailsOnWrongKey(t *testing.T) {
	a, err := identity.Generate()
	require.NoError(t, err)
	b, err := identity.Generate()
	require.NoError(t, err)

	env, err := Sign(testPayload{Key: "x", Value: "1"}, a)
	require.NoError(t, err)

	err = env.VerifyWithIdentity(b)
	assert.ErrorIs(t, err, ErrSignerMismatch)
}

func TestVerifyFailsOnTamperedData(t *testing.T) {
	id, err := identity.Generate()
	require.NoError(t, err)

	env, err := Sign(testPayload{Key: "x", Value: "1"}, id)
	require.NoError(t, err)

	env.Data.Value = "tampered"
	err = env.VerifyWithIdentity(id)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestFingerprintStableAndDistinct(t *testing.T) {
	id, err := identity.Generate()
	require.NoError(t, err)

	env1, err := Sign(testPayload{Key: "x", Value: "1"}, id)
	require.NoError(t, err)
	env2, err := Sign(testPayload{Key: "x", Value: "2"}, id)
	require.NoError(t, err)

	fp1a, err := env1.Fingerprint()
	require.NoError(t, err)
	fp1b, err := env1.Fingerprint()
	require.NoError(t, err)
	fp2, err := env2.Fingerprint()
	require.NoError(t, err)

	assert.Equal(t, fp1a, fp1b)
	assert.NotEqual(t, fp1a, fp2)
}
