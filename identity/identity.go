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

// Package identity derives self-certifying peer identities from Ed25519
// public keys: a peer's ID is the SHA-256 content hash of its public key,
// so the ID and the key are 1:1 and neither can be claimed without the
// other.
package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	sagecrypto "github.com/sage-x-project/p2pkv/crypto"
	"github.com/sage-x-project/p2pkv/crypto/keys"
)

// ErrPeerIDMismatch is returned when a public key's derived identity does
// not match a claimed peer ID.
var ErrPeerIDMismatch = errors.New("public key does not derive the claimed peer id")

// PeerID computes the self-certifying identifier for an Ed25519 public key:
// the hex-encoded SHA-256 hash of the raw key bytes.
func PeerID(publicKey ed25519.PublicKey) string {
	hash := sha256.Sum256(publicKey)
	return hex.EncodeToString(hash[:])
}

// Verify reports whether publicKey derives peerID.
func Verify(peerID string, publicKey ed25519.PublicKey) bool {
	return PeerID(publicKey) == peerID
}

// Require returns ErrPeerIDMismatch if publicKey does not derive peerID.
func Require(peerID string, publicKey ed25519.PublicKey) error {
	if !Verify(peerID, publicKey) {
		return fmt.Errorf("%w: want %s", ErrPeerIDMismatch, peerID)
	}
	return nil
}

// Identity binds a local Ed25519 key pair to its derived peer ID and
// exposes signing/verification against that identity.
type Identity struct {
	keyPair sagecrypto.KeyPair
	peerID  string
}

// New wraps an existing key pair, deriving its peer ID.
func New(keyPair sagecrypto.KeyPair) (*Identity, error) {
	pub, ok := keyPair.PublicKey().(ed25519.PublicKey)
	if !ok {
		return nil, sagecrypto.ErrInvalidKeyType
	}
	return &Identity{keyPair: keyPair, peerID: PeerID(pub)}, nil
}

// Generate creates a fresh Ed25519 identity.
func Generate() (*Identity, error) {
	keyPair, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity key pair: %w", err)
	}
	return New(keyPair)
}

// PeerID returns the self-certifying identifier derived from this
// identity's public key.
func (id *Identity) PeerID() string {
	return id.peerID
}

// PublicKey returns the raw Ed25519 public key.
func (id *Identity) PublicKey() ed25519.PublicKey {
	return id.keyPair.PublicKey().(ed25519.PublicKey)
}

// KeyPair returns the underlying key pair, for signing/export.
func (id *Identity) KeyPair() sagecrypto.KeyPair {
	return id.keyPair
}

// Sign signs message with the identity's private key.
func (id *Identity) Sign(message []byte) ([]byte, error) {
	return id.keyPair.Sign(message)
}

// VerifyPeerKey checks that publicKey (claimed to belong to peerID) actually
// derives peerID, returning a typed error on mismatch.
func VerifyPeerKey(peerID string, publicKey []byte) (ed25519.PublicKey, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 public key length: %d", len(publicKey))
	}
	pub := ed25519.PublicKey(publicKey)
	if err := Require(peerID, pub); err != nil {
		return nil, err
	}
	return pub, nil
}
