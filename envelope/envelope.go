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

// Package envelope signs and verifies an arbitrary serializable payload
// against a peer identity. The signature covers the SHA-256 hash of the
// payload's encoding/json encoding, recomputed from the decoded value on
// verify, so whitespace in the received bytes does not change what is
// checked. No separate binary serialization is used: the signed bytes are
// the json.Marshal output of the payload.
package envelope

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sage-x-project/p2pkv/identity"
)

// ErrSignerMismatch is returned when the declared signer does not match
// the identity derived from the public key offered for verification.
var ErrSignerMismatch = errors.New("envelope: signer does not match supplied public key")

// ErrInvalidSignature is returned when the cryptographic signature check
// fails for an otherwise well-formed envelope.
var ErrInvalidSignature = errors.New("envelope: signature verification failed")

// Envelope wraps a payload with a signature and the self-certifying peer ID
// of its signer.
type Envelope[T any] struct {
	Data      T      `json:"data"`
	Signature []byte `json:"signature"`
	Signer    string `json:"signer"`
}

// Sign serializes data, hashes it with SHA-256, signs the hash with id's
// private key, and stamps the envelope with id's peer ID.
func Sign[T any](data T, id *identity.Identity) (*Envelope[T], error) {
	digest, err := digestOf(data)
	if err != nil {
		return nil, fmt.Errorf("envelope: failed to serialize payload: %w", err)
	}

	sig, err := id.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("envelope: failed to sign payload: %w", err)
	}

	return &Envelope[T]{Data: data, Signature: sig, Signer: id.PeerID()}, nil
}

// VerifyWithPublicKey recomputes the digest of e.Data, confirms publicKey
// derives e.Signer, and checks the signature — in that order, so a
// signer/key mismatch is reported distinctly from a bad signature.
func (e *Envelope[T]) VerifyWithPublicKey(publicKey ed25519.PublicKey) error {
	if !identity.Verify(e.Signer, publicKey) {
		return ErrSignerMismatch
	}

	digest, err := digestOf(e.Data)
	if err != nil {
		return fmt.Errorf("envelope: failed to serialize payload: %w", err)
	}

	if !ed25519.Verify(publicKey, digest, e.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyWithIdentity is a convenience wrapper around VerifyWithPublicKey
// for the common case of verifying against a known Identity.
func (e *Envelope[T]) VerifyWithIdentity(id *identity.Identity) error {
	return e.VerifyWithPublicKey(id.PublicKey())
}

// Fingerprint returns a deterministic identifier for this envelope, derived
// from its payload and signature, suitable as a replay-cache key.
func (e *Envelope[T]) Fingerprint() (string, error) {
	digest, err := digestOf(e.Data)
	if err != nil {
		return "", fmt.Errorf("envelope: failed to serialize payload: %w", err)
	}
	h := sha256.New()
	h.Write(digest)
	h.Write(e.Signature)
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// digestOf returns the SHA-256 hash of data's canonical JSON encoding.
// Struct field order in Go's encoding/json is fixed by declaration order
// (not alphabetized, not map-randomized), so this is stable across
// processes and re-encodes identically every time.
func digestOf(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	hash := sha256.Sum256(buf.Bytes())
	return hash[:], nil
}
