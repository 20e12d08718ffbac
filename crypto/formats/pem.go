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

package formats

import (
	"crypto"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	sagecrypto "github.com/sage-x-project/p2pkv/crypto"
	"github.com/sage-x-project/p2pkv/crypto/keys"
)

// pemExporter implements KeyExporter for PEM format, restricted to Ed25519
// keys encoded via the standard PKCS#8 / PKIX containers.
type pemExporter struct{}

// NewPEMExporter creates a new PEM exporter
func NewPEMExporter() sagecrypto.KeyExporter {
	return &pemExporter{}
}

// Export exports the key pair's private key as a PEM-encoded PKCS#8 block
func (e *pemExporter) Export(keyPair sagecrypto.KeyPair, format sagecrypto.KeyFormat) ([]byte, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}
	if keyPair.Type() != sagecrypto.KeyTypeEd25519 {
		return nil, sagecrypto.ErrInvalidKeyType
	}

	privateKey, ok := keyPair.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid Ed25519 private key type")
	}

	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	return pem.EncodeToMemory(block), nil
}

// ExportPublic exports only the public key as a PEM-encoded PKIX block
func (e *pemExporter) ExportPublic(keyPair sagecrypto.KeyPair, format sagecrypto.KeyFormat) ([]byte, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}
	if keyPair.Type() != sagecrypto.KeyTypeEd25519 {
		return nil, sagecrypto.ErrInvalidKeyType
	}

	publicKey, ok := keyPair.PublicKey().(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid Ed25519 public key type")
	}

	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return pem.EncodeToMemory(block), nil
}

// pemImporter implements KeyImporter for PEM format
type pemImporter struct{}

// NewPEMImporter creates a new PEM importer
func NewPEMImporter() sagecrypto.KeyImporter {
	return &pemImporter{}
}

// Import imports a key pair from a PEM-encoded PKCS#8 private key.
// Only the first PEM block in data is considered.
func (i *pemImporter) Import(data []byte, format sagecrypto.KeyFormat) (sagecrypto.KeyPair, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	privateKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, sagecrypto.ErrInvalidKeyType
	}

	return keys.NewEd25519KeyPair(privateKey, "")
}

// ImportPublic imports only a public key from a PEM-encoded PKIX block
func (i *pemImporter) ImportPublic(data []byte, format sagecrypto.KeyFormat) (crypto.PublicKey, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	publicKey, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, sagecrypto.ErrInvalidKeyType
	}

	return publicKey, nil
}
