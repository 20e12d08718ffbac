package crypto

import (
	"crypto"
	"errors"
)

// KeyType represents the type of cryptographic key
type KeyType string

const (
	KeyTypeEd25519 KeyType = "Ed25519"
)

// KeyFormat represents the format for key export/import
type KeyFormat string

const (
	KeyFormatJWK KeyFormat = "JWK"
	KeyFormatPEM KeyFormat = "PEM"
)

// KeyPair represents a cryptographic key pair
type KeyPair interface {
	// PublicKey returns the public key
	PublicKey() crypto.PublicKey
	
	// PrivateKey returns the private key
	PrivateKey() crypto.PrivateKey
	
	// Type returns the key type
	Type() KeyType
	
	// Sign signs the given message
	Sign(message []byte) ([]byte, error)
	
	// Verify verifies the signature
	Verify(message, signature []byte) error
	
	// ID returns a unique identifier for this key pair
	ID() string
}

// KeyExporter handles key export operations
type KeyExporter interface {
	// Export exports the key pair in the specified format
	Export(keyPair KeyPair, format KeyFormat) ([]byte, error)
	
	// ExportPublic exports only the public key
	ExportPublic(keyPair KeyPair, format KeyFormat) ([]byte, error)
}

// KeyImporter handles key import operations
type KeyImporter interface {
	// Import imports a key pair from the specified format
	Import(data []byte, format KeyFormat) (KeyPair, error)
	
	// ImportPublic imports only a public key
	ImportPublic(data []byte, format KeyFormat) (crypto.PublicKey, error)
}

// Common errors
var (
	ErrInvalidKeyType   = errors.New("invalid key type")
	ErrInvalidKeyFormat = errors.New("invalid key format")
	ErrInvalidSignature = errors.New("invalid signature")
)