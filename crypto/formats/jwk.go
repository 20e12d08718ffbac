package formats

import (
	"crypto"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	sagecrypto "github.com/sage-x-project/p2pkv/crypto"
	"github.com/sage-x-project/p2pkv/crypto/keys"
)

// JWK represents a JSON Web Key restricted to the OKP/Ed25519 key type this
// node uses for peer identity and envelope signing.
type JWK struct {
	Kty string `json:"kty"`           // Key Type, always "OKP"
	Crv string `json:"crv,omitempty"` // Curve, always "Ed25519"
	X   string `json:"x,omitempty"`   // public key
	D   string `json:"d,omitempty"`   // private key seed
	Kid string `json:"kid,omitempty"` // Key ID
	Use string `json:"use,omitempty"` // Key use
	Alg string `json:"alg,omitempty"` // Algorithm, always "EdDSA"
}

// jwkExporter implements KeyExporter for JWK format
type jwkExporter struct{}

// NewJWKExporter creates a new JWK exporter
func NewJWKExporter() sagecrypto.KeyExporter {
	return &jwkExporter{}
}

// Export exports the key pair in JWK format
func (e *jwkExporter) Export(keyPair sagecrypto.KeyPair, format sagecrypto.KeyFormat) ([]byte, error) {
	if format != sagecrypto.KeyFormatJWK {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}
	if keyPair.Type() != sagecrypto.KeyTypeEd25519 {
		return nil, sagecrypto.ErrInvalidKeyType
	}

	privateKey, ok := keyPair.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid Ed25519 private key type")
	}
	publicKey := privateKey.Public().(ed25519.PublicKey)

	jwk := &JWK{
		Kid: keyPair.ID(),
		Use: "sig",
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(publicKey),
		D:   base64.RawURLEncoding.EncodeToString(privateKey.Seed()),
		Alg: "EdDSA",
	}

	return json.Marshal(jwk)
}

// ExportPublic exports only the public key in JWK format
func (e *jwkExporter) ExportPublic(keyPair sagecrypto.KeyPair, format sagecrypto.KeyFormat) ([]byte, error) {
	if format != sagecrypto.KeyFormatJWK {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}
	if keyPair.Type() != sagecrypto.KeyTypeEd25519 {
		return nil, sagecrypto.ErrInvalidKeyType
	}

	publicKey, ok := keyPair.PublicKey().(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid Ed25519 public key type")
	}

	jwk := &JWK{
		Kid: keyPair.ID(),
		Use: "sig",
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(publicKey),
		Alg: "EdDSA",
	}

	return json.Marshal(jwk)
}

// jwkImporter implements KeyImporter for JWK format
type jwkImporter struct{}

// NewJWKImporter creates a new JWK importer
func NewJWKImporter() sagecrypto.KeyImporter {
	return &jwkImporter{}
}

// Import imports a key pair from JWK format
func (i *jwkImporter) Import(data []byte, format sagecrypto.KeyFormat) (sagecrypto.KeyPair, error) {
	if format != sagecrypto.KeyFormatJWK {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	var jwk JWK
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JWK: %w", err)
	}

	if jwk.Kty != "OKP" || jwk.Crv != "Ed25519" {
		return nil, fmt.Errorf("unsupported key type: %s/%s", jwk.Kty, jwk.Crv)
	}

	if jwk.D == "" {
		return nil, errors.New("missing private key component")
	}
	seedBytes, err := base64.RawURLEncoding.DecodeString(jwk.D)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}

	privateKey := ed25519.NewKeyFromSeed(seedBytes)
	return keys.NewEd25519KeyPair(privateKey, jwk.Kid)
}

// ImportPublic imports only a public key from JWK format
func (i *jwkImporter) ImportPublic(data []byte, format sagecrypto.KeyFormat) (crypto.PublicKey, error) {
	if format != sagecrypto.KeyFormatJWK {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	var jwk JWK
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JWK: %w", err)
	}

	if jwk.Kty != "OKP" || jwk.Crv != "Ed25519" {
		return nil, fmt.Errorf("unsupported key type: %s/%s", jwk.Kty, jwk.Crv)
	}

	publicKeyBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	return ed25519.PublicKey(publicKeyBytes), nil
}

// ComputeKeyIDRFC9421 generates a kid based on the RFC 7638 JWK thumbprint.
func (jwk JWK) ComputeKeyIDRFC9421() (string, error) {
	m := map[string]string{
		"kty": jwk.Kty,
	}
	if jwk.Crv != "" {
		m["crv"] = jwk.Crv
	}
	if jwk.X != "" {
		m["x"] = jwk.X
	}

	fields := make([]string, 0, len(m))
	for k := range m {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	buf := []byte{'{'}
	for i, k := range fields {
		if i > 0 {
			buf = append(buf, ',')
		}
		valueJSON, err := json.Marshal(m[k])
		if err != nil {
			return "", fmt.Errorf("failed to marshal JWK thumbprint value: %w", err)
		}
		buf = append(buf, fmt.Sprintf("%q:%s", k, valueJSON)...)
	}
	buf = append(buf, '}')

	sum := sha256.Sum256(buf)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
