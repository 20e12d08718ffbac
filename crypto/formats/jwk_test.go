package formats

import (
	"encoding/json"
	"testing"

	"github.com/sage-x-project/p2pkv/crypto"
	"github.com/sage-x-project/p2pkv/crypto/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWKExporter(t *testing.T) {
	exporter := NewJWKExporter()

	t.Run("ExportEd25519KeyPair", func(t *testing.T) {
		keyPair, err := keys.GenerateEd25519KeyPair()
		require.NoError(t, err)

		exported, err := exporter.Export(keyPair, crypto.KeyFormatJWK)
		require.NoError(t, err)
		assert.NotEmpty(t, exported)

		var jwk map[string]interface{}
		err = json.Unmarshal(exported, &jwk)
		require.NoError(t, err)

		assert.Equal(t, "OKP", jwk["kty"])
		assert.Equal(t, "Ed25519", jwk["crv"])
		assert.NotEmpty(t, jwk["x"])
		assert.NotEmpty(t, jwk["d"])
		assert.NotEmpty(t, jwk["kid"])
	})

	t.Run("ExportEd25519PublicKey", func(t *testing.T) {
		keyPair, err := keys.GenerateEd25519KeyPair()
		require.NoError(t, err)

		exported, err := exporter.ExportPublic(keyPair, crypto.KeyFormatJWK)
		require.NoError(t, err)
		assert.NotEmpty(t, exported)

		var jwk map[string]interface{}
		err = json.Unmarshal(exported, &jwk)
		require.NoError(t, err)

		assert.Equal(t, "OKP", jwk["kty"])
		assert.Equal(t, "Ed25519", jwk["crv"])
		assert.NotEmpty(t, jwk["x"])
		assert.Empty(t, jwk["d"])
		assert.NotEmpty(t, jwk["kid"])
	})
}

func TestJWKImporter(t *testing.T) {
	exporter := NewJWKExporter()
	importer := NewJWKImporter()

	t.Run("ImportEd25519KeyPair", func(t *testing.T) {
		originalKeyPair, err := keys.GenerateEd25519KeyPair()
		require.NoError(t, err)

		exported, err := exporter.Export(originalKeyPair, crypto.KeyFormatJWK)
		require.NoError(t, err)

		importedKeyPair, err := importer.Import(exported, crypto.KeyFormatJWK)
		require.NoError(t, err)
		assert.NotNil(t, importedKeyPair)
		assert.Equal(t, crypto.KeyTypeEd25519, importedKeyPair.Type())

		message := []byte("test message")
		signature, err := importedKeyPair.Sign(message)
		require.NoError(t, err)

		err = originalKeyPair.Verify(message, signature)
		assert.NoError(t, err)
	})

	t.Run("ImportEd25519PublicKey", func(t *testing.T) {
		originalKeyPair, err := keys.GenerateEd25519KeyPair()
		require.NoError(t, err)

		exported, err := exporter.ExportPublic(originalKeyPair, crypto.KeyFormatJWK)
		require.NoError(t, err)

		importedPublicKey, err := importer.ImportPublic(exported, crypto.KeyFormatJWK)
		require.NoError(t, err)
		assert.NotNil(t, importedPublicKey)
	})

	t.Run("ImportInvalidJSON", func(t *testing.T) {
		invalidData := []byte("invalid json")
		_, err := importer.Import(invalidData, crypto.KeyFormatJWK)
		assert.Error(t, err)
	})

	t.Run("ImportMissingKeyType", func(t *testing.T) {
		invalidJWK := []byte(`{"x": "test"}`)
		_, err := importer.Import(invalidJWK, crypto.KeyFormatJWK)
		assert.Error(t, err)
	})
}
