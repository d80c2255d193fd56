package secrets

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)

	sealed, err := e.Encrypt("cake-api-key-value")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "cake-api-key")

	plain, err := e.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "cake-api-key-value", plain)
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)

	a, err := e.Encrypt("same")
	require.NoError(t, err)
	b, err := e.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptTamperedValue(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)

	sealed, err := e.Encrypt("value")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01

	_, err = e.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func TestNewEncryptorRejectsBadKeys(t *testing.T) {
	_, err := NewEncryptor("not-hex")
	assert.Error(t, err)

	_, err = NewEncryptor(hex.EncodeToString([]byte("short")))
	assert.Error(t, err)
}
