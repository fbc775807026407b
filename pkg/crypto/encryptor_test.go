package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEncryptor_GenerateNewKey(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)
	assert.NotNil(t, enc.identity)
	assert.NotNil(t, enc.recipient)
}

func TestNewEncryptor_WithProvidedKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	enc1, err := NewEncryptor(key)
	require.NoError(t, err)
	enc2, err := NewEncryptor(key)
	require.NoError(t, err)

	// Same key decrypts across instances (server and worker share ENCRYPTION_KEY)
	sealed, err := enc1.EncryptString("ya29.access-token")
	require.NoError(t, err)
	plain, err := enc2.DecryptString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ya29.access-token", plain)
}

func TestNewEncryptor_InvalidKey(t *testing.T) {
	_, err := NewEncryptor("invalid-key-format")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing identity")
}

func TestEncrypt_DifferentOutputEachTime(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	c1, err := enc.Encrypt([]byte("same data"))
	require.NoError(t, err)
	c2, err := enc.Encrypt([]byte("same data"))
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}

func TestDecrypt_WrongKey(t *testing.T) {
	enc1, err := NewEncryptor("")
	require.NoError(t, err)
	enc2, err := NewEncryptor("")
	require.NoError(t, err)

	ciphertext, err := enc1.Encrypt([]byte("refresh-token"))
	require.NoError(t, err)

	_, err = enc2.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestEncryptString_Empty(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	sealed, err := enc.EncryptString("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := enc.DecryptString("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestDecryptString_InvalidBase64(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	_, err = enc.DecryptString("not valid base64!!!")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "decoding base64")
}

func TestPublicKey(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)
	assert.Contains(t, enc.PublicKey(), "age1")
}

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(32)
	require.NoError(t, err)
	b, err := RandomHex(32)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestSHA256Hex(t *testing.T) {
	// echo -n abc | sha256sum
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		SHA256Hex("abc"),
	)
	assert.Len(t, SHA256Hex(""), 64)
}
