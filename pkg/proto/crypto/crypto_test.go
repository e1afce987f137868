package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The classic digest vectors from the protocol documentation: the hash
// over just the server id, with empty secret and key.
func TestSessionDigestKnownVectors(t *testing.T) {
	cases := map[string]string{
		"Notch": "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48",
		"jeb_":  "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1",
		"simon": "88e16a1019277b15d58faf0541e11910eb756f6",
	}
	for serverID, want := range cases {
		assert.Equal(t, want, SessionDigest(serverID, nil, nil), serverID)
	}
}

func TestSessionDigestUsesAllInputs(t *testing.T) {
	secret := []byte{1, 2, 3}
	key := []byte{4, 5, 6}
	base := SessionDigest("", secret, key)
	assert.NotEqual(t, base, SessionDigest("", secret, nil))
	assert.NotEqual(t, base, SessionDigest("", nil, key))
	assert.Equal(t, base, SessionDigest("", secret, key))
}

func TestNewSharedSecret(t *testing.T) {
	a, err := NewSharedSecret()
	require.NoError(t, err)
	b, err := NewSharedSecret()
	require.NoError(t, err)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

func TestEncryptUnderParsedKey(t *testing.T) {
	private, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	require.NoError(t, err)

	public, err := ParsePublicKey(der)
	require.NoError(t, err)

	secret := []byte("0123456789abcdef")
	ciphertext, err := Encrypt(public, secret)
	require.NoError(t, err)

	decrypted, err := rsa.DecryptPKCS1v15(rand.Reader, private, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, secret, decrypted)
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	_, err := ParsePublicKey([]byte("not a key"))
	assert.Error(t, err)
}
