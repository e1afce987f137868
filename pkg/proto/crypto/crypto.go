// Package crypto implements the login-phase key exchange primitives of
// protocol 47: shared secret generation, the Mojang session digest and
// RSA/PKCS#1 v1.5 encryption under the server's published key.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"fmt"
	"io"
	"math/big"
)

// NewSharedSecret returns 16 cryptographically random bytes, used as both
// AES key and CFB8 IV.
func NewSharedSecret() ([]byte, error) {
	secret := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("crypto: generate shared secret: %w", err)
	}
	return secret, nil
}

// ParsePublicKey parses the DER-encoded RSA public key a server sends in
// its encryption request.
func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse server public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("crypto: server public key is %T, not RSA", key)
	}
	return rsaKey, nil
}

// Encrypt applies RSA/PKCS#1 v1.5 under key, as required for the shared
// secret and verify token in the encryption response.
func Encrypt(key *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	out, err := rsa.EncryptPKCS1v15(rand.Reader, key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("crypto: rsa encrypt: %w", err)
	}
	return out, nil
}

// SessionDigest computes the Mojang session hash: SHA-1 over
// serverID || sharedSecret || publicKey, interpreted as a signed big-endian
// integer and rendered as two's-complement hex. Negative digests carry a
// leading minus sign.
func SessionDigest(serverID string, sharedSecret, publicKey []byte) string {
	h := sha1.New()
	h.Write([]byte(serverID))
	h.Write(sharedSecret)
	h.Write(publicKey)
	sum := h.Sum(nil)

	n := new(big.Int).SetBytes(sum)
	if sum[0]&0x80 != 0 {
		// Bit 159 set: reinterpret as a negative two's-complement value.
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), 160))
	}
	return n.Text(16)
}
