package state

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// SecretboxCipher is the bundled encryption hook, backed by
// golang.org/x/crypto/nacl/secretbox (XSalsa20-Poly1305). A random
// 24-byte nonce is prepended to each ciphertext. A Store uses it only
// when it is passed to New; a Store created with a nil cipher has none.
//
// Grounded on SPEC_FULL.md's Domain Stack: spec §4.5 names an
// encrypt/decrypt hook pair without mandating an algorithm; secretbox is
// the pack's only authenticated-encryption primitive with no external
// service dependency, matching the store's single-process, no-KMS
// design.
type SecretboxCipher struct {
	key [32]byte
}

// NewSecretboxCipher creates a cipher from a 32-byte key.
func NewSecretboxCipher(key [32]byte) *SecretboxCipher {
	return &SecretboxCipher{key: key}
}

// Encrypt seals plaintext with a fresh random nonce, returning
// nonce||ciphertext.
func (c *SecretboxCipher) Encrypt(plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &c.key)
	return sealed, nil
}

// Decrypt opens a nonce||ciphertext blob produced by Encrypt.
func (c *SecretboxCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 24 {
		return nil, errors.New("state: ciphertext too short")
	}
	var nonce [24]byte
	copy(nonce[:], ciphertext[:24])
	plaintext, ok := secretbox.Open(nil, ciphertext[24:], &nonce, &c.key)
	if !ok {
		return nil, errors.New("state: decryption failed (wrong key or corrupted data)")
	}
	return plaintext, nil
}
