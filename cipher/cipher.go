// Package cipher provides field-level encryption for sensitive
// configuration values. Values are encrypted with AES-256-GCM and
// carried as self-describing strings with an "enc:v1:" prefix, so a
// config file can mix plaintext and encrypted fields and decryption
// can tell them apart without external bookkeeping.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prefix marks an encrypted value and names the scheme version, so a
// future scheme change can coexist with values written under this one.
const Prefix = "enc:v1:"

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

// ErrInvalidKeySize is returned when the key is not 32 bytes.
var ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

// FieldCipher encrypts and decrypts individual string values.
type FieldCipher interface {
	// Encrypt returns the value as a self-describing encrypted string.
	Encrypt(plaintext string) (string, error)

	// Decrypt reverses Encrypt. Decryption is tolerant: a value without
	// the encryption prefix, or one that fails to decode or
	// authenticate, is returned unchanged. Callers decrypt whole config
	// maps without tracking which fields were encrypted, and a config
	// written before encryption was enabled keeps working.
	Decrypt(value string) (string, error)

	// IsEncrypted reports whether the value carries the encryption
	// prefix.
	IsEncrypted(value string) bool
}

// AESFieldCipher is a FieldCipher backed by AES-256-GCM with a random
// per-value nonce. The nonce is prepended to the ciphertext and the
// whole payload is base64-encoded behind the scheme prefix.
type AESFieldCipher struct {
	aead cipher.AEAD
}

// New creates an AESFieldCipher from a 32-byte key.
func New(key []byte) (*AESFieldCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &AESFieldCipher{aead: aead}, nil
}

// Encrypt encrypts the plaintext under a fresh random nonce.
func (c *AESFieldCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decrypts a value produced by Encrypt. Any value that cannot
// be decrypted, whatever the reason, passes through unchanged.
func (c *AESFieldCipher) Decrypt(value string) (string, error) {
	if !c.IsEncrypted(value) {
		return value, nil
	}
	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return value, nil
	}
	if len(sealed) < c.aead.NonceSize() {
		return value, nil
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return value, nil
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether the value carries the encryption prefix.
func (c *AESFieldCipher) IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Noop is a FieldCipher that stores values as-is. It is used when no
// encryption key is configured.
type Noop struct{}

func (Noop) Encrypt(plaintext string) (string, error) { return plaintext, nil }
func (Noop) Decrypt(value string) (string, error)     { return value, nil }
func (Noop) IsEncrypted(string) bool                  { return false }
