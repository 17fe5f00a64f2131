package postgres

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// tokenVersion prefixes every sealed token so the format can evolve
	tokenVersion = 0x01

	nonceSize = 12
	keySize   = 32
)

var (
	ErrInvalidKeySize     = errors.New("encryption key must be 32 bytes")
	ErrInvalidBlobSize    = errors.New("encrypted blob is too small")
	ErrUnsupportedVersion = errors.New("unsupported token blob version")
	ErrDecryptionFailed   = errors.New("failed to decrypt token blob")
)

// TokenCipher seals OAuth tokens at rest with AES-256-GCM.
// Blob layout: version(1) || nonce(12) || ciphertext.
// A nil *TokenCipher stores tokens unencrypted.
type TokenCipher struct {
	gcm cipher.AEAD
}

// NewTokenCipher creates a cipher from a 32-byte key.
func NewTokenCipher(key []byte) (*TokenCipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &TokenCipher{gcm: gcm}, nil
}

// Seal encrypts a token. Empty tokens are stored as NULL.
func (c *TokenCipher) Seal(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}
	if c == nil {
		return []byte(token), nil
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	blob := make([]byte, 1+nonceSize, 1+nonceSize+len(token)+c.gcm.Overhead())
	blob[0] = tokenVersion
	copy(blob[1:], nonce)
	return c.gcm.Seal(blob, nonce, []byte(token), nil), nil
}

// Open decrypts a blob produced by Seal.
func (c *TokenCipher) Open(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	if c == nil {
		return string(blob), nil
	}

	if len(blob) < 1+nonceSize+c.gcm.Overhead() {
		return "", ErrInvalidBlobSize
	}
	if blob[0] != tokenVersion {
		return "", fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, blob[0])
	}

	plaintext, err := c.gcm.Open(nil, blob[1:1+nonceSize], blob[1+nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
