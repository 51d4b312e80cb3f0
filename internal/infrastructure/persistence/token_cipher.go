package persistence

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// sealedTokenPrefix marks access tokens sealed with XChaCha20-Poly1305
const sealedTokenPrefix = "xc1:"

// ErrUndecryptableToken is returned when a stored token cannot be opened with the configured key
var ErrUndecryptableToken = errors.New("stored access token cannot be decrypted")

// TokenCipher seals access tokens before they reach the database.
// The shop domain is bound as additional data so a sealed token copied
// to another row does not open.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher creates a cipher from a 32-byte key
func NewTokenCipher(key []byte) (*TokenCipher, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("invalid token key: %w", err)
	}
	return &TokenCipher{aead: aead}, nil
}

// ParseTokenKey decodes a standard base64 key of chacha20poly1305.KeySize bytes
func ParseTokenKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("invalid token key encoding: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}

// Seal encrypts the token of a shop under a fresh random nonce
func (c *TokenCipher) Seal(shop, token string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(token)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(token), []byte(shop))
	return sealedTokenPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a stored token. Values without the sealed prefix predate
// encryption and are returned unchanged; the next Set seals them.
func (c *TokenCipher) Open(shop, stored string) (string, error) {
	payload, sealed := strings.CutPrefix(stored, sealedTokenPrefix)
	if !sealed {
		return stored, nil
	}

	raw, err := base64.RawStdEncoding.DecodeString(payload)
	if err != nil || len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", ErrUndecryptableToken
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, []byte(shop))
	if err != nil {
		return "", ErrUndecryptableToken
	}
	return string(plain), nil
}

func isSealedToken(stored string) bool {
	return strings.HasPrefix(stored, sealedTokenPrefix)
}
