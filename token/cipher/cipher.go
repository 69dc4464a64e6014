// Package cipher encrypts refresh tokens for at-rest storage.
//
// The failure policy is deliberate: a broken or absent encryption key must
// degrade to "treat as logged out", never crash the service. Both Encrypt and
// Decrypt therefore resolve every failure to a sentinel error the refresh
// path maps to "no refresh token".
package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/hkdf"

	apperrors "github.com/jrsteele09/go-session-gateway/internal/errors"
)

const keySize = 32 // AES-256

// hkdfInfo binds derived keys to this purpose so the same configured secret
// cannot be reused for anything else by accident.
const hkdfInfo = "refresh-token-at-rest"

// TokenCipher seals and opens refresh tokens with AES-256-GCM. The key is
// derived from the configured opaque secret via HKDF-SHA256.
type TokenCipher struct {
	aead stdcipher.AEAD
}

// New derives the AEAD from the configured secret. An empty secret yields a
// disabled cipher: the gateway still runs, refresh tokens are just never
// stored, and that gets logged once here as a security warning.
func New(secret string) *TokenCipher {
	if secret == "" {
		log.Warn().Msg("REFRESH_TOKEN_ENCRYPTION_KEY is not set: refresh tokens will not be persisted and sessions will degrade at access-token expiry")
		return &TokenCipher{}
	}

	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		log.Warn().Err(err).Msg("refresh-token encryption key derivation failed: cipher disabled")
		return &TokenCipher{}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		log.Warn().Err(err).Msg("refresh-token cipher initialisation failed: cipher disabled")
		return &TokenCipher{}
	}
	aead, err := stdcipher.NewGCM(block)
	if err != nil {
		log.Warn().Err(err).Msg("refresh-token cipher initialisation failed: cipher disabled")
		return &TokenCipher{}
	}

	return &TokenCipher{aead: aead}
}

// Enabled reports whether a usable key is configured.
func (c *TokenCipher) Enabled() bool {
	return c.aead != nil
}

// Encrypt seals the plaintext and returns a base64url ciphertext with the
// nonce prepended. Returns ErrCipherDisabled when no key is configured.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if !c.Enabled() {
		return "", apperrors.ErrCipherDisabled
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrCipherFailure, err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Every failure (wrong key,
// truncated or corrupted input, bad encoding) resolves to ErrCipherFailure;
// the caller treats it as "no refresh token on file".
func (c *TokenCipher) Decrypt(ciphertext string) (string, error) {
	if !c.Enabled() {
		return "", apperrors.ErrCipherDisabled
	}

	sealed, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrCipherFailure, err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", apperrors.ErrCipherFailure)
	}

	nonce, payload := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, payload, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrCipherFailure, err)
	}
	return string(plaintext), nil
}
