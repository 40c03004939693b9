// Package protection provides the host-side protect/unprotect pair used to make
// authorization state and stored external tokens tamper evident.
package protection

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"github.com/manorfm/authcore/internal/domain"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const minSecretSize = 32

var (
	ErrSecretTooShort  = errors.New("protection secret must be at least 32 bytes")
	ErrPayloadTooShort = errors.New("protected payload is too short")
	ErrPurposeRequired = errors.New("protection purpose is required")
	ErrInvalidSecret   = errors.New("protection secret is not valid base64")
)

// Protector encrypts payloads with XChaCha20-Poly1305 under a key derived from a
// master secret and a purpose. Payloads protected for one purpose cannot be
// unprotected for another.
type Protector struct {
	purpose string
	aead    cipher.AEAD
}

// New derives the purpose key from secret with HKDF-SHA256
func New(secret []byte, purpose string) (*Protector, error) {
	if len(secret) < minSecretSize {
		return nil, ErrSecretTooShort
	}
	if purpose == "" {
		return nil, ErrPurposeRequired
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(purpose)), key); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Protector{purpose: purpose, aead: aead}, nil
}

// NewFromBase64 decodes a standard or URL-safe Base64 secret and calls New
func NewFromBase64(secret, purpose string) (*Protector, error) {
	for _, encoding := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if raw, err := encoding.DecodeString(secret); err == nil {
			return New(raw, purpose)
		}
	}
	return nil, ErrInvalidSecret
}

// Purpose returns the purpose the key was derived for
func (p *Protector) Purpose() string {
	return p.purpose
}

// Protect returns nonce || ciphertext
func (p *Protector) Protect(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, p.aead.NonceSize(), p.aead.NonceSize()+len(plaintext)+p.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return p.aead.Seal(nonce, nonce, plaintext, []byte(p.purpose)), nil
}

// Unprotect authenticates and decrypts a payload produced by Protect
func (p *Protector) Unprotect(protected []byte) ([]byte, error) {
	if len(protected) < p.aead.NonceSize()+p.aead.Overhead() {
		return nil, ErrPayloadTooShort
	}
	nonce, ciphertext := protected[:p.aead.NonceSize()], protected[p.aead.NonceSize():]
	return p.aead.Open(nil, nonce, ciphertext, []byte(p.purpose))
}

// ProtectFunc exposes Protect as a domain.ProtectFunc
func (p *Protector) ProtectFunc() domain.ProtectFunc {
	return p.Protect
}

// UnprotectFunc exposes Unprotect as a domain.UnprotectFunc
func (p *Protector) UnprotectFunc() domain.UnprotectFunc {
	return p.Unprotect
}
