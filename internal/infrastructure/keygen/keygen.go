// Package keygen derives opaque keys from arbitrary input values.
package keygen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"github.com/manorfm/authcore/internal/domain"
	"github.com/manorfm/authcore/internal/infrastructure/validation"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 10000
	separator  = "\x1f"
)

// Generator stretches the joined input values with PBKDF2-SHA256 and a random salt.
// Two calls with the same values yield different keys.
type Generator struct {
	random io.Reader
}

var _ domain.KeyGenerator = (*Generator)(nil)

// New creates a generator reading salts from crypto/rand
func New() *Generator {
	return &Generator{random: rand.Reader}
}

// NewWithReader creates a generator reading salts from r
func NewWithReader(r io.Reader) *Generator {
	return &Generator{random: r}
}

// GenerateKey returns a Base64URL key derived from values
func (g *Generator) GenerateKey(values []string) (string, error) {
	if len(values) == 0 {
		return "", validation.NotEmpty("", "values")
	}
	for _, value := range values {
		if err := validation.NotEmpty(value, "values"); err != nil {
			return "", err
		}
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(g.random, salt); err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(strings.Join(values, separator)), salt, iterations, keySize, sha256.New)
	return base64.RawURLEncoding.EncodeToString(key), nil
}
