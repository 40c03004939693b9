// Package password hashes and checks client secrets.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrSecretMismatch is returned when a secret does not match its hash
var ErrSecretMismatch = errors.New("invalid client secret")

// Hash hashes a secret using bcrypt
func Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Check checks if a secret matches its hash
func Check(secret, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrSecretMismatch
		}
		return err
	}
	return nil
}

// IsHash reports whether value already is a bcrypt hash
func IsHash(value string) bool {
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}
