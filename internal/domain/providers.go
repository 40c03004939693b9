package domain

import (
	"net/url"
	"time"
)

// ProtectFunc encrypts and authenticates a payload
type ProtectFunc func(plaintext []byte) ([]byte, error)

// UnprotectFunc reverses ProtectFunc and fails on tampered input
type UnprotectFunc func(protected []byte) ([]byte, error)

// TrustedDomainResolver decides which redirect targets may receive authorization responses
type TrustedDomainResolver interface {
	IsTrustedDomain(uri *url.URL) bool
}

// SupportedScopesProvider knows the scopes this service can grant
type SupportedScopesProvider interface {
	IsSupported(scope string) bool
	SupportedScopes() []string
}

// Clock provides the current time
type Clock interface {
	UtcNow() time.Time
}

// KeyGenerator derives an opaque key from a set of input values
type KeyGenerator interface {
	GenerateKey(values []string) (string, error)
}
