// Package providers implements the small collaborators the authorization flow
// consults: trusted redirect domains, supported scopes and the clock.
package providers

import (
	"net/url"
	"strings"
	"time"
)

// TrustedDomains trusts a redirect URI whose host equals a configured domain or is one of its subdomains
type TrustedDomains struct {
	domains []string
}

// NewTrustedDomains creates a resolver for the given domains. Ports and case are ignored.
func NewTrustedDomains(domains []string) *TrustedDomains {
	normalized := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
		if domain != "" {
			normalized = append(normalized, domain)
		}
	}
	return &TrustedDomains{domains: normalized}
}

// IsTrustedDomain reports whether uri points to a trusted host
func (t *TrustedDomains) IsTrustedDomain(uri *url.URL) bool {
	if uri == nil || !uri.IsAbs() {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(uri.Hostname()), ".")
	if host == "" {
		return false
	}
	for _, domain := range t.domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Domains returns the trusted domains
func (t *TrustedDomains) Domains() []string {
	return append([]string(nil), t.domains...)
}

// SupportedScopes answers whether a scope may be requested
type SupportedScopes struct {
	scopes []string
	index  map[string]struct{}
}

// NewSupportedScopes creates a provider for the given scopes, keeping their order
func NewSupportedScopes(scopes []string) *SupportedScopes {
	provider := &SupportedScopes{index: make(map[string]struct{}, len(scopes))}
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if _, exists := provider.index[scope]; exists {
			continue
		}
		provider.index[scope] = struct{}{}
		provider.scopes = append(provider.scopes, scope)
	}
	return provider
}

// IsSupported reports whether scope is supported. Scopes are case sensitive.
func (s *SupportedScopes) IsSupported(scope string) bool {
	_, ok := s.index[scope]
	return ok
}

// SupportedScopes returns the supported scopes in configuration order
func (s *SupportedScopes) SupportedScopes() []string {
	return append([]string(nil), s.scopes...)
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

func (SystemClock) UtcNow() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant
type FixedClock struct {
	Now time.Time
}

func (c FixedClock) UtcNow() time.Time {
	return c.Now.UTC()
}
