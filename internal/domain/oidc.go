package domain

import "fmt"

// ExternalProvider identifies an external identity provider
type ExternalProvider string

const (
	Microsoft ExternalProvider = "microsoft"
	Google    ExternalProvider = "google"
)

// TokenClaimType is the claim type under which a protected token from the provider is stored
func (p ExternalProvider) TokenClaimType() string {
	return fmt.Sprintf("urn:authcore:external_token:%s", string(p))
}

// IsKnown reports whether the provider is supported
func (p ExternalProvider) IsKnown() bool {
	return p == Microsoft || p == Google
}
