package domain

// Well-known claim types
const (
	ClaimSubject         = "sub"
	ClaimName            = "name"
	ClaimEmail           = "email"
	ClaimRole            = "role"
	ClaimNonce           = "nonce"
	ClaimAuthTime        = "auth_time"
	ClaimAuthorizedParty = "azp"
	ClaimClientID        = "client_id"

	// ClaimSecurityAdmin grants access to security administration queries
	ClaimSecurityAdmin = "urn:authcore:security_admin"
)

// Claim is a single assertion about an authenticated subject
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NewClaim creates a claim
func NewClaim(claimType, value string) Claim {
	return Claim{Type: claimType, Value: value}
}

// Principal is an authenticated subject and its claims
type Principal struct {
	AuthenticationType string  `json:"authentication_type"`
	Claims             []Claim `json:"claims"`
}

// NewPrincipal creates a principal authenticated by authenticationType
func NewPrincipal(authenticationType string, claims ...Claim) *Principal {
	return &Principal{
		AuthenticationType: authenticationType,
		Claims:             append([]Claim(nil), claims...),
	}
}

// IsAuthenticated reports whether the principal carries an authentication type
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.AuthenticationType != ""
}

// FindFirst returns the value of the first claim of the given type
func (p *Principal) FindFirst(claimType string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, c := range p.Claims {
		if c.Type == claimType {
			return c.Value, true
		}
	}
	return "", false
}

// HasClaim reports whether the principal carries a claim of the given type
func (p *Principal) HasClaim(claimType string) bool {
	_, ok := p.FindFirst(claimType)
	return ok
}

// Subject returns the subject claim, or an empty string
func (p *Principal) Subject() string {
	sub, _ := p.FindFirst(ClaimSubject)
	return sub
}

// WithClaims returns a copy of the principal with additional claims
func (p *Principal) WithClaims(claims ...Claim) *Principal {
	if p == nil {
		return nil
	}
	cp := NewPrincipal(p.AuthenticationType, p.Claims...)
	cp.Claims = append(cp.Claims, claims...)
	return cp
}
