package domain

import (
	"context"
	"time"
)

// AuthenticationTypeClientSecret is the authentication type of principals built from client secrets
const AuthenticationTypeClientSecret = "client_secret"

// ClientSecretIdentity is a registered client able to authenticate with a secret
type ClientSecretIdentity struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"-"`
	FriendlyName string    `json:"friendly_name"`
	Claims       []Claim   `json:"claims"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToPrincipal converts the identity into an authenticated principal
func (i *ClientSecretIdentity) ToPrincipal() *Principal {
	claims := []Claim{
		NewClaim(ClaimSubject, i.ClientID),
		NewClaim(ClaimClientID, i.ClientID),
	}
	if i.FriendlyName != "" {
		claims = append(claims, NewClaim(ClaimName, i.FriendlyName))
	}
	claims = append(claims, i.Claims...)
	return NewPrincipal(AuthenticationTypeClientSecret, claims...)
}

// SecurityRepository defines the identity lookups the security handlers depend on
type SecurityRepository interface {
	// GetClientSecretIdentity finds a client secret identity by client ID
	GetClientSecretIdentity(ctx context.Context, clientID string) (*ClientSecretIdentity, error)
}
