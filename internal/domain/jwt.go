package domain

import "time"

const (
	// DefaultAccessTokenDuration is the lifetime of access tokens unless configured
	DefaultAccessTokenDuration = time.Hour
	// DefaultIDTokenDuration is the lifetime of ID tokens unless configured
	DefaultIDTokenDuration = 5 * time.Minute
)

// AuthenticationTypeBearer is the authentication type of principals rebuilt from access tokens
const AuthenticationTypeBearer = "Bearer"

// TokenGenerator issues signed tokens
type TokenGenerator interface {
	// SigningAlgorithm returns the JWS algorithm used to sign tokens
	SigningAlgorithm() string
	// Generate signs a token carrying claims and valid for ttl
	Generate(claims []Claim, ttl time.Duration) (*Token, error)
}

// TokenValidator verifies tokens issued by TokenGenerator
type TokenValidator interface {
	Validate(token string) (*Principal, error)
}

// SigningKey holds the Base64URL encoded JWK components of the RSA signing key
type SigningKey struct {
	Kty string
	N   string
	E   string
	D   string
	P   string
	Q   string
	Dp  string
	Dq  string
	Qi  string
}

// JWTConfig configures token issuance
type JWTConfig struct {
	Key                 SigningKey
	Issuer              string
	Audience            string
	AccessTokenLifetime time.Duration
	IDTokenLifetime     time.Duration
}
