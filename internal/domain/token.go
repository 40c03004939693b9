package domain

import "time"

// TokenTypeBearer is the token type of every issued token
const TokenTypeBearer = "Bearer"

// Token is an issued access token
type Token struct {
	TokenType   string    `json:"token_type"`
	AccessToken string    `json:"access_token"`
	Expires     time.Time `json:"expires"`
}

// NewBearerToken creates a bearer token
func NewBearerToken(accessToken string, expires time.Time) *Token {
	return &Token{
		TokenType:   TokenTypeBearer,
		AccessToken: accessToken,
		Expires:     expires,
	}
}

// HasExpired reports whether the token is past its expiry at now
func (t *Token) HasExpired(now time.Time) bool {
	return !now.Before(t.Expires)
}

// ExpiresIn returns the remaining lifetime in whole seconds
func (t *Token) ExpiresIn(now time.Time) int64 {
	if t.HasExpired(now) {
		return 0
	}
	return int64(t.Expires.Sub(now) / time.Second)
}

// RefreshableToken is a token obtained from an external identity provider
type RefreshableToken struct {
	Token
	RefreshToken string `json:"refresh_token"`
}
