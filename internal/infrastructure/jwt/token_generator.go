// Package jwt issues and verifies RS256 tokens signed with the key held in configuration.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/manorfm/authcore/internal/domain"
	apperrors "github.com/manorfm/authcore/internal/domain/errors"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// TokenGenerator signs tokens carrying identity claims.
// It keeps no key material between calls and is safe for concurrent use.
type TokenGenerator struct {
	key      domain.SigningKey
	keyID    string
	issuer   string
	audience string
	clock    domain.Clock
	logger   *zap.Logger
}

var _ domain.TokenGenerator = (*TokenGenerator)(nil)

// NewTokenGenerator checks that the configured key can be assembled before any token is requested
func NewTokenGenerator(cfg domain.JWTConfig, clock domain.Clock, logger *zap.Logger) (*TokenGenerator, error) {
	private, err := privateKey(cfg.Key)
	if err != nil {
		logger.Error("Invalid signing key configuration", zap.Error(err))
		return nil, err
	}

	kid, err := keyID(&private.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKeyConfig, err)
	}

	return &TokenGenerator{
		key:      cfg.Key,
		keyID:    kid,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		clock:    clock,
		logger:   logger,
	}, nil
}

// SigningAlgorithm is always RS256
func (g *TokenGenerator) SigningAlgorithm() string {
	return jwt.SigningMethodRS256.Alg()
}

// KeyID returns the kid header of issued tokens
func (g *TokenGenerator) KeyID() string {
	return g.keyID
}

// Generate signs a token carrying claims that expires ttl after the clock's current time
func (g *TokenGenerator) Generate(claims []domain.Claim, ttl time.Duration) (*domain.Token, error) {
	if len(claims) == 0 {
		return nil, apperrors.NewValidationError("claims", "must not be empty")
	}
	if ttl <= 0 {
		return nil, apperrors.NewValidationError("ttl", "must be greater than 0")
	}

	private, err := privateKey(g.key)
	if err != nil {
		g.logger.Error("Failed to assemble signing key", zap.Error(err))
		return nil, err
	}

	now := g.clock.UtcNow()
	expires := now.Add(ttl)

	mapClaims := identityClaims(claims)
	if g.issuer != "" {
		mapClaims["iss"] = g.issuer
	}
	if g.audience != "" {
		mapClaims["aud"] = g.audience
	}
	mapClaims["iat"] = jwt.NewNumericDate(now)
	mapClaims["exp"] = jwt.NewNumericDate(expires)
	mapClaims["jti"] = ulid.Make().String()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, mapClaims)
	token.Header["kid"] = g.keyID

	signed, err := token.SignedString(private)
	if err != nil {
		g.logger.Error("Failed to sign token", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenGeneration, err)
	}

	return domain.NewBearerToken(signed, expires), nil
}

// identityClaims groups claims by type; a type seen more than once becomes an array
func identityClaims(claims []domain.Claim) jwt.MapClaims {
	values := make(map[string][]string, len(claims))
	order := make([]string, 0, len(claims))
	for _, c := range claims {
		if _, seen := values[c.Type]; !seen {
			order = append(order, c.Type)
		}
		values[c.Type] = append(values[c.Type], c.Value)
	}

	mapClaims := make(jwt.MapClaims, len(order)+5)
	for _, claimType := range order {
		if v := values[claimType]; len(v) == 1 {
			mapClaims[claimType] = v[0]
		} else {
			mapClaims[claimType] = v
		}
	}
	return mapClaims
}
