package jwt

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/manorfm/authcore/internal/domain"
	"go.uber.org/zap"
)

const acceptableSkew = 30 * time.Second

var registeredClaims = map[string]struct{}{
	"iss": {},
	"aud": {},
	"exp": {},
	"iat": {},
	"nbf": {},
	"jti": {},
}

// TokenValidator verifies tokens issued by TokenGenerator and rebuilds their principal
type TokenValidator struct {
	auth   *jwtauth.JWTAuth
	logger *zap.Logger
}

var _ domain.TokenValidator = (*TokenValidator)(nil)

// NewTokenValidator verifies with the generator's public key, issuer and audience
func NewTokenValidator(generator *TokenGenerator, clock domain.Clock, logger *zap.Logger) (*TokenValidator, error) {
	public, err := generator.PublicKey()
	if err != nil {
		return nil, err
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(clock.UtcNow)),
		jwt.WithAcceptableSkew(acceptableSkew),
	}
	if generator.issuer != "" {
		options = append(options, jwt.WithIssuer(generator.issuer))
	}
	if generator.audience != "" {
		options = append(options, jwt.WithAudience(generator.audience))
	}

	return &TokenValidator{
		auth:   jwtauth.New(generator.SigningAlgorithm(), nil, public, options...),
		logger: logger,
	}, nil
}

// Validate checks signature, lifetime, issuer and audience
func (v *TokenValidator) Validate(token string) (*domain.Principal, error) {
	verified, err := jwtauth.VerifyToken(v.auth, token)
	if err != nil {
		v.logger.Debug("Token verification failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	claims, err := verified.AsMap(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	return domain.NewPrincipal(domain.AuthenticationTypeBearer, principalClaims(claims)...), nil
}

// principalClaims flattens token claims, subject first and the rest by name
func principalClaims(claims map[string]interface{}) []domain.Claim {
	types := make([]string, 0, len(claims))
	for claimType := range claims {
		if _, registered := registeredClaims[claimType]; registered || claimType == domain.ClaimSubject {
			continue
		}
		types = append(types, claimType)
	}
	slices.Sort(types)

	result := make([]domain.Claim, 0, len(claims))
	if sub, ok := claims[domain.ClaimSubject].(string); ok {
		result = append(result, domain.NewClaim(domain.ClaimSubject, sub))
	}
	for _, claimType := range types {
		switch value := claims[claimType].(type) {
		case []interface{}:
			for _, item := range value {
				result = append(result, domain.NewClaim(claimType, fmt.Sprint(item)))
			}
		case []string:
			for _, item := range value {
				result = append(result, domain.NewClaim(claimType, item))
			}
		default:
			result = append(result, domain.NewClaim(claimType, fmt.Sprint(value)))
		}
	}
	return result
}
