package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/manorfm/authcore/internal/domain"
	apperrors "github.com/manorfm/authcore/internal/domain/errors"
	"go.uber.org/zap"
)

// AuthorizationCodeGenerator mints short-lived authorization codes
type AuthorizationCodeGenerator struct {
	keyGenerator domain.KeyGenerator
	clock        domain.Clock
	logger       *zap.Logger
}

func NewAuthorizationCodeGenerator(keyGenerator domain.KeyGenerator, clock domain.Clock, logger *zap.Logger) *AuthorizationCodeGenerator {
	return &AuthorizationCodeGenerator{
		keyGenerator: keyGenerator,
		clock:        clock,
		logger:       logger,
	}
}

// Generate derives a code from a random GUID and the code's expiry instant.
// The code always expires AuthorizationCodeLifetime after it was created.
func (g *AuthorizationCodeGenerator) Generate() (*domain.AuthorizationCode, error) {
	now := g.clock.UtcNow()
	expiresAt := now.Add(domain.AuthorizationCodeLifetime)

	value, err := g.keyGenerator.GenerateKey([]string{
		uuid.NewString(),
		expiresAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		g.logger.Error("Failed to generate authorization code", zap.Error(err))
		return nil, apperrors.NewInternalError("failed to generate authorization code", err)
	}

	return &domain.AuthorizationCode{
		Value:     value,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, nil
}
