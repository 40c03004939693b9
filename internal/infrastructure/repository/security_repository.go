package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/manorfm/authcore/internal/domain"
	"github.com/manorfm/authcore/internal/infrastructure/config"
	"github.com/manorfm/authcore/internal/infrastructure/password"
	"go.uber.org/zap"
)

// RoleSecurityAdmin in configuration grants the security admin claim
const RoleSecurityAdmin = "security_admin"

// StaticSecurityRepository serves client secret identities seeded from configuration
type StaticSecurityRepository struct {
	mu         sync.RWMutex
	identities map[string]*domain.ClientSecretIdentity
	logger     *zap.Logger
}

var _ domain.SecurityRepository = (*StaticSecurityRepository)(nil)

// NewStaticSecurityRepository hashes plaintext secrets and rejects duplicate client IDs
func NewStaticSecurityRepository(entries []config.ClientSecretIdentity, clock domain.Clock, logger *zap.Logger) (*StaticSecurityRepository, error) {
	repo := &StaticSecurityRepository{
		identities: make(map[string]*domain.ClientSecretIdentity, len(entries)),
		logger:     logger,
	}

	now := clock.UtcNow()
	for _, entry := range entries {
		if _, exists := repo.identities[entry.ClientID]; exists {
			return nil, fmt.Errorf("duplicate client secret identity %q", entry.ClientID)
		}

		secret := entry.Secret
		if !password.IsHash(secret) {
			hashed, err := password.Hash(secret)
			if err != nil {
				return nil, fmt.Errorf("hash secret of %q: %w", entry.ClientID, err)
			}
			secret = hashed
		}

		repo.identities[entry.ClientID] = &domain.ClientSecretIdentity{
			ClientID:     entry.ClientID,
			ClientSecret: secret,
			FriendlyName: entry.FriendlyName,
			Claims:       roleClaims(entry.Roles),
			CreatedAt:    now,
		}
	}

	logger.Debug("Loaded client secret identities", zap.Int("count", len(repo.identities)))
	return repo, nil
}

func roleClaims(roles []string) []domain.Claim {
	var claims []domain.Claim
	for _, role := range roles {
		if role == RoleSecurityAdmin {
			claims = append(claims, domain.NewClaim(domain.ClaimSecurityAdmin, "true"))
			continue
		}
		claims = append(claims, domain.NewClaim(domain.ClaimRole, role))
	}
	return claims
}

// GetClientSecretIdentity returns a copy of the identity registered for clientID
func (r *StaticSecurityRepository) GetClientSecretIdentity(ctx context.Context, clientID string) (*domain.ClientSecretIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	identity, ok := r.identities[clientID]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("Client secret identity not found", zap.String("client_id", clientID))
		return nil, domain.ErrIdentityNotFound
	}

	cp := *identity
	cp.Claims = append([]domain.Claim(nil), identity.Claims...)
	return &cp, nil
}

// Len returns the number of registered identities
func (r *StaticSecurityRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities)
}
