package application

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/manorfm/authcore/internal/domain"
	apperrors "github.com/manorfm/authcore/internal/domain/errors"
	"github.com/manorfm/authcore/internal/infrastructure/validation"
	"go.uber.org/zap"
)

// ExternalTokenResolver recovers the token an external provider issued to the current user.
// A missing or unreadable token is reported as absent, never as an error.
type ExternalTokenResolver struct {
	provider domain.ExternalProvider
	logger   *zap.Logger
}

func NewExternalTokenResolver(provider domain.ExternalProvider, logger *zap.Logger) *ExternalTokenResolver {
	return &ExternalTokenResolver{
		provider: provider,
		logger:   logger,
	}
}

// Provider returns the provider whose tokens are resolved
func (r *ExternalTokenResolver) Provider() domain.ExternalProvider {
	return r.provider
}

// Resolve reads the principal from ctx
func (r *ExternalTokenResolver) Resolve(ctx context.Context, unprotect domain.UnprotectFunc) (*domain.RefreshableToken, bool) {
	principal, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return nil, false
	}
	return r.ResolveFor(principal, unprotect)
}

// ResolveFor reads the protected token claim of principal
func (r *ExternalTokenResolver) ResolveFor(principal *domain.Principal, unprotect domain.UnprotectFunc) (*domain.RefreshableToken, bool) {
	if principal == nil || unprotect == nil {
		return nil, false
	}

	value, ok := principal.FindFirst(r.provider.TokenClaimType())
	if !ok || value == "" {
		return nil, false
	}

	protected, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		r.logger.Debug("External token claim is not valid base64",
			zap.String("provider", string(r.provider)),
			zap.Error(err))
		return nil, false
	}

	payload, err := unprotect(protected)
	if err != nil {
		r.logger.Debug("External token could not be unprotected",
			zap.String("provider", string(r.provider)),
			zap.Error(err))
		return nil, false
	}

	var token domain.RefreshableToken
	if err := json.Unmarshal(payload, &token); err != nil || token.AccessToken == "" {
		r.logger.Debug("External token payload is invalid",
			zap.String("provider", string(r.provider)),
			zap.Error(err))
		return nil, false
	}

	return &token, true
}

// ProtectExternalToken builds the claim under which the host stores a token obtained from provider
func ProtectExternalToken(provider domain.ExternalProvider, token *domain.RefreshableToken, protect domain.ProtectFunc) (domain.Claim, error) {
	if !provider.IsKnown() {
		return domain.Claim{}, apperrors.NewValidationError("provider", "is not a known external provider")
	}
	if err := validation.NotNil(token, "token"); err != nil {
		return domain.Claim{}, err
	}
	if err := validation.NotEmpty(token.AccessToken, "access_token"); err != nil {
		return domain.Claim{}, err
	}
	if err := validation.NotNil(protect, "protect"); err != nil {
		return domain.Claim{}, err
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return domain.Claim{}, apperrors.NewInternalError("failed to serialize external token", err)
	}
	protected, err := protect(payload)
	if err != nil {
		return domain.Claim{}, apperrors.NewInternalError("failed to protect external token", err)
	}

	return domain.NewClaim(provider.TokenClaimType(), base64.RawURLEncoding.EncodeToString(protected)), nil
}
