package security

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/manorfm/authcore/internal/application"
	"github.com/manorfm/authcore/internal/domain"
	apperrors "github.com/manorfm/authcore/internal/domain/errors"
	"github.com/manorfm/authcore/internal/infrastructure/password"
	"github.com/manorfm/authcore/internal/infrastructure/validation"
	"go.uber.org/zap"
)

const invalidClientMessage = "invalid client credentials"

// Dependencies are the collaborators shared by the security handlers
type Dependencies struct {
	Flow                *application.AuthorizationFlow
	Tokens              domain.TokenGenerator
	TokenValidator      domain.TokenValidator
	Repository          domain.SecurityRepository
	Resolvers           []*application.ExternalTokenResolver
	UnprotectExternal   domain.UnprotectFunc
	Clock               domain.Clock
	AccessTokenLifetime time.Duration
	Validator           *validation.Validator
}

func (d Dependencies) accessTokenLifetime() time.Duration {
	if d.AccessTokenLifetime > 0 {
		return d.AccessTokenLifetime
	}
	return domain.DefaultAccessTokenDuration
}

// PrepareAuthorizationStateHandler handles PrepareAuthorizationStateCommand
type PrepareAuthorizationStateHandler struct {
	deps   Dependencies
	logger *zap.Logger
}

func NewPrepareAuthorizationStateHandler(deps Dependencies, logger *zap.Logger) *PrepareAuthorizationStateHandler {
	return &PrepareAuthorizationStateHandler{deps: deps, logger: logger}
}

func (h *PrepareAuthorizationStateHandler) Handle(ctx context.Context, cmd *PrepareAuthorizationStateCommand) (string, error) {
	if err := cmd.Validate(h.deps.Validator); err != nil {
		return "", err
	}

	state, err := h.deps.Flow.Prepare(ctx, &cmd.Request)
	if err != nil {
		return "", err
	}
	return h.deps.Flow.Protect(state)
}

// GenerateAuthorizationHandler handles GenerateAuthorizationCommand
type GenerateAuthorizationHandler struct {
	deps   Dependencies
	logger *zap.Logger
}

func NewGenerateAuthorizationHandler(deps Dependencies, logger *zap.Logger) *GenerateAuthorizationHandler {
	return &GenerateAuthorizationHandler{deps: deps, logger: logger}
}

func (h *GenerateAuthorizationHandler) Handle(ctx context.Context, cmd *GenerateAuthorizationCommand) (*domain.AuthorizationResponse, error) {
	if err := cmd.Validate(h.deps.Validator); err != nil {
		return nil, err
	}

	state, err := h.deps.Flow.Recover(ctx, cmd.ProtectedState)
	if err != nil {
		return nil, err
	}

	authTime := cmd.AuthTime
	if authTime.IsZero() {
		authTime = h.deps.Clock.UtcNow()
	}

	return h.deps.Flow.Consume(ctx, state, cmd.SecurityContext().User, authTime)
}

// AuthenticateClientSecretHandler handles AuthenticateClientSecretCommand
type AuthenticateClientSecretHandler struct {
	deps   Dependencies
	logger *zap.Logger
}

func NewAuthenticateClientSecretHandler(deps Dependencies, logger *zap.Logger) *AuthenticateClientSecretHandler {
	return &AuthenticateClientSecretHandler{deps: deps, logger: logger}
}

func (h *AuthenticateClientSecretHandler) Handle(ctx context.Context, cmd *AuthenticateClientSecretCommand) (*domain.Token, error) {
	if err := cmd.Validate(h.deps.Validator); err != nil {
		return nil, err
	}

	identity, err := h.deps.Repository.GetClientSecretIdentity(ctx, cmd.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			h.logger.Debug("Unknown client", zap.String("client_id", cmd.ClientID))
			return nil, apperrors.NewUnauthorizedError(invalidClientMessage)
		}
		return nil, err
	}

	if err := password.Check(cmd.ClientSecret, identity.ClientSecret); err != nil {
		h.logger.Debug("Client secret mismatch", zap.String("client_id", cmd.ClientID))
		return nil, apperrors.NewUnauthorizedError(invalidClientMessage)
	}

	token, err := h.deps.Tokens.Generate(identity.ToPrincipal().Claims, h.deps.accessTokenLifetime())
	if err != nil {
		return nil, err
	}

	h.logger.Info("Client authenticated", zap.String("client_id", cmd.ClientID))
	return token, nil
}

// AuthenticateAccessTokenHandler handles AuthenticateAccessTokenCommand
type AuthenticateAccessTokenHandler struct {
	deps   Dependencies
	logger *zap.Logger
}

func NewAuthenticateAccessTokenHandler(deps Dependencies, logger *zap.Logger) *AuthenticateAccessTokenHandler {
	return &AuthenticateAccessTokenHandler{deps: deps, logger: logger}
}

func (h *AuthenticateAccessTokenHandler) Handle(ctx context.Context, cmd *AuthenticateAccessTokenCommand) (*domain.Principal, error) {
	if err := cmd.Validate(h.deps.Validator); err != nil {
		return nil, err
	}

	token := strings.TrimSpace(cmd.AccessToken)
	if len(token) > len(domain.TokenTypeBearer) && strings.EqualFold(token[:len(domain.TokenTypeBearer)+1], domain.TokenTypeBearer+" ") {
		token = strings.TrimSpace(token[len(domain.TokenTypeBearer)+1:])
	}

	principal, err := h.deps.TokenValidator.Validate(token)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			return nil, apperrors.NewUnauthorizedError("invalid access token")
		}
		return nil, err
	}
	return principal, nil
}

// ResolveExternalTokenHandler handles ResolveExternalTokenQuery
type ResolveExternalTokenHandler struct {
	deps      Dependencies
	resolvers map[domain.ExternalProvider]*application.ExternalTokenResolver
	logger    *zap.Logger
}

func NewResolveExternalTokenHandler(deps Dependencies, logger *zap.Logger) *ResolveExternalTokenHandler {
	resolvers := make(map[domain.ExternalProvider]*application.ExternalTokenResolver, len(deps.Resolvers))
	for _, resolver := range deps.Resolvers {
		resolvers[resolver.Provider()] = resolver
	}
	return &ResolveExternalTokenHandler{deps: deps, resolvers: resolvers, logger: logger}
}

func (h *ResolveExternalTokenHandler) Handle(ctx context.Context, q *ResolveExternalTokenQuery) (*domain.RefreshableToken, error) {
	if err := q.Validate(h.deps.Validator); err != nil {
		return nil, err
	}

	resolver, ok := h.resolvers[q.Provider]
	if !ok {
		return nil, apperrors.NewValidationError("provider", "has no registered resolver")
	}

	var (
		token *domain.RefreshableToken
		found bool
	)
	if sc := q.SecurityContext(); sc.IsAuthenticated() {
		token, found = resolver.ResolveFor(sc.User, h.deps.UnprotectExternal)
	} else {
		token, found = resolver.Resolve(ctx, h.deps.UnprotectExternal)
	}
	if !found {
		return nil, nil
	}
	return token, nil
}

// GetClientSecretIdentityHandler handles GetClientSecretIdentityQuery
type GetClientSecretIdentityHandler struct {
	deps   Dependencies
	logger *zap.Logger
}

func NewGetClientSecretIdentityHandler(deps Dependencies, logger *zap.Logger) *GetClientSecretIdentityHandler {
	return &GetClientSecretIdentityHandler{deps: deps, logger: logger}
}

// IsPermitted requires an authenticated caller holding the security admin claim
func (h *GetClientSecretIdentityHandler) IsPermitted(ctx context.Context, securityContext *domain.SecurityContext, q *GetClientSecretIdentityQuery) (bool, error) {
	return securityContext.IsAuthenticated() && securityContext.User.HasClaim(domain.ClaimSecurityAdmin), nil
}

func (h *GetClientSecretIdentityHandler) Handle(ctx context.Context, q *GetClientSecretIdentityQuery) (*domain.ClientSecretIdentity, error) {
	if err := q.Validate(h.deps.Validator); err != nil {
		return nil, err
	}

	identity, err := h.deps.Repository.GetClientSecretIdentity(ctx, q.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, apperrors.NewNotFoundError("client secret identity not found")
		}
		return nil, err
	}
	return identity, nil
}
