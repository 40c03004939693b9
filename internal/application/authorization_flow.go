package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/manorfm/authcore/internal/domain"
	apperrors "github.com/manorfm/authcore/internal/domain/errors"
	"github.com/manorfm/authcore/internal/infrastructure/validation"
	"go.uber.org/zap"
)

const (
	nonceSize = 32

	recoverFailedMessage = "authorization state could not be recovered"
	expiredStateMessage  = "authorization state has expired"
)

// PrepareAuthorizationRequest carries the parameters of an inbound authorize request
type PrepareAuthorizationRequest struct {
	ResponseType string   `json:"response_type" validate:"required"`
	ClientID     string   `json:"client_id" validate:"required"`
	RedirectURI  string   `json:"redirect_uri" validate:"required"`
	Scopes       []string `json:"scope"`
	State        string   `json:"state" validate:"required"`
	Nonce        string   `json:"nonce"`
}

// AuthorizationFlowDeps are the collaborators of an AuthorizationFlow
type AuthorizationFlowDeps struct {
	TrustedDomains  domain.TrustedDomainResolver
	Scopes          domain.SupportedScopesProvider
	Clock           domain.Clock
	Codes           *AuthorizationCodeGenerator
	Tokens          domain.TokenGenerator
	Protect         domain.ProtectFunc
	Unprotect       domain.UnprotectFunc
	StateLifetime   time.Duration
	IDTokenLifetime time.Duration
}

// AuthorizationFlow drives an authorization state from Prepared to Consumed or Rejected
type AuthorizationFlow struct {
	trustedDomains  domain.TrustedDomainResolver
	scopes          domain.SupportedScopesProvider
	clock           domain.Clock
	codes           *AuthorizationCodeGenerator
	tokens          domain.TokenGenerator
	protect         domain.ProtectFunc
	unprotect       domain.UnprotectFunc
	stateLifetime   time.Duration
	idTokenLifetime time.Duration
	validator       *validation.Validator
	logger          *zap.Logger
}

func NewAuthorizationFlow(deps AuthorizationFlowDeps, validator *validation.Validator, logger *zap.Logger) *AuthorizationFlow {
	stateLifetime := deps.StateLifetime
	if stateLifetime <= 0 {
		stateLifetime = domain.DefaultAuthorizationStateDuration
	}
	idTokenLifetime := deps.IDTokenLifetime
	if idTokenLifetime <= 0 {
		idTokenLifetime = domain.DefaultIDTokenDuration
	}

	return &AuthorizationFlow{
		trustedDomains:  deps.TrustedDomains,
		scopes:          deps.Scopes,
		clock:           deps.Clock,
		codes:           deps.Codes,
		tokens:          deps.Tokens,
		protect:         deps.Protect,
		unprotect:       deps.Unprotect,
		stateLifetime:   stateLifetime,
		idTokenLifetime: idTokenLifetime,
		validator:       validator,
		logger:          logger,
	}
}

// Prepare validates an authorize request and builds the state that will travel through the identity provider.
// No state is built for invalid input.
func (f *AuthorizationFlow) Prepare(ctx context.Context, req *PrepareAuthorizationRequest) (*domain.AuthorizationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.validator.Struct(req); err != nil {
		return nil, err
	}
	if err := validation.NotEmpty(req.ClientID, "client_id"); err != nil {
		return nil, err
	}
	if err := validation.NotEmpty(req.State, "state"); err != nil {
		return nil, err
	}
	if err := f.validateResponseType(req.ResponseType); err != nil {
		return nil, err
	}
	if err := f.validateRedirectURI(req.RedirectURI); err != nil {
		f.logger.Debug("Rejected authorization request",
			zap.String("client_id", req.ClientID),
			zap.String("redirect_uri", req.RedirectURI),
			zap.Error(err))
		return nil, err
	}
	if err := f.validator.ShouldContainOnlyKnownValues(req.Scopes, "scope", f.scopes.IsSupported); err != nil {
		return nil, err
	}

	nonce := req.Nonce
	if nonce == "" {
		var err error
		if nonce, err = newNonce(); err != nil {
			return nil, apperrors.NewInternalError("failed to generate nonce", err)
		}
	}

	state := &domain.AuthorizationState{
		ResponseType:  req.ResponseType,
		ClientID:      req.ClientID,
		RedirectURI:   req.RedirectURI,
		Scopes:        append([]string(nil), req.Scopes...),
		ExternalState: req.State,
		Nonce:         nonce,
		ExpiresAt:     f.clock.UtcNow().Add(f.stateLifetime),
	}
	state.SetStatus(domain.StatePrepared)

	f.logger.Debug("Prepared authorization state",
		zap.String("client_id", state.ClientID),
		zap.String("response_type", state.ResponseType),
		zap.Time("expires_at", state.ExpiresAt))

	return state, nil
}

// Protect serializes the state into an opaque string safe for a query parameter.
// Protecting does not make the state single use.
func (f *AuthorizationFlow) Protect(state *domain.AuthorizationState) (string, error) {
	if err := validation.NotNil(state, "state"); err != nil {
		return "", err
	}
	if !state.Transition(domain.StatePrepared, domain.StateProtected) && state.Status() != domain.StateProtected {
		return "", fmt.Errorf("%w: %s", domain.ErrStateNotPrepared, state.Status())
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", apperrors.NewInternalError("failed to serialize authorization state", err)
	}

	protected, err := f.protect(payload)
	if err != nil {
		f.logger.Error("Failed to protect authorization state", zap.Error(err))
		return "", apperrors.NewInternalError("failed to protect authorization state", err)
	}

	return base64.RawURLEncoding.EncodeToString(protected), nil
}

// Recover reverses Protect and validates the result again. Anything that fails
// to decode, unprotect or validate is rejected as a whole.
func (f *AuthorizationFlow) Recover(ctx context.Context, protected string) (*domain.AuthorizationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validation.NotEmpty(protected, "state"); err != nil {
		return nil, apperrors.NewSecurityError(recoverFailedMessage, err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(protected)
	if err != nil {
		return nil, f.reject(nil, err)
	}

	payload, err := f.unprotect(raw)
	if err != nil {
		return nil, f.reject(nil, err)
	}

	state := &domain.AuthorizationState{}
	if err := json.Unmarshal(payload, state); err != nil {
		return nil, f.reject(nil, err)
	}

	if err := f.validateRecovered(state); err != nil {
		return nil, f.reject(state, err)
	}

	state.SetStatus(domain.StateRecovered)
	return state, nil
}

// Consume issues the authorization code or ID token the state asks for. It is the
// only irreversible transition: a consumed state can never be consumed again.
func (f *AuthorizationFlow) Consume(ctx context.Context, state *domain.AuthorizationState, principal *domain.Principal, authTime time.Time) (*domain.AuthorizationResponse, error) {
	if err := validation.NotNil(state, "state"); err != nil {
		return nil, err
	}
	if err := validation.NotNil(principal, "principal"); err != nil {
		return nil, err
	}
	if err := f.validator.ShouldBeTrue(principal.IsAuthenticated(), "principal", "must be authenticated"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !state.Transition(domain.StateRecovered, domain.StateConsumed) {
		if state.Status() == domain.StateConsumed {
			return nil, domain.ErrStateAlreadyConsumed
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrStateNotRecovered, state.Status())
	}

	if state.HasExpired(f.clock.UtcNow()) {
		state.SetStatus(domain.StateRejected)
		return nil, apperrors.NewSecurityError(expiredStateMessage, nil)
	}

	response, err := f.issue(state, principal, authTime)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		state.Transition(domain.StateConsumed, domain.StateRecovered)
		return nil, err
	}

	f.logger.Debug("Consumed authorization state",
		zap.String("client_id", state.ClientID),
		zap.String("response_type", state.ResponseType),
		zap.String("subject", principal.Subject()))

	return response, nil
}

func (f *AuthorizationFlow) issue(state *domain.AuthorizationState, principal *domain.Principal, authTime time.Time) (*domain.AuthorizationResponse, error) {
	redirect, err := state.RedirectURL()
	if err != nil {
		return nil, apperrors.NewValidationError("redirect_uri", "must be an absolute URI")
	}

	switch state.ResponseType {
	case domain.ResponseTypeCode:
		code, err := f.codes.Generate()
		if err != nil {
			return nil, err
		}
		query := redirect.Query()
		query.Set("code", code.Value)
		query.Set("state", state.ExternalState)
		redirect.RawQuery = query.Encode()

		return &domain.AuthorizationResponse{
			RedirectURI: redirect.String(),
			State:       state.ExternalState,
			Code:        code,
		}, nil

	case domain.ResponseTypeIDToken:
		claims := principal.WithClaims(
			domain.NewClaim(domain.ClaimNonce, state.Nonce),
			domain.NewClaim(domain.ClaimAuthTime, strconv.FormatInt(authTime.UTC().Unix(), 10)),
			domain.NewClaim(domain.ClaimAuthorizedParty, state.ClientID),
		).Claims

		token, err := f.tokens.Generate(claims, f.idTokenLifetime)
		if err != nil {
			f.logger.Error("Failed to generate ID token",
				zap.String("client_id", state.ClientID),
				zap.Error(err))
			return nil, err
		}

		fragment := url.Values{}
		fragment.Set("id_token", token.AccessToken)
		fragment.Set("state", state.ExternalState)
		redirect.Fragment = ""

		return &domain.AuthorizationResponse{
			RedirectURI: redirect.String() + "#" + fragment.Encode(),
			State:       state.ExternalState,
			IDToken:     token,
		}, nil
	}

	return nil, apperrors.NewValidationError("response_type", fmt.Sprintf("'%s' is not supported", state.ResponseType))
}

func (f *AuthorizationFlow) validateResponseType(responseType string) error {
	return f.validator.ShouldBeKnownValue(responseType, "response_type", isSupportedResponseType)
}

func (f *AuthorizationFlow) validateRedirectURI(raw string) error {
	redirect, err := f.validator.ShouldBeAbsoluteURI(raw, "redirect_uri")
	if err != nil {
		return err
	}
	return f.validator.ShouldBeTrue(f.trustedDomains.IsTrustedDomain(redirect), "redirect_uri", "is not a trusted domain")
}

func (f *AuthorizationFlow) validateRecovered(state *domain.AuthorizationState) error {
	if state.ExpiresAt.IsZero() || state.HasExpired(f.clock.UtcNow()) {
		return apperrors.NewValidationError("expires_at", expiredStateMessage)
	}
	if err := f.validateResponseType(state.ResponseType); err != nil {
		return err
	}
	if err := validation.NotEmpty(state.ClientID, "client_id"); err != nil {
		return err
	}
	if err := validation.NotEmpty(state.ExternalState, "state"); err != nil {
		return err
	}
	if err := f.validateRedirectURI(state.RedirectURI); err != nil {
		return err
	}
	return f.validator.ShouldContainOnlyKnownValues(state.Scopes, "scope", f.scopes.IsSupported)
}

func (f *AuthorizationFlow) reject(state *domain.AuthorizationState, cause error) error {
	if state != nil {
		state.SetStatus(domain.StateRejected)
	}
	f.logger.Warn("Rejected authorization state", zap.Error(cause))
	return apperrors.NewSecurityError(recoverFailedMessage, cause)
}

func isSupportedResponseType(responseType string) bool {
	return responseType == domain.ResponseTypeCode || responseType == domain.ResponseTypeIDToken
}

func newNonce() (string, error) {
	buf := make([]byte, nonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
