// Package security holds the commands and queries of the authorization core
// and the handlers the bus routes them to.
package security

import (
	"time"

	"github.com/manorfm/authcore/internal/application"
	"github.com/manorfm/authcore/internal/application/bus"
	"github.com/manorfm/authcore/internal/domain"
	apperrors "github.com/manorfm/authcore/internal/domain/errors"
	"github.com/manorfm/authcore/internal/infrastructure/validation"
)

// PrepareAuthorizationStateCommand validates an authorize request and returns the protected state
type PrepareAuthorizationStateCommand struct {
	bus.CommandBase
	Request application.PrepareAuthorizationRequest
}

func NewPrepareAuthorizationStateCommand(request application.PrepareAuthorizationRequest) *PrepareAuthorizationStateCommand {
	return &PrepareAuthorizationStateCommand{
		CommandBase: bus.NewCommandBase(nil),
		Request:     request,
	}
}

func (c *PrepareAuthorizationStateCommand) Validate(v *validation.Validator) error {
	return v.Struct(&c.Request)
}

// GenerateAuthorizationCommand recovers a protected state and consumes it for the authenticated user
type GenerateAuthorizationCommand struct {
	bus.CommandBase
	ProtectedState string
	AuthTime       time.Time
}

func NewGenerateAuthorizationCommand(securityContext *domain.SecurityContext, protectedState string, authTime time.Time) *GenerateAuthorizationCommand {
	return &GenerateAuthorizationCommand{
		CommandBase:    bus.NewCommandBase(securityContext),
		ProtectedState: protectedState,
		AuthTime:       authTime,
	}
}

func (c *GenerateAuthorizationCommand) Validate(v *validation.Validator) error {
	if err := validation.NotEmpty(c.ProtectedState, "state"); err != nil {
		return err
	}
	if !c.Security.IsAuthenticated() {
		return apperrors.NewUnauthorizedError("an authenticated user is required")
	}
	return nil
}

// AuthenticateClientSecretCommand exchanges client credentials for an access token
type AuthenticateClientSecretCommand struct {
	bus.CommandBase
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

func NewAuthenticateClientSecretCommand(clientID, clientSecret string) *AuthenticateClientSecretCommand {
	return &AuthenticateClientSecretCommand{
		CommandBase:  bus.NewCommandBase(nil),
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

func (c *AuthenticateClientSecretCommand) Validate(v *validation.Validator) error {
	return v.Struct(c)
}

// AuthenticateAccessTokenCommand verifies a locally issued access token
type AuthenticateAccessTokenCommand struct {
	bus.CommandBase
	AccessToken string `json:"access_token" validate:"required"`
}

func NewAuthenticateAccessTokenCommand(accessToken string) *AuthenticateAccessTokenCommand {
	return &AuthenticateAccessTokenCommand{
		CommandBase: bus.NewCommandBase(nil),
		AccessToken: accessToken,
	}
}

func (c *AuthenticateAccessTokenCommand) Validate(v *validation.Validator) error {
	return v.Struct(c)
}

// ResolveExternalTokenQuery returns the token an external provider issued to the caller, or nil
type ResolveExternalTokenQuery struct {
	bus.QueryBase
	Provider domain.ExternalProvider
}

func NewResolveExternalTokenQuery(securityContext *domain.SecurityContext, provider domain.ExternalProvider) *ResolveExternalTokenQuery {
	return &ResolveExternalTokenQuery{
		QueryBase: bus.NewQueryBase(securityContext),
		Provider:  provider,
	}
}

func (q *ResolveExternalTokenQuery) Validate(v *validation.Validator) error {
	return v.ShouldBeTrue(q.Provider.IsKnown(), "provider", "is not a known external provider")
}

// GetClientSecretIdentityQuery looks up a registered client. Only security admins may run it.
type GetClientSecretIdentityQuery struct {
	bus.QueryBase
	ClientID string `json:"client_id" validate:"required"`
}

func NewGetClientSecretIdentityQuery(securityContext *domain.SecurityContext, clientID string) *GetClientSecretIdentityQuery {
	return &GetClientSecretIdentityQuery{
		QueryBase: bus.NewQueryBase(securityContext),
		ClientID:  clientID,
	}
}

func (q *GetClientSecretIdentityQuery) Validate(v *validation.Validator) error {
	return v.Struct(q)
}
