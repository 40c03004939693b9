package security

import (
	"github.com/manorfm/authcore/internal/application/bus"
	"github.com/manorfm/authcore/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RegisterHandlers registers every security handler with permission verification and logging applied
func RegisterHandlers(reg *bus.Registry, deps Dependencies, logger *zap.Logger) error {
	var err error

	err = multierr.Append(err, registerCommand(reg, logger,
		bus.Handler[*PrepareAuthorizationStateCommand, string](NewPrepareAuthorizationStateHandler(deps, logger))))
	err = multierr.Append(err, registerCommand(reg, logger,
		bus.Handler[*GenerateAuthorizationCommand, *domain.AuthorizationResponse](NewGenerateAuthorizationHandler(deps, logger))))
	err = multierr.Append(err, registerCommand(reg, logger,
		bus.Handler[*AuthenticateClientSecretCommand, *domain.Token](NewAuthenticateClientSecretHandler(deps, logger))))
	err = multierr.Append(err, registerCommand(reg, logger,
		bus.Handler[*AuthenticateAccessTokenCommand, *domain.Principal](NewAuthenticateAccessTokenHandler(deps, logger))))
	err = multierr.Append(err, registerQuery(reg, logger,
		bus.Handler[*ResolveExternalTokenQuery, *domain.RefreshableToken](NewResolveExternalTokenHandler(deps, logger))))
	err = multierr.Append(err, registerQuery(reg, logger,
		bus.Handler[*GetClientSecretIdentityQuery, *domain.ClientSecretIdentity](NewGetClientSecretIdentityHandler(deps, logger))))

	return err
}

func registerCommand[C bus.Command, R any](reg *bus.Registry, logger *zap.Logger, h bus.Handler[C, R]) error {
	return bus.RegisterCommand(reg, bus.Decorate(h, bus.PermissionVerification[C, R](), bus.Logging[C, R](logger)))
}

func registerQuery[Q bus.Query, R any](reg *bus.Registry, logger *zap.Logger, h bus.Handler[Q, R]) error {
	return bus.RegisterQuery(reg, bus.Decorate(h, bus.PermissionVerification[Q, R](), bus.Logging[Q, R](logger)))
}
