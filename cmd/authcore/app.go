package main

import (
	"fmt"

	"github.com/manorfm/authcore/internal/application"
	"github.com/manorfm/authcore/internal/application/bus"
	"github.com/manorfm/authcore/internal/application/security"
	"github.com/manorfm/authcore/internal/domain"
	"github.com/manorfm/authcore/internal/infrastructure/config"
	"github.com/manorfm/authcore/internal/infrastructure/jwt"
	"github.com/manorfm/authcore/internal/infrastructure/keygen"
	"github.com/manorfm/authcore/internal/infrastructure/protection"
	"github.com/manorfm/authcore/internal/infrastructure/providers"
	"github.com/manorfm/authcore/internal/infrastructure/repository"
	"github.com/manorfm/authcore/internal/infrastructure/validation"
	"go.uber.org/zap"
)

const (
	purposeAuthorizationState = "authorization-state"
	purposeExternalToken      = "external-token"
)

// app is the wired authorization core
type app struct {
	bus      *bus.Bus
	tokens   *jwt.TokenGenerator
	external *protection.Protector
	clock    domain.Clock
	logger   *zap.Logger
}

func newApp(cfg *config.Config, clock domain.Clock, logger *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	stateProtector, err := protection.NewFromBase64(cfg.ProtectionKey, purposeAuthorizationState)
	if err != nil {
		return nil, fmt.Errorf("authorization state protection: %w", err)
	}
	externalProtector, err := protection.NewFromBase64(cfg.ProtectionKey, purposeExternalToken)
	if err != nil {
		return nil, fmt.Errorf("external token protection: %w", err)
	}

	tokens, err := jwt.NewTokenGenerator(cfg.Jwt, clock, logger)
	if err != nil {
		return nil, err
	}
	tokenValidator, err := jwt.NewTokenValidator(tokens, clock, logger)
	if err != nil {
		return nil, err
	}

	repo, err := repository.NewStaticSecurityRepository(cfg.ClientSecretIdentities, clock, logger)
	if err != nil {
		return nil, err
	}

	v := validation.New()
	flow := application.NewAuthorizationFlow(application.AuthorizationFlowDeps{
		TrustedDomains:  providers.NewTrustedDomains(cfg.TrustedDomains),
		Scopes:          providers.NewSupportedScopes(cfg.SupportedScopes),
		Clock:           clock,
		Codes:           application.NewAuthorizationCodeGenerator(keygen.New(), clock, logger),
		Tokens:          tokens,
		Protect:         stateProtector.ProtectFunc(),
		Unprotect:       stateProtector.UnprotectFunc(),
		StateLifetime:   cfg.AuthorizationStateLifetime,
		IDTokenLifetime: cfg.Jwt.IDTokenLifetime,
	}, v, logger)

	reg := bus.NewRegistry()
	err = security.RegisterHandlers(reg, security.Dependencies{
		Flow:           flow,
		Tokens:         tokens,
		TokenValidator: tokenValidator,
		Repository:     repo,
		Resolvers: []*application.ExternalTokenResolver{
			application.NewExternalTokenResolver(domain.Microsoft, logger),
			application.NewExternalTokenResolver(domain.Google, logger),
		},
		UnprotectExternal:   externalProtector.UnprotectFunc(),
		Clock:               clock,
		AccessTokenLifetime: cfg.Jwt.AccessTokenLifetime,
		Validator:           v,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("register handlers: %w", err)
	}

	return &app{
		bus:      bus.New(reg, logger),
		tokens:   tokens,
		external: externalProtector,
		clock:    clock,
		logger:   logger,
	}, nil
}

// newLogger builds the production logger at the configured level
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.KeyLogLevel, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
