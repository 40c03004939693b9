package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/manorfm/authcore/internal/application"
	"github.com/manorfm/authcore/internal/application/bus"
	"github.com/manorfm/authcore/internal/application/security"
	"github.com/manorfm/authcore/internal/domain"
	"github.com/manorfm/authcore/internal/infrastructure/config"
	"github.com/manorfm/authcore/internal/infrastructure/jwt"
	"github.com/manorfm/authcore/internal/infrastructure/providers"
	"go.uber.org/zap"
)

const usage = `usage: authcore <command> [flags]

commands:
  genkey      print a new RSA signing key as environment variables
  jwks        print the public key set
  token       exchange client credentials for an access token
  verify      verify an access token and print its claims
  authorize   prepare and protect an authorization state
  consume     recover a protected state and issue the authorization response
  external    protect a token obtained from an external provider as a user claim
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "authcore: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	command, args := args[0], args[1:]
	if command == "genkey" {
		return genkey(args, stdout)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	a, err := newApp(cfg, providers.SystemClock{}, logger)
	if err != nil {
		return err
	}
	return a.dispatch(ctx, command, args, stdout)
}

func (a *app) dispatch(ctx context.Context, command string, args []string, stdout io.Writer) error {
	a.logger.Debug("Running command", zap.String("command", command))

	switch command {
	case "jwks":
		return a.jwks(stdout)
	case "token":
		return a.token(ctx, args, stdout)
	case "verify":
		return a.verify(ctx, args, stdout)
	case "authorize":
		return a.authorize(ctx, args, stdout)
	case "consume":
		return a.consume(ctx, args, stdout)
	case "external":
		return a.protectExternal(args, stdout)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func genkey(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("genkey", flag.ContinueOnError)
	bits := fs.Int("bits", 2048, "RSA key size")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	key, err := rsa.GenerateKey(rand.Reader, *bits)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	sk := jwt.SigningKeyFromRSA(key)

	for _, kv := range [][2]string{
		{config.KeyJwtKty, sk.Kty},
		{config.KeyJwtN, sk.N},
		{config.KeyJwtE, sk.E},
		{config.KeyJwtD, sk.D},
		{config.KeyJwtP, sk.P},
		{config.KeyJwtQ, sk.Q},
		{config.KeyJwtDp, sk.Dp},
		{config.KeyJwtDq, sk.Dq},
		{config.KeyJwtQi, sk.Qi},
	} {
		fmt.Fprintf(stdout, "%s=%s\n", strings.ReplaceAll(kv[0], ":", "__"), kv[1])
	}
	return nil
}

func (a *app) jwks(stdout io.Writer) error {
	set, err := a.tokens.PublicJWKS()
	if err != nil {
		return err
	}
	return writeJSON(stdout, set)
}

type tokenResponse struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *app) token(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	clientID := fs.String("client-id", "", "client identifier")
	clientSecret := fs.String("client-secret", os.Getenv("AUTHCORE_CLIENT_SECRET"), "client secret")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	token, err := bus.Execute[*domain.Token](ctx, a.bus,
		security.NewAuthenticateClientSecretCommand(*clientID, *clientSecret))
	if err != nil {
		return err
	}
	return writeJSON(stdout, tokenResponse{
		TokenType:   token.TokenType,
		AccessToken: token.AccessToken,
		ExpiresIn:   token.ExpiresIn(a.clock.UtcNow()),
	})
}

func (a *app) verify(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	accessToken := fs.String("token", "", "access token, optionally prefixed with Bearer")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	principal, err := bus.Execute[*domain.Principal](ctx, a.bus, security.NewAuthenticateAccessTokenCommand(*accessToken))
	if err != nil {
		return err
	}
	return writeJSON(stdout, principal)
}

func (a *app) authorize(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("authorize", flag.ContinueOnError)
	var req application.PrepareAuthorizationRequest
	fs.StringVar(&req.ResponseType, "response-type", domain.ResponseTypeCode, "code or id_token")
	fs.StringVar(&req.ClientID, "client-id", "", "client identifier")
	fs.StringVar(&req.RedirectURI, "redirect-uri", "", "absolute redirect URI on a trusted domain")
	fs.StringVar(&req.State, "state", "", "opaque client state")
	fs.StringVar(&req.Nonce, "nonce", "", "ID token nonce")
	scope := fs.String("scope", "", "space separated scopes")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	req.Scopes = strings.Fields(*scope)

	protected, err := bus.Execute[string](ctx, a.bus, security.NewPrepareAuthorizationStateCommand(req))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, protected)
	return err
}

func (a *app) consume(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("consume", flag.ContinueOnError)
	state := fs.String("state", "", "protected authorization state")
	subject := fs.String("subject", "", "authenticated user identifier")
	name := fs.String("name", "", "authenticated user display name")
	email := fs.String("email", "", "authenticated user email")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *subject == "" {
		return fmt.Errorf("%w: -subject is required", errUsage)
	}

	claims := []domain.Claim{domain.NewClaim(domain.ClaimSubject, *subject)}
	if *name != "" {
		claims = append(claims, domain.NewClaim(domain.ClaimName, *name))
	}
	if *email != "" {
		claims = append(claims, domain.NewClaim(domain.ClaimEmail, *email))
	}
	user := domain.NewPrincipal("cli", claims...)

	response, err := bus.Execute[*domain.AuthorizationResponse](ctx, a.bus,
		security.NewGenerateAuthorizationCommand(domain.NewSecurityContext(user), *state, time.Time{}))
	if err != nil {
		return err
	}
	return writeJSON(stdout, response)
}

func (a *app) protectExternal(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("external", flag.ContinueOnError)
	provider := fs.String("provider", string(domain.Microsoft), "external provider")
	accessToken := fs.String("access-token", "", "access token issued by the provider")
	refreshToken := fs.String("refresh-token", "", "refresh token issued by the provider")
	expiresIn := fs.Duration("expires-in", time.Hour, "remaining lifetime of the access token")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	token := &domain.RefreshableToken{
		Token:        *domain.NewBearerToken(*accessToken, a.clock.UtcNow().Add(*expiresIn)),
		RefreshToken: *refreshToken,
	}
	claim, err := application.ProtectExternalToken(domain.ExternalProvider(*provider), token, a.external.ProtectFunc())
	if err != nil {
		return err
	}
	return writeJSON(stdout, claim)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
