package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/manorfm/authcore/internal/domain"
	"go.uber.org/multierr"
)

// Configuration keys. Each key is read verbatim first and then with ":" replaced by "__".
const (
	KeyJwtKty                 = "Security:Jwt:Key:Kty"
	KeyJwtN                   = "Security:Jwt:Key:N"
	KeyJwtE                   = "Security:Jwt:Key:E"
	KeyJwtD                   = "Security:Jwt:Key:D"
	KeyJwtP                   = "Security:Jwt:Key:P"
	KeyJwtQ                   = "Security:Jwt:Key:Q"
	KeyJwtDp                  = "Security:Jwt:Key:Dp"
	KeyJwtDq                  = "Security:Jwt:Key:Dq"
	KeyJwtQi                  = "Security:Jwt:Key:Qi"
	KeyJwtIssuer              = "Security:Jwt:Issuer"
	KeyJwtAudience            = "Security:Jwt:Audience"
	KeyJwtKeyIssuer           = "Security:Jwt:Key:Issuer"
	KeyJwtKeyAudience         = "Security:Jwt:Key:Audience"
	KeyAccessTokenLifetime    = "Security:Jwt:AccessTokenLifetime"
	KeyIDTokenLifetime        = "Security:Jwt:IdTokenLifetime"
	KeyTrustedDomains         = "Security:TrustedDomainCollection"
	KeySupportedScopes        = "Security:SupportedScopes"
	KeyStateLifetime          = "Security:AuthorizationState:Lifetime"
	KeyProtectionKey          = "Security:Protection:Key"
	KeyClientSecretIdentities = "Security:ClientSecretIdentities"
	KeyLogLevel               = "Log:Level"
)

// DefaultSupportedScopes are granted when no scopes are configured
var DefaultSupportedScopes = []string{"openid", "profile", "email"}

// ClientSecretIdentity is a client registered through configuration
type ClientSecretIdentity struct {
	ClientID     string
	Secret       string
	FriendlyName string
	Roles        []string
}

// Config holds the application configuration
type Config struct {
	// JWT configuration
	Jwt domain.JWTConfig

	// Authorization flow configuration
	TrustedDomains             []string
	SupportedScopes            []string
	AuthorizationStateLifetime time.Duration
	ProtectionKey              string

	// Clients able to authenticate with a secret
	ClientSecretIdentities []ClientSecretIdentity

	// Logging configuration
	LogLevel string
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Jwt: domain.JWTConfig{
			Key:                 domain.SigningKey{Kty: "RSA"},
			AccessTokenLifetime: domain.DefaultAccessTokenDuration,
			IDTokenLifetime:     domain.DefaultIDTokenDuration,
		},
		SupportedScopes:            append([]string(nil), DefaultSupportedScopes...),
		AuthorizationStateLifetime: domain.DefaultAuthorizationStateDuration,
		LogLevel:                   "info",
	}
}

// LoadConfig loads configuration from the environment and an optional .env file
func LoadConfig(files ...string) (*Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load(files...)

	accessLifetime, err := getEnvDuration(KeyAccessTokenLifetime, domain.DefaultAccessTokenDuration)
	if err != nil {
		return nil, err
	}

	idTokenLifetime, err := getEnvDuration(KeyIDTokenLifetime, domain.DefaultIDTokenDuration)
	if err != nil {
		return nil, err
	}

	stateLifetime, err := getEnvDuration(KeyStateLifetime, domain.DefaultAuthorizationStateDuration)
	if err != nil {
		return nil, err
	}

	identities, err := parseClientSecretIdentities(getEnv(KeyClientSecretIdentities, ""))
	if err != nil {
		return nil, err
	}

	return &Config{
		Jwt: domain.JWTConfig{
			Key: domain.SigningKey{
				Kty: getEnv(KeyJwtKty, "RSA"),
				N:   getEnv(KeyJwtN, ""),
				E:   getEnv(KeyJwtE, ""),
				D:   getEnv(KeyJwtD, ""),
				P:   getEnv(KeyJwtP, ""),
				Q:   getEnv(KeyJwtQ, ""),
				Dp:  getEnv(KeyJwtDp, ""),
				Dq:  getEnv(KeyJwtDq, ""),
				Qi:  getEnv(KeyJwtQi, ""),
			},
			Issuer:              getEnv(KeyJwtIssuer, getEnv(KeyJwtKeyIssuer, "")),
			Audience:            getEnv(KeyJwtAudience, getEnv(KeyJwtKeyAudience, "")),
			AccessTokenLifetime: accessLifetime,
			IDTokenLifetime:     idTokenLifetime,
		},
		TrustedDomains:             getEnvList(KeyTrustedDomains, nil),
		SupportedScopes:            getEnvList(KeySupportedScopes, DefaultSupportedScopes),
		AuthorizationStateLifetime: stateLifetime,
		ProtectionKey:              getEnv(KeyProtectionKey, ""),
		ClientSecretIdentities:     identities,
		LogLevel:                   getEnv(KeyLogLevel, "info"),
	}, nil
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var err error

	if c.Jwt.Key.Kty != "RSA" {
		err = multierr.Append(err, fmt.Errorf("%s must be RSA, got %q", KeyJwtKty, c.Jwt.Key.Kty))
	}
	components := []struct {
		key   string
		value string
	}{
		{KeyJwtN, c.Jwt.Key.N},
		{KeyJwtE, c.Jwt.Key.E},
		{KeyJwtD, c.Jwt.Key.D},
		{KeyJwtP, c.Jwt.Key.P},
		{KeyJwtQ, c.Jwt.Key.Q},
		{KeyJwtDp, c.Jwt.Key.Dp},
		{KeyJwtDq, c.Jwt.Key.Dq},
		{KeyJwtQi, c.Jwt.Key.Qi},
	}
	for _, component := range components {
		err = multierr.Append(err, validateBase64URL(component.key, component.value))
	}

	err = multierr.Append(err, validateAbsoluteURL(KeyJwtIssuer, c.Jwt.Issuer))
	err = multierr.Append(err, validateAbsoluteURL(KeyJwtAudience, c.Jwt.Audience))
	err = multierr.Append(err, validatePositive(KeyAccessTokenLifetime, c.Jwt.AccessTokenLifetime))
	err = multierr.Append(err, validatePositive(KeyIDTokenLifetime, c.Jwt.IDTokenLifetime))
	err = multierr.Append(err, validatePositive(KeyStateLifetime, c.AuthorizationStateLifetime))

	if len(c.TrustedDomains) == 0 {
		err = multierr.Append(err, fmt.Errorf("%s must list at least one domain", KeyTrustedDomains))
	}
	if len(c.SupportedScopes) == 0 {
		err = multierr.Append(err, fmt.Errorf("%s must list at least one scope", KeySupportedScopes))
	}
	if c.ProtectionKey == "" {
		err = multierr.Append(err, fmt.Errorf("%s is required", KeyProtectionKey))
	}

	return err
}

func validateBase64URL(key, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", key)
	}
	if _, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(value, "=")); err != nil {
		return fmt.Errorf("%s must be Base64URL encoded: %w", key, err)
	}
	return nil
}

func validateAbsoluteURL(key, value string) error {
	u, err := url.Parse(value)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, value)
	}
	return nil
}

func validatePositive(key string, value time.Duration) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return nil
}

// parseClientSecretIdentities reads "clientId:secret[:name[:role,...]];..." entries
func parseClientSecretIdentities(value string) ([]ClientSecretIdentity, error) {
	var identities []ClientSecretIdentity
	for _, entry := range strings.Split(value, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || parts[1] == "" {
			return nil, fmt.Errorf("%s entry %q must be clientId:secret[:name[:roles]]", KeyClientSecretIdentities, entry)
		}
		identity := ClientSecretIdentity{
			ClientID: strings.TrimSpace(parts[0]),
			Secret:   parts[1],
		}
		if len(parts) > 2 {
			identity.FriendlyName = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			for _, role := range strings.Split(parts[3], ",") {
				if role = strings.TrimSpace(role); role != "" {
					identity.Roles = append(identity.Roles, role)
				}
			}
		}
		identities = append(identities, identity)
	}
	return identities, nil
}

// lookupEnv reads key verbatim and then in its environment-safe form
func lookupEnv(key string) (string, bool) {
	if value, exists := os.LookupEnv(key); exists {
		return value, true
	}
	return os.LookupEnv(strings.ReplaceAll(key, ":", "__"))
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := lookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := lookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return duration, nil
}

// getEnvList gets a comma separated environment variable or returns a default value
func getEnvList(key string, defaultValue []string) []string {
	value, exists := lookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return append([]string(nil), defaultValue...)
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
