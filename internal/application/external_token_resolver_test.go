package application

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/manorfm/authcore/internal/domain"
	apperrors "github.com/manorfm/authcore/internal/domain/errors"
	"github.com/manorfm/authcore/internal/infrastructure/protection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTokenProtector(t *testing.T, b byte) *protection.Protector {
	t.Helper()
	protector, err := protection.New(bytes.Repeat([]byte{b}, 32), "external-token")
	require.NoError(t, err)
	return protector
}

func externalToken() *domain.RefreshableToken {
	return &domain.RefreshableToken{
		Token:        *domain.NewBearerToken("graph-access-token", testNow.Add(domain.DefaultAccessTokenDuration)),
		RefreshToken: "graph-refresh-token",
	}
}

func TestExternalTokenResolver_RoundTrip(t *testing.T) {
	protector := newTokenProtector(t, 5)
	claim, err := ProtectExternalToken(domain.Microsoft, externalToken(), protector.ProtectFunc())
	require.NoError(t, err)
	assert.Equal(t, "urn:authcore:external_token:microsoft", claim.Type)

	principal := testPrincipal().WithClaims(claim)
	resolver := NewExternalTokenResolver(domain.Microsoft, zap.NewNop())

	token, ok := resolver.ResolveFor(principal, protector.UnprotectFunc())
	require.True(t, ok)
	assert.Equal(t, "graph-access-token", token.AccessToken)
	assert.Equal(t, "graph-refresh-token", token.RefreshToken)
	assert.Equal(t, domain.TokenTypeBearer, token.TokenType)
	assert.True(t, token.Expires.Equal(testNow.Add(domain.DefaultAccessTokenDuration)))

	ctx := domain.WithPrincipal(context.Background(), principal)
	fromContext, ok := resolver.Resolve(ctx, protector.UnprotectFunc())
	require.True(t, ok)
	assert.Equal(t, token, fromContext)
}

func TestExternalTokenResolver_Absent(t *testing.T) {
	protector := newTokenProtector(t, 5)
	claim, err := ProtectExternalToken(domain.Google, externalToken(), protector.ProtectFunc())
	require.NoError(t, err)

	failing := func([]byte) ([]byte, error) { return nil, errors.New("tampered") }
	notJSON := func([]byte) ([]byte, error) { return []byte("not json"), nil }
	emptyToken := func([]byte) ([]byte, error) { return []byte(`{"refresh_token":"r"}`), nil }

	tests := []struct {
		name      string
		provider  domain.ExternalProvider
		principal *domain.Principal
		unprotect domain.UnprotectFunc
	}{
		{"nil principal", domain.Google, nil, protector.UnprotectFunc()},
		{"no claim", domain.Google, testPrincipal(), protector.UnprotectFunc()},
		{"other provider", domain.Microsoft, testPrincipal().WithClaims(claim), protector.UnprotectFunc()},
		{"nil unprotect", domain.Google, testPrincipal().WithClaims(claim), nil},
		{"different key", domain.Google, testPrincipal().WithClaims(claim), newTokenProtector(t, 6).UnprotectFunc()},
		{"unprotect failure", domain.Google, testPrincipal().WithClaims(claim), failing},
		{"not json", domain.Google, testPrincipal().WithClaims(claim), notJSON},
		{"empty access token", domain.Google, testPrincipal().WithClaims(claim), emptyToken},
		{
			"not base64",
			domain.Google,
			testPrincipal().WithClaims(domain.NewClaim(domain.Google.TokenClaimType(), "%%%")),
			protector.UnprotectFunc(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewExternalTokenResolver(tt.provider, zap.NewNop())

			token, ok := resolver.ResolveFor(tt.principal, tt.unprotect)

			assert.False(t, ok)
			assert.Nil(t, token)
		})
	}
}

func TestExternalTokenResolver_ResolveWithoutPrincipal(t *testing.T) {
	resolver := NewExternalTokenResolver(domain.Microsoft, zap.NewNop())

	token, ok := resolver.Resolve(context.Background(), newTokenProtector(t, 5).UnprotectFunc())

	assert.False(t, ok)
	assert.Nil(t, token)
	assert.Equal(t, domain.Microsoft, resolver.Provider())
}

func TestProtectExternalToken_Validation(t *testing.T) {
	protect := newTokenProtector(t, 5).ProtectFunc()

	tests := []struct {
		name     string
		provider domain.ExternalProvider
		token    *domain.RefreshableToken
		protect  domain.ProtectFunc
		wantErr  func(error) bool
	}{
		{"unknown provider", domain.ExternalProvider("github"), externalToken(), protect, apperrors.IsValidationError},
		{"nil token", domain.Microsoft, nil, protect, apperrors.IsValidationError},
		{"empty access token", domain.Microsoft, &domain.RefreshableToken{}, protect, apperrors.IsValidationError},
		{"nil protect", domain.Microsoft, externalToken(), nil, apperrors.IsValidationError},
		{
			"protect failure",
			domain.Microsoft,
			externalToken(),
			func([]byte) ([]byte, error) { return nil, errors.New("no key") },
			apperrors.IsInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claim, err := ProtectExternalToken(tt.provider, tt.token, tt.protect)

			assert.True(t, tt.wantErr(err), "got %v", err)
			assert.Empty(t, claim.Value)
		})
	}
}

func TestProtectExternalToken_ClaimIsBase64URL(t *testing.T) {
	claim, err := ProtectExternalToken(domain.Google, externalToken(), newTokenProtector(t, 5).ProtectFunc())
	require.NoError(t, err)

	_, err = base64.RawURLEncoding.DecodeString(claim.Value)
	assert.NoError(t, err)
	assert.NotContains(t, claim.Value, "graph-access-token")
}
