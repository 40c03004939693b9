package application

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/manorfm/authcore/internal/domain"
	apperrors "github.com/manorfm/authcore/internal/domain/errors"
	"github.com/manorfm/authcore/internal/infrastructure/protection"
	"github.com/manorfm/authcore/internal/infrastructure/providers"
	"github.com/manorfm/authcore/internal/infrastructure/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// MockKeyGenerator is a mock implementation of domain.KeyGenerator
type MockKeyGenerator struct {
	mock.Mock
}

func (m *MockKeyGenerator) GenerateKey(values []string) (string, error) {
	args := m.Called(values)
	return args.String(0), args.Error(1)
}

// MockTokenGenerator is a mock implementation of domain.TokenGenerator
type MockTokenGenerator struct {
	mock.Mock
}

func (m *MockTokenGenerator) SigningAlgorithm() string {
	return m.Called().String(0)
}

func (m *MockTokenGenerator) Generate(claims []domain.Claim, ttl time.Duration) (*domain.Token, error) {
	args := m.Called(claims, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Token), args.Error(1)
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) UtcNow() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type flowFixture struct {
	clock     *stepClock
	keys      *MockKeyGenerator
	tokens    *MockTokenGenerator
	protector *protection.Protector
	protects  int
}

func newTestFlow(t *testing.T, trusted ...string) (*AuthorizationFlow, *flowFixture) {
	t.Helper()
	protector, err := protection.New(bytes.Repeat([]byte{9}, 32), "authorization-state")
	require.NoError(t, err)
	return newTestFlowWith(t, protector, trusted...)
}

func newTestFlowWith(t *testing.T, protector *protection.Protector, trusted ...string) (*AuthorizationFlow, *flowFixture) {
	t.Helper()
	if len(trusted) == 0 {
		trusted = []string{"trusted.example"}
	}

	fixture := &flowFixture{
		clock:     &stepClock{now: testNow},
		keys:      new(MockKeyGenerator),
		tokens:    new(MockTokenGenerator),
		protector: protector,
	}
	logger := zap.NewNop()

	flow := NewAuthorizationFlow(AuthorizationFlowDeps{
		TrustedDomains: providers.NewTrustedDomains(trusted),
		Scopes:         providers.NewSupportedScopes([]string{"openid", "profile"}),
		Clock:          fixture.clock,
		Codes:          NewAuthorizationCodeGenerator(fixture.keys, fixture.clock, logger),
		Tokens:         fixture.tokens,
		Protect: func(plaintext []byte) ([]byte, error) {
			fixture.protects++
			return protector.Protect(plaintext)
		},
		Unprotect: protector.UnprotectFunc(),
	}, validation.New(), logger)

	return flow, fixture
}

func exampleRequest() *PrepareAuthorizationRequest {
	return &PrepareAuthorizationRequest{
		ResponseType: domain.ResponseTypeCode,
		ClientID:     "abc",
		RedirectURI:  "https://trusted.example/cb",
		Scopes:       []string{"openid", "profile"},
		State:        "xyz",
	}
}

func recoveredState(t *testing.T, flow *AuthorizationFlow, req *PrepareAuthorizationRequest) *domain.AuthorizationState {
	t.Helper()
	state, err := flow.Prepare(context.Background(), req)
	require.NoError(t, err)
	protected, err := flow.Protect(state)
	require.NoError(t, err)
	recovered, err := flow.Recover(context.Background(), protected)
	require.NoError(t, err)
	return recovered
}

func testPrincipal() *domain.Principal {
	return domain.NewPrincipal("microsoft",
		domain.NewClaim(domain.ClaimSubject, "alice"),
		domain.NewClaim(domain.ClaimName, "Alice"),
		domain.NewClaim(domain.ClaimEmail, "alice@trusted.example"))
}

func TestAuthorizationFlow_PrepareProtectRecover(t *testing.T) {
	flow, fixture := newTestFlow(t)

	state, err := flow.Prepare(context.Background(), exampleRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.StatePrepared, state.Status())
	assert.Equal(t, testNow.Add(domain.DefaultAuthorizationStateDuration), state.ExpiresAt)
	assert.NotEmpty(t, state.Nonce)

	protected, err := flow.Protect(state)
	require.NoError(t, err)
	assert.Equal(t, domain.StateProtected, state.Status())
	assert.Equal(t, 1, fixture.protects)
	assert.Equal(t, url.QueryEscape(protected), protected)

	recovered, err := flow.Recover(context.Background(), protected)
	require.NoError(t, err)

	assert.Equal(t, "https://trusted.example/cb", recovered.RedirectURI)
	assert.Equal(t, []string{"openid", "profile"}, recovered.Scopes)
	assert.Equal(t, state.ResponseType, recovered.ResponseType)
	assert.Equal(t, state.ClientID, recovered.ClientID)
	assert.Equal(t, state.ExternalState, recovered.ExternalState)
	assert.Equal(t, state.Nonce, recovered.Nonce)
	assert.True(t, state.ExpiresAt.Equal(recovered.ExpiresAt))
	assert.Equal(t, domain.StateRecovered, recovered.Status())
}

func TestAuthorizationFlow_RecoverIsRepeatable(t *testing.T) {
	flow, _ := newTestFlow(t)

	state, err := flow.Prepare(context.Background(), exampleRequest())
	require.NoError(t, err)
	protected, err := flow.Protect(state)
	require.NoError(t, err)

	again, err := flow.Protect(state)
	require.NoError(t, err)
	assert.NotEqual(t, protected, again)

	for i := 0; i < 3; i++ {
		_, err := flow.Recover(context.Background(), protected)
		require.NoError(t, err)
	}
}

func TestAuthorizationFlow_RecoverExpiryBoundary(t *testing.T) {
	flow, fixture := newTestFlow(t)

	state, err := flow.Prepare(context.Background(), exampleRequest())
	require.NoError(t, err)
	protected, err := flow.Protect(state)
	require.NoError(t, err)

	fixture.clock.Advance(domain.DefaultAuthorizationStateDuration - time.Nanosecond)
	_, err = flow.Recover(context.Background(), protected)
	require.NoError(t, err)

	// ExpiresAt itself is already expired
	fixture.clock.Advance(time.Nanosecond)
	require.True(t, fixture.clock.UtcNow().Equal(state.ExpiresAt))
	recovered, err := flow.Recover(context.Background(), protected)
	assert.Nil(t, recovered)
	assert.True(t, apperrors.IsSecurityError(err))
}

func TestAuthorizationFlow_PrepareKeepsNonce(t *testing.T) {
	flow, _ := newTestFlow(t)
	req := exampleRequest()
	req.Nonce = "n-0S6_WzA2Mj"

	state, err := flow.Prepare(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "n-0S6_WzA2Mj", state.Nonce)
}

func TestAuthorizationFlow_PrepareValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*PrepareAuthorizationRequest)
		wantField string
	}{
		{
			name:      "untrusted redirect uri",
			mutate:    func(r *PrepareAuthorizationRequest) { r.RedirectURI = "https://evil.example/cb" },
			wantField: "redirect_uri",
		},
		{
			name:      "relative redirect uri",
			mutate:    func(r *PrepareAuthorizationRequest) { r.RedirectURI = "/cb" },
			wantField: "redirect_uri",
		},
		{
			name:      "unsupported response type",
			mutate:    func(r *PrepareAuthorizationRequest) { r.ResponseType = "token" },
			wantField: "response_type",
		},
		{
			name:      "missing response type",
			mutate:    func(r *PrepareAuthorizationRequest) { r.ResponseType = "" },
			wantField: "response_type",
		},
		{
			name:      "missing client id",
			mutate:    func(r *PrepareAuthorizationRequest) { r.ClientID = "" },
			wantField: "client_id",
		},
		{
			name:      "unsupported scope",
			mutate:    func(r *PrepareAuthorizationRequest) { r.Scopes = []string{"openid", "admin"} },
			wantField: "scope",
		},
		{
			name:      "missing state",
			mutate:    func(r *PrepareAuthorizationRequest) { r.State = "" },
			wantField: "state",
		},
		{
			name:      "blank client id",
			mutate:    func(r *PrepareAuthorizationRequest) { r.ClientID = "   " },
			wantField: "client_id",
		},
		{
			name:      "blank state",
			mutate:    func(r *PrepareAuthorizationRequest) { r.State = " \t " },
			wantField: "state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow, fixture := newTestFlow(t)
			req := exampleRequest()
			tt.mutate(req)

			state, err := flow.Prepare(context.Background(), req)

			require.Error(t, err)
			assert.Nil(t, state)
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ValidationError, appErr.Code)
			assert.Equal(t, tt.wantField, appErr.Field)
			assert.Zero(t, fixture.protects)
		})
	}
}

func TestAuthorizationFlow_PrepareNilRequest(t *testing.T) {
	flow, _ := newTestFlow(t)

	_, err := flow.Prepare(context.Background(), nil)

	assert.True(t, apperrors.IsValidationError(err))
}

func TestAuthorizationFlow_ProtectOnlyPreparedStates(t *testing.T) {
	flow, _ := newTestFlow(t)
	state := recoveredState(t, flow, exampleRequest())

	_, err := flow.Protect(state)

	assert.ErrorIs(t, err, domain.ErrStateNotPrepared)
}

func TestAuthorizationFlow_RecoverFailsClosed(t *testing.T) {
	flow, fixture := newTestFlow(t)
	state, err := flow.Prepare(context.Background(), exampleRequest())
	require.NoError(t, err)
	protected, err := flow.Protect(state)
	require.NoError(t, err)

	otherKey, err := protection.New(bytes.Repeat([]byte{1}, 32), "authorization-state")
	require.NoError(t, err)
	otherFlow, _ := newTestFlowWith(t, otherKey)

	tampered := []byte(protected)
	if tampered[10] == 'A' {
		tampered[10] = 'B'
	} else {
		tampered[10] = 'A'
	}

	tests := []struct {
		name  string
		flow  *AuthorizationFlow
		input string
		setup func()
	}{
		{name: "empty", flow: flow, input: ""},
		{name: "not base64", flow: flow, input: "!!!not-base64!!!"},
		{name: "never protected", flow: flow, input: "eyJyZXNwb25zZV90eXBlIjoiY29kZSJ9"},
		{name: "tampered", flow: flow, input: string(tampered)},
		{name: "different key", flow: otherFlow, input: protected},
		{
			name:  "expired",
			flow:  flow,
			input: protected,
			setup: func() { fixture.clock.Advance(domain.DefaultAuthorizationStateDuration) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}

			recovered, err := tt.flow.Recover(context.Background(), tt.input)

			assert.Nil(t, recovered)
			assert.True(t, apperrors.IsSecurityError(err), "got %v", err)
		})
	}
}

func TestAuthorizationFlow_RecoverRechecksTrustedDomains(t *testing.T) {
	flow, fixture := newTestFlow(t, "trusted.example")
	state, err := flow.Prepare(context.Background(), exampleRequest())
	require.NoError(t, err)
	protected, err := flow.Protect(state)
	require.NoError(t, err)

	detrusted, _ := newTestFlowWith(t, fixture.protector, "other.example")

	recovered, err := detrusted.Recover(context.Background(), protected)

	assert.Nil(t, recovered)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.SecurityError, appErr.Code)
	assert.True(t, apperrors.IsValidationError(appErr.Err))
}

func TestAuthorizationFlow_ConsumeCode(t *testing.T) {
	flow, fixture := newTestFlow(t)
	state := recoveredState(t, flow, exampleRequest())

	expiry := testNow.Add(domain.AuthorizationCodeLifetime).Format(time.RFC3339Nano)
	fixture.keys.On("GenerateKey", mock.MatchedBy(func(values []string) bool {
		return len(values) == 2 && values[0] != "" && values[1] == expiry
	})).Return("the-code", nil).Once()

	response, err := flow.Consume(context.Background(), state, testPrincipal(), testNow)

	require.NoError(t, err)
	assert.Equal(t, domain.StateConsumed, state.Status())
	require.NotNil(t, response.Code)
	assert.Equal(t, "the-code", response.Code.Value)
	assert.Equal(t, "xyz", response.State)
	assert.Nil(t, response.IDToken)

	redirect, err := url.Parse(response.RedirectURI)
	require.NoError(t, err)
	assert.Equal(t, "trusted.example", redirect.Host)
	assert.Equal(t, "/cb", redirect.Path)
	assert.Equal(t, "the-code", redirect.Query().Get("code"))
	assert.Equal(t, "xyz", redirect.Query().Get("state"))

	_, err = flow.Consume(context.Background(), state, testPrincipal(), testNow)
	assert.ErrorIs(t, err, domain.ErrStateAlreadyConsumed)
	assert.False(t, apperrors.IsValidationError(err))
	fixture.keys.AssertExpectations(t)
}

func TestAuthorizationFlow_ConsumeIDToken(t *testing.T) {
	flow, fixture := newTestFlow(t)
	req := exampleRequest()
	req.ResponseType = domain.ResponseTypeIDToken
	req.Nonce = "n-123"
	state := recoveredState(t, flow, req)

	authTime := testNow.Add(-time.Minute)
	token := domain.NewBearerToken("header.payload.signature", testNow.Add(domain.DefaultIDTokenDuration))
	fixture.tokens.On("Generate", mock.MatchedBy(func(claims []domain.Claim) bool {
		p := domain.NewPrincipal("test", claims...)
		nonce, _ := p.FindFirst(domain.ClaimNonce)
		azp, _ := p.FindFirst(domain.ClaimAuthorizedParty)
		authTimeClaim, _ := p.FindFirst(domain.ClaimAuthTime)
		return p.Subject() == "alice" && nonce == "n-123" && azp == "abc" && authTimeClaim == "1709294340"
	}), domain.DefaultIDTokenDuration).Return(token, nil).Once()

	response, err := flow.Consume(context.Background(), state, testPrincipal(), authTime)

	require.NoError(t, err)
	assert.Same(t, token, response.IDToken)
	assert.Nil(t, response.Code)

	redirect, err := url.Parse(response.RedirectURI)
	require.NoError(t, err)
	fragment, err := url.ParseQuery(redirect.Fragment)
	require.NoError(t, err)
	assert.Equal(t, "header.payload.signature", fragment.Get("id_token"))
	assert.Equal(t, "xyz", fragment.Get("state"))
	assert.Empty(t, redirect.RawQuery)
	fixture.tokens.AssertExpectations(t)
}

func TestAuthorizationFlow_ConsumeRequiresRecoveredState(t *testing.T) {
	flow, _ := newTestFlow(t)
	state, err := flow.Prepare(context.Background(), exampleRequest())
	require.NoError(t, err)

	_, err = flow.Consume(context.Background(), state, testPrincipal(), testNow)

	assert.ErrorIs(t, err, domain.ErrStateNotRecovered)
	assert.Equal(t, domain.StatePrepared, state.Status())
}

func TestAuthorizationFlow_ConsumeValidation(t *testing.T) {
	flow, _ := newTestFlow(t)
	state := recoveredState(t, flow, exampleRequest())

	_, err := flow.Consume(context.Background(), nil, testPrincipal(), testNow)
	assert.True(t, apperrors.IsValidationError(err))

	_, err = flow.Consume(context.Background(), state, nil, testNow)
	assert.True(t, apperrors.IsValidationError(err))

	_, err = flow.Consume(context.Background(), state, &domain.Principal{}, testNow)
	assert.True(t, apperrors.IsValidationError(err))

	assert.Equal(t, domain.StateRecovered, state.Status())
}

func TestAuthorizationFlow_ConsumeExpiredState(t *testing.T) {
	flow, fixture := newTestFlow(t)
	state := recoveredState(t, flow, exampleRequest())
	fixture.clock.Advance(domain.DefaultAuthorizationStateDuration + time.Second)

	response, err := flow.Consume(context.Background(), state, testPrincipal(), testNow)

	assert.Nil(t, response)
	assert.True(t, apperrors.IsSecurityError(err))
	assert.Equal(t, domain.StateRejected, state.Status())
	fixture.keys.AssertNotCalled(t, "GenerateKey", mock.Anything)
}

func TestAuthorizationFlow_ConsumeCancelled(t *testing.T) {
	t.Run("before consume", func(t *testing.T) {
		flow, fixture := newTestFlow(t)
		state := recoveredState(t, flow, exampleRequest())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		response, err := flow.Consume(ctx, state, testPrincipal(), testNow)

		assert.Nil(t, response)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, domain.StateRecovered, state.Status())
		fixture.keys.AssertNotCalled(t, "GenerateKey", mock.Anything)
	})

	t.Run("while issuing", func(t *testing.T) {
		flow, fixture := newTestFlow(t)
		state := recoveredState(t, flow, exampleRequest())
		ctx, cancel := context.WithCancel(context.Background())
		fixture.keys.On("GenerateKey", mock.Anything).Run(func(mock.Arguments) { cancel() }).Return("late-code", nil).Once()

		response, err := flow.Consume(ctx, state, testPrincipal(), testNow)

		assert.Nil(t, response)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, domain.StateRecovered, state.Status())

		fixture.keys.On("GenerateKey", mock.Anything).Return("fresh-code", nil).Once()
		response, err = flow.Consume(context.Background(), state, testPrincipal(), testNow)
		require.NoError(t, err)
		assert.Equal(t, "fresh-code", response.Code.Value)
	})
}

func TestAuthorizationFlow_ConsumeFailureReverts(t *testing.T) {
	flow, fixture := newTestFlow(t)
	state := recoveredState(t, flow, exampleRequest())
	fixture.keys.On("GenerateKey", mock.Anything).Return("", errors.New("entropy exhausted")).Once()

	_, err := flow.Consume(context.Background(), state, testPrincipal(), testNow)

	assert.True(t, apperrors.IsInternalError(err))
	assert.Equal(t, domain.StateRecovered, state.Status())
}

func TestAuthorizationFlow_ConcurrentConsume(t *testing.T) {
	flow, fixture := newTestFlow(t)
	state := recoveredState(t, flow, exampleRequest())
	fixture.keys.On("GenerateKey", mock.Anything).Return("the-code", nil)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		consumed  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := flow.Consume(context.Background(), state, testPrincipal(), testNow)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrStateAlreadyConsumed):
				consumed++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, consumed)
	fixture.keys.AssertNumberOfCalls(t, "GenerateKey", 1)
}

func TestAuthorizationFlow_ProtectedStateIsOpaque(t *testing.T) {
	flow, _ := newTestFlow(t)
	state, err := flow.Prepare(context.Background(), exampleRequest())
	require.NoError(t, err)

	protected, err := flow.Protect(state)

	require.NoError(t, err)
	assert.False(t, strings.Contains(protected, "trusted.example"))
	assert.NotContains(t, protected, "=")
}
