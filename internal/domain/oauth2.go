package domain

import (
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Supported response types
const (
	ResponseTypeCode    = "code"
	ResponseTypeIDToken = "id_token"
)

// AuthorizationCodeLifetime is the fixed lifetime of an authorization code
const AuthorizationCodeLifetime = 10 * time.Minute

// DefaultAuthorizationStateDuration bounds how long a protected state may travel
// through an identity provider before it is rejected
const DefaultAuthorizationStateDuration = 10 * time.Minute

// AuthorizationStatus is the position of an authorization state in its flow
type AuthorizationStatus int

const (
	StatePrepared AuthorizationStatus = iota + 1
	StateProtected
	StateRecovered
	StateConsumed
	StateRejected
)

func (s AuthorizationStatus) String() string {
	switch s {
	case StatePrepared:
		return "prepared"
	case StateProtected:
		return "protected"
	case StateRecovered:
		return "recovered"
	case StateConsumed:
		return "consumed"
	case StateRejected:
		return "rejected"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// AuthorizationState is one authorization code flow transaction.
// Only the exported fields travel inside the protected state string.
type AuthorizationState struct {
	ResponseType  string    `json:"response_type"`
	ClientID      string    `json:"client_id"`
	RedirectURI   string    `json:"redirect_uri"`
	Scopes        []string  `json:"scopes"`
	ExternalState string    `json:"state"`
	Nonce         string    `json:"nonce"`
	ExpiresAt     time.Time `json:"expires_at"`

	mu     sync.Mutex
	status AuthorizationStatus
}

// Status returns the current status
func (s *AuthorizationState) Status() AuthorizationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetStatus forces the status
func (s *AuthorizationState) SetStatus(status AuthorizationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Transition moves the state from one status to another and reports whether it happened
func (s *AuthorizationState) Transition(from, to AuthorizationStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != from {
		return false
	}
	s.status = to
	return true
}

// HasExpired reports whether the state is past its expiry at now
func (s *AuthorizationState) HasExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// RedirectURL parses the redirect URI
func (s *AuthorizationState) RedirectURL() (*url.URL, error) {
	return url.Parse(s.RedirectURI)
}

// AuthorizationCode is a short-lived credential exchanged by a client for a token
type AuthorizationCode struct {
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasExpired reports whether the code is past its expiry at now
func (c *AuthorizationCode) HasExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// AuthorizationResponse is the outcome of consuming an authorization state
type AuthorizationResponse struct {
	RedirectURI string             `json:"redirect_uri"`
	State       string             `json:"state"`
	Code        *AuthorizationCode `json:"code,omitempty"`
	IDToken     *Token             `json:"id_token,omitempty"`
}
