package domain

// SecurityContext describes the caller on whose behalf a request executes
type SecurityContext struct {
	User        *Principal
	AccessToken *Token
}

// NewSecurityContext creates a security context for the given user
func NewSecurityContext(user *Principal) *SecurityContext {
	return &SecurityContext{User: user}
}

// IsAuthenticated reports whether the context carries an authenticated user
func (s *SecurityContext) IsAuthenticated() bool {
	return s != nil && s.User.IsAuthenticated()
}
