package domain

import "context"

// ContextKey is a type for context keys to avoid magic strings
type ContextKey string

const (
	// ContextKeyRequestID is the key for the request ID in the context
	ContextKeyRequestID ContextKey = "request_id"
	// ContextKeyPrincipal is the key for the authenticated principal in the context
	ContextKeyPrincipal ContextKey = "principal"
)

// WithRequestID adds the request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok
}

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, principal)
}

// PrincipalFromContext retrieves the authenticated principal from the context
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(ContextKeyPrincipal).(*Principal)
	return principal, ok && principal != nil
}
