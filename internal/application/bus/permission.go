package bus

import (
	"context"

	"github.com/manorfm/authcore/internal/domain"
	apperrors "github.com/manorfm/authcore/internal/domain/errors"
)

// AccessDeniedMessage is the only detail a caller learns when permission is denied
const AccessDeniedMessage = "Access denied due to insufficient privileges."

// PermissionVerifiable is implemented by handlers that guard their requests
type PermissionVerifiable[Req Request] interface {
	IsPermitted(ctx context.Context, securityContext *domain.SecurityContext, request Req) (bool, error)
}

type permissionHandler[Req Request, Res any] struct {
	inner    Handler[Req, Res]
	verifier PermissionVerifiable[Req]
}

// WithPermissionVerification asks the innermost permission verifiable handler to approve
// each request before it runs. Handlers without that capability pass through untouched.
func WithPermissionVerification[Req Request, Res any](h Handler[Req, Res]) Handler[Req, Res] {
	return &permissionHandler[Req, Res]{
		inner:    h,
		verifier: findVerifier(h),
	}
}

// PermissionVerification is the Decorator form of WithPermissionVerification
func PermissionVerification[Req Request, Res any]() Decorator[Req, Res] {
	return WithPermissionVerification[Req, Res]
}

func findVerifier[Req Request, Res any](h Handler[Req, Res]) PermissionVerifiable[Req] {
	var verifier PermissionVerifiable[Req]
	for _, handler := range chain(h) {
		if v, ok := handler.(PermissionVerifiable[Req]); ok {
			verifier = v
		}
	}
	return verifier
}

func (h *permissionHandler[Req, Res]) Unwrap() Handler[Req, Res] {
	return h.inner
}

func (h *permissionHandler[Req, Res]) Handle(ctx context.Context, request Req) (Res, error) {
	if h.verifier == nil {
		return h.inner.Handle(ctx, request)
	}

	var zero Res
	permitted, err := h.verifier.IsPermitted(ctx, request.SecurityContext(), request)
	if err != nil {
		return zero, err
	}
	if !permitted {
		return zero, apperrors.NewSecurityError(AccessDeniedMessage, nil)
	}
	return h.inner.Handle(ctx, request)
}
