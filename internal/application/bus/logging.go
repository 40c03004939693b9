package bus

import (
	"context"
	"fmt"

	"github.com/manorfm/authcore/internal/domain"
	"go.uber.org/zap"
)

type loggingHandler[Req Request, Res any] struct {
	inner  Handler[Req, Res]
	name   string
	logger *zap.Logger
}

// WithLogging logs the start of every request and exactly one finishing or error entry
func WithLogging[Req Request, Res any](h Handler[Req, Res], logger *zap.Logger) Handler[Req, Res] {
	return &loggingHandler[Req, Res]{
		inner:  h,
		name:   handlerName(h),
		logger: logger,
	}
}

// Logging is the Decorator form of WithLogging
func Logging[Req Request, Res any](logger *zap.Logger) Decorator[Req, Res] {
	return func(h Handler[Req, Res]) Handler[Req, Res] {
		return WithLogging(h, logger)
	}
}

func (h *loggingHandler[Req, Res]) Unwrap() Handler[Req, Res] {
	return h.inner
}

func (h *loggingHandler[Req, Res]) Handle(ctx context.Context, request Req) (result Res, err error) {
	fields := []zap.Field{
		zap.String("handler", h.name),
		zap.String("request_type", fmt.Sprintf("%T", request)),
		zap.String("request_id", correlationID(ctx, request)),
	}

	h.logger.Debug("Starting handler", fields...)

	completed := false
	defer func() {
		if completed {
			return
		}
		if r := recover(); r != nil {
			h.logger.Error("Handler failed", append(fields, zap.Any("panic", r))...)
			panic(r)
		}
	}()

	result, err = h.inner.Handle(ctx, request)
	completed = true

	if err != nil {
		h.logger.Error("Handler failed", append(fields, zap.Error(err))...)
		return result, err
	}

	h.logger.Debug("Finishing handler", fields...)
	return result, nil
}

func correlationID(ctx context.Context, request Request) string {
	if id := request.RequestID(); id != "" {
		return id
	}
	if id, ok := domain.GetRequestID(ctx); ok {
		return id
	}
	return ""
}
