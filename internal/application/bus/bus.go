package bus

import (
	"context"
	"fmt"
	"reflect"

	"github.com/manorfm/authcore/internal/infrastructure/validation"
	"go.uber.org/zap"
)

// Bus routes each request to the single handler registered for its concrete type.
// The handler table is read-only after New and safe for concurrent use.
type Bus struct {
	handlers map[reflect.Type]dispatcher
	logger   *zap.Logger
}

// New freezes the handlers registered so far into a Bus
func New(reg *Registry, logger *zap.Logger) *Bus {
	return &Bus{
		handlers: reg.snapshot(),
		logger:   logger,
	}
}

// Execute dispatches a command
func (b *Bus) Execute(ctx context.Context, command Command) (any, error) {
	return b.dispatch(ctx, KindCommand, command)
}

// Query dispatches a query
func (b *Bus) Query(ctx context.Context, query Query) (any, error) {
	return b.dispatch(ctx, KindQuery, query)
}

// HasHandler reports whether a handler is registered for the request's type
func (b *Bus) HasHandler(request Request) bool {
	_, ok := b.handlers[reflect.TypeOf(request)]
	return ok
}

func (b *Bus) dispatch(ctx context.Context, kind Kind, request Request) (result any, err error) {
	if err := validation.NotNil(request, kind.String()); err != nil {
		return nil, err
	}

	requestType := reflect.TypeOf(request)
	d, ok := b.handlers[requestType]
	if !ok || d.kind() != kind {
		b.logger.Error("No handler registered for request type",
			zap.String("request_type", requestType.String()),
			zap.Stringer("kind", kind))
		return nil, newError(NoHandlerForRequestType, requestType, nil)
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Handler panicked",
				zap.String("handler", d.handlerName()),
				zap.String("request_type", requestType.String()),
				zap.Any("panic", r))
			result = nil
			err = newError(ErrorWhileProcessingRequest, requestType, fmt.Errorf("panic: %v", r))
		}
	}()

	result, err = d.dispatch(ctx, request)
	if err != nil {
		return nil, normalize(requestType, err)
	}
	return result, nil
}

// Execute dispatches a command and converts its result to R
func Execute[R any](ctx context.Context, b *Bus, command Command) (R, error) {
	result, err := b.Execute(ctx, command)
	return convert[R](command, result, err)
}

// QueryAs dispatches a query and converts its result to R
func QueryAs[R any](ctx context.Context, b *Bus, query Query) (R, error) {
	result, err := b.Query(ctx, query)
	return convert[R](query, result, err)
}

func convert[R any](request Request, result any, err error) (R, error) {
	var zero R
	if err != nil || result == nil {
		return zero, err
	}
	typed, ok := result.(R)
	if !ok {
		return zero, newError(UnexpectedResultType, reflect.TypeOf(request),
			fmt.Errorf("result is %T, want %T", result, zero))
	}
	return typed, nil
}
