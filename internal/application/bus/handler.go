package bus

import (
	"context"
	"fmt"
)

// Handler handles one concrete request type
type Handler[Req Request, Res any] interface {
	Handle(ctx context.Context, request Req) (Res, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc[Req Request, Res any] func(ctx context.Context, request Req) (Res, error)

// Handle calls f
func (f HandlerFunc[Req, Res]) Handle(ctx context.Context, request Req) (Res, error) {
	return f(ctx, request)
}

// Decorator wraps a handler with a cross-cutting behavior
type Decorator[Req Request, Res any] func(Handler[Req, Res]) Handler[Req, Res]

// Decorate applies decorators left to right; the first one wraps the handler directly
func Decorate[Req Request, Res any](h Handler[Req, Res], decorators ...Decorator[Req, Res]) Handler[Req, Res] {
	for _, decorate := range decorators {
		h = decorate(h)
	}
	return h
}

// unwrapper is implemented by decorators
type unwrapper[Req Request, Res any] interface {
	Unwrap() Handler[Req, Res]
}

// chain returns h followed by every handler it wraps, outermost first
func chain[Req Request, Res any](h Handler[Req, Res]) []Handler[Req, Res] {
	handlers := []Handler[Req, Res]{h}
	for {
		u, ok := h.(unwrapper[Req, Res])
		if !ok {
			return handlers
		}
		h = u.Unwrap()
		handlers = append(handlers, h)
	}
}

// innermost returns the handler at the bottom of a decorator chain
func innermost[Req Request, Res any](h Handler[Req, Res]) Handler[Req, Res] {
	handlers := chain(h)
	return handlers[len(handlers)-1]
}

// handlerName names the concrete type doing the work behind h
func handlerName[Req Request, Res any](h Handler[Req, Res]) string {
	return fmt.Sprintf("%T", innermost(h))
}
