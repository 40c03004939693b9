package bus

import (
	"context"
	"reflect"
	"sync"
)

// Kind tells commands and queries apart
type Kind int

const (
	KindCommand Kind = iota + 1
	KindQuery
)

func (k Kind) String() string {
	if k == KindQuery {
		return "query"
	}
	return "command"
}

// dispatcher is a handler bound to its concrete request and result types
type dispatcher interface {
	kind() Kind
	handlerName() string
	dispatch(ctx context.Context, request Request) (any, error)
}

type typedDispatcher[Req Request, Res any] struct {
	k       Kind
	name    string
	handler Handler[Req, Res]
}

func (d *typedDispatcher[Req, Res]) kind() Kind          { return d.k }
func (d *typedDispatcher[Req, Res]) handlerName() string { return d.name }

func (d *typedDispatcher[Req, Res]) dispatch(ctx context.Context, request Request) (any, error) {
	req, ok := request.(Req)
	if !ok {
		return nil, newError(InvalidRequestType, reflect.TypeOf(request), nil)
	}
	return d.handler.Handle(ctx, req)
}

// Registry collects handlers at startup. It is copied into a Bus by New.
type Registry struct {
	mu       sync.Mutex
	handlers map[reflect.Type]dispatcher
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[reflect.Type]dispatcher)}
}

// RegisterCommand registers the handler for command type C
func RegisterCommand[C Command, R any](reg *Registry, h Handler[C, R]) error {
	return register(reg, KindCommand, h)
}

// RegisterQuery registers the handler for query type Q
func RegisterQuery[Q Query, R any](reg *Registry, h Handler[Q, R]) error {
	return register(reg, KindQuery, h)
}

func register[Req Request, Res any](reg *Registry, kind Kind, h Handler[Req, Res]) error {
	requestType := reflect.TypeOf((*Req)(nil)).Elem()
	if requestType.Kind() == reflect.Interface || h == nil {
		return newError(InvalidRequestType, requestType, nil)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.handlers[requestType]; exists {
		return newError(AmbiguousHandlerForRequestType, requestType, nil)
	}
	reg.handlers[requestType] = &typedDispatcher[Req, Res]{
		k:       kind,
		name:    handlerName(h),
		handler: h,
	}
	return nil
}

// Len returns the number of registered handlers
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

func (r *Registry) snapshot() map[reflect.Type]dispatcher {
	r.mu.Lock()
	defer r.mu.Unlock()
	handlers := make(map[reflect.Type]dispatcher, len(r.handlers))
	for t, d := range r.handlers {
		handlers[t] = d
	}
	return handlers
}
