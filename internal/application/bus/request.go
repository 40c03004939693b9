// Package bus dispatches commands and queries to exactly one registered
// handler, optionally wrapped by logging and permission verification.
package bus

import (
	"github.com/manorfm/authcore/internal/domain"
	"github.com/manorfm/authcore/internal/infrastructure/validation"
	"github.com/oklog/ulid/v2"
)

// Request is the common shape of commands and queries
type Request interface {
	// RequestID correlates log entries of one request
	RequestID() string
	// SecurityContext describes the caller
	SecurityContext() *domain.SecurityContext
	// Validate checks the request before its handler does any work
	Validate(v *validation.Validator) error
}

// Command is a unit of work expressing intent
type Command interface {
	Request
	isCommand()
}

// Query is a unit of work yielding a typed result
type Query interface {
	Request
	isQuery()
}

// NewRequestID creates a sortable correlation identifier
func NewRequestID() string {
	return ulid.Make().String()
}

// CommandBase carries the fields every command shares. Embed it to implement Command.
type CommandBase struct {
	ID       string
	Security *domain.SecurityContext
}

// NewCommandBase creates a CommandBase with a fresh request ID
func NewCommandBase(securityContext *domain.SecurityContext) CommandBase {
	return CommandBase{ID: NewRequestID(), Security: securityContext}
}

func (c CommandBase) RequestID() string                        { return c.ID }
func (c CommandBase) SecurityContext() *domain.SecurityContext { return c.Security }
func (CommandBase) isCommand()                                 {}

// QueryBase carries the fields every query shares. Embed it to implement Query.
type QueryBase struct {
	ID       string
	Security *domain.SecurityContext
}

// NewQueryBase creates a QueryBase with a fresh request ID
func NewQueryBase(securityContext *domain.SecurityContext) QueryBase {
	return QueryBase{ID: NewRequestID(), Security: securityContext}
}

func (q QueryBase) RequestID() string                        { return q.ID }
func (q QueryBase) SecurityContext() *domain.SecurityContext { return q.Security }
func (QueryBase) isQuery()                                   {}
