package bus

import (
	"errors"
	"fmt"
	"reflect"

	apperrors "github.com/manorfm/authcore/internal/domain/errors"
)

// ErrorCode classifies dispatch failures
type ErrorCode string

const (
	NoHandlerForRequestType        ErrorCode = "NoHandlerForRequestType"
	AmbiguousHandlerForRequestType ErrorCode = "AmbiguousHandlerForRequestType"
	InvalidRequestType             ErrorCode = "InvalidRequestType"
	ErrorWhileProcessingRequest    ErrorCode = "ErrorWhileProcessingRequest"
	UnexpectedResultType           ErrorCode = "UnexpectedResultType"
)

// Error is a failure of the dispatch plumbing rather than of a business rule
type Error struct {
	Code        ErrorCode
	RequestType string
	Err         error
}

// Sentinels for errors.Is
var (
	ErrNoHandlerForRequestType        = &Error{Code: NoHandlerForRequestType}
	ErrAmbiguousHandlerForRequestType = &Error{Code: AmbiguousHandlerForRequestType}
	ErrInvalidRequestType             = &Error{Code: InvalidRequestType}
	ErrErrorWhileProcessingRequest    = &Error{Code: ErrorWhileProcessingRequest}
	ErrUnexpectedResultType           = &Error{Code: UnexpectedResultType}
)

func newError(code ErrorCode, requestType reflect.Type, err error) *Error {
	name := "<nil>"
	if requestType != nil {
		name = requestType.String()
	}
	return &Error{Code: code, RequestType: name, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Code, e.RequestType, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Code, e.RequestType)
}

// Unwrap returns the original cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.RequestType == "" || t.RequestType == e.RequestType)
}

// firstCause promotes the first inner error of aggregates until a plain error remains
func firstCause(err error) error {
	for {
		aggregate, ok := err.(interface{ Unwrap() []error })
		if !ok {
			return err
		}
		errs := aggregate.Unwrap()
		if len(errs) == 0 || errs[0] == nil {
			return err
		}
		err = errs[0]
	}
}

// normalize lets business and dispatch errors through and wraps everything else
func normalize(requestType reflect.Type, err error) error {
	cause := firstCause(err)
	if _, ok := apperrors.As(cause); ok {
		return cause
	}
	var busErr *Error
	if errors.As(cause, &busErr) {
		return cause
	}
	return newError(ErrorWhileProcessingRequest, requestType, cause)
}
