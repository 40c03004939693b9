// Package validation holds the null guards and business-rule checks every
// command and query runs before its handler does any work.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/manorfm/authcore/internal/domain/errors"
)

// NotNil fails when value is nil, including typed nil pointers
func NotNil(value any, name string) error {
	if isNil(value) {
		return apperrors.NewValidationError(name, "must not be nil")
	}
	return nil
}

// NotEmpty fails when value is empty or whitespace
func NotEmpty(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.NewValidationError(name, "must not be empty")
	}
	return nil
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Validator checks struct tags and business rules
type Validator struct {
	validate *validator.Validate
}

// New creates a validator reporting fields by their JSON names
func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: validate}
}

// Struct validates the struct tags of s and reports the first failing field
func (v *Validator) Struct(s any) error {
	if err := NotNil(s, "request"); err != nil {
		return err
	}

	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		first := validationErrors[0]
		return apperrors.NewValidationError(first.Field(), messageFor(first))
	}
	return apperrors.NewInternalError("validation could not run", err)
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "url", "uri":
		return "must be an absolute URI"
	case "gt", "min":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
}

// ShouldBeTrue fails with message on field when condition is false
func (v *Validator) ShouldBeTrue(condition bool, field, message string) error {
	if !condition {
		return apperrors.NewValidationError(field, message)
	}
	return nil
}

// ShouldBeAbsoluteURI parses raw and fails unless it is an absolute URI with a host
func (v *Validator) ShouldBeAbsoluteURI(raw, field string) (*url.URL, error) {
	if err := NotEmpty(raw, field); err != nil {
		return nil, err
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, apperrors.NewValidationError(field, "must be an absolute URI")
	}
	return u, nil
}

// ShouldBeKnownValue fails unless isKnown accepts value
func (v *Validator) ShouldBeKnownValue(value, field string, isKnown func(string) bool) error {
	if err := NotEmpty(value, field); err != nil {
		return err
	}
	if !isKnown(value) {
		return apperrors.NewValidationError(field, fmt.Sprintf("'%s' is not supported", value))
	}
	return nil
}

// ShouldContainOnlyKnownValues fails on the first value isKnown rejects
func (v *Validator) ShouldContainOnlyKnownValues(values []string, field string, isKnown func(string) bool) error {
	for _, value := range values {
		if err := v.ShouldBeKnownValue(value, field, isKnown); err != nil {
			return err
		}
	}
	return nil
}
