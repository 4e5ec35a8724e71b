// Package validation validates request structs with validator/v10 and turns
// failures into domain validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/bookwormapp/bookworm/internal/errors"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v               *validator.Validate
	requiredMessage string
}

// Option configures a Validator.
type Option func(*Validator)

// WithRequiredMessage sets the message used when any failing field is missing.
func WithRequiredMessage(msg string) Option {
	return func(v *Validator) { v.requiredMessage = msg }
}

// New creates a validator that reports fields by their JSON names.
func New(opts ...Option) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	out := &Validator{v: v}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// Validate validates a struct and returns a *errors.Error with per-field details.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	missing := false
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = friendlyMessage(e)
		if e.Tag() == "required" {
			missing = true
		}
	}

	if missing && v.requiredMessage != "" {
		return domainerrors.ValidationWithDetails(v.requiredMessage, fieldErrors)
	}

	return domainerrors.ValidationWithDetails(summary(fieldErrors), fieldErrors)
}

// summary reports the first field alphabetically so the message is stable.
func summary(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	first := names[0]
	if len(names) == 1 {
		return first + " " + fields[first]
	}
	return fmt.Sprintf("%s %s (and %d more)", first, fields[first], len(names)-1)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", e.Param())
		}
		return "must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", e.Param())
		}
		return "must not exceed " + e.Param()
	case "url":
		return "must be a valid URL"
	case "datauri":
		return "must be a data URL"
	case "alphanum":
		return "must contain only letters and digits"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	default:
		return "is invalid"
	}
}
