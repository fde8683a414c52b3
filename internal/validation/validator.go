// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package validation

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError describes one failed field constraint.
type ValidationError struct {
	field   string
	path    string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the name of the failing field as it appears in
// configuration (koanf or json tag), or the Go field name.
func (e *ValidationError) Field() string { return e.field }

// Path returns the dotted path from the validated root, for example
// "audit.sinks[0].name".
func (e *ValidationError) Path() string { return e.path }

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string { return e.tag }

// Param returns the tag parameter, e.g. "100" for "max=100".
func (e *ValidationError) Param() string { return e.param }

// Value returns the rejected value.
func (e *ValidationError) Value() interface{} { return e.value }

func (e *ValidationError) Error() string { return e.message }

// StructValidationError collects every field error of one struct.
type StructValidationError struct {
	errors []ValidationError
}

// Errors returns the individual field errors.
func (ve *StructValidationError) Errors() []ValidationError {
	return ve.errors
}

func (ve *StructValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve.errors))
	for i := range ve.errors {
		messages[i] = ve.errors[i].message
	}
	return strings.Join(messages, "; ")
}

// Fields maps each failing path to its message.
func (ve *StructValidationError) Fields() map[string]string {
	out := make(map[string]string, len(ve.errors))
	for _, err := range ve.errors {
		out[err.path] = err.message
	}
	return out
}

// GetValidator returns the shared validator, building it on first use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(configFieldName)

		_ = validate.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
			_, err := regexp.Compile(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("listenaddr", func(fl validator.FieldLevel) bool {
			_, port, err := net.SplitHostPort(fl.Field().String())
			return err == nil && port != ""
		})
	})
	return validate
}

// configFieldName reports fields by their koanf key, then their json key,
// so messages match what operators write in YAML or send over the wire.
func configFieldName(f reflect.StructField) string {
	for _, key := range []string{"koanf", "json"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return f.Name
}

// ValidateStruct validates s. The non-nil result is always a
// *StructValidationError.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &StructValidationError{errors: []ValidationError{{
			field:   "unknown",
			path:    "unknown",
			tag:     "unknown",
			message: err.Error(),
		}}}
	}

	out := make([]ValidationError, len(fieldErrs))
	for i, fe := range fieldErrs {
		path := trimRoot(fe.Namespace())
		out[i] = ValidationError{
			field:   fe.Field(),
			path:    path,
			tag:     fe.Tag(),
			param:   fe.Param(),
			value:   fe.Value(),
			message: describe(path, fe),
		}
	}
	return &StructValidationError{errors: out}
}

// trimRoot drops the root type name from a validator namespace.
func trimRoot(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// describe renders one field error for humans.
func describe(path string, fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return path + " is required"
	case "regexp":
		return path + " must be a valid regular expression"
	case "listenaddr":
		return path + " must be a host:port address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", path, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", path, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", path, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", path, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", path, param)
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be %s %s characters", path, bound, param)
		}
		return fmt.Sprintf("%s must be %s %s", path, bound, param)
	default:
		return fmt.Sprintf("%s failed %s validation", path, fe.Tag())
	}
}
