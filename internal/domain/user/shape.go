package user

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// shape checks read the same `binding` tags gin uses, so the engine can run
// without an HTTP request in front of it.
var shapeValidator = newShapeValidator()

func newShapeValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return sf.Name
		}
		return name
	})
	return v
}

// ValidateShape is the structural stage: required fields, email syntax, enum and range checks.
// Text fields are checked after trimming, so whitespace never satisfies "required".
func ValidateShape(req RegisterRequest) error {
	var violations []Violation

	err := shapeValidator.Struct(req.trimmed())
	if err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("shape validation: %w", err)
		}

		for _, fe := range fieldErrs {
			violations = append(violations, Violation{
				Kind:    KindMalformedField,
				Field:   fe.Field(),
				Reason:  fe.Tag(),
				Message: FieldMessage(fe.Tag(), fe.Param()),
			})
		}
	}

	if len(req.Password) > PasswordMaxBytes {
		violations = append(violations, Violation{
			Kind:    KindMalformedField,
			Field:   "password",
			Reason:  ReasonMaxBytes,
			Message: fmt.Sprintf("must be at most %d bytes", PasswordMaxBytes),
		})
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// FieldMessage renders a validator rule as a short human message.
func FieldMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "len":
		return "must be exactly " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
