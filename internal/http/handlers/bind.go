package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/geocoder89/younginnovators/internal/domain/user"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON decodes and runs the binding rules of out. Failures are answered
// with invalid_request and per-field details.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)

	if err != nil {
		respondBodyError(ctx, err, out)
		return false
	}

	return true
}

// DecodeJSON reads the body without running binding rules, for handlers that
// validate the decoded value themselves. A value of the wrong JSON type is
// already a validation failure and is reported as a malformed_field violation.
func DecodeJSON(ctx *gin.Context, out interface{}) bool {
	if ctx.Request.Body == nil {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"json": "empty_body"})
		return false
	}

	err := json.NewDecoder(ctx.Request.Body).Decode(out)

	if err == nil {
		return true
	}

	var typeErr *json.UnmarshalTypeError

	if errors.As(err, &typeErr) {
		field := typeErrorField(typeErr)
		RespondValidation(ctx, &user.ValidationError{Violations: []user.Violation{{
			Kind:    user.KindMalformedField,
			Field:   field,
			Reason:  "type",
			Message: typeErrorMessage(typeErr),
		}}})
		return false
	}

	respondBodyError(ctx, err, out)
	return false
}

func respondBodyError(ctx *gin.Context, err error, out interface{}) {
	var maxErr *http.MaxBytesError

	if errors.As(err, &maxErr) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body is too large", nil)
		return
	}

	RespondBadRequest(ctx, "Invalid request body", parseBindError(err, out))
}

func parseBindError(err error, out interface{}) interface{} {
	// validator errors (struct bind tags)

	var validatorError validator.ValidationErrors

	if errors.As(err, &validatorError) {
		rootType := baseStructType(out)
		fields := make([]FieldError, 0, len(validatorError))

		for _, fieldError := range validatorError {
			rule := fieldError.Tag()
			param := fieldError.Param()

			fields = append(fields, FieldError{
				Field:   jsonFieldName(rootType, fieldError.StructField()),
				Rule:    rule,
				Param:   param,
				Message: user.FieldMessage(rule, param),
			})
		}
		return gin.H{"fields": fields}
	}

	if errors.Is(err, io.EOF) {
		return gin.H{"json": "empty_body"}
	}

	// in the event of bad json

	var syntaxError *json.SyntaxError

	if errors.As(err, &syntaxError) {
		return gin.H{
			"json": "invalid_json_syntax",
		}
	}

	// in the event of a type mismatch

	var typeErr *json.UnmarshalTypeError

	if errors.As(err, &typeErr) {
		field := typeErrorField(typeErr)

		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{
				{Field: field, Rule: "type", Message: typeErrorMessage(typeErr)},
			},
		}
	}

	// final fallback if the error could not be deciphered
	return gin.H{"reason": err.Error()}
}

// encoding/json already reports the path in JSON key names.
func typeErrorField(err *json.UnmarshalTypeError) string {
	if f := strings.TrimSpace(err.Field); f != "" {
		return f
	}
	return "body"
}

func typeErrorMessage(err *json.UnmarshalTypeError) string {
	if err.Type == nil {
		return "has the wrong type"
	}
	return fmt.Sprintf("must be of type %s", err.Type.String())
}

func baseStructType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

// jsonFieldName maps a top-level struct field to its JSON key. Request bodies
// here are flat, so there is no nested path to walk.
func jsonFieldName(rootType reflect.Type, structField string) string {
	if rootType == nil {
		return structField
	}

	sf, ok := rootType.FieldByName(structField)
	if !ok {
		return structField
	}

	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}

	return name
}
