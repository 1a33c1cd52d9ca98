package web

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// FieldErrors flattens validator.ValidationErrors into field -> failed rule.
// Returns false when err is not a validation error.
func FieldErrors(err error) (map[string]string, bool) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil, false
	}
	fields := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
	}
	return fields, true
}
