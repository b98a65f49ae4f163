package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// ValidatePayload checks that payload carries the required fields for t.
// It returns a *ValidationError if any rule fails, or nil if the payload is
// valid. Unknown fields are allowed.
func ValidatePayload(t EventType, payload json.RawMessage) error {
	var ve ValidationError

	if !t.IsValid() {
		ve.Add("type", fmt.Sprintf("invalid value %q", t))
		return &ve
	}
	if len(payload) == 0 {
		ve.Add("payload", "is required")
		return &ve
	}
	if !json.Valid(payload) {
		ve.Add("payload", "contains invalid JSON")
		return &ve
	}

	ve.Errors = append(ve.Errors, validateSchema(t, payload)...)

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
