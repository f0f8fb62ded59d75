package domain

import "fmt"

// FieldError describes a single validation violation. Violations are collected,
// not short-circuited, so one result can carry several of these.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Error implements the error interface so a FieldError can be wrapped or logged
// directly.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult is the outcome of validating one descriptor or a batch.
// Registry-level failures (already exists, not found, immutable id) are
// reported through the same shape so the API layer handles all outcomes
// uniformly.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Invalid builds a failed result from the given errors.
func Invalid(errs ...FieldError) ValidationResult {
	return ValidationResult{Valid: false, Errors: errs}
}

// Valid builds a passing result.
func Valid() ValidationResult {
	return ValidationResult{Valid: true}
}

// Merge appends the other result's errors, clearing Valid if any were present.
func (r *ValidationResult) Merge(other ValidationResult) {
	r.Errors = append(r.Errors, other.Errors...)
	if len(r.Errors) > 0 {
		r.Valid = false
	}
}
