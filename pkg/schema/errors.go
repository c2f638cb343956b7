package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeExecution       = "EXECUTION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeUnknownOperator = "UNKNOWN_OPERATOR"
	ErrCodeInvalidOperand  = "INVALID_OPERAND"
	ErrCodeStepUnavailable = "STEP_UNAVAILABLE"
	ErrCodeUpstream        = "UPSTREAM_ERROR"
	ErrCodeStore           = "STORE_ERROR"
)

// CogError is the structured error type for all cog operations.
type CogError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StepID  string         `json:"step_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *CogError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *CogError) Unwrap() error {
	return e.Cause
}

// NewError creates a new CogError.
func NewError(code, message string) *CogError {
	return &CogError{Code: code, Message: message}
}

// NewErrorf creates a new CogError with a formatted message.
func NewErrorf(code, format string, args ...any) *CogError {
	return &CogError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step ID to the error.
func (e *CogError) WithStep(stepID string) *CogError {
	e.StepID = stepID
	return e
}

// WithCause attaches an underlying cause.
func (e *CogError) WithCause(err error) *CogError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *CogError) WithDetails(details map[string]any) *CogError {
	e.Details = details
	return e
}

// IsCode reports whether err is a CogError carrying the given code.
func IsCode(err error, code string) bool {
	var ce *CogError
	return errors.As(err, &ce) && ce.Code == code
}
