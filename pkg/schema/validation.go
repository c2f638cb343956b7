package schema

import "fmt"

// ValidationSeverity indicates whether an issue is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is a single manifest problem. StepID is set when the
// issue belongs to one step definition.
type ValidationIssue struct {
	Path     string             `json:"path"`
	StepID   string             `json:"step_id,omitempty"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

// ValidationResult aggregates the issues found while checking a manifest.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid returns true if there are no errors (warnings are acceptable).
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends an error-severity issue.
func (r *ValidationResult) AddError(path, code, message string) {
	r.AddStepError("", path, code, message)
}

// AddStepError appends an error-severity issue attributed to a step.
func (r *ValidationResult) AddStepError(stepID, path, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{
		Path: path, StepID: stepID, Code: code, Message: message, Severity: SeverityError,
	})
}

// AddWarning appends a warning-severity issue.
func (r *ValidationResult) AddWarning(path, code, message string) {
	r.AddStepWarning("", path, code, message)
}

// AddStepWarning appends a warning-severity issue attributed to a step.
func (r *ValidationResult) AddStepWarning(stepID, path, code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{
		Path: path, StepID: stepID, Code: code, Message: message, Severity: SeverityWarning,
	})
}

// FailingSteps returns the distinct step IDs with at least one error, in order of appearance.
func (r *ValidationResult) FailingSteps() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, e := range r.Errors {
		if e.StepID == "" || seen[e.StepID] {
			continue
		}
		seen[e.StepID] = true
		ids = append(ids, e.StepID)
	}
	return ids
}

// ToError converts the result to a CogError if invalid, nil if valid.
// The error carries the shared code of all errors (VALIDATION_ERROR when they
// differ) and is attributed to a step when exactly one step failed.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	first := r.Errors[0]
	msg := first.Message
	code := first.Code
	for _, e := range r.Errors[1:] {
		if e.Code != code {
			code = ErrCodeValidation
			break
		}
	}
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("validation failed with %d errors, first: %s", len(r.Errors), first.Message)
	}

	err := NewError(code, msg).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
	if steps := r.FailingSteps(); len(steps) == 1 {
		err.WithStep(steps[0])
	}
	return err
}
