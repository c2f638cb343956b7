package validation

import (
	"fmt"
	"regexp"

	"github.com/rendis/cog-hubspot/pkg/schema"
)

// validateSemantic checks what the manifest schema cannot: unique step IDs,
// compilable step expressions whose capture groups name declared fields,
// and unique field keys per step.
func validateSemantic(m *schema.CogManifest) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	seen := make(map[string]int, len(m.Steps))
	for i := range m.Steps {
		step := &m.Steps[i]
		path := fmt.Sprintf("step_definitions[%d]", i)

		if first, ok := seen[step.StepID]; ok {
			result.AddStepError(step.StepID, path+".step_id", schema.ErrCodeConflict,
				fmt.Sprintf("duplicate step id %q (first declared at step_definitions[%d])", step.StepID, first))
		} else {
			seen[step.StepID] = i
		}

		validateStepSemantic(step, path, result)
	}

	validateFieldKeys("", m.AuthFields, "auth_fields", result)
	return result
}

func validateStepSemantic(step *schema.StepDefinition, path string, result *schema.ValidationResult) {
	fields := validateFieldKeys(step.StepID, step.ExpectedFields, path+".expected_fields", result)

	re, err := regexp.Compile(step.Expression)
	if err != nil {
		result.AddStepError(step.StepID, path+".expression", schema.ErrCodeValidation,
			fmt.Sprintf("expression does not compile: %v", err))
		return
	}

	for _, group := range re.SubexpNames() {
		if group == "" {
			continue
		}
		if !fields[group] {
			result.AddStepError(step.StepID, path+".expression", schema.ErrCodeValidation,
				fmt.Sprintf("capture group %q is not a declared field", group))
		}
	}

	if len(step.ExpectedFields) == 0 {
		result.AddStepWarning(step.StepID, path+".expected_fields", schema.ErrCodeValidation, "step declares no fields")
	}
}

// validateFieldKeys reports duplicate keys and returns the set of declared keys.
// stepID is empty for manifest-level field lists.
func validateFieldKeys(stepID string, fields []schema.FieldDefinition, path string, result *schema.ValidationResult) map[string]bool {
	keys := make(map[string]bool, len(fields))
	for j, f := range fields {
		if keys[f.Key] {
			result.AddStepError(stepID, fmt.Sprintf("%s[%d].key", path, j), schema.ErrCodeConflict,
				fmt.Sprintf("duplicate field key %q", f.Key))
			continue
		}
		keys[f.Key] = true
	}
	return keys
}
