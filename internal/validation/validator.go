package validation

import "github.com/rendis/cog-hubspot/pkg/schema"

// Validator checks step definitions and step input before execution.
// Uses JSON Schema Draft 2020-12.
type Validator interface {
	ValidateManifest(m *schema.CogManifest) error
	ValidateStepData(def *schema.StepDefinition, data map[string]any) error
}
