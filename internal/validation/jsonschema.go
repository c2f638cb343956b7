package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rendis/cog-hubspot/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// manifestSchemaJSON is the JSON Schema for CogManifest validation.
// Embedded as a constant to avoid filesystem dependencies.
const manifestSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://cog-hubspot.dev/schemas/manifest.json",
  "type": "object",
  "required": ["name", "label", "version", "step_definitions"],
  "properties": {
    "name": { "type": "string", "pattern": "^[a-z0-9-]+/[a-z0-9-]+$" },
    "label": { "type": "string", "minLength": 1 },
    "version": { "type": "string", "minLength": 1 },
    "homepage": { "type": "string" },
    "auth_fields": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/field" }
    },
    "step_definitions": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/step" }
    }
  },
  "$defs": {
    "step": {
      "type": "object",
      "required": ["step_id", "name", "type", "expression", "expected_fields"],
      "properties": {
        "step_id": { "type": "string", "minLength": 1 },
        "name": { "type": "string", "minLength": 1 },
        "type": { "type": "string", "enum": ["ACTION", "VALIDATION"] },
        "expression": { "type": "string", "minLength": 1 },
        "expected_fields": {
          "type": ["array", "null"],
          "items": { "$ref": "#/$defs/field" }
        },
        "expected_records": {
          "type": ["array", "null"],
          "items": { "$ref": "#/$defs/record" }
        }
      }
    },
    "field": {
      "type": "object",
      "required": ["key", "type", "optionality"],
      "properties": {
        "key": { "type": "string", "minLength": 1 },
        "type": {
          "type": "string",
          "enum": ["STRING", "EMAIL", "NUMERIC", "BOOLEAN", "DATE", "MAP", "ANYSCALAR"]
        },
        "optionality": { "type": "string", "enum": ["REQUIRED", "OPTIONAL"] },
        "description": { "type": "string" }
      }
    },
    "record": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "type": { "type": "string", "enum": ["KEYVALUE"] },
        "guaranteed_fields": {
          "type": ["array", "null"],
          "items": { "$ref": "#/$defs/field" }
        },
        "may_have_more_fields": { "type": "boolean" }
      }
    }
  }
}`

// fieldTypeSchemas maps a declared field type to the JSON Schema fragment its values must satisfy.
var fieldTypeSchemas = map[schema.FieldType]map[string]any{
	schema.FieldTypeString:    {"type": "string"},
	schema.FieldTypeEmail:     {"type": "string", "format": "email"},
	schema.FieldTypeNumeric:   {"type": []string{"number", "string"}, "pattern": `^\s*-?[0-9]+(\.[0-9]+)?\s*$`},
	schema.FieldTypeBoolean:   {"type": "boolean"},
	schema.FieldTypeDate:      {"type": []string{"string", "number"}},
	schema.FieldTypeMap:       {"type": "object"},
	schema.FieldTypeAnyScalar: {"type": []string{"string", "number", "boolean"}},
}

// JSONSchemaValidator implements the Validator interface using JSON Schema Draft 2020-12.
// It is safe for concurrent use.
type JSONSchemaValidator struct {
	manifestSchema *jsonschema.Schema

	// mu guards the cache of compiled step data schemas.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a new JSONSchemaValidator with the manifest schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := newInputCompiler()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(manifestSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal manifest schema: %w", err)
	}
	if err := c.AddResource("https://cog-hubspot.dev/schemas/manifest.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add manifest schema resource: %w", err)
	}

	compiled, err := c.Compile("https://cog-hubspot.dev/schemas/manifest.json")
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}

	return &JSONSchemaValidator{
		manifestSchema: compiled,
		cache:          make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateManifest validates the manifest shape against the manifest JSON Schema,
// then runs the semantic checks JSON Schema cannot express.
func (v *JSONSchemaValidator) ValidateManifest(m *schema.CogManifest) error {
	if m == nil {
		return schema.NewError(schema.ErrCodeValidation, "manifest is nil")
	}

	doc, err := toJSONValue(m)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize manifest").WithCause(err)
	}

	if err := v.manifestSchema.Validate(doc); err != nil {
		return toCogError(err)
	}

	return validateSemantic(m).ToError()
}

// ValidateStepData validates step input against the schema derived from the
// step's expected fields.
func (v *JSONSchemaValidator) ValidateStepData(def *schema.StepDefinition, data map[string]any) error {
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "step definition is nil")
	}
	raw, err := StepDataSchema(def)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to build step schema").WithCause(err)
	}
	if data == nil {
		data = map[string]any{}
	}
	if err := v.ValidateInput(data, raw); err != nil {
		if cogErr, ok := err.(*schema.CogError); ok {
			return cogErr.WithStep(def.StepID)
		}
		return err
	}
	return nil
}

// ValidateInput validates input data against a JSON Schema provided as raw bytes.
// The schema is compiled and cached for subsequent calls with the same schema.
func (v *JSONSchemaValidator) ValidateInput(input map[string]any, inputSchema []byte) error {
	if input == nil {
		return schema.NewError(schema.ErrCodeValidation, "input is nil")
	}
	if len(inputSchema) == 0 {
		return nil // no schema means no validation needed
	}

	compiled, err := v.getOrCompile(inputSchema)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid input schema").WithCause(err)
	}

	// Convert input to JSON-compatible value (json.Number for numbers).
	doc, err := toJSONValue(input)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize input").WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		return toCogError(err)
	}

	return nil
}

// StepDataSchema renders the JSON Schema a step's input must satisfy.
func StepDataSchema(def *schema.StepDefinition) ([]byte, error) {
	properties := make(map[string]any, len(def.ExpectedFields))
	required := make([]string, 0, len(def.ExpectedFields))
	for _, f := range def.ExpectedFields {
		frag, ok := fieldTypeSchemas[f.Type]
		if !ok {
			return nil, fmt.Errorf("field %q has unknown type %q", f.Key, f.Type)
		}
		properties[f.Key] = frag
		if f.Optionality != schema.Optional {
			required = append(required, f.Key)
		}
	}
	return json.Marshal(map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": properties,
		"required":   required,
	})
}

// getOrCompile returns a cached compiled schema or compiles and caches a new one.
func (v *JSONSchemaValidator) getOrCompile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock.
	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// Each dynamic schema gets a unique URL to avoid collisions in the compiler.
	url := fmt.Sprintf("cog://step-schema/%d", len(v.cache))

	c := newInputCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

// newInputCompiler creates a Compiler that asserts formats such as "email".
func newInputCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toCogError converts a jsonschema.ValidationError into a CogError
// listing every violated constraint with its location.
func toCogError(err error) *schema.CogError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}

var _ Validator = (*JSONSchemaValidator)(nil)
