package validation

import (
	"sync"
	"testing"

	"github.com/rendis/cog-hubspot/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *JSONSchemaValidator {
	t.Helper()
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	return v
}

func fieldEqualsDef() *schema.StepDefinition {
	return &schema.StepDefinition{
		StepID:     "ContactFieldEquals",
		Name:       "Check a field on a HubSpot Contact",
		Type:       schema.StepTypeValidation,
		Expression: `the (?<field>[a-zA-Z0-9_-]+) field on hubspot contact (?<email>.+) should (?<operator>.+?) ?(?<expectation>.+)?`,
		ExpectedFields: []schema.FieldDefinition{
			{Key: "email", Type: schema.FieldTypeEmail, Optionality: schema.Required},
			{Key: "field", Type: schema.FieldTypeString, Optionality: schema.Required},
			{Key: "operator", Type: schema.FieldTypeString, Optionality: schema.Optional},
			{Key: "expectation", Type: schema.FieldTypeAnyScalar, Optionality: schema.Optional},
		},
	}
}

func validManifest() *schema.CogManifest {
	return &schema.CogManifest{
		Name:    "automatoninc/hubspot",
		Label:   "HubSpot",
		Version: "1.0.0",
		AuthFields: []schema.FieldDefinition{
			{Key: "apiKey", Type: schema.FieldTypeString, Optionality: schema.Optional},
		},
		Steps: []schema.StepDefinition{*fieldEqualsDef()},
	}
}

func asCogError(t *testing.T, err error) *schema.CogError {
	t.Helper()
	require.Error(t, err)
	cogErr, ok := err.(*schema.CogError)
	require.True(t, ok, "expected *schema.CogError, got %T", err)
	return cogErr
}

func TestNewJSONSchemaValidator(t *testing.T) {
	v := newValidator(t)
	assert.NotNil(t, v.manifestSchema)
}

// --- ValidateManifest ---

func TestValidateManifest_Nil(t *testing.T) {
	cogErr := asCogError(t, newValidator(t).ValidateManifest(nil))
	assert.Equal(t, schema.ErrCodeValidation, cogErr.Code)
	assert.Contains(t, cogErr.Message, "nil")
}

func TestValidateManifest_Valid(t *testing.T) {
	assert.NoError(t, newValidator(t).ValidateManifest(validManifest()))
}

func TestValidateManifest_NoSteps(t *testing.T) {
	m := validManifest()
	m.Steps = nil
	cogErr := asCogError(t, newValidator(t).ValidateManifest(m))
	assert.Equal(t, schema.ErrCodeValidation, cogErr.Code)
}

func TestValidateManifest_BadName(t *testing.T) {
	m := validManifest()
	m.Name = "HubSpot Cog"
	cogErr := asCogError(t, newValidator(t).ValidateManifest(m))
	assert.Contains(t, cogErr.Details, "violations")
}

func TestValidateManifest_InvalidStepType(t *testing.T) {
	m := validManifest()
	m.Steps[0].Type = "QUERY"
	asCogError(t, newValidator(t).ValidateManifest(m))
}

func TestValidateManifest_InvalidFieldType(t *testing.T) {
	m := validManifest()
	m.Steps[0].ExpectedFields[0].Type = "URL"
	asCogError(t, newValidator(t).ValidateManifest(m))
}

func TestValidateManifest_DuplicateStepIDs(t *testing.T) {
	m := validManifest()
	m.Steps = append(m.Steps, *fieldEqualsDef())
	cogErr := asCogError(t, newValidator(t).ValidateManifest(m))
	assert.Contains(t, cogErr.Message, "duplicate step id")
}

func TestValidateManifest_BadExpression(t *testing.T) {
	m := validManifest()
	m.Steps[0].Expression = "delete the (?<email>.+ hubspot contact"
	cogErr := asCogError(t, newValidator(t).ValidateManifest(m))
	assert.Contains(t, cogErr.Message, "does not compile")
}

func TestValidateManifest_UndeclaredCaptureGroup(t *testing.T) {
	m := validManifest()
	m.Steps[0].Expression = "delete the (?<mail>.+) hubspot contact"
	cogErr := asCogError(t, newValidator(t).ValidateManifest(m))
	assert.Contains(t, cogErr.Message, `"mail"`)
}

func TestValidateManifest_DuplicateFieldKey(t *testing.T) {
	m := validManifest()
	m.Steps[0].ExpectedFields = append(m.Steps[0].ExpectedFields,
		schema.FieldDefinition{Key: "email", Type: schema.FieldTypeString, Optionality: schema.Optional})
	cogErr := asCogError(t, newValidator(t).ValidateManifest(m))
	assert.Equal(t, schema.ErrCodeConflict, cogErr.Code)
	assert.Equal(t, m.Steps[0].StepID, cogErr.StepID)
}

func TestValidateManifest_Concurrent(t *testing.T) {
	v := newValidator(t)

	var wg sync.WaitGroup
	errs := make([]error, 32)
	for i := range 32 {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			errs[idx] = v.ValidateManifest(validManifest())
		}(i)
	}
	wg.Wait()

	for i, e := range errs {
		assert.NoError(t, e, "goroutine %d should not error", i)
	}
}

// --- StepDataSchema / ValidateStepData ---

func TestStepDataSchema_UnknownType(t *testing.T) {
	def := fieldEqualsDef()
	def.ExpectedFields[1].Type = "URL"
	_, err := StepDataSchema(def)
	assert.Error(t, err)
}

func TestValidateStepData(t *testing.T) {
	v := newValidator(t)
	def := fieldEqualsDef()

	tests := []struct {
		name    string
		data    map[string]any
		wantErr bool
	}{
		{"all fields", map[string]any{"email": "a@b.com", "field": "lastname", "operator": "be", "expectation": "doe"}, false},
		{"optional omitted", map[string]any{"email": "a@b.com", "field": "lastname"}, false},
		{"numeric expectation", map[string]any{"email": "a@b.com", "field": "age", "expectation": 25}, false},
		{"bool expectation", map[string]any{"email": "a@b.com", "field": "opted_in", "expectation": true}, false},
		{"extra fields allowed", map[string]any{"email": "a@b.com", "field": "x", "note": "y"}, false},
		{"missing email", map[string]any{"field": "lastname"}, true},
		{"bad email", map[string]any{"email": "not-an-email", "field": "lastname"}, true},
		{"object expectation", map[string]any{"email": "a@b.com", "field": "x", "expectation": map[string]any{"a": 1}}, true},
		{"nil data", nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateStepData(def, tc.data)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			cogErr := asCogError(t, err)
			assert.Equal(t, schema.ErrCodeValidation, cogErr.Code)
			assert.Equal(t, def.StepID, cogErr.StepID)
		})
	}
}

func TestValidateStepData_NumericAndMap(t *testing.T) {
	v := newValidator(t)
	def := &schema.StepDefinition{
		StepID: "Custom",
		ExpectedFields: []schema.FieldDefinition{
			{Key: "count", Type: schema.FieldTypeNumeric, Optionality: schema.Optional},
			{Key: "contact", Type: schema.FieldTypeMap, Optionality: schema.Optional},
		},
	}

	assert.NoError(t, v.ValidateStepData(def, map[string]any{"count": 3}))
	assert.NoError(t, v.ValidateStepData(def, map[string]any{"count": "3.5"}))
	assert.Error(t, v.ValidateStepData(def, map[string]any{"count": "three"}))
	assert.NoError(t, v.ValidateStepData(def, map[string]any{"contact": map[string]any{"email": "a@b.com"}}))
	assert.Error(t, v.ValidateStepData(def, map[string]any{"contact": "a@b.com"}))
}

func TestValidateStepData_NilDefinition(t *testing.T) {
	cogErr := asCogError(t, newValidator(t).ValidateStepData(nil, map[string]any{}))
	assert.Contains(t, cogErr.Message, "nil")
}

// --- ValidateInput ---

func TestValidateInput_EmptySchema(t *testing.T) {
	v := newValidator(t)
	assert.NoError(t, v.ValidateInput(map[string]any{"foo": "bar"}, nil), "nil schema means no validation")
	assert.NoError(t, v.ValidateInput(map[string]any{"foo": "bar"}, []byte{}), "empty schema means no validation")
}

func TestValidateInput_InvalidSchema(t *testing.T) {
	cogErr := asCogError(t, newValidator(t).ValidateInput(map[string]any{"foo": "bar"}, []byte(`{not json`)))
	assert.Equal(t, schema.ErrCodeValidation, cogErr.Code)
	assert.Contains(t, cogErr.Message, "invalid input schema")
}

func TestValidateInput_MultipleErrors(t *testing.T) {
	inputSchema := []byte(`{
		"type": "object",
		"required": ["email", "field"],
		"properties": {
			"email": {"type": "string"},
			"field": {"type": "string"}
		}
	}`)
	cogErr := asCogError(t, newValidator(t).ValidateInput(map[string]any{}, inputSchema))
	violations, ok := cogErr.Details["violations"].([]string)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(violations), 1)
}

// --- Schema caching ---

func TestValidateStepData_SchemaCaching(t *testing.T) {
	v := newValidator(t)
	def := fieldEqualsDef()
	data := map[string]any{"email": "a@b.com", "field": "lastname"}

	require.NoError(t, v.ValidateStepData(def, data))
	require.NoError(t, v.ValidateStepData(def, data))

	v.mu.RLock()
	defer v.mu.RUnlock()
	assert.Len(t, v.cache, 1, "same definition should compile once")
}

func TestValidateStepData_Concurrent(t *testing.T) {
	v := newValidator(t)
	defA := fieldEqualsDef()
	defB := &schema.StepDefinition{
		StepID:         "DeleteContact",
		ExpectedFields: []schema.FieldDefinition{{Key: "email", Type: schema.FieldTypeEmail, Optionality: schema.Required}},
	}

	var wg sync.WaitGroup
	errs := make([]error, 100)
	for i := range 100 {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if idx%2 == 0 {
				errs[idx] = v.ValidateStepData(defA, map[string]any{"email": "a@b.com", "field": "x"})
			} else {
				errs[idx] = v.ValidateStepData(defB, map[string]any{"email": "a@b.com"})
			}
		}(i)
	}
	wg.Wait()

	for i, e := range errs {
		assert.NoError(t, e, "goroutine %d should not error", i)
	}
}
