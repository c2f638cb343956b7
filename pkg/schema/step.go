package schema

import "fmt"

// CogManifest describes the cog to the host that loads it.
type CogManifest struct {
	Name       string            `json:"name"`
	Label      string            `json:"label"`
	Version    string            `json:"version"`
	Homepage   string            `json:"homepage,omitempty"`
	AuthFields []FieldDefinition `json:"auth_fields"`
	Steps      []StepDefinition  `json:"step_definitions"`
}

// StepType distinguishes steps that change remote state from steps that check it.
type StepType string

const (
	StepTypeAction     StepType = "ACTION"
	StepTypeValidation StepType = "VALIDATION"
)

// FieldType is the declared type of a step input or record field.
type FieldType string

const (
	FieldTypeString    FieldType = "STRING"
	FieldTypeEmail     FieldType = "EMAIL"
	FieldTypeNumeric   FieldType = "NUMERIC"
	FieldTypeBoolean   FieldType = "BOOLEAN"
	FieldTypeDate      FieldType = "DATE"
	FieldTypeMap       FieldType = "MAP"
	FieldTypeAnyScalar FieldType = "ANYSCALAR"
)

// Optionality marks a field as required or optional.
type Optionality string

const (
	Required Optionality = "REQUIRED"
	Optional Optionality = "OPTIONAL"
)

// FieldDefinition describes one input field of a step (or a column of a record).
type FieldDefinition struct {
	Key         string      `json:"key"`
	Type        FieldType   `json:"type"`
	Optionality Optionality `json:"optionality"`
	Description string      `json:"description,omitempty"`
}

// RecordType is the presentation shape of a step record.
type RecordType string

const RecordTypeKeyValue RecordType = "KEYVALUE"

// RecordDefinition declares a record a step may emit.
type RecordDefinition struct {
	ID                string            `json:"id"`
	Type              RecordType        `json:"type"`
	Fields            []FieldDefinition `json:"guaranteed_fields,omitempty"`
	MayHaveMoreFields bool              `json:"may_have_more_fields"`
}

// StepDefinition is the declarative description of a step.
type StepDefinition struct {
	StepID          string             `json:"step_id"`
	Name            string             `json:"name"`
	Type            StepType           `json:"type"`
	Expression      string             `json:"expression"`
	ExpectedFields  []FieldDefinition  `json:"expected_fields"`
	ExpectedRecords []RecordDefinition `json:"expected_records,omitempty"`
}

// Outcome is the result class of a step run.
type Outcome string

const (
	OutcomePassed Outcome = "PASSED"
	OutcomeFailed Outcome = "FAILED"
	OutcomeError  Outcome = "ERROR"
)

// StepRecord is structured output attached to a step response.
type StepRecord struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	KeyValue map[string]any `json:"key_value,omitempty"`
}

// RunStepResponse is what a step returns to the host.
// MessageFormat is printf-style and MessageArgs fill it.
type RunStepResponse struct {
	Outcome       Outcome      `json:"outcome"`
	MessageFormat string       `json:"message_format"`
	MessageArgs   []any        `json:"message_args,omitempty"`
	Records       []StepRecord `json:"records,omitempty"`
}

// Message renders the response message with its arguments substituted.
func (r *RunStepResponse) Message() string {
	if len(r.MessageArgs) == 0 {
		return r.MessageFormat
	}
	return fmt.Sprintf(r.MessageFormat, r.MessageArgs...)
}
