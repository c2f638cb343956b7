package steps

import (
	"context"
	"errors"

	"github.com/rendis/cog-hubspot/internal/compare"
	"github.com/rendis/cog-hubspot/internal/crm"
	"github.com/rendis/cog-hubspot/internal/dates"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

// ContactFieldEquals checks one contact property against an expectation.
// Timestamps are compared in their ISO form.
type ContactFieldEquals struct {
	dates     *dates.Coercer
	evaluator *compare.Evaluator
}

// NewContactFieldEquals builds the step on the given coercer and evaluator.
// Nil dependencies fall back to the package defaults on the system clock.
func NewContactFieldEquals(c *dates.Coercer, e *compare.Evaluator) *ContactFieldEquals {
	return &ContactFieldEquals{dates: c, evaluator: e}
}

func (s *ContactFieldEquals) Definition() schema.StepDefinition {
	return schema.StepDefinition{
		StepID: "ContactFieldEquals",
		Name:   "Check a field on a HubSpot Contact",
		Type:   schema.StepTypeValidation,
		Expression: `the (?<field>[a-zA-Z0-9_-]+) field on hubspot contact (?<email>.+) should ` +
			`(?<operator>not be one of|not be set|not be|not contain|not match|be one of|be set|be less than|be greater than|be|contain|match)` +
			` ?(?<expectation>.+)?`,
		ExpectedFields: []schema.FieldDefinition{
			{Key: "email", Type: schema.FieldTypeEmail, Optionality: schema.Required, Description: "Contact's email address"},
			{Key: "field", Type: schema.FieldTypeString, Optionality: schema.Required, Description: "Field name to check"},
			{Key: "operator", Type: schema.FieldTypeString, Optionality: schema.Optional, Description: "Check Logic (" + compare.OperatorList() + ")"},
			{Key: "expectation", Type: schema.FieldTypeAnyScalar, Optionality: schema.Optional, Description: "Expected field value"},
		},
		ExpectedRecords: []schema.RecordDefinition{{
			ID:   "contact",
			Type: schema.RecordTypeKeyValue,
			Fields: []schema.FieldDefinition{
				{Key: crm.ObjectIDProperty, Type: schema.FieldTypeString, Optionality: schema.Required, Description: "The contact's ID"},
				{Key: "email", Type: schema.FieldTypeEmail, Optionality: schema.Required, Description: "The contact's Email"},
			},
			MayHaveMoreFields: true,
		}},
	}
}

func (s *ContactFieldEquals) Execute(ctx context.Context, client crm.Client, data map[string]any) (*schema.RunStepResponse, error) {
	email := stringParam(data, "email")
	field := stringParam(data, "field")
	operator := stringParam(data, "operator")
	expectation := data["expectation"]

	contact, err := client.GetContactByEmail(ctx, email)
	if err != nil {
		return errored("There was an error checking the contact field: %s", []any{errorText(err)}), nil
	}

	value, ok := contact.Property(field)
	if !ok {
		return errored("Couldn't check field %s on HubSpot contact: field doesn't exist.", []any{field}), nil
	}
	actual := s.coerce(value)
	record := keyValue("contact", "Checked Contact", contact.Properties)

	verdict, err := s.evaluate(operator, actual, expectation, field)
	if err != nil {
		var unknown *compare.UnknownOperatorError
		if errors.As(err, &unknown) {
			return errored("Unknown operator %q. Please provide one of: %s", []any{unknown.Operator, compare.OperatorList()}), nil
		}
		return errored("There was an error checking the contact field: %s", []any{err.Error()}), nil
	}

	if verdict.Matched {
		return pass(verdict.Format, verdict.Args, record), nil
	}
	return fail(verdict.Format, verdict.Args, record), nil
}

func (s *ContactFieldEquals) coerce(value any) any {
	if s.dates == nil {
		return dates.Coerce(value)
	}
	return s.dates.Coerce(value)
}

func (s *ContactFieldEquals) evaluate(op string, actual, expected any, field string) (compare.Verdict, error) {
	if s.evaluator == nil {
		return compare.Evaluate(op, actual, expected, field)
	}
	return s.evaluator.Evaluate(op, actual, expected, field)
}
