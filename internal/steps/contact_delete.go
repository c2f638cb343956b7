package steps

import (
	"context"

	"github.com/rendis/cog-hubspot/internal/crm"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

// DeleteContact removes the contact registered under an email address.
type DeleteContact struct{}

func (s *DeleteContact) Definition() schema.StepDefinition {
	return schema.StepDefinition{
		StepID:     "DeleteContactStep",
		Name:       "Delete a HubSpot contact",
		Type:       schema.StepTypeAction,
		Expression: "delete the (?<email>.+) hubspot contact",
		ExpectedFields: []schema.FieldDefinition{
			{Key: "email", Type: schema.FieldTypeEmail, Optionality: schema.Required, Description: "Contact's email address"},
		},
		ExpectedRecords: []schema.RecordDefinition{{
			ID:                "contact",
			Type:              schema.RecordTypeKeyValue,
			MayHaveMoreFields: true,
		}},
	}
}

func (s *DeleteContact) Execute(ctx context.Context, client crm.Client, data map[string]any) (*schema.RunStepResponse, error) {
	email := stringParam(data, "email")

	res, err := client.DeleteContactByEmail(ctx, email)
	if err != nil {
		return errored("There was an error deleting the HubSpot contact: %s", []any{errorText(err)}), nil
	}
	if !res.Deleted {
		return fail("Unable to delete HubSpot contact: %s", []any{res.Reason}), nil
	}

	var props map[string]any
	if res.Contact != nil {
		props = res.Contact.Properties
	}
	return pass("Successfully deleted HubSpot contact %s", []any{email},
		keyValue("contact", "Deleted Contact", props)), nil
}
