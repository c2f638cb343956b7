package steps

import (
	"context"

	"github.com/rendis/cog-hubspot/internal/crm"
	"github.com/rendis/cog-hubspot/internal/dates"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

// CreateOrUpdateContact upserts a contact from a map of property values.
// Date strings are sent as epoch milliseconds, the form HubSpot stores dates in.
type CreateOrUpdateContact struct{}

func (s *CreateOrUpdateContact) Definition() schema.StepDefinition {
	return schema.StepDefinition{
		StepID:     "CreateOrUpdateContactStep",
		Name:       "Create or update a HubSpot contact",
		Type:       schema.StepTypeAction,
		Expression: "create or update a hubspot contact",
		ExpectedFields: []schema.FieldDefinition{
			{Key: "contact", Type: schema.FieldTypeMap, Optionality: schema.Required, Description: "A map of field names to field values"},
		},
		ExpectedRecords: []schema.RecordDefinition{{
			ID:   "contact",
			Type: schema.RecordTypeKeyValue,
			Fields: []schema.FieldDefinition{
				{Key: "id", Type: schema.FieldTypeString, Optionality: schema.Required, Description: "The contact's ID"},
			},
			MayHaveMoreFields: true,
		}},
	}
}

func (s *CreateOrUpdateContact) Execute(ctx context.Context, client crm.Client, data map[string]any) (*schema.RunStepResponse, error) {
	contact, _ := data["contact"].(map[string]any)
	email := stringParam(contact, "email")
	if email == "" {
		return errored("A contact email is required to create or update a HubSpot contact", nil), nil
	}

	properties := make(map[string]any, len(contact))
	for k, v := range contact {
		properties[k] = epochIfDate(v)
	}

	res, err := client.CreateOrUpdateContact(ctx, email, properties)
	if err != nil {
		return errored("There was an error creating or updating the contact in HubSpot: %s", []any{errorText(err)}), nil
	}
	if res == nil {
		return fail("Unable to create or update HubSpot contact", nil), nil
	}

	kv := make(map[string]any, len(contact)+1)
	for k, v := range contact {
		kv[k] = v
	}
	kv["id"] = res.VID
	return pass("Successfully created or updated HubSpot contact %s", []any{email},
		keyValue("contact", "Created Contact", kv)), nil
}

// epochIfDate converts ISO-8601 strings to epoch milliseconds and leaves everything else alone.
func epochIfDate(v any) any {
	str, ok := v.(string)
	if !ok {
		return v
	}
	t, err := dates.ParseDate(str)
	if err != nil {
		return v
	}
	return dates.ToEpoch(t)
}
