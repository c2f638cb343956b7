package steps

import (
	"context"
	"strconv"

	"github.com/rendis/cog-hubspot/internal/crm"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

// EnrollContactInWorkflow enrolls a contact into a workflow given by ID or by name.
type EnrollContactInWorkflow struct{}

func (s *EnrollContactInWorkflow) Definition() schema.StepDefinition {
	return schema.StepDefinition{
		StepID:     "EnrollContactToWorkflowStep",
		Name:       "Enroll a HubSpot Contact into a Workflow",
		Type:       schema.StepTypeAction,
		Expression: "enroll the (?<email>.+) hubspot contact into workflow (?<workflow>.+)",
		ExpectedFields: []schema.FieldDefinition{
			{Key: "workflow", Type: schema.FieldTypeAnyScalar, Optionality: schema.Required, Description: "Workflow's Name or ID"},
			{Key: "email", Type: schema.FieldTypeEmail, Optionality: schema.Required, Description: "Contact's email address"},
		},
		ExpectedRecords: []schema.RecordDefinition{workflowRecordDefinition()},
	}
}

func (s *EnrollContactInWorkflow) Execute(ctx context.Context, client crm.Client, data map[string]any) (*schema.RunStepResponse, error) {
	email := stringParam(data, "email")
	ref := stringParam(data, "workflow")
	workflowID := ref

	var records []schema.StepRecord
	if !crm.IsWorkflowID(ref) {
		found, err := client.FindWorkflowsByName(ctx, ref)
		if err != nil {
			return errored("There was an error enrolling the HubSpot contact to workflow: %s", []any{errorText(err)}), nil
		}
		if len(found) > 1 {
			return errored("Can't enroll %s into %s: found more than one workflow with that name.", []any{email, ref}), nil
		}
		if len(found) == 1 {
			workflowID = strconv.FormatInt(found[0].ID, 10)
			records = append(records, keyValue("workflow", "Workflow", found[0].Record()))
		}
	}

	if err := client.EnrollContactInWorkflow(ctx, workflowID, email); err != nil {
		return errored("There was an error enrolling the HubSpot contact to workflow: %s", []any{errorText(err)}), nil
	}
	return pass("The contact %s was successfully enrolled to workflow %s", []any{email, ref}, records...), nil
}

func workflowRecordDefinition() schema.RecordDefinition {
	return schema.RecordDefinition{
		ID:   "workflow",
		Type: schema.RecordTypeKeyValue,
		Fields: []schema.FieldDefinition{
			{Key: "id", Type: schema.FieldTypeNumeric, Optionality: schema.Required, Description: "The Workflow's ID"},
			{Key: "name", Type: schema.FieldTypeString, Optionality: schema.Required, Description: "The Workflow's Name"},
			{Key: "type", Type: schema.FieldTypeString, Optionality: schema.Optional, Description: "The Workflow's Type"},
			{Key: "description", Type: schema.FieldTypeString, Optionality: schema.Optional, Description: "The Workflow's Description"},
		},
		MayHaveMoreFields: true,
	}
}
