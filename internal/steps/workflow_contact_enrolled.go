package steps

import (
	"context"
	"strconv"
	"strings"

	"github.com/rendis/cog-hubspot/internal/crm"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

// ContactEnrolledInWorkflow checks that a contact is currently enrolled in a workflow.
type ContactEnrolledInWorkflow struct{}

func (s *ContactEnrolledInWorkflow) Definition() schema.StepDefinition {
	return schema.StepDefinition{
		StepID:     "ContactEnrolledToWorkflowStep",
		Name:       "Check Current Workflow Enrollment of a HubSpot Contact",
		Type:       schema.StepTypeValidation,
		Expression: "the (?<email>.+) hubspot contact should currently be enrolled in workflow (?<workflow>.+)",
		ExpectedFields: []schema.FieldDefinition{
			{Key: "workflow", Type: schema.FieldTypeAnyScalar, Optionality: schema.Required, Description: "Workflow's Name or ID"},
			{Key: "email", Type: schema.FieldTypeEmail, Optionality: schema.Required, Description: "Contact's email address"},
		},
		ExpectedRecords: []schema.RecordDefinition{workflowRecordDefinition()},
	}
}

func (s *ContactEnrolledInWorkflow) Execute(ctx context.Context, client crm.Client, data map[string]any) (*schema.RunStepResponse, error) {
	email := stringParam(data, "email")
	ref := stringParam(data, "workflow")

	contact, err := client.GetContactByEmail(ctx, email)
	if err != nil {
		return errored("There was an error checking workflow enrollments for contact: %s", []any{errorText(err)}), nil
	}

	workflows, err := client.CurrentContactWorkflows(ctx, contact.ObjectID())
	if err != nil {
		return errored("There was an error checking workflow enrollments for contact: %s", []any{errorText(err)}), nil
	}
	if len(workflows) == 0 {
		return fail("Contact %s is currently not enrolled to any Workflow", []any{email}), nil
	}

	matched, err := crm.SelectWorkflows(ctx, workflows, ref)
	if err != nil {
		return errored("There was an error checking workflow enrollments for contact: %s", []any{errorText(err)}), nil
	}
	if len(matched) == 0 {
		return fail("The Contact %s is not enrolled in the given workflow %s. Contact is enrolled in: %s",
			[]any{email, ref, describeWorkflows(workflows, crm.IsWorkflowID(ref))}), nil
	}

	return pass("The contact %s was verified to be enrolled in workflow %s", []any{email, ref},
		keyValue("workflow", "Workflow", matched[0].Record())), nil
}

// describeWorkflows lists workflows by ID or by name, matching how the caller referred to them.
func describeWorkflows(workflows []crm.Workflow, byID bool) string {
	parts := make([]string, len(workflows))
	for i, w := range workflows {
		if byID {
			parts[i] = strconv.FormatInt(w.ID, 10)
		} else {
			parts[i] = w.Name
		}
	}
	return strings.Join(parts, ", ")
}
