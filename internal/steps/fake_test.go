package steps

import (
	"context"

	"github.com/rendis/cog-hubspot/internal/crm"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

// fakeClient is a crm.Client whose behavior is set per test. Unset hooks
// report the call as unexpected.
type fakeClient struct {
	getContact   func(email string) (*crm.Contact, error)
	upsert       func(email string, props map[string]any) (*crm.UpsertResult, error)
	deleteByMail func(email string) (*crm.DeleteResult, error)
	workflows    []crm.Workflow
	enroll       func(workflowID, email string) error
	current      func(vid string) ([]crm.Workflow, error)

	enrolledWith []string
}

var errUnexpected = schema.NewError(schema.ErrCodeExecution, "unexpected call")

func (f *fakeClient) GetContactByEmail(_ context.Context, email string) (*crm.Contact, error) {
	if f.getContact == nil {
		return nil, errUnexpected
	}
	return f.getContact(email)
}

func (f *fakeClient) CreateOrUpdateContact(_ context.Context, email string, props map[string]any) (*crm.UpsertResult, error) {
	if f.upsert == nil {
		return nil, errUnexpected
	}
	return f.upsert(email, props)
}

func (f *fakeClient) DeleteContactByEmail(_ context.Context, email string) (*crm.DeleteResult, error) {
	if f.deleteByMail == nil {
		return nil, errUnexpected
	}
	return f.deleteByMail(email)
}

func (f *fakeClient) ListWorkflows(context.Context) ([]crm.Workflow, error) {
	return f.workflows, nil
}

func (f *fakeClient) FindWorkflowsByName(_ context.Context, name string) ([]crm.Workflow, error) {
	var out []crm.Workflow
	for _, w := range f.workflows {
		if w.Name == name {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeClient) EnrollContactInWorkflow(_ context.Context, workflowID, email string) error {
	f.enrolledWith = append(f.enrolledWith, workflowID)
	if f.enroll == nil {
		return nil
	}
	return f.enroll(workflowID, email)
}

func (f *fakeClient) CurrentContactWorkflows(_ context.Context, vid string) ([]crm.Workflow, error) {
	if f.current == nil {
		return nil, errUnexpected
	}
	return f.current(vid)
}

var _ crm.Client = (*fakeClient)(nil)

func contactWith(props map[string]any) func(string) (*crm.Contact, error) {
	return func(string) (*crm.Contact, error) {
		return &crm.Contact{VID: 3234574, Properties: props}, nil
	}
}

func deletedResult() *crm.DeleteResult {
	return &crm.DeleteResult{
		Contact: &crm.Contact{VID: 1, Properties: map[string]any{"email": "a@b.com"}},
		Deleted: true,
		Reason:  "OK",
	}
}
