package crm

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rendis/cog-hubspot/internal/dates"
	"github.com/rendis/cog-hubspot/internal/expressions"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

// Workflow is a HubSpot automation workflow.
type Workflow struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Record renders the workflow as a key-value record.
func (w Workflow) Record() map[string]any {
	return map[string]any{
		"id":          w.ID,
		"name":        w.Name,
		"type":        w.Type,
		"description": w.Description,
	}
}

// selectWorkflows keeps the workflows whose id (as a string) or name equals ref.
const selectWorkflows = `filter(workflows, byID ? .id == ref : .name == ref)`

var selector = expressions.NewExprEngine()

// IsWorkflowID reports whether ref names a workflow by numeric ID rather than by name.
func IsWorkflowID(ref string) bool {
	_, ok := dates.Number(ref)
	return ok
}

// SelectWorkflows returns the workflows ref refers to, matching by ID when ref is
// numeric and by exact name otherwise.
func SelectWorkflows(ctx context.Context, workflows []Workflow, ref string) ([]Workflow, error) {
	return selectBy(ctx, workflows, ref, IsWorkflowID(ref))
}

func selectBy(ctx context.Context, workflows []Workflow, ref string, byID bool) ([]Workflow, error) {
	items := make([]any, len(workflows))
	for i, w := range workflows {
		items[i] = map[string]any{"pos": i, "id": strconv.FormatInt(w.ID, 10), "name": w.Name}
	}
	if byID {
		ref = normalizeID(ref)
	}

	out, err := selector.Evaluate(ctx, selectWorkflows, map[string]any{
		"workflows": items,
		"ref":       ref,
		"byID":      byID,
	})
	if err != nil {
		return nil, err
	}

	matched, _ := out.([]any)
	result := make([]Workflow, 0, len(matched))
	for _, m := range matched {
		item, ok := m.(map[string]any)
		if !ok {
			continue
		}
		if pos, ok := item["pos"].(int); ok {
			result = append(result, workflows[pos])
		}
	}
	return result, nil
}

// normalizeID renders numeric refs like "42.0" or " 42" the way IDs are stored.
func normalizeID(ref string) string {
	n, ok := dates.Number(ref)
	if !ok {
		return strings.TrimSpace(ref)
	}
	return strconv.FormatInt(int64(n), 10)
}

// ListWorkflows returns every workflow in the portal.
func (h *HubSpot) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	var out struct {
		Workflows []Workflow `json:"workflows"`
	}
	if err := h.do(ctx, http.MethodGet, "/automation/v3/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out.Workflows, nil
}

// FindWorkflowsByName returns all workflows whose name equals name exactly.
func (h *HubSpot) FindWorkflowsByName(ctx context.Context, name string) ([]Workflow, error) {
	all, err := h.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	return selectBy(ctx, all, name, false)
}

// EnrollContactInWorkflow enrolls the contact with the given email into the workflow.
func (h *HubSpot) EnrollContactInWorkflow(ctx context.Context, workflowID, email string) error {
	err := h.do(ctx, http.MethodPost, pathf("/automation/v2/workflows/%s/enrollments/contacts/%s", workflowID, email), nil, nil)
	if err != nil && StatusCode(err) == http.StatusNotFound {
		return schema.NewErrorf(schema.ErrCodeNotFound, "The Contact %s or the Workflow %s does not exist", email, workflowID).
			WithCause(err).
			WithDetails(map[string]any{"status": http.StatusNotFound})
	}
	return err
}

// CurrentContactWorkflows lists the workflows the contact is currently enrolled in.
func (h *HubSpot) CurrentContactWorkflows(ctx context.Context, vid string) ([]Workflow, error) {
	var out []Workflow
	if err := h.do(ctx, http.MethodGet, pathf("/automation/v2/workflows/enrollments/contacts/%s", vid), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
