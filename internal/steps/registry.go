package steps

import (
	"sort"
	"sync"

	"github.com/rendis/cog-hubspot/pkg/schema"
)

// Registry is a thread-safe set of steps keyed by step ID.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Step),
	}
}

// Register adds a step to the registry. Returns error on duplicate ID.
func (r *Registry) Register(step Step) error {
	if step == nil {
		return schema.NewError(schema.ErrCodeValidation, "step is nil")
	}
	id := step.Definition().StepID
	if id == "" {
		return schema.NewError(schema.ErrCodeValidation, "step id is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[id]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "step %q already registered", id)
	}

	r.steps[id] = step
	return nil
}

// Get retrieves a step by ID.
func (r *Registry) Get(id string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, ok := r.steps[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeStepUnavailable, "step %q not registered", id).WithStep(id)
	}
	return step, nil
}

// List returns info for all registered steps, sorted by ID.
func (r *Registry) List() []StepInfo {
	defs := r.Definitions()
	infos := make([]StepInfo, 0, len(defs))
	for _, d := range defs {
		infos = append(infos, StepInfo{StepID: d.StepID, Name: d.Name, Type: d.Type})
	}
	return infos
}

// Definitions returns the definitions of all registered steps, sorted by ID.
func (r *Registry) Definitions() []schema.StepDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]schema.StepDefinition, 0, len(r.steps))
	for _, s := range r.steps {
		defs = append(defs, s.Definition())
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].StepID < defs[j].StepID
	})
	return defs
}

// Has checks if a step is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.steps[id]
	return ok
}

// Count returns the number of registered steps.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}
