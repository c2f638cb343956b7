package steps

import (
	"github.com/rendis/cog-hubspot/internal/compare"
	"github.com/rendis/cog-hubspot/internal/dates"
)

// Builtins returns every step the cog ships with.
func Builtins(c *dates.Coercer, e *compare.Evaluator) []Step {
	return []Step{
		&CreateOrUpdateContact{},
		&DeleteContact{},
		NewContactFieldEquals(c, e),
		&EnrollContactInWorkflow{},
		&ContactEnrolledInWorkflow{},
	}
}

// RegisterBuiltins registers all built-in steps in the given registry.
func RegisterBuiltins(reg *Registry, c *dates.Coercer, e *compare.Evaluator) error {
	for _, s := range Builtins(c, e) {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}
