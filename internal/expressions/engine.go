package expressions

import "context"

// Engine evaluates expressions against a data map.
// Three implementations: CEL (operand ordering), GoJQ (payload reshaping), Expr (list selection).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
