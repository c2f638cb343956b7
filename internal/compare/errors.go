package compare

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rendis/cog-hubspot/pkg/schema"
)

// UnknownOperatorError reports an operator keyword outside the vocabulary.
type UnknownOperatorError struct {
	Operator string
	Valid    []Operator
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator %q, expected one of: %s", e.Operator, OperatorList())
}

// Operand names which side of a comparison an InvalidOperandError refers to.
type Operand string

const (
	OperandActual   Operand = "actual"
	OperandExpected Operand = "expected"
)

// InvalidOperandError reports an operand the operator cannot work with.
type InvalidOperandError struct {
	Operator Operator
	Operand  Operand
	Value    any
	Reason   string
}

func (e *InvalidOperandError) Error() string {
	return fmt.Sprintf("cannot evaluate %q: %s value %s %s", e.Operator, e.Operand, quoted(e.Value), e.Reason)
}

// quoted renders an operand for error text; strings are quoted so an empty one stays visible.
func quoted(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return display(v)
}

// AsCogError maps evaluator errors onto the cog error taxonomy.
// Errors of other kinds are returned as EXECUTION_ERROR.
func AsCogError(err error) *schema.CogError {
	var unknown *UnknownOperatorError
	if errors.As(err, &unknown) {
		return schema.NewError(schema.ErrCodeUnknownOperator, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"operator": unknown.Operator, "valid_operators": unknown.Valid})
	}
	var invalid *InvalidOperandError
	if errors.As(err, &invalid) {
		return schema.NewError(schema.ErrCodeInvalidOperand, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"operator": invalid.Operator, "operand": invalid.Operand, "value": invalid.Value})
	}
	return schema.NewError(schema.ErrCodeExecution, err.Error()).WithCause(err)
}
