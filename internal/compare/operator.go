// Package compare evaluates a field value against an expectation under one of a
// closed set of operators and renders the outcome as a human-readable verdict.
package compare

import "strings"

// Operator selects the comparison semantics of a field check.
type Operator string

const (
	OpBe            Operator = "be"
	OpNotBe         Operator = "not be"
	OpContain       Operator = "contain"
	OpNotContain    Operator = "not contain"
	OpBeGreaterThan Operator = "be greater than"
	OpBeLessThan    Operator = "be less than"
	OpBeSet         Operator = "be set"
	OpNotBeSet      Operator = "not be set"
	OpBeOneOf       Operator = "be one of"
	OpNotBeOneOf    Operator = "not be one of"
	OpMatch         Operator = "match"
	OpNotMatch      Operator = "not match"
)

// DefaultOperator applies when a step omits the operator.
const DefaultOperator = OpBe

var operators = []Operator{
	OpBe,
	OpNotBe,
	OpContain,
	OpNotContain,
	OpBeGreaterThan,
	OpBeLessThan,
	OpBeSet,
	OpNotBeSet,
	OpBeOneOf,
	OpNotBeOneOf,
	OpMatch,
	OpNotMatch,
}

// Operators returns the full operator vocabulary in declaration order.
func Operators() []Operator {
	out := make([]Operator, len(operators))
	copy(out, operators)
	return out
}

// OperatorList renders the vocabulary as a comma-separated list.
func OperatorList() string {
	names := make([]string, len(operators))
	for i, op := range operators {
		names[i] = string(op)
	}
	return strings.Join(names, ", ")
}

// ParseOperator resolves a keyword to an Operator. The match is case-sensitive;
// an empty keyword selects DefaultOperator.
func ParseOperator(s string) (Operator, error) {
	if s == "" {
		return DefaultOperator, nil
	}
	for _, op := range operators {
		if string(op) == s {
			return op, nil
		}
	}
	return "", &UnknownOperatorError{Operator: s, Valid: Operators()}
}

// NeedsOperand reports whether op compares against an expected value.
func (op Operator) NeedsOperand() bool {
	return op != OpBeSet && op != OpNotBeSet
}

// Negated reports whether op is the negation of another operator.
func (op Operator) Negated() bool {
	return strings.HasPrefix(string(op), "not ")
}

// positive returns the non-negated form of op.
func (op Operator) positive() Operator {
	return Operator(strings.TrimPrefix(string(op), "not "))
}

// ordered reports whether op compares magnitudes.
func (op Operator) ordered() bool {
	p := op.positive()
	return p == OpBeGreaterThan || p == OpBeLessThan
}
