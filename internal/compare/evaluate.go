package compare

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rendis/cog-hubspot/internal/dates"
	"github.com/rendis/cog-hubspot/internal/expressions"
)

// Verdict is the result of one evaluation. Format and Args are the
// unrendered template and its arguments (field, expected, actual).
type Verdict struct {
	Matched bool
	Message string
	Format  string
	Args    []any
}

// Ordering predicates evaluated through CEL.
const (
	greaterThanExpr = "actual > expected"
	lessThanExpr    = "actual < expected"
)

// oneOfSeparator splits the expectation of "be one of".
const oneOfSeparator = ","

// Evaluator performs typed comparisons. It holds no per-call state and is
// safe for concurrent use.
type Evaluator struct {
	messages MessageCatalog
	cel      *expressions.CELEngine
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMessages replaces the message catalog.
func WithMessages(c MessageCatalog) Option {
	return func(e *Evaluator) {
		if c != nil {
			e.messages = c
		}
	}
}

// WithCELEngine shares an existing CEL engine (and its program cache).
func WithCELEngine(c *expressions.CELEngine) Option {
	return func(e *Evaluator) {
		if c != nil {
			e.cel = c
		}
	}
}

// New creates an Evaluator with the default message catalog.
func New(opts ...Option) (*Evaluator, error) {
	e := &Evaluator{messages: DefaultMessages()}
	for _, o := range opts {
		o(e)
	}
	if e.cel == nil {
		cel, err := expressions.NewCELEngine()
		if err != nil {
			return nil, err
		}
		e.cel = cel
	}
	return e, nil
}

var defaultEvaluator = sync.OnceValues(func() (*Evaluator, error) { return New() })

// Evaluate runs op against actual and expected using the default Evaluator.
func Evaluate(op string, actual, expected any, field string) (Verdict, error) {
	e, err := defaultEvaluator()
	if err != nil {
		return Verdict{}, err
	}
	return e.Evaluate(op, actual, expected, field)
}

// Evaluate compares actual against expected under op and renders the verdict for field.
// It returns *UnknownOperatorError for keywords outside the vocabulary and
// *InvalidOperandError when an operand does not suit the operator.
// A nil actual fails every operator except "be set" and "not be set".
// An empty actual fails the ordering operators as a missing one does.
func (e *Evaluator) Evaluate(op string, actual, expected any, field string) (Verdict, error) {
	operator, err := ParseOperator(op)
	if err != nil {
		return Verdict{}, err
	}

	if err := checkExpected(operator, expected); err != nil {
		return Verdict{}, err
	}

	var matched bool
	switch {
	case !operator.NeedsOperand():
		matched = isSet(actual)
		if operator.Negated() {
			matched = !matched
		}
	case actual == nil, operator.ordered() && !isSet(actual):
		matched = false
	default:
		matched, err = e.apply(operator.positive(), actual, expected)
		if err != nil {
			return Verdict{}, err
		}
		if operator.Negated() {
			matched = !matched
		}
	}

	return e.render(operator, matched, field, expected, actual), nil
}

// checkExpected validates the right-hand operand before the record is consulted,
// so malformed expectations are reported even when the field is missing.
func checkExpected(op Operator, expected any) error {
	if !op.NeedsOperand() {
		return nil
	}
	if expected == nil {
		return &InvalidOperandError{Operator: op, Operand: OperandExpected, Value: nil, Reason: "is required"}
	}
	switch op.positive() {
	case OpBeGreaterThan, OpBeLessThan:
		if _, ok := dates.Number(expected); !ok {
			return &InvalidOperandError{Operator: op, Operand: OperandExpected, Value: expected, Reason: "is not numeric"}
		}
	case OpMatch:
		if _, err := regexp.Compile(toString(expected)); err != nil {
			return &InvalidOperandError{Operator: op, Operand: OperandExpected, Value: expected, Reason: "is not a valid pattern: " + err.Error()}
		}
	}
	return nil
}

func (e *Evaluator) apply(op Operator, actual, expected any) (bool, error) {
	switch op {
	case OpBe:
		return equal(actual, expected), nil
	case OpContain:
		return strings.Contains(toString(actual), toString(expected)), nil
	case OpBeGreaterThan:
		return e.order(op, greaterThanExpr, actual, expected)
	case OpBeLessThan:
		return e.order(op, lessThanExpr, actual, expected)
	case OpBeOneOf:
		for _, item := range listItems(expected) {
			if equal(actual, item) {
				return true, nil
			}
		}
		return false, nil
	case OpMatch:
		re := regexp.MustCompile(toString(expected))
		return re.MatchString(toString(actual)), nil
	default:
		return false, &UnknownOperatorError{Operator: string(op), Valid: Operators()}
	}
}

func (e *Evaluator) order(op Operator, expression string, actual, expected any) (bool, error) {
	a, ok := dates.Number(actual)
	if !ok {
		return false, &InvalidOperandError{Operator: op, Operand: OperandActual, Value: actual, Reason: "is not numeric"}
	}
	b, _ := dates.Number(expected)
	return e.cel.EvaluateBool(context.Background(), expression, map[string]any{
		"actual":   a,
		"expected": b,
	})
}

func (e *Evaluator) render(op Operator, matched bool, field string, expected, actual any) Verdict {
	tpl := e.messages.lookup(op)
	format := tpl.Failure
	if matched {
		format = tpl.Success
	}
	args := []any{field, display(expected), display(actual)}
	return Verdict{
		Matched: matched,
		Message: fmt.Sprintf(format, args...),
		Format:  format,
		Args:    args,
	}
}

// equal compares numerically when both sides are numbers, textually otherwise.
func equal(actual, expected any) bool {
	a, aNum := dates.Number(actual)
	b, bNum := dates.Number(expected)
	if aNum && bNum {
		return a == b
	}
	return toString(actual) == toString(expected)
}

func isSet(v any) bool {
	if v == nil {
		return false
	}
	return toString(v) != ""
}

func listItems(expected any) []any {
	if list, ok := expected.([]any); ok {
		return list
	}
	parts := strings.Split(toString(expected), oneOfSeparator)
	items := make([]any, len(parts))
	for i, p := range parts {
		items[i] = strings.TrimSpace(p)
	}
	return items
}

func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		if b, err := json.Marshal(val); err == nil {
			return string(b)
		}
		return fmt.Sprint(val)
	}
}

// display renders a value for messages; a missing value reads as null.
func display(v any) string {
	if v == nil {
		return "null"
	}
	return toString(v)
}
