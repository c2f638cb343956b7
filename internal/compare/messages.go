package compare

// Templates are the printf-style messages rendered for one operator.
// Arguments are indexed: %[1] is the field name, %[2] the expected value
// and %[3] the actual value, so a template may use any subset of them.
type Templates struct {
	Success string
	Failure string
}

// MessageCatalog maps every operator to its templates.
type MessageCatalog map[Operator]Templates

// DefaultMessages returns the stock message catalog.
func DefaultMessages() MessageCatalog {
	return MessageCatalog{
		OpBe: {
			Success: "The %[1]s field was %[2]v, as expected.",
			Failure: "Expected %[1]s field to be %[2]v, but it was actually %[3]v.",
		},
		OpNotBe: {
			Success: "The %[1]s field was not %[2]v, as expected.",
			Failure: "Expected %[1]s field not to be %[2]v, but it was %[3]v.",
		},
		OpContain: {
			Success: "The %[1]s field contains %[2]v, as expected.",
			Failure: "Expected %[1]s field to contain %[2]v, but it is actually %[3]v.",
		},
		OpNotContain: {
			Success: "The %[1]s field does not contain %[2]v, as expected.",
			Failure: "Expected %[1]s field not to contain %[2]v, but it is actually %[3]v.",
		},
		OpBeGreaterThan: {
			Success: "The %[1]s field is greater than %[2]v, as expected.",
			Failure: "Expected %[1]s field to be greater than %[2]v, but it is actually %[3]v.",
		},
		OpBeLessThan: {
			Success: "The %[1]s field is less than %[2]v, as expected.",
			Failure: "Expected %[1]s field to be less than %[2]v, but it is actually %[3]v.",
		},
		OpBeSet: {
			Success: "The %[1]s field was set, as expected.",
			Failure: "Expected %[1]s field to be set, but it was not.",
		},
		OpNotBeSet: {
			Success: "The %[1]s field was not set, as expected.",
			Failure: "Expected %[1]s field not to be set, but it was set to %[3]v.",
		},
		OpBeOneOf: {
			Success: "The %[1]s field was one of %[2]v, as expected.",
			Failure: "Expected %[1]s field to be one of %[2]v, but it was actually %[3]v.",
		},
		OpNotBeOneOf: {
			Success: "The %[1]s field was not one of %[2]v, as expected.",
			Failure: "Expected %[1]s field not to be one of %[2]v, but it was %[3]v.",
		},
		OpMatch: {
			Success: "The %[1]s field matches %[2]v, as expected.",
			Failure: "Expected %[1]s field to match %[2]v, but it was actually %[3]v.",
		},
		OpNotMatch: {
			Success: "The %[1]s field does not match %[2]v, as expected.",
			Failure: "Expected %[1]s field not to match %[2]v, but it was %[3]v.",
		},
	}
}

// lookup returns the templates for op, falling back to the default catalog
// when a host-supplied catalog leaves an operator out.
func (c MessageCatalog) lookup(op Operator) Templates {
	if t, ok := c[op]; ok {
		return t
	}
	return DefaultMessages()[op]
}
