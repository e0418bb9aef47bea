package queryir

import "github.com/roach88/perstore/internal/ir"

// Query is a parsed query.
type Query struct {
	// Filter is the root predicate. nil matches every record.
	Filter Predicate
}

// Predicate is a condition over one record, or a directive.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Operand is a value position in a predicate: a literal or a parameter.
//
// This is a sealed interface - only types in this package implement it.
type Operand interface {
	operandNode() // Marker method - seals interface to this package
}

// Literal is a constant value.
type Literal struct {
	Value ir.IRValue
}

func (Literal) operandNode() {}

// Param refers to the caller-supplied parameter at Index (1-based, "$1").
type Param struct {
	Index int
}

func (Param) operandNode() {}

// Lit is shorthand for a Literal operand.
func Lit(v ir.IRValue) Literal {
	return Literal{Value: v}
}

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "eq"
	OpNe CompareOp = "ne"
	OpLt CompareOp = "lt"
	OpLe CompareOp = "le"
	OpGt CompareOp = "gt"
	OpGe CompareOp = "ge"
)

// Ordered reports whether the operator compares by order rather than equality.
func (op CompareOp) Ordered() bool {
	switch op {
	case OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Compare tests a field against a value.
//
// Semantics:
//
//	<field> <op> <value>
//
// Field is a dotted path into the record ("address.city"). A missing field
// never matches, except under OpNe. Ordered operators only match values of
// the same kind (int, string, bool).
type Compare struct {
	Op    CompareOp
	Field string
	Value Operand
}

func (Compare) predicateNode() {}

// In tests whether a field equals any of Values. Negate turns it into "out".
type In struct {
	Field  string
	Values []Operand
	Negate bool
}

func (In) predicateNode() {}

// Contains tests whether an array field holds Value, or a string field holds
// Value as a substring.
type Contains struct {
	Field string
	Value Operand
}

func (Contains) predicateNode() {}

// Exists tests whether a field is present and not null.
type Exists struct {
	Field string
}

func (Exists) predicateNode() {}

// And is a conjunction (empty = always true).
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction (empty = always false).
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Call invokes a caller-registered operator by name with its arguments.
type Call struct {
	Name string
	Args []Operand
}

func (Call) predicateNode() {}

// Limit is the reserved windowing directive: limit(count, start, maxCount).
//
// Start and MaxCount are nil when omitted. Limit always evaluates to true.
type Limit struct {
	Count    Operand
	Start    Operand
	MaxCount Operand
}

func (Limit) predicateNode() {}
