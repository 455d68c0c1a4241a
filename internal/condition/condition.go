// Package condition evaluates automation rule conditions.
//
// Conditions are boolean expressions over a fixed context: the card's
// fields, the triggering event kind and the event-specific fields. The
// grammar is closed: comparisons, boolean combinators, arithmetic and two
// predicates (includes, match). There is no field access outside the
// supplied context, no function definition and no arbitrary code execution.
// Expressions are parsed into an AST once and evaluated over it; nothing is
// ever compiled or interpreted as code.
package condition

import "errors"

// ErrParse reports an expression outside the allowed grammar.
var ErrParse = errors.New("condition parse error")

// ErrEvaluation reports a failure while evaluating a well-formed
// expression, e.g. a type mismatch or an unknown field. Callers treat it as
// condition = false.
var ErrEvaluation = errors.New("condition evaluation error")

// Context is the data visible to a condition. Values are nested
// string-keyed maps with leaf values of string, float64, bool, nil or
// string slices.
type Context map[string]any

// Node is a parsed expression tree node.
type Node interface {
	node()
}

// Literal is a constant: string, float64, bool or nil.
type Literal struct {
	Value any
}

// FieldRef references a context field by dotted path, e.g. card.priority.
type FieldRef struct {
	Path []string
}

// Unary is !x or -x.
type Unary struct {
	Op string
	X  Node
}

// Binary is a comparison, boolean combinator or arithmetic operation.
type Binary struct {
	Op   string
	X, Y Node
}

// Call is one of the named predicates: includes(collection, item) or
// match(string, pattern).
type Call struct {
	Name string
	Args []Node
}

func (*Literal) node()  {}
func (*FieldRef) node() {}
func (*Unary) node()    {}
func (*Binary) node()   {}
func (*Call) node()     {}

// Evaluate parses expr and evaluates it against ctx. The result must be a
// boolean; anything else is an evaluation error.
func Evaluate(expr string, ctx Context) (bool, error) {
	node, err := Parse(expr)
	if err != nil {
		return false, err
	}
	return EvalBool(node, ctx)
}
