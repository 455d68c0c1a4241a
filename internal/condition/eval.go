package condition

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// EvalBool evaluates node against ctx and requires a boolean result.
func EvalBool(node Node, ctx Context) (bool, error) {
	v, err := eval(node, ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expression is %T, not a boolean: %w", v, ErrEvaluation)
	}
	return b, nil
}

func eval(node Node, ctx Context) (any, error) {
	switch n := node.(type) {
	case *Literal:
		return n.Value, nil

	case *FieldRef:
		return resolve(n.Path, ctx)

	case *Unary:
		return evalUnary(n, ctx)

	case *Binary:
		return evalBinary(n, ctx)

	case *Call:
		return evalCall(n, ctx)
	}
	return nil, fmt.Errorf("unknown node %T: %w", node, ErrEvaluation)
}

// resolve walks a dotted path through nested context maps. A path that
// leaves the supplied context is an error, never a silent nil.
func resolve(path []string, ctx Context) (any, error) {
	var current any = map[string]any(ctx)
	for i, part := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %s is not addressable: %w", strings.Join(path[:i+1], "."), ErrEvaluation)
		}
		current, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("unknown field %s: %w", strings.Join(path[:i+1], "."), ErrEvaluation)
		}
	}
	return current, nil
}

func evalUnary(n *Unary, ctx Context) (any, error) {
	v, err := eval(n.X, ctx)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "!":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("! applied to %T: %w", v, ErrEvaluation)
		}
		return !b, nil
	case "-":
		f, ok := toNumber(v)
		if !ok {
			return nil, fmt.Errorf("- applied to %T: %w", v, ErrEvaluation)
		}
		return -f, nil
	}
	return nil, fmt.Errorf("unknown unary %q: %w", n.Op, ErrEvaluation)
}

func evalBinary(n *Binary, ctx Context) (any, error) {
	// Boolean combinators short-circuit.
	if n.Op == "&&" || n.Op == "||" {
		left, err := EvalBool(n.X, ctx)
		if err != nil {
			return nil, err
		}
		if n.Op == "&&" && !left {
			return false, nil
		}
		if n.Op == "||" && left {
			return true, nil
		}
		return EvalBool(n.Y, ctx)
	}

	x, err := eval(n.X, ctx)
	if err != nil {
		return nil, err
	}
	y, err := eval(n.Y, ctx)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "==":
		return equal(x, y), nil
	case "!=":
		return !equal(x, y), nil
	case "<", "<=", ">", ">=":
		return order(n.Op, x, y)
	case "+", "-", "*", "/", "%":
		return arithmetic(n.Op, x, y)
	}
	return nil, fmt.Errorf("unknown operator %q: %w", n.Op, ErrEvaluation)
}

func evalCall(n *Call, ctx Context) (any, error) {
	first, err := eval(n.Args[0], ctx)
	if err != nil {
		return nil, err
	}
	second, err := eval(n.Args[1], ctx)
	if err != nil {
		return nil, err
	}

	switch n.Name {
	case "includes":
		items, ok := toSlice(first)
		if !ok {
			return nil, fmt.Errorf("includes: first argument is %T, not a collection: %w", first, ErrEvaluation)
		}
		for _, item := range items {
			if equal(item, second) {
				return true, nil
			}
		}
		return false, nil

	case "match":
		s, ok := first.(string)
		if !ok {
			return nil, fmt.Errorf("match: first argument is %T, not a string: %w", first, ErrEvaluation)
		}
		pattern, ok := second.(string)
		if !ok {
			return nil, fmt.Errorf("match: pattern is %T, not a string: %w", second, ErrEvaluation)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("match: bad pattern %q: %w", pattern, ErrEvaluation)
		}
		return re.MatchString(s), nil
	}
	return nil, fmt.Errorf("unknown function %q: %w", n.Name, ErrEvaluation)
}

// equal compares two values. Numbers compare numerically regardless of
// concrete type; values of different kinds are simply not equal.
func equal(x, y any) bool {
	if xf, ok := toNumber(x); ok {
		if yf, ok := toNumber(y); ok {
			return xf == yf
		}
		return false
	}
	return x == y
}

func order(op string, x, y any) (any, error) {
	if xf, okx := toNumber(x); okx {
		yf, oky := toNumber(y)
		if !oky {
			return nil, fmt.Errorf("%s: comparing number with %T: %w", op, y, ErrEvaluation)
		}
		switch op {
		case "<":
			return xf < yf, nil
		case "<=":
			return xf <= yf, nil
		case ">":
			return xf > yf, nil
		case ">=":
			return xf >= yf, nil
		}
	}
	xs, okx := x.(string)
	ys, oky := y.(string)
	if okx && oky {
		switch op {
		case "<":
			return xs < ys, nil
		case "<=":
			return xs <= ys, nil
		case ">":
			return xs > ys, nil
		case ">=":
			return xs >= ys, nil
		}
	}
	return nil, fmt.Errorf("%s: cannot order %T and %T: %w", op, x, y, ErrEvaluation)
}

func arithmetic(op string, x, y any) (any, error) {
	xf, okx := toNumber(x)
	yf, oky := toNumber(y)
	if !okx || !oky {
		return nil, fmt.Errorf("%s: arithmetic on %T and %T: %w", op, x, y, ErrEvaluation)
	}
	switch op {
	case "+":
		return xf + yf, nil
	case "-":
		return xf - yf, nil
	case "*":
		return xf * yf, nil
	case "/":
		if yf == 0 {
			return nil, fmt.Errorf("division by zero: %w", ErrEvaluation)
		}
		return xf / yf, nil
	case "%":
		if yf == 0 {
			return nil, fmt.Errorf("modulo by zero: %w", ErrEvaluation)
		}
		return math.Mod(xf, yf), nil
	}
	return nil, fmt.Errorf("unknown arithmetic %q: %w", op, ErrEvaluation)
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}
