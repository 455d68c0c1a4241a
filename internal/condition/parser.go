package condition

import "fmt"

// Parse parses an expression into its AST. The grammar, by descending
// precedence: unary (! -), multiplicative (* / %), additive (+ -),
// comparison (== != < <= > >=), && and ||. includes() and match() are the
// only callable names.
func Parse(expr string) (Node, error) {
	tokens, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at %d: %w", p.peek().text, p.peek().pos, ErrParse)
	}
	return node, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.next()
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("||"); !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "||", X: left, Y: right}
	}
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("&&"); !ok {
			return left, nil
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "&&", X: left, Y: right}
	}
}

func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := p.acceptOp("==", "!=", "<=", ">=", "<", ">")
	if !ok {
		return left, nil
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &Binary{Op: op, X: left, Y: right}, nil
}

func (p *parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, X: left, Y: right}
	}
}

func (p *parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, X: left, Y: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	if op, ok := p.acceptOp("!", "-"); ok {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		return &Literal{Value: t.num}, nil

	case tokString:
		p.next()
		return &Literal{Value: t.text}, nil

	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("expected ) at %d: %w", p.peek().pos, ErrParse)
		}
		p.next()
		return inner, nil

	case tokIdent:
		return p.parseIdent()
	}
	return nil, fmt.Errorf("unexpected %q at %d: %w", t.text, t.pos, ErrParse)
}

func (p *parser) parseIdent() (Node, error) {
	t := p.next()

	switch t.text {
	case "true":
		return &Literal{Value: true}, nil
	case "false":
		return &Literal{Value: false}, nil
	case "null", "nil":
		return &Literal{Value: nil}, nil
	}

	// Predicate call: only the two named predicates are callable.
	if p.peek().kind == tokLParen {
		if t.text != "includes" && t.text != "match" {
			return nil, fmt.Errorf("unknown function %q at %d: %w", t.text, t.pos, ErrParse)
		}
		p.next() // consume (
		var args []Node
		if p.peek().kind != tokRParen {
			for {
				arg, err := p.parseOr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.peek().kind == tokComma {
					p.next()
					continue
				}
				break
			}
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("expected ) at %d: %w", p.peek().pos, ErrParse)
		}
		p.next()
		if len(args) != 2 {
			return nil, fmt.Errorf("%s takes 2 arguments, got %d: %w", t.text, len(args), ErrParse)
		}
		return &Call{Name: t.text, Args: args}, nil
	}

	// Dotted field reference.
	path := []string{t.text}
	for p.peek().kind == tokDot {
		p.next()
		part := p.peek()
		if part.kind != tokIdent {
			return nil, fmt.Errorf("expected field name after . at %d: %w", part.pos, ErrParse)
		}
		p.next()
		path = append(path, part.text)
	}
	return &FieldRef{Path: path}, nil
}
