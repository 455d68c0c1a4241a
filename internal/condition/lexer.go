package condition

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokDot
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// operators the lexer recognizes, longest first so "<=" wins over "<".
var operators = []string{"==", "!=", "<=", ">=", "&&", "||", "<", ">", "!", "+", "-", "*", "/", "%"}

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		switch c {
		case '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
			continue
		case ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
			continue
		case ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
			continue
		case '.':
			tokens = append(tokens, token{kind: tokDot, text: ".", pos: i})
			i++
			continue
		case '\'', '"':
			s, next, err := lexString(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: s, pos: i})
			i = next
			continue
		}

		if op := matchOperator(input[i:]); op != "" {
			tokens = append(tokens, token{kind: tokOp, text: op, pos: i})
			i += len(op)
			continue
		}

		if c >= '0' && c <= '9' {
			j := i
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.') {
				j++
			}
			n, err := strconv.ParseFloat(input[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at %d: %w", input[i:j], i, ErrParse)
			}
			tokens = append(tokens, token{kind: tokNumber, num: n, text: input[i:j], pos: i})
			i = j
			continue
		}

		if isIdentStart(rune(c)) {
			j := i
			for j < len(input) && isIdentPart(rune(input[j])) {
				j++
			}
			tokens = append(tokens, token{kind: tokIdent, text: input[i:j], pos: i})
			i = j
			continue
		}

		return nil, fmt.Errorf("unexpected character %q at %d: %w", c, i, ErrParse)
	}

	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, nil
}

func lexString(input string, start int) (string, int, error) {
	quote := input[start]
	var sb strings.Builder
	i := start + 1
	for i < len(input) {
		c := input[i]
		if c == '\\' && i+1 < len(input) {
			next := input[i+1]
			switch next {
			case '\\', quote:
				sb.WriteByte(next)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte('\\')
				sb.WriteByte(next)
			}
			i += 2
			continue
		}
		if c == quote {
			return sb.String(), i + 1, nil
		}
		sb.WriteByte(c)
		i++
	}
	return "", 0, fmt.Errorf("unterminated string at %d: %w", start, ErrParse)
}

func matchOperator(s string) string {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
