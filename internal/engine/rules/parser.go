package rules

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
	tokOp
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) describe() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return strconv.Quote(t.text)
}

func lex(src string) ([]token, error) {
	var out []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			out = append(out, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			out = append(out, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == '<' || r == '>' || r == '=':
			start := i
			i++
			if i < len(rs) && rs[i] == '=' {
				i++
			}
			text := string(rs[start:i])
			if text == "=" {
				return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, text, start)
			}
			out = append(out, token{kind: tokOp, text: text, pos: start})
		case unicode.IsDigit(r) || r == '.' || r == '-' || r == '+':
			start := i
			i++
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.' || rs[i] == 'e' || rs[i] == 'E' ||
				((rs[i] == '-' || rs[i] == '+') && (rs[i-1] == 'e' || rs[i-1] == 'E'))) {
				i++
			}
			text := string(rs[start:i])
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, fmt.Errorf("%w: bad number %q at offset %d", ErrSyntax, text, start)
			}
			out = append(out, token{kind: tokNumber, text: text, pos: start})
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(rs) && (rs[i] == '_' || unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i])) {
				i++
			}
			text := string(rs[start:i])
			kind := tokIdent
			switch text {
			case "and":
				kind = tokAnd
			case "or":
				kind = tokOr
			}
			out = append(out, token{kind: kind, text: text, pos: start})
		default:
			return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, string(r), i)
		}
	}
	return append(out, token{kind: tokEOF, pos: len(rs)}), nil
}

type parser struct {
	toks []token
	pos  int
}

// Parse compiles a condition into an expression tree. "and" binds tighter
// than "or"; parentheses group. Every comparison needs exactly one field name
// and one number, in either order.
func Parse(src string) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: empty condition", ErrSyntax)
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.unexpected(t)
	}
	return e, nil
}

// MustParse is Parse for conditions known at compile time.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) unexpected(t token) error {
	return fmt.Errorf("%w: unexpected %s at offset %d", ErrSyntax, t.describe(), t.pos)
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.peek().kind == tokLParen {
		p.next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, p.unexpected(t)
		}
		return e, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	lhs := p.next()
	if lhs.kind != tokIdent && lhs.kind != tokNumber {
		return nil, p.unexpected(lhs)
	}
	opTok := p.next()
	if opTok.kind != tokOp {
		return nil, p.unexpected(opTok)
	}
	rhs := p.next()
	if rhs.kind != tokIdent && rhs.kind != tokNumber {
		return nil, p.unexpected(rhs)
	}

	op := Op(opTok.text)
	switch {
	case lhs.kind == tokIdent && rhs.kind == tokNumber:
		return Comparison{Field: lhs.text, Op: op, Threshold: mustFloat(rhs.text)}, nil
	case lhs.kind == tokNumber && rhs.kind == tokIdent:
		return Comparison{Field: rhs.text, Op: op.mirror(), Threshold: mustFloat(lhs.text)}, nil
	case lhs.kind == tokIdent:
		return nil, fmt.Errorf("%w: comparison of two fields at offset %d", ErrSyntax, lhs.pos)
	default:
		return nil, fmt.Errorf("%w: comparison of two constants at offset %d", ErrSyntax, lhs.pos)
	}
}

// lex already validated the literal.
func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
