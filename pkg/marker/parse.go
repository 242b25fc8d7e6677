// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package marker

import (
	"fmt"
	"strings"

	"github.com/datawire/pkgbuild/pkg/version"
)

// ParseError reports a marker string that does not conform to the PEP 508 grammar.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid marker %q at offset %d: %s", e.Input, e.Pos, e.Msg)
}

func parseAtomVersion(s string) (version.Version, error) {
	return version.Parse(strings.TrimSpace(s))
}

// Parse parses a full PEP 508 marker expression: a disjunction of conjunctions of comparisons and
// parenthesized subexpressions, using "and"/"or" keywords and Python-style quoted string or bare
// identifier operands.
func Parse(s string) (Marker, error) {
	p := &parser{input: s}
	p.skipWsp()
	m, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipWsp()
	if p.pos != len(p.input) {
		return nil, &ParseError{Input: s, Pos: p.pos, Msg: "unexpected trailing input"}
	}
	return m, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipWsp() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Input: p.input, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) accept(tok string) bool {
	p.skipWsp()
	if strings.HasPrefix(p.input[p.pos:], tok) {
		// keyword tokens must not be a prefix of a longer identifier
		end := p.pos + len(tok)
		if isIdentByte(tok[0]) && end < len(p.input) && isIdentByte(p.input[end]) {
			return false
		}
		p.pos = end
		return true
	}
	return false
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (p *parser) parseOr() (Marker, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if !p.accept("or") {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or2(left, right)
	}
}

func (p *parser) parseAnd() (Marker, error) {
	left, err := p.parseMarkerExpr()
	if err != nil {
		return nil, err
	}
	for {
		if !p.accept("and") {
			return left, nil
		}
		right, err := p.parseMarkerExpr()
		if err != nil {
			return nil, err
		}
		left = And2(left, right)
	}
}

func (p *parser) parseMarkerExpr() (Marker, error) {
	p.skipWsp()
	if p.pos < len(p.input) && p.input[p.pos] == '(' {
		p.pos++
		m, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipWsp()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return nil, p.errorf("expected closing ')'")
		}
		p.pos++
		return m, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (Marker, error) {
	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	op, err := p.parseOp()
	if err != nil {
		return nil, err
	}
	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	// Exactly one side must be a known environment attribute; the teacher's pack convention
	// (google-deps.dev's markers.go) is lhs-attribute/rhs-literal, but PEP 508 explicitly
	// allows either order ("'linux' in sys_platform"), so normalize to attr-op-literal,
	// flipping the operator's sense when the attribute is on the right. For "in"/"not in",
	// flipping the operand order also flips which side is tested for containment in which, so
	// LiteralFirst records that instead of folding it into the (otherwise identity) flip.
	if lhs.attr != "" {
		return Atom{Attr: lhs.attr, Op: op, Literal: rhs.literal}, nil
	}
	if rhs.attr != "" {
		return Atom{Attr: rhs.attr, Op: flip(op), Literal: lhs.literal, LiteralFirst: true}, nil
	}
	return nil, p.errorf("comparison has no recognized environment attribute")
}

func flip(op Op) Op {
	switch op {
	case OpLT:
		return OpGT
	case OpLE:
		return OpGE
	case OpGT:
		return OpLT
	case OpGE:
		return OpLE
	case OpIn:
		return OpIn
	case OpNotIn:
		return OpNotIn
	default:
		return op
	}
}

type operand struct {
	attr    string
	literal string
}

func (p *parser) parseOperand() (operand, error) {
	p.skipWsp()
	if p.pos >= len(p.input) {
		return operand{}, p.errorf("unexpected end of input")
	}
	switch p.input[p.pos] {
	case '\'', '"':
		quote := p.input[p.pos]
		p.pos++
		start := p.pos
		for p.pos < len(p.input) && p.input[p.pos] != quote {
			p.pos++
		}
		if p.pos >= len(p.input) {
			return operand{}, p.errorf("unterminated string literal")
		}
		lit := p.input[start:p.pos]
		p.pos++
		return operand{literal: lit}, nil
	default:
		start := p.pos
		for p.pos < len(p.input) && isIdentByte(p.input[p.pos]) {
			p.pos++
		}
		if p.pos == start {
			return operand{}, p.errorf("expected identifier or string literal")
		}
		ident := p.input[start:p.pos]
		if knownAttrs[ident] {
			return operand{attr: ident}, nil
		}
		// Unrecognized bare identifiers are treated as literals, matching the original
		// grammar's leniency toward unknown marker variables (they simply never match).
		return operand{literal: ident}, nil
	}
}

// operator table, longest-match-first.
var markerOps = []struct {
	tok string
	op  Op
}{
	{"===", OpArbitrary},
	{"~=", OpCompat},
	{">=", OpGE},
	{"<=", OpLE},
	{"==", OpEQ},
	{"!=", OpNE},
	{">", OpGT},
	{"<", OpLT},
	{"not in", OpNotIn},
	{"in", OpIn},
}

func (p *parser) parseOp() (Op, error) {
	p.skipWsp()
	for _, cand := range markerOps {
		if strings.HasPrefix(p.input[p.pos:], cand.tok) {
			end := p.pos + len(cand.tok)
			if isIdentByte(cand.tok[0]) && end < len(p.input) && isIdentByte(p.input[end]) {
				continue
			}
			p.pos = end
			return cand.op, nil
		}
	}
	return "", p.errorf("expected comparison operator")
}
