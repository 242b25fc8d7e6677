// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package marker implements the PEP 508 environment marker grammar: parsing boolean expressions
// over deployment attributes, evaluation against an environment, and the intersection/union
// algebra used to simplify combined markers.
package marker

import (
	"fmt"
	"strings"

	"github.com/datawire/pkgbuild/pkg/constraint"
	"github.com/datawire/pkgbuild/pkg/version"
)

// Attribute names recognized in marker expressions.
const (
	AttrOSName                     = "os_name"
	AttrSysPlatform                = "sys_platform"
	AttrPlatformRelease            = "platform_release"
	AttrPlatformSystem             = "platform_system"
	AttrPlatformVersion            = "platform_version"
	AttrPlatformMachine            = "platform_machine"
	AttrPlatformPythonImplentation = "platform_python_implementation"
	AttrPythonVersion               = "python_version"
	AttrPythonFullVersion           = "python_full_version"
	AttrImplementationName          = "implementation_name"
	AttrImplementationVersion       = "implementation_version"
	AttrExtra                       = "extra"
)

var knownAttrs = map[string]bool{
	AttrOSName: true, AttrSysPlatform: true, AttrPlatformRelease: true, AttrPlatformSystem: true,
	AttrPlatformVersion: true, AttrPlatformMachine: true, AttrPlatformPythonImplentation: true,
	AttrPythonVersion: true, AttrPythonFullVersion: true, AttrImplementationName: true,
	AttrImplementationVersion: true, AttrExtra: true,
}

// rangeAttrs are attributes projected onto a VersionRange for range-aware simplification.
var rangeAttrs = map[string]bool{
	AttrPythonVersion: true, AttrPythonFullVersion: true,
}

// Op is a marker comparison operator.
type Op string

const (
	OpEQ        Op = "=="
	OpNE        Op = "!="
	OpLT        Op = "<"
	OpLE        Op = "<="
	OpGT        Op = ">"
	OpGE        Op = ">="
	OpIn        Op = "in"
	OpNotIn     Op = "not in"
	OpCompat    Op = "~="
	OpArbitrary Op = "==="
)

// Marker is a boolean expression tree over environment attributes.
//
// Node is one of: Atom (a leaf comparison), And, Or (internal nodes with 2+ children), or one of
// the two simplification sentinels: Empty (always true — the "no constraint" identity for AND)
// and Any (always false — the "no constraint" identity for OR, named to mirror VersionRange's
// Any/Empty naming even though its truth value is the opposite).
type Marker interface {
	Eval(env map[string]string) bool
	String() string
	isMarker()
}

// Atom is a single comparison: attribute OP literal.
type Atom struct {
	Attr    string
	Op      Op
	Literal string

	// LiteralFirst records that the marker was written with the literal operand before the
	// attribute ("'linux' in sys_platform") rather than after ("python_version in '2.6, 2.7'").
	// The two forms test containment in opposite directions; only meaningful for OpIn/OpNotIn.
	LiteralFirst bool
}

func (Atom) isMarker() {}

func (a Atom) String() string {
	if a.LiteralFirst {
		return fmt.Sprintf("%q %s %s", a.Literal, a.Op, a.Attr)
	}
	return fmt.Sprintf("%s %s %q", a.Attr, a.Op, a.Literal)
}

func (a Atom) Eval(env map[string]string) bool {
	val := env[a.Attr]
	switch a.Op {
	case OpEQ:
		return val == a.Literal
	case OpNE:
		return val != a.Literal
	case OpArbitrary:
		return constraint.ArbitraryEqualString(val, a.Literal)
	case OpIn:
		if a.LiteralFirst {
			return containsToken(val, a.Literal)
		}
		return containsToken(a.Literal, val)
	case OpNotIn:
		if a.LiteralFirst {
			return !containsToken(val, a.Literal)
		}
		return !containsToken(a.Literal, val)
	case OpLT, OpLE, OpGT, OpGE, OpCompat:
		return evalOrdered(a.Op, val, a.Literal)
	default:
		return false
	}
}

// containsToken implements PEP 508's "in"/"not in": a substring test against the RHS, treating
// "|" and whitespace as alternative separators when the RHS looks like a quoted list.
func containsToken(list, needle string) bool {
	if strings.ContainsAny(list, "|") {
		for _, tok := range strings.Split(list, "|") {
			if strings.TrimSpace(tok) == needle {
				return true
			}
		}
		return false
	}
	return strings.Contains(list, needle)
}

func evalOrdered(op Op, lhs, rhs string) bool {
	lv, lerr := parseAtomVersion(lhs)
	rv, rerr := parseAtomVersion(rhs)
	if lerr != nil || rerr != nil {
		// non-version operands: fall back to lexicographic comparison, matching the
		// teacher pack's behavior of treating unparseable operands as opaque strings.
		switch op {
		case OpLT:
			return lhs < rhs
		case OpLE:
			return lhs <= rhs
		case OpGT:
			return lhs > rhs
		case OpGE:
			return lhs >= rhs
		default:
			return false
		}
	}
	c := lv.Cmp(rv)
	switch op {
	case OpLT:
		return c < 0
	case OpLE:
		return c <= 0
	case OpGT:
		return c > 0
	case OpGE:
		return c >= 0
	case OpCompat:
		r, err := constraint.Parse("~=" + rhs)
		if err != nil {
			return false
		}
		return r.Contains(lv)
	default:
		return false
	}
}

// RangeAtom is an internal node produced by Intersect when it folds a group of same-attribute
// ordering comparisons into a single VersionRange; it evaluates by parsing the environment
// attribute as a version and testing range containment, rather than by literal comparison.
type RangeAtom struct {
	Attr  string
	Range constraint.Range
}

func (RangeAtom) isMarker() {}

var specifierOps = []string{">=", "<=", ">", "<"}

func (a RangeAtom) String() string {
	spec := a.Range.Specifier()
	if spec == "" {
		return ""
	}
	var groups []string
	for _, clause := range strings.Split(spec, " || ") {
		var parts []string
		for _, c := range strings.Split(clause, ",") {
			for _, op := range specifierOps {
				if strings.HasPrefix(c, op) {
					parts = append(parts, fmt.Sprintf("%s %s %q", a.Attr, op, strings.TrimPrefix(c, op)))
					break
				}
			}
		}
		groups = append(groups, "("+strings.Join(parts, " and ")+")")
	}
	return "(" + strings.Join(groups, " or ") + ")"
}

func (a RangeAtom) Eval(env map[string]string) bool {
	v, err := version.Parse(env[a.Attr])
	if err != nil {
		return false
	}
	return a.Range.Contains(v)
}

// And is a conjunction of two or more markers.
type And struct{ Children []Marker }

func (And) isMarker() {}
func (a And) Eval(env map[string]string) bool {
	for _, c := range a.Children {
		if !c.Eval(env) {
			return false
		}
	}
	return true
}
func (a And) String() string {
	parts := make([]string, len(a.Children))
	for i, c := range a.Children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " and ") + ")"
}

// Or is a disjunction of two or more markers.
type Or struct{ Children []Marker }

func (Or) isMarker() {}
func (o Or) Eval(env map[string]string) bool {
	for _, c := range o.Children {
		if c.Eval(env) {
			return true
		}
	}
	return false
}
func (o Or) String() string {
	parts := make([]string, len(o.Children))
	for i, c := range o.Children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " or ") + ")"
}

// empty is the always-true identity (the AND identity element); it is the result of simplifying
// away a marker that places no effective constraint.
type empty struct{}

func (empty) isMarker()                      {}
func (empty) Eval(map[string]string) bool    { return true }
func (empty) String() string                 { return "" }

// Empty is the marker that is always true.
func Empty() Marker { return empty{} }

// any is the always-false identity (the OR identity element).
type any struct{}

func (any) isMarker()                   {}
func (any) Eval(map[string]string) bool { return false }
func (any) String() string              { return "<false>" }

// AnyMarker is the marker that is always false; named to parallel constraint.Any/Empty even
// though its truth value is the logical opposite of that package's "Any" (see the Marker
// interface doc comment).
func AnyMarker() Marker { return any{} }

func isEmpty(m Marker) bool { _, ok := m.(empty); return ok }
func isAny(m Marker) bool   { _, ok := m.(any); return ok }

// And2 builds the conjunction of two markers, applying the eager simplifications from §4.3: AND
// with an Empty child returns the other child; AND with an Any child is Any.
func And2(a, b Marker) Marker {
	if isEmpty(a) {
		return b
	}
	if isEmpty(b) {
		return a
	}
	if isAny(a) || isAny(b) {
		return any{}
	}
	return And{Children: flattenAnd(a, b)}
}

func flattenAnd(a, b Marker) []Marker {
	var out []Marker
	if and, ok := a.(And); ok {
		out = append(out, and.Children...)
	} else {
		out = append(out, a)
	}
	if and, ok := b.(And); ok {
		out = append(out, and.Children...)
	} else {
		out = append(out, b)
	}
	return out
}

// Or2 builds the disjunction of two markers: OR with an Any child returns the other child; OR
// with an Empty child is Empty.
func Or2(a, b Marker) Marker {
	if isAny(a) {
		return b
	}
	if isAny(b) {
		return a
	}
	if isEmpty(a) || isEmpty(b) {
		return empty{}
	}
	return Or{Children: flattenOr(a, b)}
}

func flattenOr(a, b Marker) []Marker {
	var out []Marker
	if or, ok := a.(Or); ok {
		out = append(out, or.Children...)
	} else {
		out = append(out, a)
	}
	if or, ok := b.(Or); ok {
		out = append(out, or.Children...)
	} else {
		out = append(out, b)
	}
	return out
}
