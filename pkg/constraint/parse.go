// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package constraint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/datawire/pkgbuild/pkg/version"
)

// ParseError reports a constraint string that does not conform to the grammar in §4.2.
type ParseError struct {
	Input string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid constraint %q: %s", e.Input, e.Msg)
}

// Parse parses the full constraint grammar: comma-separated clauses intersect, "||"-separated
// groups union. Accepts >=, <, >, <=, ==, !=, ===, ~=, ^, ~, and the X.Y.* wildcard forms.
func Parse(s string) (Range, error) {
	groups := strings.Split(s, "||")
	var result Range
	for i, group := range groups {
		group = strings.TrimSpace(group)
		clauses := splitClauses(group)
		if len(clauses) == 0 {
			return Range{}, &ParseError{Input: s, Msg: "empty constraint clause"}
		}
		r := Any()
		for _, clause := range clauses {
			cr, err := parseClause(strings.TrimSpace(clause))
			if err != nil {
				return Range{}, err
			}
			r = Intersect(r, cr)
		}
		if i == 0 {
			result = r
		} else {
			result = Union(result, r)
		}
	}
	return result, nil
}

func splitClauses(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// operator table, longest-match-first (mirrors the teacher's markerOpsByLength convention of
// matching multi-character operators before falling back to single-character ones).
var operators = []string{"===", "~=", ">=", "<=", "==", "!=", ">", "<", "^", "~"}

func parseClause(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{}, &ParseError{Input: s, Msg: "empty clause"}
	}

	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			rest := strings.TrimSpace(s[len(op):])
			return parseOpVersion(op, rest, s)
		}
	}
	// bare version with no operator: exact match (with wildcard support).
	return parseOpVersion("==", s, s)
}

func parseOpVersion(op, verStr, whole string) (Range, error) {
	if strings.HasSuffix(verStr, ".*") {
		if op != "==" && op != "!=" {
			return Range{}, &ParseError{Input: whole, Msg: "wildcard only valid with == or !="}
		}
		r, err := wildcardRange(strings.TrimSuffix(verStr, ".*"), whole)
		if err != nil {
			return Range{}, err
		}
		if op == "!=" {
			return Complement(r), nil
		}
		return r, nil
	}

	if op == "===" {
		return arbitraryEqualRange(verStr), nil
	}

	v, err := version.Parse(verStr)
	if err != nil {
		return Range{}, &ParseError{Input: whole, Msg: err.Error()}
	}

	switch op {
	case "==":
		return newRange([]interval{{
			Lo: LowerBound{Version: v, Inclusive: true},
			Hi: UpperBound{Version: v, Inclusive: true},
		}}), nil
	case "!=":
		return Complement(newRange([]interval{{
			Lo: LowerBound{Version: v, Inclusive: true},
			Hi: UpperBound{Version: v, Inclusive: true},
		}})), nil
	case ">=":
		return newRange([]interval{{Lo: LowerBound{Version: v, Inclusive: true}, Hi: PosInfinity()}}), nil
	case ">":
		return newRange([]interval{{Lo: LowerBound{Version: v, Inclusive: false}, Hi: PosInfinity()}}), nil
	case "<=":
		return newRange([]interval{{Lo: NegInfinity(), Hi: UpperBound{Version: v, Inclusive: true}}}), nil
	case "<":
		return newRange([]interval{{Lo: NegInfinity(), Hi: UpperBound{Version: v, Inclusive: false}}}), nil
	case "~=":
		return compatibleRelease(v, whole)
	case "^":
		return caretRange(v), nil
	case "~":
		return tildeRange(v), nil
	default:
		return Range{}, &ParseError{Input: whole, Msg: "unrecognized operator " + op}
	}
}

// compatibleRelease implements "~=X.Y[.Z...]": >=X.Y[.Z...], <X.(Y+1) — i.e. the upper bound
// increments the second-to-last given segment and truncates the last one. Requires at least two
// release segments.
func compatibleRelease(v version.Version, whole string) (Range, error) {
	if len(v.Release) < 2 {
		return Range{}, &ParseError{Input: whole, Msg: "~= requires at least two release segments"}
	}
	hi := v.NextAt(len(v.Release) - 2)
	return newRange([]interval{{
		Lo: LowerBound{Version: v, Inclusive: true},
		Hi: UpperBound{Version: hi, Inclusive: false},
	}}), nil
}

// caretRange implements "^X.Y.Z": >=X.Y.Z, <next-breaking, where next-breaking increments the
// first non-zero release segment and zeroes everything after it. ^0.0.0 is the special case
// >=0.0.0, <0.0.1 per §4.2's tie-break rule ("is not used" for Empty).
func caretRange(v version.Version) Range {
	k := v.FirstNonZero()
	var hi version.Version
	if k >= len(v.Release) {
		// fully-zero version: bump the last segment (or append one if none given).
		if len(v.Release) == 0 {
			hi = v.NextAt(0)
		} else {
			hi = v.NextAt(len(v.Release) - 1)
		}
	} else {
		hi = v.NextAt(k)
	}
	return newRange([]interval{{
		Lo: LowerBound{Version: v, Inclusive: true},
		Hi: UpperBound{Version: hi, Inclusive: false},
	}})
}

// tildeRange implements "~X.Y.Z": >=X.Y.Z, <X.(Y+1). With only one segment given, behaves like
// caret (next major).
func tildeRange(v version.Version) Range {
	n := len(v.Release)
	var hi version.Version
	switch {
	case n >= 2:
		// Always bump the minor segment, regardless of how many trailing segments are
		// given: ~1.2 and ~1.2.3 both mean >=.., <1.3.
		hi = v.NextAt(1)
	default:
		hi = v.NextAt(0)
	}
	return newRange([]interval{{
		Lo: LowerBound{Version: v, Inclusive: true},
		Hi: UpperBound{Version: hi, Inclusive: false},
	}})
}

// wildcardRange implements "X.Y.*": >=X.Y, <X.(Y+1).
func wildcardRange(prefix, whole string) (Range, error) {
	segs := strings.Split(prefix, ".")
	release := make([]int, 0, len(segs))
	for _, s := range segs {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Range{}, &ParseError{Input: whole, Msg: "wildcard prefix: " + err.Error()}
		}
		release = append(release, n)
	}
	lo := version.Version{Release: release}
	hi := lo.NextAt(len(release) - 1)
	return newRange([]interval{{
		Lo: LowerBound{Version: lo, Inclusive: true},
		Hi: UpperBound{Version: hi, Inclusive: false},
	}}), nil
}

// arbitraryEqualRange implements the range form of "===X", which exists so "===X" composes with
// "," and "||". When X parses as a version, the result is the same single-point range as "==X":
// membership is decided by version ordering, not by text, so "===1.0" admits 1.0.0 and
// intersects ordinary numeric ranges like any "==" clause. When X does not parse, the result is
// Empty. The raw-string comparison itself is ArbitraryEqualString.
func arbitraryEqualRange(raw string) Range {
	v, err := version.Parse(raw)
	if err != nil {
		// Arbitrary equality tolerates non-PEP-440 strings; fall back to a range that is never
		// contained in the normal Cmp-based membership test by representing it as an
		// unsatisfiable numeric range, and let callers that need "===" semantics compare the raw
		// string directly via ArbitraryEqualString.
		return Empty()
	}
	return newRange([]interval{{
		Lo: LowerBound{Version: v, Inclusive: true},
		Hi: UpperBound{Version: v, Inclusive: true},
	}})
}

// ArbitraryEqualString implements the raw "===" comparison directly against text, for use when
// the right-hand side is not a PEP 440-conformant version at all (per §9 Open Questions: no
// ordering participation, pass-through string equality).
func ArbitraryEqualString(candidate, raw string) bool {
	return candidate == raw
}
