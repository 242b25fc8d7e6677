// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package marker

import (
	"github.com/datawire/pkgbuild/pkg/constraint"
)

// Intersect returns a simplified marker equivalent to "m1 and m2": DNF normalization followed by
// pairwise redundancy elimination on atoms sharing an attribute. Range atoms on python_version/
// python_full_version are converted to VersionRanges and intersected directly; other atoms use
// literal (attr, op, value) implication.
func Intersect(m1, m2 Marker) Marker {
	clauses := toDNF(m1)
	others := toDNF(m2)

	var out []Marker
	for _, c := range clauses {
		for _, o := range others {
			merged, ok := mergeConjunctions(c, o)
			if ok {
				out = append(out, merged)
			}
		}
	}
	if len(out) == 0 {
		return AnyMarker()
	}
	result := out[0]
	for _, m := range out[1:] {
		result = Or2(result, m)
	}
	return result
}

// toDNF flattens a marker tree into a list of conjunction clauses (each a []Marker of atoms),
// distributing Or over And where necessary. It recurses into every child, so nested And/Or trees
// are fully distributed; the number of clauses is the product of the children's clause counts.
func toDNF(m Marker) [][]Marker {
	switch v := m.(type) {
	case empty:
		return [][]Marker{{}}
	case any:
		return nil
	case Atom:
		return [][]Marker{{v}}
	case RangeAtom:
		return [][]Marker{{v}}
	case And:
		clauses := [][]Marker{{}}
		for _, child := range v.Children {
			childClauses := toDNF(child)
			var next [][]Marker
			for _, c := range clauses {
				for _, cc := range childClauses {
					next = append(next, append(append([]Marker{}, c...), cc...))
				}
			}
			clauses = next
		}
		return clauses
	case Or:
		var out [][]Marker
		for _, child := range v.Children {
			out = append(out, toDNF(child)...)
		}
		return out
	default:
		return [][]Marker{{m}}
	}
}

// mergeConjunctions combines two atom lists representing ANDed clauses, collapsing same-attribute
// atoms via range intersection when possible and detecting outright contradictions (the combined
// clause is then dropped, ok=false).
func mergeConjunctions(a, b []Marker) (Marker, bool) {
	atoms := append(append([]Marker{}, a...), b...)

	byAttr := map[string][]Atom{}
	rangesByAttr := map[string][]constraint.Range{}
	var other []Marker
	for _, m := range atoms {
		switch at := m.(type) {
		case Atom:
			byAttr[at.Attr] = append(byAttr[at.Attr], at)
		case RangeAtom:
			rangesByAttr[at.Attr] = append(rangesByAttr[at.Attr], at.Range)
		default:
			other = append(other, m)
		}
	}
	for attr, ranges := range rangesByAttr {
		r, ok := atomsToRange(byAttr[attr])
		if !ok {
			r = constraint.Any()
			for _, at := range byAttr[attr] {
				other = append(other, at)
			}
		}
		for _, pr := range ranges {
			r = constraint.Intersect(r, pr)
		}
		delete(byAttr, attr)
		if r.IsEmpty() {
			return nil, false
		}
		if !r.IsAny() {
			other = append(other, RangeAtom{Attr: attr, Range: r})
		}
	}

	var result Marker = Empty()
	for _, o := range other {
		result = And2(result, o)
	}

	for attr, group := range byAttr {
		if rangeAttrs[attr] {
			r, ok := atomsToRange(group)
			if ok {
				if r.IsEmpty() {
					return nil, false
				}
				if !r.IsAny() {
					result = And2(result, RangeAtom{Attr: attr, Range: r})
				}
				continue
			}
		}
		for _, at := range group {
			result = And2(result, at)
		}
	}
	return result, true
}

// atomsToRange attempts to interpret a group of same-attribute atoms as version-range
// constraints, returning ok=false if any atom uses an operator range semantics cannot represent
// (e.g. "in"/"not in" against an arbitrary string list).
func atomsToRange(atoms []Atom) (constraint.Range, bool) {
	r := constraint.Any()
	for _, at := range atoms {
		var op string
		switch at.Op {
		case OpEQ:
			op = "=="
		case OpNE:
			op = "!="
		case OpLT:
			op = "<"
		case OpLE:
			op = "<="
		case OpGT:
			op = ">"
		case OpGE:
			op = ">="
		case OpCompat:
			op = "~="
		default:
			return constraint.Range{}, false
		}
		cr, err := constraint.Parse(op + at.Literal)
		if err != nil {
			return constraint.Range{}, false
		}
		r = constraint.Intersect(r, cr)
	}
	return r, true
}

// ExcludeExtra removes conjuncts of the form "extra == name", returning the residual marker used
// to separate core dependencies from extras-gated ones during wheel metadata emission.
func ExcludeExtra(m Marker, name string) Marker {
	switch v := m.(type) {
	case Atom:
		if v.Attr == AttrExtra && v.Op == OpEQ && v.Literal == name {
			return Empty()
		}
		return v
	case And:
		result := Marker(Empty())
		for _, c := range v.Children {
			result = And2(result, ExcludeExtra(c, name))
		}
		return result
	case Or:
		result := Marker(AnyMarker())
		for _, c := range v.Children {
			result = Or2(result, ExcludeExtra(c, name))
		}
		return result
	default:
		return m
	}
}

// OnlyPython projects a marker onto a VersionRange over python_version/python_full_version
// atoms, used to reconcile a per-dependency python constraint with its marker expression. Atoms
// on any other attribute are ignored (treated as always-satisfiable for the purpose of this
// projection, since this range is consulted only to narrow python-version admissibility).
func OnlyPython(m Marker) constraint.Range {
	clauses := toDNF(m)
	if len(clauses) == 0 {
		return constraint.Empty()
	}
	result := constraint.Empty()
	for i, clause := range clauses {
		r := constraint.Any()
		for _, atomM := range clause {
			switch at := atomM.(type) {
			case RangeAtom:
				if rangeAttrs[at.Attr] {
					r = constraint.Intersect(r, at.Range)
				}
			case Atom:
				if !rangeAttrs[at.Attr] {
					continue
				}
				if cr, ok := atomsToRange([]Atom{at}); ok {
					r = constraint.Intersect(r, cr)
				}
			}
		}
		if i == 0 {
			result = r
		} else {
			result = constraint.Union(result, r)
		}
	}
	return result
}
