// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package constraint implements VersionRange/ConstraintAlgebra: a closed algebra of version sets
// represented as disjoint, sorted lists of intervals, with set union/intersection/difference/
// complement, pre-release admission, and the PEP 440-and-friends constraint grammar.
package constraint

import (
	"sort"
	"strings"

	"github.com/datawire/pkgbuild/pkg/version"
)

// LowerBound is the lower edge of an interval. A zero-value LowerBound with NegInf unset and no
// Version set is invalid; use NegInfinity().
type LowerBound struct {
	NegInf    bool
	Version   version.Version
	Inclusive bool
}

// UpperBound is the upper edge of an interval.
type UpperBound struct {
	PosInf    bool
	Version   version.Version
	Inclusive bool
}

func NegInfinity() LowerBound { return LowerBound{NegInf: true} }
func PosInfinity() UpperBound { return UpperBound{PosInf: true} }

// interval is a single (possibly unbounded) contiguous span of versions.
type interval struct {
	Lo LowerBound
	Hi UpperBound
}

// Range is a canonicalized disjoint-sorted interval list with an admission policy for
// pre-release versions.
type Range struct {
	intervals        []interval
	allowPrereleases bool
}

// Any is the range containing every version.
func Any() Range {
	return Range{intervals: []interval{{Lo: NegInfinity(), Hi: PosInfinity()}}}
}

// Empty is the range containing no versions.
func Empty() Range {
	return Range{}
}

// IsAny reports whether the range admits every version.
func (r Range) IsAny() bool {
	return len(r.intervals) == 1 &&
		r.intervals[0].Lo.NegInf && r.intervals[0].Hi.PosInf
}

// IsEmpty reports whether the range admits no version.
func (r Range) IsEmpty() bool {
	return len(r.intervals) == 0
}

// AllowPrereleases reports whether this range was explicitly constructed to admit pre-releases.
func (r Range) AllowPrereleases() bool { return r.allowPrereleases }

// WithAllowPrereleases returns a copy of r with the explicit pre-release admission flag set.
func (r Range) WithAllowPrereleases(allow bool) Range {
	r.allowPrereleases = allow
	return r
}

// lowerHasPrerelease reports whether any interval's lower bound is itself a pre-release version,
// which per §4.2 admits pre-releases for that interval even without the explicit flag.
func (r Range) lowerHasPrerelease() bool {
	for _, iv := range r.intervals {
		if !iv.Lo.NegInf && iv.Lo.Version.IsPreRelease() {
			return true
		}
	}
	return false
}

// Contains reports whether v lies within the range, honoring pre-release admission: a
// pre-release version is excluded unless the range allows pre-releases explicitly or its lower
// bound is itself a pre-release.
func (r Range) Contains(v version.Version) bool {
	if v.IsPreRelease() && !r.allowPrereleases && !r.lowerHasPrerelease() {
		return false
	}
	for _, iv := range r.intervals {
		if intervalContains(iv, v) {
			return true
		}
	}
	return false
}

func intervalContains(iv interval, v version.Version) bool {
	if !iv.Lo.NegInf {
		c := v.Cmp(iv.Lo.Version)
		if c < 0 || (c == 0 && !iv.Lo.Inclusive) {
			return false
		}
	}
	if !iv.Hi.PosInf {
		c := v.Cmp(iv.Hi.Version)
		if c > 0 || (c == 0 && !iv.Hi.Inclusive) {
			return false
		}
	}
	return true
}

// cmpLower reports whether a sorts before b when ordering intervals by lower bound.
func cmpLower(a, b LowerBound) int {
	switch {
	case a.NegInf && b.NegInf:
		return 0
	case a.NegInf:
		return -1
	case b.NegInf:
		return 1
	}
	if c := a.Version.Cmp(b.Version); c != 0 {
		return c
	}
	// At equal value, the inclusive lower bound admits more, so it sorts first.
	switch {
	case a.Inclusive == b.Inclusive:
		return 0
	case a.Inclusive:
		return -1
	default:
		return 1
	}
}

func cmpUpper(a, b UpperBound) int {
	switch {
	case a.PosInf && b.PosInf:
		return 0
	case a.PosInf:
		return 1
	case b.PosInf:
		return -1
	}
	if c := a.Version.Cmp(b.Version); c != 0 {
		return c
	}
	switch {
	case a.Inclusive == b.Inclusive:
		return 0
	case a.Inclusive:
		return 1
	default:
		return -1
	}
}

// hiBeforeLo reports whether hi strictly precedes lo, i.e. no version satisfies both "<= hi"
// and ">= lo" — the two intervals they bound cannot overlap.
func hiBeforeLo(hi UpperBound, lo LowerBound) bool {
	if hi.PosInf || lo.NegInf {
		return false
	}
	c := hi.Version.Cmp(lo.Version)
	switch {
	case c < 0:
		return true
	case c > 0:
		return false
	default:
		return !(hi.Inclusive && lo.Inclusive)
	}
}

// touchesWithoutGap reports whether hi and lo are equal with at least one side inclusive, so
// the two intervals they bound may be merged into one contiguous interval.
func touchesWithoutGap(hi UpperBound, lo LowerBound) bool {
	if hi.PosInf || lo.NegInf {
		return false
	}
	return hi.Version.Equal(lo.Version) && (hi.Inclusive || lo.Inclusive)
}

// normalize sorts intervals by lower bound and merges overlapping or touching ones, per §4.2's
// "intervals are sorted, non-overlapping, and non-adjacent where possible" invariant.
func normalize(ivs []interval) []interval {
	if len(ivs) <= 1 {
		return ivs
	}
	sort.Slice(ivs, func(i, j int) bool { return cmpLower(ivs[i].Lo, ivs[j].Lo) < 0 })
	out := ivs[:1]
	for _, next := range ivs[1:] {
		last := &out[len(out)-1]
		if !hiBeforeLo(last.Hi, next.Lo) || touchesWithoutGap(last.Hi, next.Lo) {
			if cmpUpper(next.Hi, last.Hi) > 0 {
				last.Hi = next.Hi
			}
			continue
		}
		out = append(out, next)
	}
	return out
}

func newRange(ivs []interval) Range {
	return Range{intervals: normalize(ivs)}
}

// Intersect returns the set of versions admitted by both a and b.
func Intersect(a, b Range) Range {
	var out []interval
	i, j := 0, 0
	for i < len(a.intervals) && j < len(b.intervals) {
		x, y := a.intervals[i], b.intervals[j]
		lo := x.Lo
		if cmpLower(y.Lo, lo) > 0 {
			lo = y.Lo
		}
		hi := x.Hi
		if cmpUpper(y.Hi, hi) < 0 {
			hi = y.Hi
		}
		if !hiBeforeLo(hi, lo) {
			out = append(out, interval{Lo: lo, Hi: hi})
		}
		if cmpUpper(x.Hi, y.Hi) < 0 {
			i++
		} else {
			j++
		}
	}
	r := newRange(out)
	r.allowPrereleases = a.allowPrereleases || b.allowPrereleases
	return r
}

// Union returns the set of versions admitted by either a or b.
func Union(a, b Range) Range {
	all := append(append([]interval(nil), a.intervals...), b.intervals...)
	r := newRange(all)
	r.allowPrereleases = a.allowPrereleases || b.allowPrereleases
	return r
}

// Complement returns the set of versions NOT admitted by a.
func Complement(a Range) Range {
	if a.IsEmpty() {
		return Any()
	}
	if a.IsAny() {
		return Empty()
	}
	var out []interval
	if first := a.intervals[0]; !first.Lo.NegInf {
		out = append(out, interval{
			Lo: NegInfinity(),
			Hi: UpperBound{Version: first.Lo.Version, Inclusive: !first.Lo.Inclusive},
		})
	}
	for i := 0; i < len(a.intervals)-1; i++ {
		hi := a.intervals[i].Hi
		lo := a.intervals[i+1].Lo
		out = append(out, interval{
			Lo: LowerBound{Version: hi.Version, Inclusive: !hi.Inclusive},
			Hi: UpperBound{Version: lo.Version, Inclusive: !lo.Inclusive},
		})
	}
	if last := a.intervals[len(a.intervals)-1]; !last.Hi.PosInf {
		out = append(out, interval{
			Lo: LowerBound{Version: last.Hi.Version, Inclusive: !last.Hi.Inclusive},
			Hi: PosInfinity(),
		})
	}
	return newRange(out)
}

// Difference returns the versions admitted by a but not by b.
func Difference(a, b Range) Range {
	return Intersect(a, Complement(b))
}

// AllowsAny reports whether a and b have any version in common, ignoring pre-release admission.
func (r Range) AllowsAny(other Range) bool {
	return !Intersect(r, other).IsEmpty()
}

// AllowsAll reports whether every version admitted by other is also admitted by r.
func (r Range) AllowsAll(other Range) bool {
	return Difference(other, r).IsEmpty()
}

// Equal reports whether r and other admit exactly the same set of versions.
func (r Range) Equal(other Range) bool {
	if len(r.intervals) != len(other.intervals) {
		return false
	}
	for i := range r.intervals {
		a, b := r.intervals[i], other.intervals[i]
		if cmpLower(a.Lo, b.Lo) != 0 || cmpUpper(a.Hi, b.Hi) != 0 {
			return false
		}
	}
	return true
}

func (b LowerBound) String() string {
	if b.NegInf {
		return "(-∞"
	}
	if b.Inclusive {
		return "[" + b.Version.String()
	}
	return "(" + b.Version.String()
}

func (b UpperBound) String() string {
	if b.PosInf {
		return "+∞)"
	}
	if b.Inclusive {
		return b.Version.String() + "]"
	}
	return b.Version.String() + ")"
}

// String renders the range as a comma-separated list of mathematical intervals, for debugging
// and test failure messages; it is not the canonical constraint-string grammar (see Parse/
// Specifier for that).
func (r Range) String() string {
	if r.IsEmpty() {
		return "{}"
	}
	parts := make([]string, len(r.intervals))
	for i, iv := range r.intervals {
		parts[i] = iv.Lo.String() + ", " + iv.Hi.String()
	}
	return strings.Join(parts, " U ")
}

// Specifier renders the range in the canonical constraint-string grammar (comma-separated
// clauses intersect, "||"-separated groups union), suitable for round-tripping through Parse and
// for the Requires-Dist lines emitted into wheel/sdist metadata.
func (r Range) Specifier() string {
	if r.IsAny() {
		return ""
	}
	if r.IsEmpty() {
		// Unsatisfiable ranges have no representation in the PEP 440 specifier grammar;
		// render the narrowest degenerate clause rather than inventing new syntax.
		return "<0.0.0dev0,>=0.0.0dev0"
	}
	groups := make([]string, len(r.intervals))
	for i, iv := range r.intervals {
		groups[i] = intervalSpecifier(iv)
	}
	return strings.Join(groups, " || ")
}

func intervalSpecifier(iv interval) string {
	var clauses []string
	if !iv.Lo.NegInf {
		op := ">"
		if iv.Lo.Inclusive {
			op = ">="
		}
		clauses = append(clauses, op+iv.Lo.Version.String())
	}
	if !iv.Hi.PosInf {
		op := "<"
		if iv.Hi.Inclusive {
			op = "<="
		}
		clauses = append(clauses, op+iv.Hi.Version.String())
	}
	if len(clauses) == 0 {
		return ">=0"
	}
	return strings.Join(clauses, ",")
}
