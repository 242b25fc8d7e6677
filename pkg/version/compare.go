// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package version

import "k8s.io/apimachinery/pkg/util/intstr"

// preReleaseRank ranks a pre-release kind for ordering purposes; higher sorts later. Absent is 0;
// a bare dev-release (no post, no pre) ranks below every pre-release kind.
var preReleaseRank = map[PreReleaseKind]int{
	PreAlpha: -3,
	PreBeta:  -2,
	PreRC:    -1,
}

func cmpPreRelease(a, b Version) int {
	rank := func(v Version) (int, int) {
		switch {
		case v.Pre != nil:
			return preReleaseRank[v.Pre.Kind], v.Pre.N
		case v.Dev != nil && v.Post == nil:
			return -4, 0
		default:
			return 0, 0
		}
	}
	aRank, aN := rank(a)
	bRank, bN := rank(b)
	if aRank != bRank {
		return aRank - bRank
	}
	return aN - bN
}

func cmpPostRelease(a, b Version) int {
	aPost, bPost := -1, -1
	if a.Post != nil {
		aPost = *a.Post
	}
	if b.Post != nil {
		bPost = *b.Post
	}
	return aPost - bPost
}

func cmpDevRelease(a, b Version) int {
	switch {
	case a.Dev == nil && b.Dev == nil:
		return 0
	case a.Dev == nil:
		return 1
	case b.Dev == nil:
		return -1
	default:
		return *a.Dev - *b.Dev
	}
}

func cmpRelease(a, b Version) int {
	ar, br := releaseNormalized(a.Release), releaseNormalized(b.Release)
	for i := 0; i < len(ar) || i < len(br); i++ {
		var x, y int
		if i < len(ar) {
			x = ar[i]
		}
		if i < len(br) {
			y = br[i]
		}
		if x != y {
			return x - y
		}
	}
	return 0
}

func cmpLocalSegment(a, b *intstr.IntOrString) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch {
	case a.Type == intstr.Int && b.Type == intstr.Int:
		return int(a.IntVal - b.IntVal)
	case a.Type == intstr.String && b.Type == intstr.String:
		switch {
		case a.StrVal < b.StrVal:
			return -1
		case a.StrVal > b.StrVal:
			return 1
		default:
			return 0
		}
	case a.Type == intstr.Int:
		// numeric local segments always sort after alphanumeric ones.
		return 1
	default:
		return -1
	}
}

func cmpLocal(a, b Version) int {
	for i := 0; i < len(a.Local) || i < len(b.Local); i++ {
		var aSeg, bSeg *intstr.IntOrString
		if i < len(a.Local) {
			aSeg = &a.Local[i]
		}
		if i < len(b.Local) {
			bSeg = &b.Local[i]
		}
		if d := cmpLocalSegment(aSeg, bSeg); d != 0 {
			return d
		}
	}
	return 0
}

// Cmp returns a negative number if v < other, zero if equal, a positive number if v > other.
//
// A version without a local segment compares equal to the same public version with a local
// segment only when neither has one; a local version otherwise sorts strictly after the
// corresponding public version, and two local versions compare element-by-element.
func (v Version) Cmp(other Version) int {
	if d := v.Epoch - other.Epoch; d != 0 {
		return d
	}
	if d := cmpRelease(v, other); d != 0 {
		return d
	}
	if d := cmpPreRelease(v, other); d != 0 {
		return d
	}
	if d := cmpPostRelease(v, other); d != 0 {
		return d
	}
	if d := cmpDevRelease(v, other); d != 0 {
		return d
	}
	return cmpLocal(v, other)
}

func (v Version) Less(other Version) bool    { return v.Cmp(other) < 0 }
func (v Version) Equal(other Version) bool   { return v.Cmp(other) == 0 }
func (v Version) Greater(other Version) bool { return v.Cmp(other) > 0 }

// Normalize round-trips the version through its canonical string form, which is the backend's
// notion of "equal fields, possibly differing only in textual presentation".
func (v Version) Normalize() Version {
	normalized, err := Parse(v.String())
	if err != nil {
		// String() only ever emits grammar Parse() accepts; a failure here is a bug in one of
		// the two, not a user-facing condition.
		panic(err)
	}
	return normalized
}

// next returns a copy of v's release segment with position n incremented and every later position
// zeroed, used by the caret/tilde/compatible-release constraint forms. Pre/post/dev/local segments
// are dropped, since the upper bound of those constraints is a bare release boundary.
func (v Version) next(n int) Version {
	rel := make([]int, len(v.Release))
	copy(rel, v.Release)
	for len(rel) <= n {
		rel = append(rel, 0)
	}
	rel[n]++
	for i := n + 1; i < len(rel); i++ {
		rel[i] = 0
	}
	return Version{Epoch: v.Epoch, Release: rel}
}

// NextAt increments the release segment at the given zero-based index and zeroes everything after
// it, dropping pre/post/dev/local segments. Used by the range algebra to compute constraint upper
// bounds (^, ~, ~=, X.Y.*).
func (v Version) NextAt(n int) Version { return v.next(n) }

// FirstNonZero returns the index of the first non-zero release segment, or len(Release) if every
// segment present is zero (used by caret's "tie-break" rule).
func (v Version) FirstNonZero() int {
	for i, seg := range v.Release {
		if seg != 0 {
			return i
		}
	}
	return len(v.Release)
}

// WithoutPrereleaseTags returns a copy of v with its pre/post/dev/local segments cleared, keeping
// only epoch and release.
func (v Version) WithoutPrereleaseTags() Version {
	return Version{Epoch: v.Epoch, Release: append([]int(nil), v.Release...)}
}
