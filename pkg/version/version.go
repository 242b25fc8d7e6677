// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package version implements the PEP 440 version identification scheme: parsing, normalization,
// ordering, and the local-version segment grammar.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/intstr"
)

// PreReleaseKind enumerates the three recognized pre-release spellings, already normalized to
// their canonical abbreviation.
type PreReleaseKind string

const (
	PreAlpha PreReleaseKind = "a"
	PreBeta  PreReleaseKind = "b"
	PreRC    PreReleaseKind = "rc"
)

// preReleaseAliases maps every spelling PEP 440 accepts to its canonical kind.
var preReleaseAliases = map[string]PreReleaseKind{
	"a": PreAlpha, "alpha": PreAlpha,
	"b": PreBeta, "beta": PreBeta,
	"rc": PreRC, "c": PreRC, "pre": PreRC, "preview": PreRC,
}

// PreRelease is the pre-release segment of a Version: a kind plus its ordinal.
type PreRelease struct {
	Kind PreReleaseKind
	N    int
}

// Version is a single parsed and normalized PEP 440 version identifier.
//
// Fields are preserved bit-for-bit through Parse(String()) round-trips: operations that need a
// modified Version (e.g. the range algebra's caret/tilde upper bounds) must copy and mutate
// explicitly rather than relying on implicit normalization.
type Version struct {
	Epoch   int
	Release []int
	Pre     *PreRelease
	Post    *int
	Dev     *int
	Local   []intstr.IntOrString
}

// IsPreRelease reports whether this version is considered a pre-release for admission purposes:
// an explicit pre-release segment, or a dev-release with no pre segment.
func (v Version) IsPreRelease() bool {
	return v.Pre != nil || v.Dev != nil
}

// IsLocal reports whether this version carries a local segment.
func (v Version) IsLocal() bool {
	return len(v.Local) > 0
}

func (v Version) release(n int) int {
	if n < len(v.Release) {
		return v.Release[n]
	}
	return 0
}

// Major, Minor, and Micro address the first three release segments, defaulting to 0 when absent.
func (v Version) Major() int { return v.release(0) }
func (v Version) Minor() int { return v.release(1) }
func (v Version) Micro() int { return v.release(2) }

// String renders the canonical textual form: epoch (when non-zero), release, and the pre/post/dev
// and local segments in their normalized spelling.
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	for i, seg := range v.Release {
		if i > 0 {
			b.WriteByte('.')
		}
		fmt.Fprintf(&b, "%d", seg)
	}
	if v.Pre != nil {
		fmt.Fprintf(&b, "%s%d", v.Pre.Kind, v.Pre.N)
	}
	if v.Post != nil {
		fmt.Fprintf(&b, ".post%d", *v.Post)
	}
	if v.Dev != nil {
		fmt.Fprintf(&b, ".dev%d", *v.Dev)
	}
	if len(v.Local) > 0 {
		b.WriteByte('+')
		for i, seg := range v.Local {
			if i > 0 {
				b.WriteByte('.')
			}
			if seg.Type == intstr.String {
				b.WriteString(seg.StrVal)
			} else {
				fmt.Fprintf(&b, "%d", seg.IntVal)
			}
		}
	}
	return b.String()
}

// GoString implements fmt.GoStringer, for readable test failure output (per the teacher's
// convention of implementing GoString on every version-like type).
func (v Version) GoString() string {
	return fmt.Sprintf("version.Version(%q)", v.String())
}

// releaseNormalized returns the release segment with trailing zeroes stripped, which is
// significant for comparisons against a version of different length (1.0 == 1.0.0).
func releaseNormalized(r []int) []int {
	i := len(r)
	for i > 0 && r[i-1] == 0 {
		i--
	}
	return r[:i]
}

// full version-identifier grammar: the PEP 440 appendix regex, unchanged from its public-domain
// source text other than Go-ifying the group syntax.
var reVersion = regexp.MustCompile(`(?i)^\s*v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_.]?(?P<pre_l>a|b|c|rc|alpha|beta|pre|preview)[-_.]?(?P<pre_n>[0-9]+)?)?` +
	`(?:(?:-(?P<post_n1>[0-9]+))|(?:[-_.]?(?P<post_l>post|rev|r)[-_.]?(?P<post_n2>[0-9]+)?))?` +
	`(?:[-_.]?(?P<dev_l>dev)[-_.]?(?P<dev_n>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?\s*$`)

// ParseError reports a version string that does not conform to the PEP 440 grammar.
type ParseError struct {
	Input string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid version %q: %s", e.Input, e.Msg)
}

// Parse parses and normalizes a PEP 440 version identifier.
func Parse(s string) (Version, error) {
	m := reVersion.FindStringSubmatch(s)
	if m == nil {
		return Version{}, &ParseError{Input: s, Msg: "does not match the PEP 440 version grammar"}
	}
	get := func(name string) string { return m[reVersion.SubexpIndex(name)] }

	var v Version
	if epoch := get("epoch"); epoch != "" {
		n, err := strconv.Atoi(epoch)
		if err != nil {
			return Version{}, &ParseError{Input: s, Msg: "epoch: " + err.Error()}
		}
		v.Epoch = n
	}
	for _, seg := range strings.Split(get("release"), ".") {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return Version{}, &ParseError{Input: s, Msg: "release: " + err.Error()}
		}
		v.Release = append(v.Release, n)
	}

	if preL := get("pre_l"); preL != "" {
		kind, ok := preReleaseAliases[strings.ToLower(preL)]
		if !ok {
			return Version{}, &ParseError{Input: s, Msg: "unrecognized pre-release spelling " + preL}
		}
		n := 0
		if preN := get("pre_n"); preN != "" {
			var err error
			n, err = strconv.Atoi(preN)
			if err != nil {
				return Version{}, &ParseError{Input: s, Msg: "pre-release: " + err.Error()}
			}
		}
		v.Pre = &PreRelease{Kind: kind, N: n}
	}

	postNum := get("post_n1")
	if postNum == "" {
		postNum = get("post_n2")
	}
	if postL, postN1 := get("post_l"), get("post_n1"); postL != "" || postN1 != "" {
		n := 0
		if postNum != "" {
			var err error
			n, err = strconv.Atoi(postNum)
			if err != nil {
				return Version{}, &ParseError{Input: s, Msg: "post-release: " + err.Error()}
			}
		}
		v.Post = &n
	}

	if devL := get("dev_l"); devL != "" {
		n := 0
		if devN := get("dev_n"); devN != "" {
			var err error
			n, err = strconv.Atoi(devN)
			if err != nil {
				return Version{}, &ParseError{Input: s, Msg: "dev-release: " + err.Error()}
			}
		}
		v.Dev = &n
	}

	if local := get("local"); local != "" {
		for _, seg := range strings.FieldsFunc(local, func(r rune) bool { return r == '-' || r == '_' || r == '.' }) {
			if allDigits(seg) {
				n, err := strconv.Atoi(seg)
				if err != nil {
					return Version{}, &ParseError{Input: s, Msg: "local segment: " + err.Error()}
				}
				v.Local = append(v.Local, intstr.FromInt(n))
			} else {
				v.Local = append(v.Local, intstr.FromString(strings.ToLower(seg)))
			}
		}
	}

	return v, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MustParse is Parse but panics on error; for use with constant version literals in tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}
