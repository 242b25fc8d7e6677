// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package dependency implements the tagged-variant DependencySpec: a single dependency
// declaration that is either a registry-resolved version constraint or a direct reference to a
// path, directory, URL, or VCS checkout, together with the standard dependency-string grammar and
// the structured inline-declaration form.
package dependency

import (
	"fmt"
	"sort"
	"strings"

	"github.com/datawire/pkgbuild/pkg/constraint"
	"github.com/datawire/pkgbuild/pkg/marker"
)

// Kind identifies which origin a DependencySpec resolves from.
type Kind int

const (
	// KindRegistry resolves the dependency from a package index by name and version range.
	KindRegistry Kind = iota
	// KindPath resolves the dependency from a local filesystem path (a single file, e.g. a wheel).
	KindPath
	// KindDirectory resolves the dependency by building a local project directory in place.
	KindDirectory
	// KindURL resolves the dependency by downloading a source or wheel archive from a URL.
	KindURL
	// KindVCS resolves the dependency by checking out a version-control repository.
	KindVCS
)

func (k Kind) String() string {
	switch k {
	case KindRegistry:
		return "registry"
	case KindPath:
		return "path"
	case KindDirectory:
		return "directory"
	case KindURL:
		return "url"
	case KindVCS:
		return "vcs"
	default:
		return "unknown"
	}
}

// VCS identifies the version-control system a KindVCS dependency is checked out from.
type VCS string

const (
	VCSGit VCS = "git"
	VCSHg  VCS = "hg"
	VCSSvn VCS = "svn"
	VCSBzr VCS = "bzr"
)

// Spec is a single dependency declaration.
type Spec struct {
	Name  string
	Kind  Kind
	Range constraint.Range // meaningful for KindRegistry
	Path  string           // meaningful for KindPath, KindDirectory
	URL   string           // meaningful for KindURL, and the repository URL for KindVCS
	VCS   VCS              // meaningful for KindVCS
	Ref   string           // a branch, tag, or rev; meaningful for KindVCS

	Extras      []string
	Marker      marker.Marker
	Subdir      string
	Optional    bool
	Develop     bool // meaningful only for KindDirectory, KindVCS
	Source      string
}

// ParseError reports a dependency string that does not conform to the grammar
// "name[extras] constraint ; marker".
type ParseError struct {
	Input string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid dependency %q: %s", e.Input, e.Msg)
}

// Parse parses the standard dependency-string grammar: a distribution name, an optional
// bracketed extras list, an optional version constraint, and an optional ";"-delimited marker
// expression.
func Parse(s string) (Spec, error) {
	raw := s
	s = strings.TrimSpace(s)

	var markerStr string
	if i := strings.Index(s, ";"); i >= 0 {
		markerStr = strings.TrimSpace(s[i+1:])
		s = strings.TrimSpace(s[:i])
	}

	name, rest := splitNameAndRest(s)
	if name == "" {
		return Spec{}, &ParseError{Input: raw, Msg: "missing distribution name"}
	}

	extras, rest := splitExtras(rest)
	rest = strings.TrimSpace(rest)

	spec := Spec{Name: normalizeName(name), Kind: KindRegistry, Extras: extras}

	if rest == "" {
		spec.Range = constraint.Any()
	} else {
		r, err := constraint.Parse(rest)
		if err != nil {
			return Spec{}, &ParseError{Input: raw, Msg: err.Error()}
		}
		spec.Range = r
	}

	if markerStr != "" {
		m, err := marker.Parse(markerStr)
		if err != nil {
			return Spec{}, &ParseError{Input: raw, Msg: err.Error()}
		}
		spec.Marker = m
	} else {
		spec.Marker = marker.Empty()
	}

	return spec, nil
}

func splitNameAndRest(s string) (name, rest string) {
	i := 0
	for i < len(s) && isNameByte(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func isNameByte(b byte) bool {
	return b == '.' || b == '_' || b == '-' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func splitExtras(s string) (extras []string, rest string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return nil, s
	}
	end := strings.Index(s, "]")
	if end < 0 {
		return nil, s
	}
	for _, tok := range strings.Split(s[1:end], ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			extras = append(extras, tok)
		}
	}
	return extras, s[end+1:]
}

// normalizeName implements the canonical package-name normalization: lowercase, with runs of
// "-_." collapsed to a single "-".
func normalizeName(name string) string {
	var b strings.Builder
	lastWasSep := false
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			if !lastWasSep {
				b.WriteByte('-')
			}
			lastWasSep = true
			continue
		}
		b.WriteRune(r)
		lastWasSep = false
	}
	return strings.Trim(b.String(), "-")
}

// NormalizeName exposes the canonical package-name normalization rule for callers outside this
// package (manifest validation, extras cross-referencing).
func NormalizeName(name string) string { return normalizeName(name) }

// InlineFields mirrors the recognized keys of a structured inline dependency declaration (as
// decoded from TOML by the manifest package).
type InlineFields struct {
	Version          string
	Path             string
	URL              string
	Git, Hg, Svn, Bzr string
	Branch, Tag, Rev, Ref string
	Subdirectory     string
	Extras           []string
	Markers          string
	Python           string
	Optional         bool
	Develop          bool
	AllowPrereleases bool
	Source           string
}

// FromInline builds a Spec from a structured inline declaration, applying the validation rules
// from §4.4: exactly one origin kind, at most one of branch/tag/rev, develop meaningful only for
// directory/VCS kinds.
func FromInline(name string, f InlineFields) (Spec, error) {
	spec := Spec{Name: normalizeName(name), Extras: f.Extras, Subdir: f.Subdirectory, Optional: f.Optional, Source: f.Source}

	origins := 0
	if f.Version != "" {
		origins++
	}
	if f.Path != "" {
		origins++
		spec.Kind = KindPath
		spec.Path = f.Path
		if isDirPath(f.Path) {
			spec.Kind = KindDirectory
		}
	}
	if f.URL != "" {
		origins++
		spec.Kind = KindURL
		spec.URL = f.URL
	}
	vcsFields := map[VCS]string{VCSGit: f.Git, VCSHg: f.Hg, VCSSvn: f.Svn, VCSBzr: f.Bzr}
	for vcs, url := range vcsFields {
		if url != "" {
			origins++
			spec.Kind = KindVCS
			spec.VCS = vcs
			spec.URL = url
		}
	}
	if origins == 0 {
		spec.Kind = KindRegistry
	}
	if origins > 1 {
		return Spec{}, fmt.Errorf("dependency %q: exactly one origin kind (version, path, url, git/hg/svn/bzr) is allowed, got %d", name, origins)
	}

	refs := 0
	for _, r := range []string{f.Branch, f.Tag, f.Rev} {
		if r != "" {
			refs++
		}
	}
	if refs > 1 {
		return Spec{}, fmt.Errorf("dependency %q: branch, tag, and rev are mutually exclusive", name)
	}
	switch {
	case f.Branch != "":
		spec.Ref = f.Branch
	case f.Tag != "":
		spec.Ref = f.Tag
	case f.Rev != "":
		spec.Ref = f.Rev
	case f.Ref != "":
		spec.Ref = f.Ref
	}

	if f.Develop && spec.Kind != KindDirectory && spec.Kind != KindVCS {
		// meaningless for this kind; ignored. The manifest loader compares the caller's
		// InlineFields.Develop against the returned Spec.Develop to decide whether to warn,
		// since Diagnostics lives above this package.
		spec.Develop = false
	} else {
		spec.Develop = f.Develop
	}

	var m marker.Marker = marker.Empty()
	if f.Markers != "" {
		parsed, err := marker.Parse(f.Markers)
		if err != nil {
			return Spec{}, fmt.Errorf("dependency %q: %w", name, err)
		}
		m = parsed
	}
	if f.Python != "" {
		pr, err := constraint.Parse(f.Python)
		if err != nil {
			return Spec{}, fmt.Errorf("dependency %q: invalid python constraint: %w", name, err)
		}
		m = marker.And2(m, pythonMarker(pr))
	}
	spec.Marker = m

	if spec.Kind == KindRegistry {
		version := f.Version
		if version == "" {
			version = "*"
		}
		r := constraint.Any()
		if version != "*" {
			parsed, err := constraint.Parse(version)
			if err != nil {
				return Spec{}, fmt.Errorf("dependency %q: %w", name, err)
			}
			r = parsed
		}
		spec.Range = r.WithAllowPrereleases(f.AllowPrereleases)
	}

	return spec, nil
}

// isDirPath guesses whether a path dependency names a directory (to build in place) rather than
// a single prebuilt archive: a trailing slash, or a final path segment with no extension.
func isDirPath(p string) bool {
	if strings.HasSuffix(p, "/") {
		return true
	}
	base := p
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		base = p[i+1:]
	}
	return !strings.Contains(base, ".")
}

// pythonMarker folds a python VersionRange's intervals into marker atoms, so "python" inline
// fields compose with "markers" via ordinary marker intersection (§4.4: "When markers and python
// are both present, the effective marker is their intersection").
func pythonMarker(r constraint.Range) marker.Marker {
	if r.IsAny() {
		return marker.Empty()
	}
	return marker.RangeAtom{Attr: marker.AttrPythonVersion, Range: r}
}

// String renders the canonical dependency-string form, deterministic and round-trip stable.
func (s Spec) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	if len(s.Extras) > 0 {
		extras := append([]string(nil), s.Extras...)
		sort.Strings(extras)
		b.WriteByte('[')
		b.WriteString(strings.Join(extras, ","))
		b.WriteByte(']')
	}
	switch s.Kind {
	case KindRegistry:
		if !s.Range.IsAny() {
			b.WriteByte(' ')
			b.WriteString(s.Range.Specifier())
		}
	case KindPath:
		fmt.Fprintf(&b, " @ file://%s", s.Path)
	case KindDirectory:
		fmt.Fprintf(&b, " @ file://%s", s.Path)
	case KindURL:
		fmt.Fprintf(&b, " @ %s", s.URL)
	case KindVCS:
		fmt.Fprintf(&b, " @ %s+%s", s.VCS, s.URL)
		if s.Ref != "" {
			fmt.Fprintf(&b, "@%s", s.Ref)
		}
	}
	if s.Marker != nil && s.Marker.String() != "" {
		fmt.Fprintf(&b, " ; %s", s.Marker.String())
	}
	return b.String()
}

// Equal implements the equality semantics from §4.4: direct-origin kinds (path/directory/url/vcs)
// compare equal when name, kind, and origin location match, ignoring the version constraint;
// registry kinds additionally compare the constraint.
func (s Spec) Equal(other Spec) bool {
	if s.Name != other.Name || s.Kind != other.Kind {
		return false
	}
	switch s.Kind {
	case KindRegistry:
		return s.Range.Equal(other.Range)
	case KindPath, KindDirectory:
		return s.Path == other.Path
	case KindURL:
		return s.URL == other.URL
	case KindVCS:
		return s.VCS == other.VCS && s.URL == other.URL && s.Ref == other.Ref
	default:
		return false
	}
}
