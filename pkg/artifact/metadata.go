// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package artifact emits the sdist and wheel archives for a built package: deterministic
// tar.gz/zip containers, Core Metadata, the WHEEL/entry_points.txt/RECORD dist-info files, and
// SHA-256 content hashing.
package artifact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/datawire/pkgbuild/pkg/dependency"
	"github.com/datawire/pkgbuild/pkg/manifest"
	"github.com/datawire/pkgbuild/pkg/marker"
)

// MetadataVersion is the Core Metadata format version this backend emits.
const MetadataVersion = "2.3"

// RenderMetadata renders the plain-text Core Metadata document (used as both METADATA in the
// wheel and PKG-INFO in the sdist, per §4.7).
func RenderMetadata(pkg manifest.Package) string {
	var b strings.Builder
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", name, value)
		}
	}

	field("Metadata-Version", MetadataVersion)
	field("Name", pkg.Name)
	field("Version", pkg.Version.String())
	field("Summary", pkg.Metadata.Summary)
	if !pkg.RequiresPython.IsAny() {
		field("Requires-Python", pkg.RequiresPython.Specifier())
	}
	field("Home-page", pkg.Metadata.HomepageURL)

	homepages := make([]string, 0, len(pkg.Metadata.ProjectURLs))
	for label := range pkg.Metadata.ProjectURLs {
		homepages = append(homepages, label)
	}
	sort.Strings(homepages)
	for _, label := range homepages {
		field("Project-URL", fmt.Sprintf("%s, %s", label, pkg.Metadata.ProjectURLs[label]))
	}

	for _, a := range pkg.Metadata.Authors {
		field("Author", a.Name)
		field("Author-email", authorEmailLine(a))
	}
	for _, m := range pkg.Metadata.Maintainers {
		field("Maintainer", m.Name)
		field("Maintainer-email", authorEmailLine(m))
	}

	switch {
	case pkg.Metadata.License.Identifier != "":
		field("License", pkg.Metadata.License.Identifier)
	case pkg.Metadata.License.Text != "":
		field("License", pkg.Metadata.License.Text)
	}

	if len(pkg.Metadata.Keywords) > 0 {
		field("Keywords", strings.Join(pkg.Metadata.Keywords, ","))
	}
	classifiers := append([]string(nil), pkg.Metadata.Classifiers...)
	sort.Strings(classifiers)
	for _, c := range classifiers {
		field("Classifier", c)
	}

	extras := sortedKeys(pkg.Extras)
	for _, e := range extras {
		field("Provides-Extra", e)
	}

	for _, line := range requiresDistLines(pkg) {
		field("Requires-Dist", line)
	}

	b.WriteString("\n")
	b.WriteString(pkg.Metadata.Description)
	return b.String()
}

func authorEmailLine(a manifest.Author) string {
	if a.Email == "" {
		return ""
	}
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// requiresDistLines renders one Requires-Dist line per dependency in the main group,
// canonicalized, with an "extra == name" marker conjunct added for dependencies gated by an
// extras name.
func requiresDistLines(pkg manifest.Package) []string {
	extraOf := map[string]string{}
	for extra, names := range pkg.Extras {
		for _, n := range names {
			extraOf[n] = extra
		}
	}

	deps := append([]dependency.Spec(nil), pkg.Groups[manifest.MainGroup]...)
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })

	lines := make([]string, 0, len(deps))
	for _, d := range deps {
		if extra, ok := extraOf[d.Name]; ok {
			gated := d
			extraAtom := extraMarker(extra)
			if d.Marker != nil && d.Marker.String() != "" {
				gated.Marker = marker.And2(d.Marker, extraAtom)
			} else {
				gated.Marker = extraAtom
			}
			lines = append(lines, gated.String())
			continue
		}
		lines = append(lines, d.String())
	}
	return lines
}

func extraMarker(name string) marker.Marker {
	return marker.Atom{Attr: marker.AttrExtra, Op: marker.OpEQ, Literal: name}
}

// RenderDescriptionFromReadmes concatenates already-read readme file bodies in declaration order,
// separated by a blank line, per the Open Questions decision recorded in DESIGN.md.
func RenderDescriptionFromReadmes(bodies []string) string {
	return strings.Join(bodies, "\n\n")
}

// RenderWheelMetadata renders the WHEEL dist-info file.
func RenderWheelMetadata(generator, tag string, rootIsPurelib bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Wheel-Version: 1.0\n")
	fmt.Fprintf(&b, "Generator: %s\n", generator)
	fmt.Fprintf(&b, "Root-Is-Purelib: %s\n", boolWord(rootIsPurelib))
	fmt.Fprintf(&b, "Tag: %s\n", tag)
	return b.String()
}

func boolWord(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// RenderEntryPoints renders entry_points.txt in INI format: one "[group]" section per scripts/
// entry-point group, sorted for determinism.
func RenderEntryPoints(pkg manifest.Package) string {
	var b strings.Builder

	if len(pkg.Scripts) > 0 {
		b.WriteString("[console_scripts]\n")
		names := make([]string, 0, len(pkg.Scripts))
		for name := range pkg.Scripts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			target := pkg.Scripts[name]
			if target.Callable != "" {
				fmt.Fprintf(&b, "%s = %s\n", name, target.Callable)
			}
		}
		b.WriteString("\n")
	}

	groups := make([]string, 0, len(pkg.EntryPoints))
	for g := range pkg.EntryPoints {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		fmt.Fprintf(&b, "[%s]\n", g)
		names := make([]string, 0, len(pkg.EntryPoints[g]))
		for name := range pkg.EntryPoints[g] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "%s = %s\n", name, pkg.EntryPoints[g][name])
		}
		b.WriteString("\n")
	}

	return b.String()
}
