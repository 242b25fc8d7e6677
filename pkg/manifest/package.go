// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package manifest loads a TOML-encoded project manifest and assembles the validated in-memory
// Package it describes: metadata, dependency groups, extras, scripts, entry-points, and build
// configuration.
package manifest

import (
	"github.com/datawire/pkgbuild/pkg/constraint"
	"github.com/datawire/pkgbuild/pkg/dependency"
	"github.com/datawire/pkgbuild/pkg/version"
)

// MainGroup is the name of the runtime dependency group.
const MainGroup = "main"

// Author is a name/email pair, accepted either in "Display Name <email@host>" form or as a
// structured {name, email} table.
type Author struct {
	Name  string
	Email string
}

// License is either a short SPDX-style identifier string, a literal license text, or a reference
// to a license file.
type License struct {
	Identifier string
	Text       string
	File       string
}

// ScriptTarget is a console-script or entry-point target: either a "module:object" callable
// reference or a reference to a file to be installed verbatim.
type ScriptTarget struct {
	Callable string // "pkg.mod:func" form
	FilePath string // set instead of Callable for the file-reference form
}

// BuildConfig holds the optional build-time configuration for packages with native extensions.
type BuildConfig struct {
	Script   string
	Includes []FileSelector
	Excludes []FileSelector
}

// FileSelector is a single include/exclude entry with an optional format gate.
type FileSelector struct {
	Pattern string
	Format  Format
}

// Format gates a FileSelector or generated artifact to one or both target formats.
type Format int

const (
	FormatBoth Format = iota
	FormatSdistOnly
	FormatWheelOnly
)

// Metadata holds the descriptive fields of a Package separate from its identity and dependency
// graph, mirroring the Core Metadata fields emitted into METADATA/PKG-INFO.
type Metadata struct {
	Summary     string
	Description string
	Keywords    []string
	HomepageURL string
	ProjectURLs map[string]string
	Authors     []Author
	Maintainers []Author
	License     License
	Classifiers []string
	ReadmePaths []string
}

// Package is the root entity assembled from a manifest.
type Package struct {
	Name    string // normalized
	Version version.Version
	Dynamic map[string]bool

	Metadata Metadata

	// Groups maps a dependency-group name to its ordered dependency list; the runtime group
	// is named MainGroup.
	Groups map[string][]dependency.Spec

	// Extras maps an extras name to the set of dependency names (within MainGroup) it
	// activates.
	Extras map[string][]string

	Scripts     map[string]ScriptTarget
	EntryPoints map[string]map[string]string // group -> name -> target

	Build BuildConfig

	// RequiresPython is the project's own supported-interpreter range (distinct from any
	// per-dependency python constraint folded into a DependencySpec's marker).
	RequiresPython constraint.Range
}
