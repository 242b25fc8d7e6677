// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/datawire/pkgbuild/pkg/constraint"
	"github.com/datawire/pkgbuild/pkg/dependency"
	"github.com/datawire/pkgbuild/pkg/version"
)

// legacyTableName is the dotted key under [tool.*] that this backend reads for legacy fields,
// e.g. "tool.pkgbuild".
const legacyTableName = "pkgbuild"

// rawProject mirrors the standardized [project] table.
type rawProject struct {
	Name                 string              `toml:"name"`
	Version              string              `toml:"version"`
	Description          string              `toml:"description"`
	Readme               interface{}         `toml:"readme"` // string or []string or {files=[...]}
	RequiresPython       string              `toml:"requires-python"`
	License              interface{}         `toml:"license"` // string or {text=...} or {file=...}
	Authors              []rawPerson         `toml:"authors"`
	Maintainers          []rawPerson         `toml:"maintainers"`
	Keywords             []string            `toml:"keywords"`
	Classifiers          []string            `toml:"classifiers"`
	URLs                 map[string]string   `toml:"urls"`
	Dependencies         []string            `toml:"dependencies"`
	OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	Scripts              map[string]string   `toml:"scripts"`
	EntryPoints          map[string]map[string]string `toml:"entry-points"`
	Dynamic              []string            `toml:"dynamic"`
}

type rawPerson struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// rawLegacy mirrors the [tool.<legacy>] table: any field the modern table leaves dynamic, plus
// this backend's own structured dependency declarations and build configuration.
type rawLegacy struct {
	Name            string                            `toml:"name"`
	Version         string                            `toml:"version"`
	Description     string                            `toml:"description"`
	Authors         []string                          `toml:"authors"`
	Dependencies    map[string]interface{}             `toml:"dependencies"`
	GroupDependencies map[string]map[string]interface{} `toml:"group"`
	Extras          map[string][]string               `toml:"extras"`
	Scripts         map[string]string                 `toml:"scripts"`
	BuildScript     string                             `toml:"build"`
	Include         []rawFileSelector                  `toml:"include"`
	Exclude         []rawFileSelector                  `toml:"exclude"`
}

type rawFileSelector struct {
	Path   string `toml:"path"`
	Format string `toml:"format"`
}

type rawManifest struct {
	Project rawProject `toml:"project"`
	Tool    struct {
		Legacy rawLegacy `toml:"pkgbuild"`
	} `toml:"tool"`
}

// Load decodes a TOML manifest and assembles a validated Package, per §4.5. Errors are
// aggregated into the returned Diagnostics rather than failing fast on the first problem; a
// ManifestSyntaxError (an unparseable document) is the one exception, returned immediately since
// no field-level validation is possible without a parse tree.
func Load(data []byte) (Package, *Diagnostics) {
	diags := &Diagnostics{}

	var raw rawManifest
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		diags.Add(fmt.Errorf("manifest is not valid TOML: %w", err))
		return Package{}, diags
	}
	for _, key := range md.Undecoded() {
		diags.Warn("unrecognized property %q is ignored", key.String())
	}

	dynamic := map[string]bool{}
	for _, f := range raw.Project.Dynamic {
		dynamic[f] = true
	}
	if dynamic["name"] {
		diags.Addf(`"name" must not appear in dynamic`)
	}

	reconcile := func(field, modernVal, legacyVal string) string {
		if modernVal != "" && legacyVal != "" && !dynamic[field] {
			diags.Addf("field %q is declared in both [project] and [tool.%s]; add it to project.dynamic or remove the duplicate", field, legacyTableName)
			return modernVal
		}
		if dynamic[field] && legacyVal != "" {
			return legacyVal
		}
		if modernVal != "" {
			return modernVal
		}
		if !dynamic[field] && legacyVal != "" {
			diags.Addf("field %q is only valid via [tool.%s] when listed in project.dynamic", field, legacyTableName)
		}
		return legacyVal
	}

	pkg := Package{
		Dynamic:     dynamic,
		Groups:      map[string][]dependency.Spec{},
		Extras:      map[string][]string{},
		Scripts:     map[string]ScriptTarget{},
		EntryPoints: map[string]map[string]string{},
	}

	name := raw.Project.Name
	if name == "" {
		name = raw.Tool.Legacy.Name
		if name != "" {
			diags.Addf(`"name" is not eligible for legacy-table fallback; declare project.name directly`)
		}
	}
	if name == "" {
		diags.Addf("manifest has no project name")
	}
	pkg.Name = dependency.NormalizeName(name)
	if pkg.Name == "" && name != "" {
		diags.Addf("project name %q does not normalize to a non-empty canonical form", name)
	}

	versionStr := reconcile("version", raw.Project.Version, raw.Tool.Legacy.Version)
	if versionStr == "" {
		diags.Addf("manifest has no version")
	} else {
		v, err := version.Parse(versionStr)
		if err != nil {
			diags.Addf("invalid version %q: %v", versionStr, err)
		} else {
			pkg.Version = v
		}
	}

	pkg.Metadata.Description = reconcile("description", raw.Project.Description, raw.Tool.Legacy.Description)
	if strings.Contains(pkg.Metadata.Description, "\n") {
		diags.Addf("description must not contain embedded newlines")
	}
	pkg.Metadata.Keywords = raw.Project.Keywords
	pkg.Metadata.Classifiers = raw.Project.Classifiers
	pkg.Metadata.ProjectURLs = raw.Project.URLs

	if raw.Project.RequiresPython != "" {
		r, err := constraint.Parse(raw.Project.RequiresPython)
		if err != nil {
			diags.Addf("invalid requires-python %q: %v", raw.Project.RequiresPython, err)
		} else {
			pkg.RequiresPython = r
		}
	} else {
		pkg.RequiresPython = constraint.Any()
	}

	loadAuthors(&pkg, raw, diags)
	loadReadme(&pkg, raw.Project.Readme, diags)
	loadLicense(&pkg, raw.Project.License, diags)
	loadDependencies(&pkg, raw, diags)
	loadExtras(&pkg, raw, diags)
	loadScripts(&pkg, raw, diags)
	loadBuildConfig(&pkg, raw, diags)

	for _, c := range pkg.Metadata.Classifiers {
		if !isKnownClassifierPrefix(c) {
			diags.Addf("unrecognized classifier %q", c)
		}
	}

	return pkg, diags
}

func loadAuthors(pkg *Package, raw rawManifest, diags *Diagnostics) {
	for _, a := range raw.Project.Authors {
		pkg.Metadata.Authors = append(pkg.Metadata.Authors, Author{Name: a.Name, Email: a.Email})
	}
	for _, a := range raw.Project.Maintainers {
		pkg.Metadata.Maintainers = append(pkg.Metadata.Maintainers, Author{Name: a.Name, Email: a.Email})
	}
	for _, s := range raw.Tool.Legacy.Authors {
		author, err := parsePersonString(s)
		if err != nil {
			diags.Addf("invalid author %q: %v", s, err)
			continue
		}
		pkg.Metadata.Authors = append(pkg.Metadata.Authors, author)
	}
}

var rePersonString = regexp.MustCompile(`^\s*(.*?)\s*<([^<>]+)>\s*$`)

// parsePersonString parses the "Display Name <email@host>" form.
func parsePersonString(s string) (Author, error) {
	m := rePersonString.FindStringSubmatch(s)
	if m == nil {
		return Author{}, fmt.Errorf(`expected "Display Name <email@host>"`)
	}
	return Author{Name: m[1], Email: m[2]}, nil
}

func loadReadme(pkg *Package, raw interface{}, diags *Diagnostics) {
	var paths []string
	switch v := raw.(type) {
	case nil:
		return
	case string:
		paths = []string{v}
	case []interface{}:
		for _, e := range v {
			if s, ok := e.(string); ok {
				paths = append(paths, s)
			}
		}
	case map[string]interface{}:
		if files, ok := v["files"].([]interface{}); ok {
			for _, e := range files {
				if s, ok := e.(string); ok {
					paths = append(paths, s)
				}
			}
		}
	default:
		diags.Addf("readme has unrecognized shape")
		return
	}
	for _, p := range paths {
		if !hasAnySuffix(p, ".md", ".rst", ".txt") {
			diags.Addf("readme %q has unsupported suffix (expected .md, .rst, or .txt)", p)
			continue
		}
		pkg.Metadata.ReadmePaths = append(pkg.Metadata.ReadmePaths, p)
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func loadLicense(pkg *Package, raw interface{}, diags *Diagnostics) {
	switch v := raw.(type) {
	case nil:
		return
	case string:
		pkg.Metadata.License = License{Identifier: v}
	case map[string]interface{}:
		if text, ok := v["text"].(string); ok {
			pkg.Metadata.License = License{Text: text}
			return
		}
		if file, ok := v["file"].(string); ok {
			pkg.Metadata.License = License{File: file}
			return
		}
		diags.Addf(`license table must have a "text" or "file" key`)
	default:
		diags.Addf("license has unrecognized shape")
	}
}

func loadDependencies(pkg *Package, raw rawManifest, diags *Diagnostics) {
	pkg.Groups[MainGroup] = parseDependencyStrings(raw.Project.Dependencies, diags)

	for name, fields := range raw.Tool.Legacy.Dependencies {
		spec, err := parseInlineDependency(name, fields, diags)
		if err != nil {
			diags.Add(err)
			continue
		}
		pkg.Groups[MainGroup] = append(pkg.Groups[MainGroup], spec)
	}

	for group, deps := range raw.Tool.Legacy.GroupDependencies {
		for name, fields := range deps {
			spec, err := parseInlineDependency(name, fields, diags)
			if err != nil {
				diags.Add(err)
				continue
			}
			pkg.Groups[group] = append(pkg.Groups[group], spec)
		}
	}

	for extra, deps := range raw.Project.OptionalDependencies {
		specs := parseDependencyStrings(deps, diags)
		pkg.Groups[MainGroup] = append(pkg.Groups[MainGroup], specs...)
		for _, s := range specs {
			pkg.Extras[extra] = append(pkg.Extras[extra], s.Name)
		}
	}

	for group := range pkg.Groups {
		sort.SliceStable(pkg.Groups[group], func(i, j int) bool {
			return pkg.Groups[group][i].Name < pkg.Groups[group][j].Name
		})
	}
}

func parseDependencyStrings(deps []string, diags *Diagnostics) []dependency.Spec {
	var out []dependency.Spec
	for _, s := range deps {
		spec, err := dependency.Parse(s)
		if err != nil {
			diags.Add(err)
			continue
		}
		out = append(out, spec)
	}
	return out
}

// parseInlineDependency converts a decoded TOML value for a single dependency into
// dependency.InlineFields. A bare string value ("^1.2.3") is shorthand for {version = "^1.2.3"}.
func parseInlineDependency(name string, raw interface{}, diags *Diagnostics) (dependency.Spec, error) {
	switch v := raw.(type) {
	case string:
		return dependency.FromInline(name, dependency.InlineFields{Version: v})
	case map[string]interface{}:
		f := dependency.InlineFields{}
		f.Version, _ = v["version"].(string)
		f.Path, _ = v["path"].(string)
		f.URL, _ = v["url"].(string)
		f.Git, _ = v["git"].(string)
		f.Hg, _ = v["hg"].(string)
		f.Svn, _ = v["svn"].(string)
		f.Bzr, _ = v["bzr"].(string)
		f.Branch, _ = v["branch"].(string)
		f.Tag, _ = v["tag"].(string)
		f.Rev, _ = v["rev"].(string)
		f.Ref, _ = v["ref"].(string)
		f.Subdirectory, _ = v["subdirectory"].(string)
		f.Markers, _ = v["markers"].(string)
		f.Python, _ = v["python"].(string)
		f.Optional, _ = v["optional"].(bool)
		f.Develop, _ = v["develop"].(bool)
		f.AllowPrereleases, _ = v["allow-prereleases"].(bool)
		f.Source, _ = v["source"].(string)
		if extras, ok := v["extras"].([]interface{}); ok {
			for _, e := range extras {
				if s, ok := e.(string); ok {
					f.Extras = append(f.Extras, s)
				}
			}
		}
		spec, err := dependency.FromInline(name, f)
		if err == nil && f.Develop && !spec.Develop {
			diags.Warn("dependency %q: develop=true is only meaningful for directory and VCS dependencies; ignored", name)
		}
		return spec, err
	default:
		return dependency.Spec{}, fmt.Errorf("dependency %q: unrecognized declaration shape", name)
	}
}

func loadExtras(pkg *Package, raw rawManifest, diags *Diagnostics) {
	known := map[string]bool{}
	optional := map[string]bool{}
	for _, d := range pkg.Groups[MainGroup] {
		known[d.Name] = true
		optional[d.Name] = d.Optional
	}
	for extra, names := range raw.Tool.Legacy.Extras {
		for _, n := range names {
			norm := dependency.NormalizeName(n)
			if !known[norm] {
				diags.Addf("extras %q references unknown dependency %q", extra, n)
				continue
			}
			if !optional[norm] {
				diags.Warn("extras %q references dependency %q, which is not declared optional", extra, n)
			}
			pkg.Extras[extra] = append(pkg.Extras[extra], norm)
		}
	}
}

func loadScripts(pkg *Package, raw rawManifest, diags *Diagnostics) {
	reCallable := regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*:[A-Za-z_][A-Za-z0-9_]*$`)
	add := func(name, target string) {
		if reCallable.MatchString(target) {
			pkg.Scripts[name] = ScriptTarget{Callable: target}
			return
		}
		if strings.HasPrefix(target, "file:") {
			pkg.Scripts[name] = ScriptTarget{FilePath: strings.TrimPrefix(target, "file:")}
			return
		}
		diags.Addf("script %q target %q does not match mod(.sub)*:callable or file reference form", name, target)
	}
	for name, target := range raw.Project.Scripts {
		add(name, target)
	}
	for name, target := range raw.Tool.Legacy.Scripts {
		add(name, target)
	}
	pkg.EntryPoints = raw.Project.EntryPoints
}

func loadBuildConfig(pkg *Package, raw rawManifest, diags *Diagnostics) {
	pkg.Build.Script = raw.Tool.Legacy.BuildScript
	pkg.Build.Includes = parseFileSelectors(raw.Tool.Legacy.Include, diags)
	pkg.Build.Excludes = parseFileSelectors(raw.Tool.Legacy.Exclude, diags)
}

func parseFileSelectors(raw []rawFileSelector, diags *Diagnostics) []FileSelector {
	var out []FileSelector
	for _, r := range raw {
		var f Format
		switch r.Format {
		case "", "both":
			f = FormatBoth
		case "sdist":
			f = FormatSdistOnly
		case "wheel":
			f = FormatWheelOnly
		default:
			diags.Addf("file selector %q has unrecognized format %q", r.Path, r.Format)
			continue
		}
		out = append(out, FileSelector{Pattern: r.Path, Format: f})
	}
	return out
}

// closedClassifierPrefixes is a representative subset of the Trove classifier vocabulary; only
// the top-level category prefix is validated since the full list is externally maintained and
// grows over time.
var closedClassifierPrefixes = []string{
	"Development Status ::", "Environment ::", "Framework ::", "Intended Audience ::",
	"License ::", "Natural Language ::", "Operating System ::", "Programming Language ::",
	"Topic ::", "Typing ::",
}

func isKnownClassifierPrefix(c string) bool {
	for _, p := range closedClassifierPrefixes {
		if strings.HasPrefix(c, p) {
			return true
		}
	}
	return false
}
