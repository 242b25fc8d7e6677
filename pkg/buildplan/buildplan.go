// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package buildplan walks a package's source tree and produces the two ordered file lists
// consumed by artifact emission: sdist_files and wheel_files.
package buildplan

import (
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/datawire/pkgbuild/pkg/dependency"
	"github.com/datawire/pkgbuild/pkg/manifest"
)

// Entry pairs a file on disk with the POSIX-separated path it occupies inside an archive.
type Entry struct {
	SourcePath  string // absolute or relative to sourceRoot, host-native separators
	ArchivePath string // POSIX-separated, relative to the archive's top-level directory
}

// Plan is the pair of ordered file lists produced for a single build.
type Plan struct {
	SdistFiles []Entry
	WheelFiles []Entry
}

// Build walks sourceRoot and assembles the Plan for pkg, applying the selection rules from
// §4.6: every file under sourceRoot is a candidate for both formats, minus VCS-ignored paths
// (when the source root is a git working tree) and declared excludes, with declared includes
// overriding both, each gated by its format selector. Directories of path/directory
// dependencies are not walked. Standard metadata files (pyproject.toml, READMEs, LICENSEs) get
// no special treatment: they are in the sdist only when no ignore or exclude removes them.
func Build(sourceRoot string, pkg manifest.Package, archivePrefix string) (Plan, error) {
	ignored, err := vcsIgnoredSet(sourceRoot)
	if err != nil {
		return Plan{}, err
	}
	pathDeps := pathDependencyDirs(sourceRoot, pkg)

	var all []Entry
	err = filepath.Walk(sourceRoot, func(filename string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			if filename != sourceRoot && pathDeps[filename] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(sourceRoot, filename)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		all = append(all, Entry{SourcePath: filename, ArchivePath: rel})
		return nil
	})
	if err != nil {
		return Plan{}, err
	}

	included := func(e Entry) (sdist, wheel bool) {
		sdistExcluded := ignored[e.ArchivePath]
		wheelExcluded := ignored[e.ArchivePath]
		for _, sel := range pkg.Build.Excludes {
			if matchSelector(sel.Pattern, e.ArchivePath) {
				switch sel.Format {
				case manifest.FormatSdistOnly:
					sdistExcluded = true
				case manifest.FormatWheelOnly:
					wheelExcluded = true
				default:
					sdistExcluded, wheelExcluded = true, true
				}
			}
		}
		sdistForced, wheelForced := false, false
		for _, sel := range pkg.Build.Includes {
			if matchSelector(sel.Pattern, e.ArchivePath) {
				switch sel.Format {
				case manifest.FormatSdistOnly:
					sdist, sdistForced = true, true
				case manifest.FormatWheelOnly:
					wheel, wheelForced = true, true
				default:
					sdist, wheel = true, true
					sdistForced, wheelForced = true, true
				}
			}
		}
		if !sdistForced {
			sdist = !sdistExcluded
		}
		if !wheelForced {
			wheel = !wheelExcluded
		}
		return sdist, wheel
	}

	var sdistFiles, wheelFiles []Entry
	for _, e := range all {
		sdist, wheel := included(e)
		if sdist {
			sdistFiles = append(sdistFiles, withPrefix(e, archivePrefix))
		}
		if wheel {
			wheelFiles = append(wheelFiles, e)
		}
	}

	sortEntries(sdistFiles)
	sortEntries(wheelFiles)

	return Plan{SdistFiles: sdistFiles, WheelFiles: wheelFiles}, nil
}

// pathDependencyDirs resolves every path-kind dependency across pkg.Groups to an absolute,
// cleaned directory under sourceRoot, per §4.6 rule 6: a directory dependency declared as a local
// path is not itself walked as part of this package's own tree. Entries that do not exist or
// resolve to a single file rather than a directory are not included; an entry outside
// sourceRoot is included but never matches a directory the walk visits.
func pathDependencyDirs(sourceRoot string, pkg manifest.Package) map[string]bool {
	dirs := map[string]bool{}
	for _, specs := range pkg.Groups {
		for _, spec := range specs {
			if spec.Kind != dependency.KindPath && spec.Kind != dependency.KindDirectory {
				continue
			}
			if spec.Path == "" {
				continue
			}
			abs := spec.Path
			if !filepath.IsAbs(abs) {
				abs = filepath.Join(sourceRoot, abs)
			}
			abs = filepath.Clean(abs)
			info, err := os.Stat(abs)
			if err != nil || !info.IsDir() {
				continue
			}
			dirs[abs] = true
		}
	}
	return dirs
}

func withPrefix(e Entry, prefix string) Entry {
	if prefix == "" {
		return e
	}
	e.ArchivePath = path.Join(prefix, e.ArchivePath)
	return e
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ArchivePath < entries[j].ArchivePath })
}

// matchSelector tests a declared include/exclude pattern against an archive-relative path using
// shell glob semantics (the same matching the standard packaging tools apply to MANIFEST.in-style
// entries). A pattern with no glob metacharacters matches that exact path and every path under
// it as a directory.
func matchSelector(pattern, archivePath string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == archivePath || strings.HasPrefix(archivePath, pattern+"/")
	}
	ok, err := path.Match(pattern, archivePath)
	return err == nil && ok
}

// vcsIgnoredSet reports which archive-relative paths a VCS-ignore helper excludes, when
// sourceRoot is a git working tree. When git is unavailable or sourceRoot is not a working tree,
// no paths are considered ignored (rule 1's filter becomes a no-op, per §4.6's "if a
// version-control helper reports this source is a working tree").
func vcsIgnoredSet(sourceRoot string) (map[string]bool, error) {
	ignored := map[string]bool{}
	if _, err := os.Stat(filepath.Join(sourceRoot, ".git")); err != nil {
		return ignored, nil
	}
	cmd := exec.Command("git", "-C", sourceRoot, "ls-files", "--others", "--ignored", "--exclude-standard")
	out, err := cmd.Output()
	if err != nil {
		// git present but not usable against this tree (e.g. not actually a repo): treat
		// as "no VCS-ignore information available" rather than failing the whole build.
		return ignored, nil
	}
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			ignored[filepath.ToSlash(line)] = true
		}
	}
	return ignored, nil
}
