// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package hooksurface implements the five standardized build hooks: the frontend-facing ABI that
// loads a manifest from a source tree and emits sdist/wheel artifacts (or their metadata alone).
package hooksurface

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/datawire/dlib/dlog"

	"github.com/datawire/pkgbuild/pkg/artifact"
	"github.com/datawire/pkgbuild/pkg/buildplan"
	"github.com/datawire/pkgbuild/pkg/manifest"
	"github.com/datawire/pkgbuild/pkg/python/pep425"
)

// Config is the ecosystem "config_settings" mapping passed into every hook: repeated
// --config-setting key=value CLI flags collapse into string lists here since a frontend may pass
// the same key more than once.
type Config map[string][]string

// Surface loads and validates the manifest at SourceRoot once per operation and dispatches each
// hook against the resulting Package.
type Surface struct {
	SourceRoot string
}

func (s Surface) manifestPath() string {
	return filepath.Join(s.SourceRoot, "pyproject.toml")
}

// loadPackage reads and validates the manifest, returning a ManifestSchemaError-class aggregate
// if validation failed.
func (s Surface) loadPackage(ctx context.Context) (manifest.Package, error) {
	data, err := os.ReadFile(s.manifestPath())
	if err != nil {
		return manifest.Package{}, fmt.Errorf("reading manifest: %w", err)
	}
	pkg, diags := manifest.Load(data)
	for _, w := range diags.Warnings {
		dlog.Warnf(ctx, "%v", w)
	}
	if diags.HasErrors() {
		return manifest.Package{}, diags.Err()
	}
	return pkg, nil
}

// GetRequiresForBuildSdist always returns an empty list: the backend is self-contained.
func (s Surface) GetRequiresForBuildSdist(ctx context.Context, config Config) ([]string, error) {
	dlog.Debugf(ctx, "get_requires_for_build_sdist: %s", s.SourceRoot)
	return nil, nil
}

// GetRequiresForBuildWheel returns an empty list for every package, including one that declares a
// build script; in that case it only logs the script at debug level.
func (s Surface) GetRequiresForBuildWheel(ctx context.Context, config Config) ([]string, error) {
	pkg, err := s.loadPackage(ctx)
	if err != nil {
		return nil, err
	}
	if pkg.Build.Script == "" {
		return nil, nil
	}
	// The manifest loader does not read any build-time requirements (the "build-system"
	// table is not decoded), so there is no list to report.
	dlog.Debugf(ctx, "get_requires_for_build_wheel: build script %s declared", pkg.Build.Script)
	return nil, nil
}

// PrepareMetadataForBuildWheel emits only the dist-info directory into metadataDirectory and
// returns its name.
func (s Surface) PrepareMetadataForBuildWheel(ctx context.Context, metadataDirectory string, config Config) (string, error) {
	pkg, err := s.loadPackage(ctx)
	if err != nil {
		return "", err
	}
	distInfo := artifact.DistInfoDirName(pkg)
	dir := filepath.Join(metadataDirectory, distInfo)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	files := artifact.DistInfoFiles(pkg, artifact.Generator, artifact.DefaultTag.String(), true)
	for name, content := range files {
		if err := writeFileAtomic(filepath.Join(dir, name), content); err != nil {
			return "", err
		}
	}
	return distInfo, nil
}

// readDistInfoOverride reads back whichever of METADATA, WHEEL, and entry_points.txt a prior
// prepare_metadata_for_build_wheel call left under metadataDirectory, so build_wheel/build_editable
// carry forward any edits a frontend made to the prepared metadata instead of re-rendering it from
// the manifest. Returns nil if metadataDirectory is empty or its dist-info directory is absent.
func readDistInfoOverride(pkg manifest.Package, metadataDirectory string) map[string][]byte {
	if metadataDirectory == "" {
		return nil
	}
	dir := filepath.Join(metadataDirectory, artifact.DistInfoDirName(pkg))
	override := map[string][]byte{}
	for _, name := range []string{"METADATA", "WHEEL", "entry_points.txt"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		override[name] = data
	}
	if len(override) == 0 {
		return nil
	}
	return override
}

// BuildSdist emits the sdist into sdistDirectory and returns its filename.
func (s Surface) BuildSdist(ctx context.Context, sdistDirectory string, config Config) (string, error) {
	pkg, err := s.loadPackage(ctx)
	if err != nil {
		return "", err
	}
	plan, err := buildplan.Build(s.SourceRoot, pkg, "")
	if err != nil {
		return "", err
	}

	filename := artifact.SdistFilename(pkg)
	outPath := filepath.Join(sdistDirectory, filename)
	if err := writeArchiveAtomic(outPath, func(f *os.File) error {
		return artifact.BuildSdist(f, pkg, plan)
	}); err != nil {
		return "", err
	}
	dlog.Infof(ctx, "build_sdist: wrote %s", filename)
	return filename, nil
}

// BuildWheel emits the wheel into wheelDirectory. If metadataDirectory is non-empty, its dist-info
// files are reused as-is per §4.8's contract, rather than being re-rendered from the manifest.
func (s Surface) BuildWheel(ctx context.Context, wheelDirectory string, config Config, metadataDirectory string) (string, error) {
	pkg, err := s.loadPackage(ctx)
	if err != nil {
		return "", err
	}
	plan, err := buildplan.Build(s.SourceRoot, pkg, "")
	if err != nil {
		return "", err
	}

	tag := artifact.DefaultTag
	if pkg.Build.Script != "" {
		tag = pep425.Tag{Python: "cp3", ABI: "abi3", Platform: "linux_x86_64"}
	}

	override := readDistInfoOverride(pkg, metadataDirectory)
	filename := artifact.WheelFilename(pkg, tag)
	outPath := filepath.Join(wheelDirectory, filename)
	if err := writeArchiveAtomic(outPath, func(f *os.File) error {
		return artifact.BuildWheel(f, pkg, plan, tag, pkg.Build.Script == "", override)
	}); err != nil {
		return "", err
	}
	dlog.Infof(ctx, "build_wheel: wrote %s", filename)
	return filename, nil
}

// BuildEditable mirrors BuildWheel but the payload is a .pth-style loader stub that makes the
// source tree's packages importable in place, rather than copying them into the wheel.
func (s Surface) BuildEditable(ctx context.Context, wheelDirectory string, config Config, metadataDirectory string) (string, error) {
	pkg, err := s.loadPackage(ctx)
	if err != nil {
		return "", err
	}
	tag := artifact.DefaultTag
	filename := artifact.WheelFilename(pkg, tag)
	outPath := filepath.Join(wheelDirectory, filename)

	pthContent := s.SourceRoot + "\n"
	plan := buildplan.Plan{} // editable installs ship no project files, only the loader + dist-info
	override := readDistInfoOverride(pkg, metadataDirectory)

	if err := writeArchiveAtomic(outPath, func(f *os.File) error {
		return artifact.BuildEditableWheel(f, pkg, plan, tag, pthContent, override)
	}); err != nil {
		return "", err
	}
	dlog.Infof(ctx, "build_editable: wrote %s", filename)
	return filename, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// writeArchiveAtomic writes an archive via fn to a temporary file beside path, then renames it
// into place; on any error the partial file is removed before the error propagates, per §7's
// IOError policy.
func writeArchiveAtomic(path string, fn func(f *os.File) error) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()
	if err = fn(f); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
