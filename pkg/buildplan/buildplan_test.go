// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package buildplan_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/pkgbuild/pkg/buildplan"
	"github.com/datawire/pkgbuild/pkg/dependency"
	"github.com/datawire/pkgbuild/pkg/manifest"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestBuildDeterministicOrder(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "demo/__init__.py", "")
	writeFile(t, root, "demo/mod.py", "")
	writeFile(t, root, "pyproject.toml", "")
	writeFile(t, root, "README.md", "")

	plan, err := buildplan.Build(root, manifest.Package{}, "demo-0.1")
	require.NoError(t, err)
	require.NotEmpty(t, plan.SdistFiles)

	for i := 1; i < len(plan.SdistFiles); i++ {
		assert.LessOrEqual(t, plan.SdistFiles[i-1].ArchivePath, plan.SdistFiles[i].ArchivePath)
	}
}

func TestBuildExcludePattern(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "demo/__init__.py", "")
	writeFile(t, root, "demo/tests/test_x.py", "")

	pkg := manifest.Package{
		Build: manifest.BuildConfig{
			Excludes: []manifest.FileSelector{{Pattern: "demo/tests/*", Format: manifest.FormatBoth}},
		},
	}
	plan, err := buildplan.Build(root, pkg, "")
	require.NoError(t, err)
	for _, e := range plan.WheelFiles {
		assert.NotContains(t, e.ArchivePath, "tests")
	}
}

func TestBuildExcludePatternFormatScoped(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "demo/__init__.py", "")
	writeFile(t, root, "demo/tests/test_x.py", "")

	pkg := manifest.Package{
		Build: manifest.BuildConfig{
			Excludes: []manifest.FileSelector{{Pattern: "demo/tests/*", Format: manifest.FormatWheelOnly}},
		},
	}
	plan, err := buildplan.Build(root, pkg, "")
	require.NoError(t, err)

	foundInSdist := false
	for _, e := range plan.SdistFiles {
		if strings.Contains(e.ArchivePath, "tests") {
			foundInSdist = true
		}
	}
	assert.True(t, foundInSdist, "wheel-only exclude must not affect the sdist")

	for _, e := range plan.WheelFiles {
		assert.NotContains(t, e.ArchivePath, "tests")
	}
}

func TestBuildSkipsPathDependencyDirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "demo/__init__.py", "")
	writeFile(t, root, "vendor/sibling/__init__.py", "")
	writeFile(t, root, "vendor/sibling/big.bin", "not part of this package")

	pkg := manifest.Package{
		Groups: map[string][]dependency.Spec{
			manifest.MainGroup: {
				{Name: "sibling", Kind: dependency.KindDirectory, Path: "vendor/sibling"},
			},
		},
	}
	plan, err := buildplan.Build(root, pkg, "")
	require.NoError(t, err)
	for _, e := range plan.SdistFiles {
		assert.NotContains(t, e.ArchivePath, "vendor/sibling")
	}
}
