// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package hooksurface_test

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/pkgbuild/pkg/hooksurface"
)

func writeManifest(t *testing.T, root string) {
	t.Helper()
	doc := `
[project]
name = "demo"
version = "0.1"
description = "a demo package"
dependencies = ["requests>=2.13,<3.0"]
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "pyproject.toml"), []byte(doc), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "demo"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "demo", "__init__.py"), []byte(""), 0o644))
}

func TestGetRequiresForBuildSdistEmpty(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeManifest(t, root)
	s := hooksurface.Surface{SourceRoot: root}
	reqs, err := s.GetRequiresForBuildSdist(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestPrepareMetadataForBuildWheel(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeManifest(t, root)
	metaDir := t.TempDir()

	s := hooksurface.Surface{SourceRoot: root}
	distInfo, err := s.PrepareMetadataForBuildWheel(context.Background(), metaDir, nil)
	require.NoError(t, err)
	assert.Equal(t, "demo-0.1.dist-info", distInfo)

	data, err := os.ReadFile(filepath.Join(metaDir, distInfo, "METADATA"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Name: demo")
}

func TestBuildSdistAndWheel(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeManifest(t, root)
	outDir := t.TempDir()

	s := hooksurface.Surface{SourceRoot: root}

	sdistName, err := s.BuildSdist(context.Background(), outDir, nil)
	require.NoError(t, err)
	assert.Equal(t, "demo-0.1.tar.gz", sdistName)
	_, err = os.Stat(filepath.Join(outDir, sdistName))
	require.NoError(t, err)

	wheelName, err := s.BuildWheel(context.Background(), outDir, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "demo-0.1-py3-none-any.whl", wheelName)

	zr, err := zip.OpenReader(filepath.Join(outDir, wheelName))
	require.NoError(t, err)
	defer zr.Close()
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names["demo/__init__.py"])
	assert.True(t, names["demo-0.1.dist-info/RECORD"])
}

func TestBuildWheelReusesPreparedMetadata(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeManifest(t, root)
	metaDir := t.TempDir()
	outDir := t.TempDir()

	s := hooksurface.Surface{SourceRoot: root}
	distInfo, err := s.PrepareMetadataForBuildWheel(context.Background(), metaDir, nil)
	require.NoError(t, err)

	// Simulate a frontend editing the prepared METADATA before calling build_wheel.
	metadataPath := filepath.Join(metaDir, distInfo, "METADATA")
	data, err := os.ReadFile(metadataPath)
	require.NoError(t, err)
	edited := string(data) + "X-Frontend-Edited: yes\n"
	require.NoError(t, os.WriteFile(metadataPath, []byte(edited), 0o644))

	wheelName, err := s.BuildWheel(context.Background(), outDir, nil, metaDir)
	require.NoError(t, err)

	zr, err := zip.OpenReader(filepath.Join(outDir, wheelName))
	require.NoError(t, err)
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != "demo-0.1.dist-info/METADATA" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Contains(t, string(content), "X-Frontend-Edited: yes")
		return
	}
	t.Fatal("METADATA entry not found in wheel")
}

func TestHyphenatedNameDistInfoAgreesAcrossHooks(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	doc := `
[project]
name = "my-demo-pkg"
version = "0.1"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "pyproject.toml"), []byte(doc), 0o644))

	s := hooksurface.Surface{SourceRoot: root}
	metaDir := t.TempDir()
	distInfo, err := s.PrepareMetadataForBuildWheel(context.Background(), metaDir, nil)
	require.NoError(t, err)
	assert.Equal(t, "my_demo_pkg-0.1.dist-info", distInfo)

	outDir := t.TempDir()
	sdistName, err := s.BuildSdist(context.Background(), outDir, nil)
	require.NoError(t, err)
	assert.Equal(t, "my_demo_pkg-0.1.tar.gz", sdistName)

	wheelName, err := s.BuildWheel(context.Background(), outDir, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "my_demo_pkg-0.1-py3-none-any.whl", wheelName)

	zr, err := zip.OpenReader(filepath.Join(outDir, wheelName))
	require.NoError(t, err)
	defer zr.Close()
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names["my_demo_pkg-0.1.dist-info/METADATA"], "wheel's in-archive dist-info name must match prepare_metadata_for_build_wheel's")
}

func TestBuildEditable(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeManifest(t, root)
	outDir := t.TempDir()

	s := hooksurface.Surface{SourceRoot: root}
	wheelName, err := s.BuildEditable(context.Background(), outDir, nil, "")
	require.NoError(t, err)

	zr, err := zip.OpenReader(filepath.Join(outDir, wheelName))
	require.NoError(t, err)
	defer zr.Close()
	found := false
	for _, f := range zr.File {
		if f.Name == "__editable__.demo.pth" {
			found = true
		}
	}
	assert.True(t, found)
}
