// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package artifact_test

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/pkgbuild/pkg/artifact"
	"github.com/datawire/pkgbuild/pkg/buildplan"
	"github.com/datawire/pkgbuild/pkg/manifest"
	"github.com/datawire/pkgbuild/pkg/testutil"
	"github.com/datawire/pkgbuild/pkg/version"
)

func TestRenderMetadataBasic(t *testing.T) {
	t.Parallel()
	v, err := version.Parse("0.1")
	require.NoError(t, err)
	pkg := manifest.Package{Name: "demo", Version: v}
	md := artifact.RenderMetadata(pkg)
	assert.Contains(t, md, "Name: demo")
	assert.Contains(t, md, "Version: 0.1")
}

func TestBuildWheelContainsDistInfo(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "__init__.py"), []byte("x = 1\n"), 0o644))

	v, err := version.Parse("0.1")
	require.NoError(t, err)
	pkg := manifest.Package{Name: "demo", Version: v}

	plan := buildplan.Plan{
		WheelFiles: []buildplan.Entry{{SourcePath: filepath.Join(root, "__init__.py"), ArchivePath: "demo/__init__.py"}},
	}

	var buf bytes.Buffer
	require.NoError(t, artifact.BuildWheel(&buf, pkg, plan, artifact.DefaultTag, true, nil))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names["demo/__init__.py"])
	assert.True(t, names["demo-0.1.dist-info/METADATA"])
	assert.True(t, names["demo-0.1.dist-info/WHEEL"])
	assert.True(t, names["demo-0.1.dist-info/RECORD"])
}

func TestBuildWheelIsDeterministic(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "__init__.py"), []byte("x = 1\n"), 0o644))

	v, err := version.Parse("0.1")
	require.NoError(t, err)
	pkg := manifest.Package{Name: "demo", Version: v}
	plan := buildplan.Plan{
		WheelFiles: []buildplan.Entry{{SourcePath: filepath.Join(root, "__init__.py"), ArchivePath: "demo/__init__.py"}},
	}

	var buf1, buf2 bytes.Buffer
	require.NoError(t, artifact.BuildWheel(&buf1, pkg, plan, artifact.DefaultTag, true, nil))
	require.NoError(t, artifact.BuildWheel(&buf2, pkg, plan, artifact.DefaultTag, true, nil))

	testutil.AssertBytesEqual(t, "wheel rebuild", buf1.Bytes(), buf2.Bytes())

	listing, err := testutil.DumpWheelListing(buf1.Bytes())
	require.NoError(t, err)
	assert.Contains(t, listing, "demo/__init__.py")
}

func TestWheelFilename(t *testing.T) {
	t.Parallel()
	v, err := version.Parse("0.1")
	require.NoError(t, err)
	pkg := manifest.Package{Name: "demo", Version: v}
	assert.Equal(t, "demo-0.1-py3-none-any.whl", artifact.WheelFilename(pkg, artifact.DefaultTag))
}

func TestWheelFilenameEscapesHyphenatedName(t *testing.T) {
	t.Parallel()
	v, err := version.Parse("0.1")
	require.NoError(t, err)
	pkg := manifest.Package{Name: "my-demo-pkg", Version: v}
	assert.Equal(t, "my_demo_pkg-0.1-py3-none-any.whl", artifact.WheelFilename(pkg, artifact.DefaultTag))
	assert.Equal(t, "my_demo_pkg-0.1.tar.gz", artifact.SdistFilename(pkg))
	assert.Equal(t, "my_demo_pkg-0.1.dist-info", artifact.DistInfoDirName(pkg))
}

func TestBuildWheelReusesDistInfoOverride(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "__init__.py"), []byte("x = 1\n"), 0o644))

	v, err := version.Parse("0.1")
	require.NoError(t, err)
	pkg := manifest.Package{Name: "demo", Version: v}
	plan := buildplan.Plan{
		WheelFiles: []buildplan.Entry{{SourcePath: filepath.Join(root, "__init__.py"), ArchivePath: "demo/__init__.py"}},
	}

	override := map[string][]byte{"METADATA": []byte("Metadata-Version: 2.1\nName: demo\nVersion: 0.1\nX-Edited-By-Frontend: yes\n")}

	var buf bytes.Buffer
	require.NoError(t, artifact.BuildWheel(&buf, pkg, plan, artifact.DefaultTag, true, override))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != "demo-0.1.dist-info/METADATA" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Contains(t, string(data), "X-Edited-By-Frontend: yes")
		return
	}
	t.Fatal("METADATA entry not found in wheel")
}
