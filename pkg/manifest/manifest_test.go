// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package manifest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/pkgbuild/pkg/manifest"
)

func TestLoadBasic(t *testing.T) {
	t.Parallel()
	doc := `
[project]
name = "demo"
version = "0.1"
description = "a demo package"
dependencies = ["requests[security]>=2.13,<3.0"]

[project.optional-dependencies]
dev = ["pytest>=7.0"]
`
	pkg, diags := manifest.Load([]byte(doc))
	require.False(t, diags.HasErrors(), diags.Err())
	assert.Equal(t, "demo", pkg.Name)
	assert.Equal(t, "0.1", pkg.Version.String())
	require.Len(t, pkg.Groups[manifest.MainGroup], 2)
	assert.ElementsMatch(t, []string{"pytest"}, pkg.Extras["dev"])
}

func TestReconciliationRejectsDuplicateField(t *testing.T) {
	t.Parallel()
	doc := `
[project]
name = "demo"
version = "0.1"

[tool.pkgbuild]
version = "0.2"
`
	_, diags := manifest.Load([]byte(doc))
	require.True(t, diags.HasErrors())
}

func TestReconciliationAllowsDynamicField(t *testing.T) {
	t.Parallel()
	doc := `
[project]
name = "demo"
version = "0.1"
dynamic = ["description"]

[tool.pkgbuild]
description = "filled in by the legacy table"
`
	pkg, diags := manifest.Load([]byte(doc))
	require.False(t, diags.HasErrors(), diags.Err())
	assert.Equal(t, "filled in by the legacy table", pkg.Metadata.Description)
}

func TestNameInDynamicIsRejected(t *testing.T) {
	t.Parallel()
	doc := `
[project]
name = "demo"
version = "0.1"
dynamic = ["name"]
`
	_, diags := manifest.Load([]byte(doc))
	require.True(t, diags.HasErrors())
}

func TestUnknownExtrasReferenceIsError(t *testing.T) {
	t.Parallel()
	doc := `
[project]
name = "demo"
version = "0.1"
dependencies = ["requests>=2.13"]

[tool.pkgbuild.extras]
dev = ["nonexistent"]
`
	_, diags := manifest.Load([]byte(doc))
	require.True(t, diags.HasErrors())
}

func TestDescriptionNewlineIsError(t *testing.T) {
	t.Parallel()
	doc := "[project]\nname = \"demo\"\nversion = \"0.1\"\ndescription = \"line one\\nline two\"\n"
	_, diags := manifest.Load([]byte(doc))
	require.True(t, diags.HasErrors())
}

func TestInvalidTOMLIsSyntaxError(t *testing.T) {
	t.Parallel()
	_, diags := manifest.Load([]byte("this is not [ valid toml"))
	require.True(t, diags.HasErrors())
}
