// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package dependency_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/pkgbuild/pkg/constraint"
	"github.com/datawire/pkgbuild/pkg/dependency"
)

func TestParseBasic(t *testing.T) {
	t.Parallel()
	s, err := dependency.Parse("requests>=2.13,<3.0")
	require.NoError(t, err)
	assert.Equal(t, "requests", s.Name)
	assert.Equal(t, dependency.KindRegistry, s.Kind)
}

func TestParseExtrasAndMarker(t *testing.T) {
	t.Parallel()
	s, err := dependency.Parse(`requests[socks,security]>=2.13 ; python_version >= "3.7"`)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"socks", "security"}, s.Extras)
	assert.True(t, s.Marker.Eval(map[string]string{"python_version": "3.8"}))
	assert.False(t, s.Marker.Eval(map[string]string{"python_version": "3.6"}))
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()
	s, err := dependency.Parse("Foo_Bar.Baz>=1.0")
	require.NoError(t, err)
	assert.Equal(t, "foo-bar-baz", s.Name)
}

func TestFromInlinePath(t *testing.T) {
	t.Parallel()
	s, err := dependency.FromInline("mylib", dependency.InlineFields{Path: "../mylib"})
	require.NoError(t, err)
	assert.Equal(t, dependency.KindDirectory, s.Kind)
}

func TestFromInlineMultipleOriginsRejected(t *testing.T) {
	t.Parallel()
	_, err := dependency.FromInline("mylib", dependency.InlineFields{Path: "../mylib", URL: "https://example.com/x.whl"})
	assert.Error(t, err)
}

func TestFromInlineMultipleRefsRejected(t *testing.T) {
	t.Parallel()
	_, err := dependency.FromInline("mylib", dependency.InlineFields{Git: "https://example.com/x.git", Branch: "main", Tag: "v1"})
	assert.Error(t, err)
}

func TestFromInlinePythonAndMarkersIntersect(t *testing.T) {
	t.Parallel()
	s, err := dependency.FromInline("mylib", dependency.InlineFields{
		Version: ">=1.0",
		Python:  ">=3.7",
		Markers: `sys_platform == "linux"`,
	})
	require.NoError(t, err)
	assert.True(t, s.Marker.Eval(map[string]string{"sys_platform": "linux", "python_version": "3.8"}))
}

func TestEqualityIgnoresConstraintForDirectOrigins(t *testing.T) {
	t.Parallel()
	a, err := dependency.FromInline("mylib", dependency.InlineFields{Git: "https://example.com/x.git", Rev: "abc123"})
	require.NoError(t, err)
	b, err := dependency.FromInline("mylib", dependency.InlineFields{Git: "https://example.com/x.git", Rev: "abc123"})
	require.NoError(t, err)
	b.Range, err = constraint.Parse(">=2.0")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestStringRoundTrip(t *testing.T) {
	t.Parallel()
	s, err := dependency.Parse("requests[socks]>=2.13,<3.0")
	require.NoError(t, err)
	s2, err := dependency.Parse(s.String())
	require.NoError(t, err)
	assert.True(t, s.Equal(s2))
}
