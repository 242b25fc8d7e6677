// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package marker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/pkgbuild/pkg/marker"
	"github.com/datawire/pkgbuild/pkg/version"
)

func mustParse(t *testing.T, s string) marker.Marker {
	t.Helper()
	m, err := marker.Parse(s)
	require.NoError(t, err, s)
	return m
}

func mustVersion(t *testing.T, s string) version.Version {
	t.Helper()
	v, err := version.Parse(s)
	require.NoError(t, err, s)
	return v
}

func TestEvalSimple(t *testing.T) {
	t.Parallel()
	m := mustParse(t, `sys_platform == "linux"`)
	assert.True(t, m.Eval(map[string]string{"sys_platform": "linux"}))
	assert.False(t, m.Eval(map[string]string{"sys_platform": "darwin"}))
}

func TestEvalAndOr(t *testing.T) {
	t.Parallel()
	m := mustParse(t, `python_version >= "3.7" and sys_platform == "linux"`)
	assert.True(t, m.Eval(map[string]string{"python_version": "3.9", "sys_platform": "linux"}))
	assert.False(t, m.Eval(map[string]string{"python_version": "3.6", "sys_platform": "linux"}))

	m2 := mustParse(t, `sys_platform == "linux" or sys_platform == "darwin"`)
	assert.True(t, m2.Eval(map[string]string{"sys_platform": "darwin"}))
	assert.False(t, m2.Eval(map[string]string{"sys_platform": "win32"}))
}

func TestEvalParens(t *testing.T) {
	t.Parallel()
	m := mustParse(t, `(sys_platform == "linux" or sys_platform == "darwin") and extra == "dev"`)
	assert.True(t, m.Eval(map[string]string{"sys_platform": "linux", "extra": "dev"}))
	assert.False(t, m.Eval(map[string]string{"sys_platform": "linux", "extra": "test"}))
}

func TestEvalReversedOperandOrder(t *testing.T) {
	t.Parallel()
	m := mustParse(t, `"linux" == sys_platform`)
	assert.True(t, m.Eval(map[string]string{"sys_platform": "linux"}))
}

func TestEvalIn(t *testing.T) {
	t.Parallel()
	m := mustParse(t, `sys_platform in "linux|darwin"`)
	assert.True(t, m.Eval(map[string]string{"sys_platform": "linux"}))
	assert.False(t, m.Eval(map[string]string{"sys_platform": "win32"}))

	m2 := mustParse(t, `sys_platform not in "linux|darwin"`)
	assert.True(t, m2.Eval(map[string]string{"sys_platform": "win32"}))
}

func TestEvalInLiteralFirst(t *testing.T) {
	t.Parallel()
	// Here the containment direction is reversed from TestEvalIn: the literal ("linux") is
	// tested for membership within the attribute's value, not the other way around.
	m := mustParse(t, `"linux" in sys_platform`)
	assert.True(t, m.Eval(map[string]string{"sys_platform": "linux-5.15-generic"}))
	assert.False(t, m.Eval(map[string]string{"sys_platform": "darwin"}))

	m2 := mustParse(t, `"linux" not in sys_platform`)
	assert.True(t, m2.Eval(map[string]string{"sys_platform": "darwin"}))
	assert.False(t, m2.Eval(map[string]string{"sys_platform": "linux-5.15-generic"}))
}

func TestExcludeExtra(t *testing.T) {
	t.Parallel()
	m := mustParse(t, `extra == "dev" and sys_platform == "linux"`)
	residual := marker.ExcludeExtra(m, "dev")
	assert.True(t, residual.Eval(map[string]string{"sys_platform": "linux"}))
	assert.False(t, residual.Eval(map[string]string{"sys_platform": "darwin"}))
}

func TestOnlyPython(t *testing.T) {
	t.Parallel()
	m := mustParse(t, `python_version >= "3.7" and python_version < "4.0"`)
	r := marker.OnlyPython(m)
	assert.True(t, r.Contains(mustVersion(t, "3.9")))
	assert.False(t, r.Contains(mustVersion(t, "3.6")))
}

func TestIntersectDropsContradiction(t *testing.T) {
	t.Parallel()
	a := mustParse(t, `python_version >= "3.7"`)
	b := mustParse(t, `python_version < "3.0"`)
	m := marker.Intersect(a, b)
	assert.False(t, m.Eval(map[string]string{"python_version": "3.9"}))
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "sys_platform ==", "sys_platform == 'linux' and", "(sys_platform == 'linux'"} {
		_, err := marker.Parse(s)
		assert.Error(t, err, s)
	}
}
