// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package constraint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/pkgbuild/pkg/constraint"
	"github.com/datawire/pkgbuild/pkg/version"
)

func mustParse(t *testing.T, s string) constraint.Range {
	t.Helper()
	r, err := constraint.Parse(s)
	require.NoError(t, err, s)
	return r
}

func mustVersion(t *testing.T, s string) version.Version {
	t.Helper()
	v, err := version.Parse(s)
	require.NoError(t, err, s)
	return v
}

func TestAlgebraInvariants(t *testing.T) {
	t.Parallel()
	a := mustParse(t, ">=1.0,<2.0")

	assert.True(t, constraint.Intersect(a, constraint.Any()).Equal(a))
	assert.True(t, constraint.Union(a, constraint.Empty()).Equal(a))
	assert.True(t, constraint.Complement(constraint.Complement(a)).Equal(a))
	assert.True(t, constraint.Intersect(a, constraint.Complement(a)).IsEmpty())
}

func TestUnionContainsEitherOperand(t *testing.T) {
	t.Parallel()
	a := mustParse(t, ">=1.0,<2.0").WithAllowPrereleases(true)
	b := mustParse(t, ">=3.0,<4.0").WithAllowPrereleases(true)
	u := constraint.Union(a, b)
	for _, s := range []string{"1.5", "3.5", "2.5"} {
		v := mustVersion(t, s)
		want := a.Contains(v) || b.Contains(v)
		assert.Equal(t, want, u.Contains(v), s)
	}
}

func TestCaret(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"^1.2.3": ">=1.2.3,<2.0.0",
		"^0.2.3": ">=0.2.3,<0.3.0",
		"^0.0.3": ">=0.0.3,<0.0.4",
		"^0.0.0": ">=0.0.0,<0.0.1",
	}
	for caret, equiv := range cases {
		a := mustParse(t, caret)
		b := mustParse(t, equiv)
		assert.Truef(t, a.Equal(b), "%s should equal %s; got %s vs %s", caret, equiv, a, b)
	}
}

func TestTilde(t *testing.T) {
	t.Parallel()
	a := mustParse(t, "~1.2.3")
	b := mustParse(t, ">=1.2.3,<1.3.0")
	assert.True(t, a.Equal(b))
}

func TestTildeTwoSegments(t *testing.T) {
	t.Parallel()
	a := mustParse(t, "~1.2")
	b := mustParse(t, ">=1.2,<1.3")
	assert.True(t, a.Equal(b))
}

func TestWildcard(t *testing.T) {
	t.Parallel()
	a := mustParse(t, "1.2.*")
	b := mustParse(t, ">=1.2,<1.3")
	assert.True(t, a.Equal(b))
}

func TestCompatibleRelease(t *testing.T) {
	t.Parallel()
	a := mustParse(t, "~=2.2")
	b := mustParse(t, ">=2.2,<3")
	assert.True(t, a.Equal(b))

	a2 := mustParse(t, "~=2.2.1")
	b2 := mustParse(t, ">=2.2.1,<2.3")
	assert.True(t, a2.Equal(b2))
}

func TestPrereleaseAdmission(t *testing.T) {
	t.Parallel()
	r := mustParse(t, ">=1.0,<2.0")
	pre := mustVersion(t, "1.5a1")
	assert.False(t, r.Contains(pre), "pre-releases excluded by default")

	allowed := r.WithAllowPrereleases(true)
	assert.True(t, allowed.Contains(pre))

	lowerIsPre := mustParse(t, ">=1.5a1,<2.0")
	assert.True(t, lowerIsPre.Contains(pre), "pre-release lower bound admits pre-releases")
}

func TestIntersectMultipleClauses(t *testing.T) {
	t.Parallel()
	r := mustParse(t, ">=2.13,<3.0")
	assert.True(t, r.Contains(mustVersion(t, "2.13")))
	assert.False(t, r.Contains(mustVersion(t, "3.0")))
}

func TestInvalidClauses(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", ">=", "~=1", "foo"} {
		_, err := constraint.Parse(s)
		assert.Error(t, err, s)
	}
}

func TestUnionOperator(t *testing.T) {
	t.Parallel()
	r := mustParse(t, ">=1.0,<2.0 || >=3.0,<4.0")
	assert.True(t, r.Contains(mustVersion(t, "1.5")))
	assert.True(t, r.Contains(mustVersion(t, "3.5")))
	assert.False(t, r.Contains(mustVersion(t, "2.5")))
}
