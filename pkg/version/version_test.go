// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package version_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/pkgbuild/pkg/version"
)

func TestSortOrder(t *testing.T) {
	t.Parallel()
	testcases := map[string][]string{
		"final-releases": {
			"0.9", "0.9.1", "0.9.2", "0.9.10", "0.9.11", "1.0", "1.0.1", "1.1", "2.0", "2.0.1",
		},
		"pre-releases": {
			"4.3a2", "4.3b2", "4.3rc2", "4.3",
		},
		"post-releases": {
			"4.3a2.post1", "4.3b2.post1", "4.3rc2.post1",
		},
		"developmental-releases": {
			"4.3a2.dev1", "4.3b2.dev1", "4.3rc2.dev1", "4.3.post2.dev1",
		},
		"epochs": {
			"2013.10", "2014.04", "1!1.0", "1!1.1", "1!2.0",
		},
		"dev-before-pre-before-final-before-post": {
			"1.0.dev0", "1.0a1.dev1", "1.0a1", "1.0b1.dev1", "1.0b1", "1.0rc1.dev1", "1.0rc1",
			"1.0", "1.0.post1.dev1", "1.0.post1",
		},
	}
	for name, ordered := range testcases {
		name, ordered := name, ordered
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			parsed := make([]version.Version, len(ordered))
			for i, s := range ordered {
				v, err := version.Parse(s)
				require.NoError(t, err, s)
				parsed[i] = v
			}
			shuffled := make([]version.Version, len(parsed))
			for i, v := range parsed {
				shuffled[len(parsed)-1-i] = v
			}
			sort.SliceStable(shuffled, func(i, j int) bool {
				return shuffled[i].Cmp(shuffled[j]) < 0
			})
			for i := range parsed {
				assert.Truef(t, parsed[i].Equal(shuffled[i]),
					"position %d: want %s got %s", i, parsed[i], shuffled[i])
			}
		})
	}
}

func TestEquivalentRelease(t *testing.T) {
	t.Parallel()
	a, err := version.Parse("1.0")
	require.NoError(t, err)
	b, err := version.Parse("1.0.0")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.NotEqual(t, a.String(), b.String())
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"1.0", "1!2.3.4", "1.0a1", "1.0b2", "1.0rc3", "1.0.post1", "1.0.dev1",
		"1.0rc1.post1.dev1", "1.0+local.123", "1.0+ubuntu.1",
	}
	for _, s := range inputs {
		s := s
		t.Run(s, func(t *testing.T) {
			t.Parallel()
			v, err := version.Parse(s)
			require.NoError(t, err)
			v2, err := version.Parse(v.String())
			require.NoError(t, err)
			assert.True(t, v.Equal(v2))
			assert.Equal(t, v, v2)
		})
	}
}

func TestLocalSortsAboveBarePublic(t *testing.T) {
	t.Parallel()
	bare, err := version.Parse("1.0")
	require.NoError(t, err)
	local, err := version.Parse("1.0+abc")
	require.NoError(t, err)
	assert.True(t, bare.Less(local))
}

func TestIsPreRelease(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"1.0":        false,
		"1.0a1":      true,
		"1.0.dev1":   true,
		"1.0.post1":  false,
		"1.0rc1":     true,
	}
	for s, want := range cases {
		v, err := version.Parse(s)
		require.NoError(t, err)
		assert.Equal(t, want, v.IsPreRelease(), s)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "abc", "1.0.", "1.0-", "1.0+"} {
		_, err := version.Parse(s)
		assert.Error(t, err, s)
	}
}
