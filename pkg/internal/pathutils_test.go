package internal_test

import (
	"bytes"
	"testing"

	"github.com/jlrickert/repodex/pkg/internal"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "   ", want: ""},
		{in: "/", want: "/"},
		{in: "a/b", want: "/a/b"},
		{in: " /a/b/ ", want: "/a/b"},
		{in: "/a//b/./c/../d", want: "/a/b/d"},
		{in: `\news\2026`, want: "/news/2026"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, internal.NormalizePath(tc.in), "input %q", tc.in)
	}
}

func TestPathDepthAndIsBelow(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, internal.PathDepth("/"))
	require.Equal(t, 1, internal.PathDepth("/a"))
	require.Equal(t, 3, internal.PathDepth("/a/b/c"))

	require.True(t, internal.IsBelow("/a/b", "/a"))
	require.True(t, internal.IsBelow("/a", "/a"))
	require.False(t, internal.IsBelow("/ab", "/a"))
	require.True(t, internal.IsBelow("/x", "/"))
	require.False(t, internal.IsBelow("", "/"))
}

func TestIsTerminal_Buffer(t *testing.T) {
	t.Parallel()
	require.False(t, internal.IsTerminal(&bytes.Buffer{}))
}
