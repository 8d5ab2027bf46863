package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSHA256HasherKnownDigest(t *testing.T) {
	hasher := NewSHA256Hasher()
	sum, err := hasher.Sum(strings.NewReader("hello"))
	require.NoError(t, err)
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)
}

func TestSHA256HasherSameContentSameDigest(t *testing.T) {
	hasher := NewSHA256Hasher()
	a, err := hasher.Sum(strings.NewReader("blueprint rev A"))
	require.NoError(t, err)
	b, err := hasher.Sum(strings.NewReader("blueprint rev A"))
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := hasher.Sum(strings.NewReader("blueprint rev B"))
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}
