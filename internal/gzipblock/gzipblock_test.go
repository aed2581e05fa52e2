package gzipblock

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("cdf records "), 500)
	for _, level := range []int{0, 1, 6, 9} {
		c, err := Deflate(data, level)
		require.NoError(t, err)
		require.Less(t, len(c), len(data))
		got, err := Inflate(c, int64(len(data)))
		require.NoError(t, err)
		require.Equal(t, data, got)
	}
}

func TestAnySize(t *testing.T) {
	c, err := Deflate([]byte("abc"), DefaultLevel)
	require.NoError(t, err)
	got, err := Inflate(c, -1)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

func TestSizeMismatch(t *testing.T) {
	c, err := Deflate([]byte("abcdef"), DefaultLevel)
	require.NoError(t, err)
	_, err = Inflate(c, 10)
	require.ErrorIs(t, err, ErrSizeMismatch)
	_, err = Inflate(c, 3)
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestNotGzip(t *testing.T) {
	_, err := Inflate([]byte("plain"), 5)
	require.Error(t, err)
}
