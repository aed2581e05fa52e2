package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.cdf")
	want := []byte{0xcd, 0xf3, 0x00, 0x01, 0x00, 0x00, 0xff, 0xff}
	require.NoError(t, os.WriteFile(path, want, 0o644))

	m, err := Map(path)
	require.NoError(t, err)
	require.Equal(t, want, m.Data)
	require.Equal(t, int64(8), m.Len())
	require.NoError(t, m.Close())
	require.Nil(t, m.Data)
	require.False(t, m.Mapped())
	require.NoError(t, m.Close())
}

func TestMapEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	m, err := Map(path)
	require.NoError(t, err)
	require.Equal(t, int64(0), m.Len())
	require.NoError(t, m.Close())
}

func TestMapMissing(t *testing.T) {
	_, err := Map(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.cdf")
	want := []byte("record bytes")
	require.NoError(t, os.WriteFile(path, want, 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	m, err := readAll(f, int64(len(want)))
	require.NoError(t, err)
	require.Equal(t, want, m.Data)
	require.False(t, m.Mapped())
	require.NoError(t, m.Close())

	_, err = readAll(f, int64(len(want))+1)
	require.Error(t, err)
}
