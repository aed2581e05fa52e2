//go:build unix

package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapUsesMmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.cdf")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))
	m, err := Map(path)
	require.NoError(t, err)
	require.True(t, m.Mapped())
	require.Equal(t, []byte{1, 2, 3}, m.Data)
	require.NoError(t, m.Close())
}
