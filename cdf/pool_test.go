package cdf

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func poolFiles(t *testing.T, n int) ([]string, int64) {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	var size int64
	for i := range n {
		path := filepath.Join(dir, fmt.Sprintf("f%d.cdf", i))
		writeFile(t, path, 50)
		st, err := os.Stat(path)
		require.NoError(t, err)
		size = st.Size()
		paths = append(paths, path)
	}
	return paths, size
}

func TestPoolEviction(t *testing.T) {
	paths, size := poolFiles(t, 3)
	var evicted []string
	p := NewPool(2*size, func(path string) { evicted = append(evicted, path) })
	defer p.Close()

	h0, err := p.Acquire(paths[0])
	require.NoError(t, err)
	h1, err := p.Acquire(paths[1])
	require.NoError(t, err)
	h2, err := p.Acquire(paths[2])
	require.NoError(t, err)
	// Over budget, but everything is in use.
	require.Empty(t, evicted)
	require.Equal(t, PoolStats{Files: 3, InUse: 3, Bytes: 3 * size}, p.Stats())

	h1.Release()
	require.Equal(t, []string{paths[1]}, evicted)
	h0.Release()
	h0.Release()
	require.Equal(t, []string{paths[1]}, evicted)
	require.Equal(t, PoolStats{Files: 2, InUse: 1, Bytes: 2 * size, Evictions: 1}, p.Stats())

	// An idle file is reused, not reopened.
	again, err := p.Acquire(paths[0])
	require.NoError(t, err)
	require.Same(t, again.File, h0.File)
	checkCounts(t, again.File, 50)

	h2.Release()
	again.Release()
	h1, err = p.Acquire(paths[1])
	require.NoError(t, err)
	// paths[2] was released before paths[0], so it goes first.
	require.Equal(t, []string{paths[1], paths[2]}, evicted)
	h1.Release()
}

func TestPoolSharedHandles(t *testing.T) {
	paths, _ := poolFiles(t, 2)
	p := NewPool(0, nil)
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		path := paths[i%2]
		g.Go(func() error {
			h, err := p.Acquire(path)
			if err != nil {
				return err
			}
			defer h.Release()
			_, err = h.Values("counts", []int{10, 20})
			return err
		})
	}
	require.NoError(t, g.Wait())
	// With a zero budget nothing idle is kept.
	require.Equal(t, 0, p.Stats().Files)
	p.Close()
}

func TestPoolClose(t *testing.T) {
	paths, size := poolFiles(t, 2)
	var evicted []string
	p := NewPool(10*size, func(path string) { evicted = append(evicted, path) })
	h0, err := p.Acquire(paths[0])
	require.NoError(t, err)
	h1, err := p.Acquire(paths[1])
	require.NoError(t, err)
	h1.Release()
	require.Equal(t, 2, p.Stats().Files)

	p.Close()
	require.Equal(t, PoolStats{Files: 1, InUse: 1, Bytes: size}, p.Stats())
	_, err = p.Acquire(paths[1])
	require.ErrorIs(t, err, ErrPoolClosed)

	// Still usable until released.
	checkCounts(t, h0.File, 50)
	h0.Release()
	require.Equal(t, PoolStats{}, p.Stats())
	// Closing is not eviction.
	require.Empty(t, evicted)
}

func TestPoolOpenError(t *testing.T) {
	p := NewPool(1<<20, nil)
	defer p.Close()
	_, err := p.Acquire(filepath.Join(t.TempDir(), "missing.cdf"))
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, PoolStats{}, p.Stats())
}
