package cdf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-native-cdf/cdf/writer"
	"github.com/stretchr/testify/require"
)

// writeFile creates a CDF with one INT4 variable of n records.
func writeFile(t *testing.T, path string, n int, opts ...writer.Option) {
	t.Helper()
	w, err := writer.New(opts...)
	require.NoError(t, err)
	v, err := w.DefineVariable(writer.VariableSpec{Name: "counts", Type: types.Int4})
	require.NoError(t, err)
	data := make([]int32, n)
	for i := range data {
		data[i] = int32(i)
	}
	require.NoError(t, v.AddData(data, nil, false, false))
	require.NoError(t, w.AddGlobalAttribute("Source", filepath.Base(path)))
	require.NoError(t, w.Create(path))
}

func checkCounts(t *testing.T, f *File, n int) {
	t.Helper()
	got, err := f.Values("counts", nil)
	require.NoError(t, err)
	require.Len(t, got, n)
	require.Equal(t, int32(n-1), got.([]int32)[n-1])
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.cdf")
	packed := filepath.Join(dir, "packed.cdf")
	writeFile(t, plain, 100)
	writeFile(t, packed, 100, writer.WithFileCompression())

	f, err := Open(plain)
	require.NoError(t, err)
	require.Equal(t, plain, f.Name())
	checkCounts(t, f, 100)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	f, err = Open(packed)
	require.NoError(t, err)
	require.True(t, f.Compressed())
	require.False(t, f.Mapped())
	checkCounts(t, f, 100)
	require.NoError(t, f.Close())

	_, err = Open(filepath.Join(dir, "missing.cdf"))
	require.ErrorIs(t, err, os.ErrNotExist)

	text := filepath.Join(dir, "text.cdf")
	require.NoError(t, os.WriteFile(text, []byte("not a CDF at all"), 0o644))
	_, err = Open(text)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	require.Contains(t, err.Error(), text)
}

func TestOpenBytesAndReaderAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.cdf")
	writeFile(t, path, 10)
	buf, err := os.ReadFile(path)
	require.NoError(t, err)

	f, err := OpenBytes(buf)
	require.NoError(t, err)
	checkCounts(t, f, 10)
	require.False(t, f.Mapped())
	require.NoError(t, f.Close())

	f, err = New(bytes.NewReader(buf), int64(len(buf)))
	require.NoError(t, err)
	checkCounts(t, f, 10)

	_, err = New(bytes.NewReader(buf), int64(len(buf))+1)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type fakeFetcher struct {
	files map[string][]byte
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	b, has := f.files[url]
	if !has {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func TestOpenURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remote.cdf")
	writeFile(t, path, 5, writer.WithFileCompression())
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	const url = "https://example.org/data/remote.cdf"
	fetcher := &fakeFetcher{files: map[string][]byte{
		url:                     buf,
		"https://example.org/x": []byte("<html></html>"),
	}}

	ctx := context.Background()
	f, err := OpenURL(ctx, url, fetcher)
	require.NoError(t, err)
	require.Equal(t, url, f.Name())
	checkCounts(t, f, 5)
	src, err := f.AttributeStrings("Source")
	require.NoError(t, err)
	require.Equal(t, []string{"remote.cdf"}, src)

	_, err = OpenURL(ctx, "https://example.org/x", fetcher)
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = OpenURL(ctx, "https://example.org/y", fetcher)
	require.ErrorIs(t, err, os.ErrNotExist)

	transport := errors.New("connection reset")
	_, err = OpenURL(ctx, url, &fakeFetcher{err: transport})
	require.ErrorIs(t, err, transport)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = OpenURL(canceled, url, fetcher)
	require.ErrorIs(t, err, context.Canceled)
}
