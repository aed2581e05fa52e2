// Package cdf opens CDF files for reading, from a path, a byte slice, a
// random access reader or a URL. Files opened by path are memory mapped.
package cdf

import (
	"context"
	"fmt"
	"io"

	"github.com/batchatco/go-native-cdf/cdf/api"
	"github.com/batchatco/go-native-cdf/cdf/reader"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/batchatco/go-native-cdf/internal/mmap"
)

// ErrUnsupportedFormat is returned for input that is not a CDF.
var ErrUnsupportedFormat = reader.ErrUnsupportedFormat

// Option configures how files are read.
type Option = reader.Option

var (
	logger = internal.NewLogger()
)

// SetLogLevel sets the logging level of this package and of the reader,
// and returns the old level. 0 logs nothing but fatal errors, 3 logs
// everything.
func SetLogLevel(level int) int {
	old := logger.LogLevel()
	reader.SetLogLevel(level)
	switch level {
	case 0:
		logger.SetLogLevel(internal.LevelFatal)
	case 1:
		logger.SetLogLevel(internal.LevelError)
	case 2:
		logger.SetLogLevel(internal.LevelWarn)
	default:
		logger.SetLogLevel(internal.LevelInfo)
	}
	return int(old)
}

// File is an open CDF. It must be closed when done to release its mapping.
type File struct {
	*reader.CDF
	name    string
	mapping *mmap.Mapping
}

// Name is the path or URL the file was opened from, if any.
func (f *File) Name() string {
	return f.name
}

// Mapped reports whether the file is read straight from a memory mapping.
func (f *File) Mapped() bool {
	return f.mapping != nil && f.mapping.Mapped()
}

// Close releases the file's mapping. The file and every slice it returned
// that aliases its data must not be used afterwards.
func (f *File) Close() error {
	m := f.mapping
	f.mapping = nil
	return m.Close()
}

// Open memory maps the file at path and parses it.
func Open(path string, opts ...Option) (*File, error) {
	m, err := mmap.Map(path)
	if err != nil {
		return nil, err
	}
	c, err := reader.New(m.Data, opts...)
	if err != nil {
		if cerr := m.Close(); cerr != nil {
			logger.With(internal.Fields{"path": path, "error": cerr}).Error("unmap failed")
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f := &File{CDF: c, name: path, mapping: m}
	if c.Compressed() {
		// The reader inflated its own copy.
		if err := m.Close(); err != nil {
			logger.With(internal.Fields{"path": path, "error": err}).Error("unmap failed")
		}
		f.mapping = nil
	}
	logger.With(internal.Fields{"path": path, "size": c.Size(), "mapped": f.Mapped()}).
		Info("opened")
	return f, nil
}

// OpenBytes parses a CDF held in buf, which must not change while the file
// is in use.
func OpenBytes(buf []byte, opts ...Option) (*File, error) {
	c, err := reader.New(buf, opts...)
	if err != nil {
		return nil, err
	}
	return &File{CDF: c}, nil
}

// New reads size bytes from r and parses them.
func New(r io.ReaderAt, size int64, opts ...Option) (*File, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(r, 0, size), buf); err != nil {
		return nil, fmt.Errorf("reading CDF: %w", err)
	}
	return OpenBytes(buf, opts...)
}

// OpenURL fetches the CDF at url and parses it.
func OpenURL(ctx context.Context, url string, fetcher api.Fetcher, opts ...Option) (*File, error) {
	rc, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	buf, err := io.ReadAll(rc)
	if cerr := rc.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	f, err := OpenBytes(buf, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	f.name = url
	logger.With(internal.Fields{"url": url, "size": len(buf)}).Info("fetched")
	return f, nil
}
