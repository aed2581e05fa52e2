// Package gzipblock compresses and decompresses the gzip blocks stored in
// CVVR and CCR records.
package gzipblock

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
)

// DefaultLevel is the gzip level used when none is given.
const DefaultLevel = 6

var ErrSizeMismatch = errors.New("inflated size mismatch")

// Deflate compresses data at the given level. Levels outside 1-9 use
// DefaultLevel.
func Deflate(data []byte, level int) ([]byte, error) {
	if level < 1 || level > 9 {
		level = DefaultLevel
	}
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("gzip compression: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Inflate decompresses data, which must expand to exactly size bytes. A
// negative size accepts any length.
func Inflate(data []byte, size int64) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer func() { _ = r.Close() }()
	if size < 0 {
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gzip decompression: %w", err)
		}
		return out, nil
	}
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("%w: want %d bytes: %w", ErrSizeMismatch, size, err)
	}
	// Anything left over is also a mismatch.
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n > 0 {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrSizeMismatch, size)
	}
	return out, nil
}
