package util

import (
	"encoding/binary"
	"io"

	"github.com/batchatco/go-thrower"
)

// MustWrite wraps binary.Write and throws an error if it fails.
func MustWrite(w io.Writer, order binary.ByteOrder, data any) {
	err := binary.Write(w, order, data)
	thrower.ThrowIfError(err)
}

// MustWriteBE wraps binary.Write with BigEndian and throws an error if it fails.
// Every CDF record header field is big-endian.
func MustWriteBE(w io.Writer, data any) {
	MustWrite(w, binary.BigEndian, data)
}

// MustWriteRaw wraps Write and throws an error if it fails.
func MustWriteRaw(w io.Writer, p []byte) {
	_, err := w.Write(p)
	thrower.ThrowIfError(err)
}

// MustWriteOffset writes a file offset using the given width (4 or 8 bytes).
func MustWriteOffset(w io.Writer, width int, offset int64) {
	if width == 4 {
		MustWriteBE(w, int32(offset))
		return
	}
	MustWriteBE(w, offset)
}

// MustWritePadded writes s into a field of exactly width bytes, truncating
// or NUL padding as needed.
func MustWritePadded(w io.Writer, s string, width int) {
	field := make([]byte, width)
	copy(field, s)
	MustWriteRaw(w, field)
}

// CountedWriter counts the bytes written through it.
type CountedWriter struct {
	w     io.Writer
	count int64
}

func NewCountedWriter(w io.Writer) *CountedWriter {
	return &CountedWriter{w: w}
}

func (c *CountedWriter) Count() int64 {
	return c.count
}

func (c *CountedWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	return n, err
}
