package util

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/batchatco/go-thrower"
)

// errWriter is an io.Writer that always returns an error.
type errWriter struct{ err error }

func (e errWriter) Write(p []byte) (int, error) { return 0, e.err }

var errIO = errors.New("io error")

func TestMustWriteBE(t *testing.T) {
	var buf bytes.Buffer
	MustWriteBE(&buf, uint32(0xDEADBEEF))
	var got uint32
	if err := binary.Read(&buf, binary.BigEndian, &got); err != nil {
		t.Fatal(err)
	}
	if got != 0xDEADBEEF {
		t.Errorf("got 0x%X, want 0xDEADBEEF", got)
	}
}

func TestMustWrite(t *testing.T) {
	var buf bytes.Buffer
	MustWrite(&buf, binary.LittleEndian, uint16(0x1234))
	var got uint16
	if err := binary.Read(&buf, binary.LittleEndian, &got); err != nil {
		t.Fatal(err)
	}
	if got != 0x1234 {
		t.Errorf("got 0x%X, want 0x1234", got)
	}
}

func TestMustWriteOffset(t *testing.T) {
	var buf bytes.Buffer
	MustWriteOffset(&buf, 4, -1)
	MustWriteOffset(&buf, 8, 0x0102030405)
	exp := []byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 1, 2, 3, 4, 5}
	if !bytes.Equal(buf.Bytes(), exp) {
		t.Errorf("got % x, want % x", buf.Bytes(), exp)
	}
}

func TestMustWritePadded(t *testing.T) {
	var buf bytes.Buffer
	MustWritePadded(&buf, "abc", 5)
	MustWritePadded(&buf, "toolong", 3)
	exp := []byte{'a', 'b', 'c', 0, 0, 't', 'o', 'o'}
	if !bytes.Equal(buf.Bytes(), exp) {
		t.Errorf("got %q, want %q", buf.Bytes(), exp)
	}
}

func TestCountedWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewCountedWriter(&buf)
	MustWriteRaw(cw, []byte{1, 2, 3})
	MustWriteBE(cw, int64(7))
	if cw.Count() != 11 || buf.Len() != 11 {
		t.Errorf("count %d, buffer %d, want 11", cw.Count(), buf.Len())
	}
}

func TestMustWriteThrows(t *testing.T) {
	err := func() (err error) {
		defer thrower.RecoverError(&err)
		MustWriteRaw(errWriter{errIO}, []byte{1})
		return nil
	}()
	if !errors.Is(err, errIO) {
		t.Errorf("got %v, want %v", err, errIO)
	}
}
