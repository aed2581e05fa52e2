// Package mmap maps files read-only into memory, falling back to reading
// them when mapping is unavailable.
package mmap

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrTooLarge = errors.New("file too large to map")

// Mapping is the contents of a file. Data must not be used after Close.
type Mapping struct {
	Data    []byte
	mmapped bool
}

// Map returns the contents of the file at path.
func Map(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size64)
	}
	size := int(size64)
	if size == 0 {
		return &Mapping{Data: []byte{}}, nil
	}

	if data, err := mapFile(f, size); err == nil {
		return &Mapping{Data: data, mmapped: true}, nil
	}
	return readAll(f, size64)
}

// readAll reads the whole file into memory.
func readAll(f *os.File, size int64) (*Mapping, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, size), data); err != nil {
		return nil, err
	}
	return &Mapping{Data: data}, nil
}

// Mapped reports whether the data is backed by a memory mapping.
func (m *Mapping) Mapped() bool {
	return m.mmapped
}

// Len is the size of the mapped data.
func (m *Mapping) Len() int64 {
	if m == nil {
		return 0
	}
	return int64(len(m.Data))
}

// Close releases the mapping. Closing twice is harmless.
func (m *Mapping) Close() error {
	if m == nil || m.Data == nil {
		return nil
	}
	var err error
	if m.mmapped {
		err = unmap(m.Data)
	}
	m.Data = nil
	m.mmapped = false
	return err
}
