//go:build !unix

package mmap

import (
	"errors"
	"os"
)

var errNoMmap = errors.New("mmap not supported on this platform")

// mapFile always fails here, so Map reads the file instead.
func mapFile(*os.File, int) ([]byte, error) {
	return nil, errNoMmap
}

func unmap([]byte) error {
	return nil
}
