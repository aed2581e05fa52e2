// Internal API, not to be exported
package internal

import (
	"io"
)

// FillValueReader endlessly repeats a byte pattern. It supplies pad values
// and repeated records for record ranges that have no stored data.
type FillValueReader struct {
	repeat      []byte
	repeatIndex int
}

func NewFillValueReader(repeat []byte) io.Reader {
	return &FillValueReader{repeat, 0}
}

// NewFillReader returns a reader yielding exactly n bytes of the repeated pattern.
func NewFillReader(repeat []byte, n int64) io.Reader {
	if len(repeat) == 0 || n <= 0 {
		return io.LimitReader(nil, 0)
	}
	return io.LimitReader(NewFillValueReader(repeat), n)
}

func (fvr *FillValueReader) Read(p []byte) (int, error) {
	rl := len(fvr.repeat)
	ri := fvr.repeatIndex
	z := p
	if ri == 0 {
		for len(z) >= rl {
			copy(z, fvr.repeat)
			z = z[rl:]
		}
	}
	for i := 0; i < len(z); i++ {
		z[i] = fvr.repeat[ri%rl]
		ri++
	}
	fvr.repeatIndex = ri % rl
	return len(p), nil
}
