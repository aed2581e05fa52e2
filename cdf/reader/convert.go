package reader

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-thrower"
	"golang.org/x/text/encoding/charmap"
)

// Number is the set of element types the typed getters convert to.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~float32 | ~float64
}

// decodeString converts CDF_CHAR bytes, which are ISO-8859-1, to a Go
// string without trailing NULs.
func decodeString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// decodeNative decodes raw values to a flat slice of the Go type of t.
// Strings are numElems bytes each. EPOCH16 values are pairs of float64.
func decodeNative(t types.DataType, raw []byte, order binary.ByteOrder, numElems int) any {
	width, err := t.Width()
	thrower.ThrowIfError(err)
	if t.IsString() {
		n := len(raw) / numElems
		out := make([]string, n)
		for i := range out {
			out[i] = decodeString(raw[i*numElems : (i+1)*numElems])
		}
		return out
	}
	n := len(raw) / width
	var data any
	switch t {
	case types.Int1, types.Byte:
		data = make([]int8, n)
	case types.Int2:
		data = make([]int16, n)
	case types.Int4:
		data = make([]int32, n)
	case types.Int8, types.TT2000:
		data = make([]int64, n)
	case types.UInt1:
		data = make([]uint8, n)
	case types.UInt2:
		data = make([]uint16, n)
	case types.UInt4:
		data = make([]uint32, n)
	case types.Real4, types.Float:
		data = make([]float32, n)
	case types.Real8, types.Double, types.Epoch:
		data = make([]float64, n)
	case types.Epoch16:
		data = make([]float64, 2*n)
	default:
		fail("unknown type "+t.String(), fmt.Errorf("%w: %v", types.ErrUnsupportedType, t))
	}
	err = binary.Read(bytes.NewReader(raw), order, data)
	throwIf(err, ErrCorruptData)
	return data
}

// exact reports whether y holds the same value as x.
func exact[S, T Number](x S, y T) bool {
	if S(y) == x && (x < 0) == (y < 0) {
		return true
	}
	// NaN converts to NaN.
	return x != x && y != y
}

func castAll[S, T Number](src []S, preserve bool) ([]T, error) {
	out := make([]T, len(src))
	for i, x := range src {
		y := T(x)
		if preserve && !exact(x, y) {
			return nil, fmt.Errorf("%w: %v (%T) does not fit in %T", types.ErrIncompatibleType, x, x, y)
		}
		out[i] = y
	}
	return out, nil
}

// castSlice converts a native slice to []T. With preserve set, any value that
// would change is an ErrIncompatibleType error; otherwise values wrap or
// truncate the way Go conversions do.
func castSlice[T Number](src any, preserve bool) ([]T, error) {
	switch s := src.(type) {
	case []T:
		return s, nil
	case []int8:
		return castAll[int8, T](s, preserve)
	case []int16:
		return castAll[int16, T](s, preserve)
	case []int32:
		return castAll[int32, T](s, preserve)
	case []int64:
		return castAll[int64, T](s, preserve)
	case []uint8:
		return castAll[uint8, T](s, preserve)
	case []uint16:
		return castAll[uint16, T](s, preserve)
	case []uint32:
		return castAll[uint32, T](s, preserve)
	case []float32:
		return castAll[float32, T](s, preserve)
	case []float64:
		return castAll[float64, T](s, preserve)
	}
	return nil, fmt.Errorf("%w: cannot convert %T to numbers", types.ErrIncompatibleType, src)
}
