package writer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"slices"
	"time"

	"github.com/batchatco/go-native-cdf/cdf/epoch"
	"github.com/batchatco/go-native-cdf/cdf/types"
	"golang.org/x/text/encoding/charmap"
)

// Raw is data already encoded in the file's byte order and majority. It is
// stored as is.
type Raw []byte

var timeType = reflect.TypeOf(time.Time{})

// kinds are the Go kinds each data type accepts without conversion.
var kinds = map[types.DataType][]reflect.Kind{
	types.Int1:    {reflect.Int8},
	types.Byte:    {reflect.Int8},
	types.Int2:    {reflect.Int16},
	types.Int4:    {reflect.Int32},
	types.Int8:    {reflect.Int64, reflect.Int},
	types.UInt1:   {reflect.Uint8},
	types.UInt2:   {reflect.Uint16},
	types.UInt4:   {reflect.Uint32},
	types.Real4:   {reflect.Float32},
	types.Float:   {reflect.Float32},
	types.Real8:   {reflect.Float64},
	types.Double:  {reflect.Float64},
	types.Epoch:   {reflect.Float64},
	types.Epoch16: {reflect.Float64},
	types.TT2000:  {reflect.Int64, reflect.Int},
	types.Char:    {reflect.String},
	types.UChar:   {reflect.String},
}

// relaxed are the signed kinds also accepted for unsigned types, reinterpreted.
var relaxed = map[types.DataType][]reflect.Kind{
	types.UInt1: {reflect.Int8},
	types.UInt2: {reflect.Int16},
	types.UInt4: {reflect.Int32},
}

func accepts(t types.DataType, leaf reflect.Type, relax bool) bool {
	if leaf == timeType {
		return t.IsTime()
	}
	if slices.Contains(kinds[t], leaf.Kind()) {
		return true
	}
	return relax && slices.Contains(relaxed[t], leaf.Kind())
}

func isContainer(t reflect.Type) bool {
	k := t.Kind()
	return k == reflect.Slice || k == reflect.Array
}

// leafType is the element type under every level of slices and arrays.
func leafType(t reflect.Type) reflect.Type {
	for isContainer(t) {
		t = t.Elem()
	}
	return t
}

// shapeOf measures nested slices and arrays along their first elements.
func shapeOf(v reflect.Value) []int {
	var shape []int
	for isContainer(v.Type()) {
		shape = append(shape, v.Len())
		if v.Len() == 0 {
			break
		}
		v = v.Index(0)
	}
	return shape
}

// flatten copies the leaves of v into a flat slice, checking that every
// sub-slice has the length shape says it has.
func flatten(v reflect.Value, shape []int) (reflect.Value, error) {
	leaf := leafType(v.Type())
	out := reflect.MakeSlice(reflect.SliceOf(leaf), 0, product(shape))
	var walk func(v reflect.Value, depth int) error
	walk = func(v reflect.Value, depth int) error {
		if depth == len(shape) {
			out = reflect.Append(out, v)
			return nil
		}
		if v.Len() != shape[depth] {
			return fmt.Errorf("%w: ragged input, length %d at depth %d where %d expected",
				ErrDimensionMismatch, v.Len(), depth, shape[depth])
		}
		if depth == len(shape)-1 && v.Kind() == reflect.Slice {
			out = reflect.AppendSlice(out, v)
			return nil
		}
		for i := range v.Len() {
			if err := walk(v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(v, 0); err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// latin1 converts s to the ISO-8859-1 bytes CDF strings are stored in.
func latin1(s string) ([]byte, error) {
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not ISO-8859-1", ErrIncompatibleType, s)
	}
	return b, nil
}

// encodeString converts s to ISO-8859-1 and NUL pads it to width bytes.
func encodeString(s string, width int) ([]byte, error) {
	b, err := latin1(s)
	if err != nil {
		return nil, err
	}
	if len(b) > width {
		return nil, fmt.Errorf("%w: string %q longer than %d", ErrDimensionMismatch, s, width)
	}
	out := make([]byte, width)
	copy(out, b)
	return out, nil
}

// encodeFlat encodes a flat slice of accepted values as data type t. Strings
// are numElems bytes each.
func encodeFlat(t types.DataType, numElems int, flat reflect.Value, order binary.ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	leaf := flat.Type().Elem()
	n := flat.Len()
	switch {
	case leaf.Kind() == reflect.String:
		for i := range n {
			b, err := encodeString(flat.Index(i).String(), numElems)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		return buf.Bytes(), nil

	case leaf == timeType:
		return encodeTimes(t, flat.Interface().([]time.Time), order)

	case leaf.Kind() == reflect.Int:
		wide := make([]int64, n)
		for i := range n {
			wide[i] = flat.Index(i).Int()
		}
		return encodeData(&buf, order, wide)
	}
	return encodeData(&buf, order, flat.Interface())
}

func encodeData(buf *bytes.Buffer, order binary.ByteOrder, data any) ([]byte, error) {
	if err := binary.Write(buf, order, data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIncompatibleType, err)
	}
	return buf.Bytes(), nil
}

func encodeTimes(t types.DataType, times []time.Time, order binary.ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	switch t {
	case types.Epoch:
		vals := make([]float64, len(times))
		for i, tm := range times {
			vals[i] = epoch.TimeToEpoch(tm)
		}
		return encodeData(&buf, order, vals)
	case types.Epoch16:
		vals := make([]float64, 0, 2*len(times))
		for _, tm := range times {
			sec, ps := epoch.TimeToEpoch16(tm)
			vals = append(vals, sec, ps)
		}
		return encodeData(&buf, order, vals)
	case types.TT2000:
		vals := make([]int64, len(times))
		for i, tm := range times {
			tt, err := epoch.TimeToTT2000(tm)
			if err != nil {
				return nil, err
			}
			vals[i] = tt
		}
		return encodeData(&buf, order, vals)
	}
	return nil, fmt.Errorf("%w: times cannot be stored as %v", ErrIncompatibleType, t)
}

// goType is the Go type values of t are converted to for attribute entries.
func goType(t types.DataType) (reflect.Type, error) {
	switch t {
	case types.Int1, types.Byte:
		return reflect.TypeOf(int8(0)), nil
	case types.Int2:
		return reflect.TypeOf(int16(0)), nil
	case types.Int4:
		return reflect.TypeOf(int32(0)), nil
	case types.Int8, types.TT2000:
		return reflect.TypeOf(int64(0)), nil
	case types.UInt1:
		return reflect.TypeOf(uint8(0)), nil
	case types.UInt2:
		return reflect.TypeOf(uint16(0)), nil
	case types.UInt4:
		return reflect.TypeOf(uint32(0)), nil
	case types.Real4, types.Float:
		return reflect.TypeOf(float32(0)), nil
	case types.Real8, types.Double, types.Epoch, types.Epoch16:
		return reflect.TypeOf(float64(0)), nil
	case types.Char, types.UChar:
		return reflect.TypeOf(""), nil
	}
	return nil, fmt.Errorf("%w: %d", types.ErrUnsupportedType, int32(t))
}

// coerce converts a flat slice of numbers to the Go type of t. A value that
// does not fit, or a fraction stored as an integer, is an error.
func coerce(flat reflect.Value, t types.DataType) (reflect.Value, error) {
	target, err := goType(t)
	if err != nil {
		return reflect.Value{}, err
	}
	leaf := flat.Type().Elem()
	if leaf.Kind() == target.Kind() || leaf == timeType {
		return flat, nil
	}
	out := reflect.MakeSlice(reflect.SliceOf(target), flat.Len(), flat.Len())
	for i := range flat.Len() {
		x := flat.Index(i)
		if !x.CanConvert(target) || target.Kind() == reflect.String {
			return reflect.Value{}, fmt.Errorf("%w: %v cannot be stored as %v", ErrIncompatibleType, leaf, t)
		}
		if !fits(x, out.Index(i)) {
			return reflect.Value{}, fmt.Errorf("%w: %v does not fit in %v", ErrIncompatibleType, x, t)
		}
		out.Index(i).Set(x.Convert(target))
	}
	return out, nil
}

// fits reports whether x converts to the type of to without changing value.
func fits(x, to reflect.Value) bool {
	switch {
	case x.CanInt():
		n := x.Int()
		switch {
		case to.CanInt():
			return !to.OverflowInt(n)
		case to.CanUint():
			return n >= 0 && !to.OverflowUint(uint64(n))
		}
		return true
	case x.CanUint():
		n := x.Uint()
		switch {
		case to.CanInt():
			return n <= math.MaxInt64 && !to.OverflowInt(int64(n))
		case to.CanUint():
			return !to.OverflowUint(n)
		}
		return true
	case x.CanFloat():
		f := x.Float()
		switch {
		case to.CanInt():
			return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 && !to.OverflowInt(int64(f))
		case to.CanUint():
			return f == math.Trunc(f) && f >= 0 && f < math.MaxUint64 && !to.OverflowUint(uint64(f))
		case to.CanFloat():
			return math.IsNaN(f) || math.IsInf(f, 0) || !to.OverflowFloat(f)
		}
	}
	return false
}
