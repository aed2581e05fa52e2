// Package types is the catalog of CDF data types: their codes, categories,
// widths and default pad and fill values, plus the data encodings.
package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// DataType is a CDF data type code as stored in VDR and AEDR records.
type DataType int32

const (
	Int1    DataType = 1
	Int2    DataType = 2
	Int4    DataType = 4
	Int8    DataType = 8
	UInt1   DataType = 11
	UInt2   DataType = 12
	UInt4   DataType = 14
	Real4   DataType = 21
	Real8   DataType = 22
	Epoch   DataType = 31
	Epoch16 DataType = 32
	TT2000  DataType = 33
	Byte    DataType = 41
	Float   DataType = 44
	Double  DataType = 45
	Char    DataType = 51
	UChar   DataType = 52
)

// Category groups data types by how their values are decoded.
type Category int

const (
	Signed Category = iota
	Unsigned
	FloatingPoint
	DoublePrecision
	Long
	String
)

var (
	ErrUnsupportedType     = errors.New("unsupported data type")
	ErrUnsupportedEncoding = errors.New("unsupported data encoding")
	ErrIncompatibleType    = errors.New("incompatible type")
)

type typeInfo struct {
	name     string
	goType   string
	category Category
	width    int
}

var catalog = map[DataType]typeInfo{
	Int1:    {"CDF_INT1", "int8", Signed, 1},
	Int2:    {"CDF_INT2", "int16", Signed, 2},
	Int4:    {"CDF_INT4", "int32", Signed, 4},
	Int8:    {"CDF_INT8", "int64", Long, 8},
	UInt1:   {"CDF_UINT1", "uint8", Unsigned, 1},
	UInt2:   {"CDF_UINT2", "uint16", Unsigned, 2},
	UInt4:   {"CDF_UINT4", "uint32", Unsigned, 4},
	Real4:   {"CDF_REAL4", "float32", FloatingPoint, 4},
	Real8:   {"CDF_REAL8", "float64", DoublePrecision, 8},
	Epoch:   {"CDF_EPOCH", "float64", DoublePrecision, 8},
	Epoch16: {"CDF_EPOCH16", "float64", DoublePrecision, 16},
	TT2000:  {"CDF_TIME_TT2000", "int64", Long, 8},
	Byte:    {"CDF_BYTE", "int8", Signed, 1},
	Float:   {"CDF_FLOAT", "float32", FloatingPoint, 4},
	Double:  {"CDF_DOUBLE", "float64", DoublePrecision, 8},
	Char:    {"CDF_CHAR", "string", String, 1},
	UChar:   {"CDF_UCHAR", "string", String, 1},
}

func lookup(t DataType) (typeInfo, error) {
	info, has := catalog[t]
	if !has {
		return typeInfo{}, fmt.Errorf("%w: %d", ErrUnsupportedType, int32(t))
	}
	return info, nil
}

// Valid reports whether t is a known type code.
func (t DataType) Valid() bool {
	_, has := catalog[t]
	return has
}

func (t DataType) String() string {
	info, err := lookup(t)
	if err != nil {
		return fmt.Sprintf("CDF_UNKNOWN(%d)", int32(t))
	}
	return info.name
}

// GoType is the name of the Go type values of t decode to.
func (t DataType) GoType() string {
	info, err := lookup(t)
	if err != nil {
		return ""
	}
	return info.goType
}

func (t DataType) Category() (Category, error) {
	info, err := lookup(t)
	return info.category, err
}

// Width is the size of one element in bytes. EPOCH16 elements are 16 bytes
// wide: a pair of doubles.
func (t DataType) Width() (int, error) {
	info, err := lookup(t)
	return info.width, err
}

// IsTime reports whether t is one of the time encodings.
func (t DataType) IsTime() bool {
	return t == Epoch || t == Epoch16 || t == TT2000
}

// IsString reports whether t holds characters.
func (t DataType) IsString() bool {
	return t == Char || t == UChar
}

// Parse looks up a type by its CDF name, e.g. "CDF_REAL8".
func Parse(name string) (DataType, error) {
	for t, info := range catalog {
		if info.name == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, name)
}

// Default pad values, used for records that were never written.
const (
	padInt1  = -127
	padInt2  = -32767
	padInt4  = -2147483647
	padInt8  = math.MinInt64 + 1
	padUInt1 = 254
	padUInt2 = 65534
	padUInt4 = 4294967294
	padReal  = -1.0e30
)

// DefaultPad returns one element of the default pad value encoded in the
// given byte order. Strings pad with a single space.
func DefaultPad(t DataType, order binary.ByteOrder) ([]byte, error) {
	w, err := t.Width()
	if err != nil {
		return nil, err
	}
	b := make([]byte, w)
	switch t {
	case Int1, Byte:
		v := int8(padInt1)
		b[0] = byte(v)
	case Int2:
		v := int16(padInt2)
		order.PutUint16(b, uint16(v))
	case Int4:
		v := int32(padInt4)
		order.PutUint32(b, uint32(v))
	case Int8, TT2000:
		v := int64(padInt8)
		order.PutUint64(b, uint64(v))
	case UInt1:
		b[0] = padUInt1
	case UInt2:
		order.PutUint16(b, padUInt2)
	case UInt4:
		order.PutUint32(b, padUInt4)
	case Real4, Float:
		order.PutUint32(b, math.Float32bits(padReal))
	case Real8, Double:
		order.PutUint64(b, math.Float64bits(padReal))
	case Epoch, Epoch16:
		// zero
	case Char, UChar:
		b[0] = ' '
	}
	return b, nil
}

// Fill values, following the ISTP FILLVAL conventions.
const (
	FillReal  = -1.0e31
	FillEpoch = -1.0e31
)

const (
	FillTT2000 int64 = math.MinInt64
	// PadTT2000 is the default TT2000 pad, also treated as fill when decoding times.
	PadTT2000 int64 = math.MinInt64 + 1
)

// DefaultFill returns the conventional FILLVAL for t as a Go value of the
// type t decodes to.
func DefaultFill(t DataType) (any, error) {
	switch t {
	case Int1, Byte:
		return int8(math.MinInt8), nil
	case Int2:
		return int16(math.MinInt16), nil
	case Int4:
		return int32(math.MinInt32), nil
	case Int8:
		return int64(math.MinInt64), nil
	case UInt1:
		return uint8(math.MaxUint8), nil
	case UInt2:
		return uint16(math.MaxUint16), nil
	case UInt4:
		return uint32(math.MaxUint32), nil
	case Real4, Float:
		return float32(FillReal), nil
	case Real8, Double, Epoch:
		return float64(FillReal), nil
	case Epoch16:
		return []float64{FillEpoch, FillEpoch}, nil
	case TT2000:
		return FillTT2000, nil
	case Char, UChar:
		return " ", nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnsupportedType, int32(t))
}
