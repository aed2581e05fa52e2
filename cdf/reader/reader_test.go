package reader

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/batchatco/go-native-cdf/cdf/record"
	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-native-cdf/cdf/writer"
)

type keyVal struct {
	name     string
	dataType types.DataType
	numElems int
	dims     []int
	val      any // every record, record dimension first
}

type keyValList []keyVal

var values = keyValList{
	{"i8", types.Int1, 0, nil, []int8{-10, 10, 127}},
	{"byte", types.Byte, 0, nil, []int8{-128}},
	{"ui8x1", types.UInt1, 0, []int{2},
		[][]uint8{{10, 20}, {30, 255}}},
	{"i16x2", types.Int2, 0, []int{2, 3},
		[][][]int16{
			{{-10000, 1, 2}, {3, 4, 10000}},
			{{-20000, 5, 6}, {7, 8, 20000}}}},
	{"ui16", types.UInt2, 0, nil, []uint16{0, 65535}},
	{"i32x3", types.Int4, 0, []int{2, 2, 3},
		[][][][]int32{
			{{{1, 2, 3}, {4, 5, 6}}, {{7, 8, 9}, {10, 11, 12}}}}},
	{"ui32", types.UInt4, 0, nil, []uint32{0, 4294967295}},
	{"i64x1", types.Int8, 0, []int{2},
		[][]int64{{-1 << 62, 1 << 62}}},
	{"f32x4", types.Real4, 0, []int{2, 1, 2, 3},
		[][][][][]float32{
			{{{{1, 2, 3}, {4, 5, 6}}}, {{{7, 8, 9}, {10, 11, 12}}}},
			{{{{-1, -2, -3}, {-4, -5, -6}}}, {{{-7, -8, -9}, {-10, -11, -12}}}}}},
	{"float", types.Float, 0, nil, []float32{-10.1}},
	{"f64x2", types.Real8, 0, []int{3, 2},
		[][][]float64{{{-10.1, 10.1}, {-20.2, 20.2}, {-30.3, 30.3}}}},
	{"double", types.Double, 0, nil, []float64{1e300, -1e-300}},
	{"elems", types.Real8, 3, nil, [][]float64{{1, 2, 3}, {4, 5, 6}}},
	{"str", types.Char, 3, nil, []string{"a", "abc"}},
	{"strx2", types.UChar, 2, []int{2, 2},
		[][][]string{{{"ab", "cd"}, {"e", "f"}}}},
}

func writeValues(t *testing.T, vals keyValList, opts ...writer.Option) []byte {
	t.Helper()
	w, err := writer.New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	for _, kv := range vals {
		v, err := w.DefineVariable(writer.VariableSpec{
			Name:     kv.name,
			Type:     kv.dataType,
			NumElems: kv.numElems,
			Dims:     kv.dims,
		})
		if err != nil {
			t.Fatal(kv.name, err)
		}
		if err := v.AddData(kv.val, nil, false, false); err != nil {
			t.Fatal(kv.name, err)
		}
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func checkAll(t *testing.T, c *CDF, vals keyValList) {
	t.Helper()
	for _, kv := range vals {
		got, err := c.Values(kv.name, nil)
		if err != nil {
			t.Error(kv.name, err)
			continue
		}
		if !reflect.DeepEqual(got, kv.val) {
			t.Errorf("%s: got %#v, want %#v", kv.name, got, kv.val)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts []writer.Option
	}{
		{"row major", nil},
		{"column major", []writer.Option{writer.WithColumnMajor()}},
		{"big endian", []writer.Option{writer.WithEncoding(types.EncodingNetwork)}},
		{"big endian column major", []writer.Option{writer.WithEncoding(types.EncodingSun),
			writer.WithColumnMajor()}},
		{"compressed file", []writer.Option{writer.WithFileCompression()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(writeValues(t, values, tt.opts...))
			if err != nil {
				t.Fatal(err)
			}
			if c.Version() != 3 {
				t.Error("version", c.Version())
			}
			checkAll(t, c, values)
		})
	}
}

func TestColumnMajorLayout(t *testing.T) {
	vals := keyValList{
		{"grid", types.Int1, 0, []int{2, 3}, [][][]int8{{{1, 2, 3}, {4, 5, 6}}}},
	}
	c, err := New(writeValues(t, vals, writer.WithColumnMajor()))
	if err != nil {
		t.Fatal(err)
	}
	if c.RowMajor() {
		t.Error("file should be column major")
	}
	bufs, err := c.DataBuffers("grid")
	if err != nil {
		t.Fatal(err)
	}
	if len(bufs) != 1 {
		t.Fatal("buffers", len(bufs))
	}
	// The first index varies fastest in the file.
	want := []byte{1, 4, 2, 5, 3, 6}
	if !bytes.Equal(bufs[0].Data, want) {
		t.Errorf("got %v, want %v", bufs[0].Data, want)
	}
}

func TestGetVariable(t *testing.T) {
	c, err := New(writeValues(t, values))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c.ListVariables(), func() []string {
		var names []string
		for _, kv := range values {
			names = append(names, kv.name)
		}
		return names
	}()) {
		t.Error("variable names", c.ListVariables())
	}
	v, err := c.GetVariable("i16x2")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v.Dimensions, []int{2, 2, 3}) {
		t.Error("dimensions", v.Dimensions)
	}
	if !reflect.DeepEqual(v.Values, values[3].val) {
		t.Error("values", v.Values)
	}

	sl, err := c.GetVarGetter("i8")
	if err != nil {
		t.Fatal(err)
	}
	if sl.Len() != 3 || sl.Type() != "CDF_INT1" || sl.GoType() != "int8" {
		t.Error("slicer", sl.Len(), sl.Type(), sl.GoType())
	}
	got, err := sl.GetSlice(1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []int8{10, 127}) {
		t.Error("slice", got)
	}
	_, err = sl.GetSlice(2, 4)
	if !errors.Is(err, ErrBadRange) {
		t.Error("expected bad range, got", err)
	}
}

func TestRecordSelection(t *testing.T) {
	c, err := New(writeValues(t, values))
	if err != nil {
		t.Fatal(err)
	}
	one, err := c.Values("ui8x1", []int{1})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(one, []uint8{30, 255}) {
		t.Error("single record", one)
	}
	clamped, err := c.Values("i8", []int{1, 100})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(clamped, []int8{10, 127}) {
		t.Error("clamped", clamped)
	}
	empty, err := c.Values("i8", []int{2, 1})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(empty, []int8{}) {
		t.Errorf("empty %#v", empty)
	}
	scalar, err := c.Values("i8", []int{0})
	if err != nil {
		t.Fatal(err)
	}
	if scalar != int8(-10) {
		t.Error("scalar", scalar)
	}
	_, err = c.Values("i8", []int{3})
	if !errors.Is(err, ErrBadRange) {
		t.Error("expected bad range, got", err)
	}
	_, err = c.Values("missing", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected not found, got", err)
	}
}

func TestTypedGetters(t *testing.T) {
	c, err := New(writeValues(t, values))
	if err != nil {
		t.Fatal(err)
	}
	f, err := c.Float64s("i16x2", []int{0}, true)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(f, [][]float64{{-10000, 1, 2}, {3, 4, 10000}}) {
		t.Error("float64s", f)
	}
	_, err = c.Int8s("i16x2", nil, true)
	if !errors.Is(err, ErrIncompatibleType) {
		t.Error("expected incompatible type, got", err)
	}
	i, err := c.Int32s("f64x2", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(i, [][][]int32{{{-10, 10}, {-20, 20}, {-30, 30}}}) {
		t.Error("truncated", i)
	}
	_, err = c.Int64s("f64x2", nil, true)
	if !errors.Is(err, ErrIncompatibleType) {
		t.Error("expected incompatible type, got", err)
	}
	data, shape, err := Read[int16](c, "ui8x1", nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(data, []int16{10, 20, 30, 255}) || !reflect.DeepEqual(shape, []int{2, 2}) {
		t.Error("read", data, shape)
	}
	_, err = c.Strings("i8", nil)
	if !errors.Is(err, ErrIncompatibleType) {
		t.Error("expected incompatible type, got", err)
	}
	_, err = c.Float32s("str", nil, false)
	if !errors.Is(err, ErrIncompatibleType) {
		t.Error("expected incompatible type, got", err)
	}
}

func TestBadInput(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"empty", nil, ErrUnsupportedFormat},
		{"short", []byte{0xcd, 0xf3}, ErrUnsupportedFormat},
		{"text", []byte("this is not a CDF file"), ErrUnsupportedFormat},
		{"truncated", writeValues(t, values)[:200], record.ErrCorruptRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.buf)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}
