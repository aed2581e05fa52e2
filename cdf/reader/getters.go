package reader

import (
	"fmt"
	"reflect"
	"time"

	"github.com/batchatco/go-native-cdf/cdf/api"
	"github.com/batchatco/go-native-cdf/cdf/epoch"
	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/batchatco/go-thrower"
)

// elementDims are the dimensions a single item decodes to: a pair for
// EPOCH16, and the element count of numbers stored several per item.
func (v *variable) elementDims() []int {
	switch {
	case v.dataType == types.Epoch16:
		return []int{2}
	case !v.dataType.IsString() && v.vdr.NumElems > 1:
		return []int{int(v.vdr.NumElems)}
	}
	return nil
}

func (c *CDF) native(e *extracted) (data any, shape []int) {
	v := e.v
	data = decodeNative(v.dataType, e.raw, c.order, int(v.vdr.NumElems))
	return data, append(e.shape(), v.elementDims()...)
}

// Values returns the records pt of a variable in the Go type of its CDF
// type. pt is nil for every record, a single record number, or an inclusive
// range [first, last]. A single record is returned without the record
// dimension.
func (c *CDF) Values(name string, pt []int) (values any, err error) {
	defer thrower.RecoverError(&err)
	data, shape := c.native(c.extract(name, pt))
	return reshape(data, shape), nil
}

// Read returns records pt of a variable converted to T, as a flat
// row-major slice and its shape. With preserve set, a value that T cannot
// hold exactly is an ErrIncompatibleType error; without it values wrap or
// truncate.
func Read[T Number](c *CDF, name string, pt []int, preserve bool) (data []T, shape []int, err error) {
	defer thrower.RecoverError(&err)
	native, shape := c.native(c.extract(name, pt))
	data, err = castSlice[T](native, preserve)
	if err != nil {
		return nil, nil, fmt.Errorf("variable %q: %w", name, err)
	}
	return data, shape, nil
}

func readShaped[T Number](c *CDF, name string, pt []int, preserve bool) (any, error) {
	data, shape, err := Read[T](c, name, pt, preserve)
	if err != nil {
		return nil, err
	}
	return reshape(data, shape), nil
}

func (c *CDF) Int8s(name string, pt []int, preserve bool) (any, error) {
	return readShaped[int8](c, name, pt, preserve)
}

func (c *CDF) Int16s(name string, pt []int, preserve bool) (any, error) {
	return readShaped[int16](c, name, pt, preserve)
}

func (c *CDF) Int32s(name string, pt []int, preserve bool) (any, error) {
	return readShaped[int32](c, name, pt, preserve)
}

func (c *CDF) Int64s(name string, pt []int, preserve bool) (any, error) {
	return readShaped[int64](c, name, pt, preserve)
}

func (c *CDF) Float32s(name string, pt []int, preserve bool) (any, error) {
	return readShaped[float32](c, name, pt, preserve)
}

func (c *CDF) Float64s(name string, pt []int, preserve bool) (any, error) {
	return readShaped[float64](c, name, pt, preserve)
}

// Strings returns the records pt of a CDF_CHAR or CDF_UCHAR variable.
func (c *CDF) Strings(name string, pt []int) (values any, err error) {
	defer thrower.RecoverError(&err)
	e := c.extract(name, pt)
	assert(e.v.dataType.IsString(), name+" is not a string variable",
		fmt.Errorf("%w: variable %q is %v, not a string type", ErrIncompatibleType, name, e.v.dataType))
	data, shape := c.native(e)
	return reshape(data, shape), nil
}

// Times returns the records pt of a time variable as offsets from the
// model's base time, in the model's offset units. Fill values are NaN.
func (c *CDF) Times(name string, pt []int, model epoch.InstantModel) (values any, err error) {
	defer thrower.RecoverError(&err)
	e := c.extract(name, pt)
	assert(e.v.dataType.IsTime(), name+" is not a time variable",
		fmt.Errorf("%w: variable %q is %v, not a time type", ErrIncompatibleType, name, e.v.dataType))
	data, err := epoch.Decode(e.v.dataType, e.raw, c.order, model, c.LeapSecondID())
	thrower.ThrowIfError(err)
	return reshape(data, e.shape()), nil
}

// Timestamps returns the records pt of a time variable as UTC times. Fill
// values are the zero time.
func (c *CDF) Timestamps(name string, pt []int) (values any, err error) {
	defer thrower.RecoverError(&err)
	e := c.extract(name, pt)
	assert(e.v.dataType.IsTime(), name+" is not a time variable",
		fmt.Errorf("%w: variable %q is %v, not a time type", ErrIncompatibleType, name, e.v.dataType))
	data, err := epoch.ToTimes(e.v.dataType, e.raw, c.order, c.LeapSecondID())
	thrower.ThrowIfError(err)
	return reshape(data, e.shape()), nil
}

// FirstTime returns the first stored time of a time variable.
func (c *CDF) FirstTime(name string) (t time.Time, err error) {
	vals, err := c.Timestamps(name, []int{0})
	if err != nil {
		return time.Time{}, err
	}
	t, ok := vals.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: variable %q is not a scalar time", ErrIncompatibleType, name)
	}
	return t, nil
}

// NumRecords is the number of records of a variable: its maximum record
// plus one, or 1 for a variable that does not vary by record.
func (c *CDF) NumRecords(name string) (n int, err error) {
	defer thrower.RecoverError(&err)
	return c.lookup(name).numRecords, nil
}

// Info describes a variable.
type Info struct {
	Name           string
	Type           types.DataType
	NumElems       int
	Dimensions     []int
	Varys          []bool
	RecordVarying  bool
	NumRecords     int
	Sparse         string
	Compressed     bool
	BlockingFactor int
	ZVariable      bool
	Pad            any
	Depend0        string
}

// EffectiveDimensions drops the dimensions that do not vary.
func (info *Info) EffectiveDimensions() []int {
	var eff []int
	for i, d := range info.Dimensions {
		if info.Varys[i] {
			eff = append(eff, d)
		}
	}
	return eff
}

func (c *CDF) VariableInfo(name string) (info *Info, err error) {
	defer thrower.RecoverError(&err)
	v := c.lookup(name)
	info = &Info{
		Name:           v.name,
		Type:           v.dataType,
		NumElems:       int(v.vdr.NumElems),
		Dimensions:     append([]int(nil), v.dims...),
		Varys:          append([]bool(nil), v.varys...),
		RecordVarying:  v.vdr.RecordVarying(),
		NumRecords:     v.numRecords,
		Sparse:         v.vdr.Sparse().String(),
		Compressed:     v.vdr.Compressed(),
		BlockingFactor: int(v.vdr.BlockingFactor),
		ZVariable:      v.vdr.IsZ(),
	}
	// One item: a scalar, or a slice for numbers stored several per item
	// and for EPOCH16.
	pad := decodeNative(v.dataType, v.pad, c.order, int(v.vdr.NumElems))
	if reflect.ValueOf(pad).Len() == 1 {
		info.Pad = reshape(pad, nil)
	} else {
		info.Pad = pad
	}
	if dep, has := v.attrs.Get("DEPEND_0"); has {
		if s, ok := dep.(string); ok {
			info.Depend0 = s
		}
	}
	return info, nil
}

func (c *CDF) getVarCommon(name string) api.VarGetter {
	v := c.lookup(name)
	length := int64(v.numRecords)
	dims := make([]int64, 0, len(v.effDims))
	for _, d := range append(append([]int(nil), v.effDims...), v.elementDims()...) {
		dims = append(dims, int64(d))
	}
	getSlice := func(begin, end int64) (any, error) {
		if end < begin || begin < 0 || end > length {
			return nil, fmt.Errorf("%w: slice [%d, %d) of %d records", ErrBadRange, begin, end, length)
		}
		if !v.vdr.RecordVarying() {
			return c.Values(name, nil)
		}
		return c.Values(name, []int{int(begin), int(end) - 1})
	}
	return internal.NewSlicer(getSlice, length, dims, v.attrs,
		v.dataType.String(), v.dataType.GoType())
}

// GetVarGetter returns an interface that allows you to get smaller slices
// of records of a variable, in case the variable is very large and you want
// to reduce memory usage.
func (c *CDF) GetVarGetter(name string) (slicer api.VarGetter, err error) {
	defer thrower.RecoverError(&err)
	return c.getVarCommon(name), nil
}

// GetVariable returns every record of the named variable.
func (c *CDF) GetVariable(name string) (v *api.Variable, err error) {
	defer thrower.RecoverError(&err)
	sl := c.getVarCommon(name)
	vals, err := sl.Values()
	if err != nil {
		return nil, err
	}
	shape := sl.Shape()
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return &api.Variable{
		Values:     vals,
		Dimensions: dims,
		Attributes: sl.Attributes()}, nil
}
