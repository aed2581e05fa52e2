package writer

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/batchatco/go-native-cdf/cdf/record"
	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/batchatco/go-thrower"
)

// maxRank is the largest number of varying dimensions a variable may have.
const maxRank = 4

// VariableSpec describes a variable to define.
type VariableSpec struct {
	Name string
	Type types.DataType
	// NumElems is the string length of CHAR variables, or the number of
	// values in each item of numeric ones. Zero means 1.
	NumElems int
	Dims     []int
	// Varys says which dimensions vary. Nil means all of them.
	Varys            []bool
	NoRecordVariance bool
	Compressed       bool
	// Pad is the value read back for records that were never written. Nil
	// selects the default pad of the type.
	Pad    any
	Sparse record.SparseRecords
}

// Variable is a zVariable being written. Its DataContainer queues the data.
type Variable struct {
	*DataContainer
	spec VariableSpec
	num  int32
	pad  []byte
	w    *Writer
}

// DefineVariable adds a variable. Variables are written in the order they
// are defined.
func (w *Writer) DefineVariable(spec VariableSpec) (v *Variable, err error) {
	defer thrower.RecoverError(&err)
	assert(internal.IsValidCDFName(spec.Name), "invalid variable name "+spec.Name,
		fmt.Errorf("%w: variable %q", ErrInvalidName, spec.Name))
	_, dup := w.varByName[spec.Name]
	assert(!dup, "duplicate variable "+spec.Name,
		fmt.Errorf("%w: variable %q", ErrDuplicate, spec.Name))
	width, err := spec.Type.Width()
	thrower.ThrowIfError(err)
	if spec.NumElems <= 0 {
		spec.NumElems = 1
	}
	spec.Dims = slices.Clone(spec.Dims)
	if spec.Varys == nil {
		spec.Varys = make([]bool, len(spec.Dims))
		for i := range spec.Varys {
			spec.Varys[i] = true
		}
	}
	assert(len(spec.Varys) == len(spec.Dims),
		fmt.Sprint(spec.Name, " has ", len(spec.Dims), " dims and ", len(spec.Varys), " varys"),
		fmt.Errorf("%w: variable %q has %d dimensions but %d vary flags",
			ErrDimensionMismatch, spec.Name, len(spec.Dims), len(spec.Varys)))
	switch spec.Sparse {
	case record.SparseNone, record.SparsePadded, record.SparsePrevious:
	default:
		fail(fmt.Sprint(spec.Name, " sparse records ", spec.Sparse),
			fmt.Errorf("%w: variable %q sparse records option %d", ErrIncompatibleType, spec.Name, spec.Sparse))
	}

	var effDims []int
	for i, d := range spec.Dims {
		assert(d > 0, fmt.Sprint(spec.Name, " dimension ", d),
			fmt.Errorf("%w: variable %q has dimension %d", ErrDimensionMismatch, spec.Name, d))
		if spec.Varys[i] {
			effDims = append(effDims, d)
		}
	}
	assert(len(effDims) <= maxRank, fmt.Sprint(spec.Name, " has rank ", len(effDims)),
		fmt.Errorf("%w: variable %q has %d varying dimensions, at most %d are supported",
			ErrDimensionMismatch, spec.Name, len(effDims), maxRank))

	v = &Variable{
		DataContainer: &DataContainer{
			name:          spec.Name,
			dataType:      spec.Type,
			numElems:      spec.NumElems,
			effDims:       effDims,
			itemSize:      width * spec.NumElems,
			recordVarying: !spec.NoRecordVariance,
			sparse:        spec.Sparse,
			order:         w.opts.order,
			rowMajor:      w.opts.rowMajor,
		},
		spec: spec,
		num:  int32(len(w.vars)),
		w:    w,
	}
	v.pad = v.encodePad()
	w.vars = append(w.vars, v)
	w.varByName[spec.Name] = v
	logger.With(internal.Fields{"variable": spec.Name, "type": spec.Type.String(), "dims": spec.Dims}).
		Info("defined variable")
	return v, nil
}

// encodePad encodes one item of the pad value.
func (v *Variable) encodePad() []byte {
	t := v.spec.Type
	if v.spec.Pad == nil {
		one, err := types.DefaultPad(t, v.order)
		thrower.ThrowIfError(err)
		return slices.Repeat(one, v.numElems)
	}
	pv := reflect.ValueOf(v.spec.Pad)
	flat, err := flatten(pv, shapeOf(pv))
	thrower.ThrowIfError(err)
	assert(accepts(t, flat.Type().Elem(), true),
		fmt.Sprint(v.name, " pad ", v.spec.Pad),
		fmt.Errorf("%w: variable %q is %v, pad is %T", ErrIncompatibleType, v.name, t, v.spec.Pad))
	perItem := 1
	if t == types.Epoch16 && flat.Type().Elem() != timeType {
		perItem = 2
	}
	if !t.IsString() && flat.Len() == perItem {
		// One element, repeated across the item.
		for range v.numElems - 1 {
			flat = reflect.AppendSlice(flat, flat.Slice(0, perItem))
		}
	}
	raw, err := encodeFlat(t, v.numElems, flat, v.order)
	thrower.ThrowIfError(err)
	assert(len(raw) == v.itemSize, fmt.Sprint(v.name, " pad of ", len(raw), " bytes"),
		fmt.Errorf("%w: variable %q pad encodes to %d bytes, items are %d",
			ErrDimensionMismatch, v.name, len(raw), v.itemSize))
	return raw
}

// Name is the variable name.
func (v *Variable) Name() string {
	return v.spec.Name
}

// Num is the variable number, its position in definition order.
func (v *Variable) Num() int {
	return int(v.num)
}

// SetAttribute sets a variable scoped attribute of v.
func (v *Variable) SetAttribute(name string, value any) error {
	return v.w.AddVariableAttribute(name, v.spec.Name, value)
}

func (v *Variable) vdr() *record.VDR {
	flags := record.VDRPadValue
	if v.recordVarying {
		flags |= record.VDRRecordVariance
	}
	if v.spec.Compressed {
		flags |= record.VDRCompressed
	}
	dims := make([]int32, len(v.spec.Dims))
	varys := make([]int32, len(v.spec.Dims))
	for i, d := range v.spec.Dims {
		dims[i] = int32(d)
		if v.spec.Varys[i] {
			varys[i] = -1
		}
	}
	return &record.VDR{
		Header:         record.Header{Type: record.ZVDRType},
		DataType:       int32(v.spec.Type),
		MaxRec:         int32(v.lastRecord()),
		Flags:          flags,
		SRecords:       int32(v.spec.Sparse),
		NumElems:       int32(v.numElems),
		Num:            v.num,
		CPROffset:      record.NoOffset,
		BlockingFactor: int32(v.BlockingFactor()),
		Name:           v.spec.Name,
		ZDimSizes:      dims,
		DimVarys:       varys,
		PadValue:       v.pad,
	}
}
