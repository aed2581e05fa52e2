package writer

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/batchatco/go-native-cdf/cdf/record"
	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/batchatco/go-thrower"
)

// segment is one run of records added in a single call. A phantom segment
// holds no data.
type segment struct {
	first, last int
	data        []byte
	phantom     bool
}

func (s *segment) count() int {
	return s.last - s.first + 1
}

// DataContainer queues the records of one variable until the file is
// written. Records must be added in ascending order without overlap.
type DataContainer struct {
	name          string
	dataType      types.DataType
	numElems      int
	effDims       []int
	itemSize      int
	recordVarying bool
	sparse        record.SparseRecords
	order         binary.ByteOrder
	rowMajor      bool

	segments []*segment
	lastTime []byte // the last time value buffered, for time variables
}

func (dc *DataContainer) recordSize() int {
	return product(dc.effDims) * dc.itemSize
}

// lastRecord is the highest record added so far, or -1.
func (dc *DataContainer) lastRecord() int {
	for i := len(dc.segments) - 1; i >= 0; i-- {
		if !dc.segments[i].phantom {
			return dc.segments[i].last
		}
	}
	return -1
}

// realSegments are the segments holding data.
func (dc *DataContainer) realSegments() []*segment {
	var out []*segment
	for _, s := range dc.segments {
		if !s.phantom {
			out = append(out, s)
		}
	}
	return out
}

// BlockingFactor is the largest number of records added in one call.
func (dc *DataContainer) BlockingFactor() int {
	bf := 0
	for _, s := range dc.realSegments() {
		bf = max(bf, s.count())
	}
	return bf
}

// AddPhantom queues a placeholder that stands for a variable with no data
// yet. It is dropped by the first call to AddData.
func (dc *DataContainer) AddPhantom() {
	dc.segments = append(dc.segments, &segment{first: 0, last: -1, phantom: true})
}

// AddData queues records. values is a Raw buffer, a flat slice when isFlat
// is set, or nested slices shaped like one record or like a run of records.
// recordRange is nil to append after the last record, [first] or
// [first, last]. With relax set, signed integers are accepted for unsigned
// types of the same width. A failed call leaves the container unchanged.
func (dc *DataContainer) AddData(values any, recordRange []int, isFlat, relax bool) (err error) {
	defer thrower.RecoverError(&err)
	raw, count := dc.encode(values, isFlat, relax)
	first, last := dc.placement(recordRange, count)
	if dc.dataType.IsTime() && len(dc.effDims) == 0 && dc.numElems == 1 {
		dc.checkTimeOrder(raw)
	}
	if !dc.rowMajor {
		if _, isRaw := values.(Raw); !isRaw {
			raw = internal.RowToColumn(raw, dc.effDims, dc.itemSize)
		}
	}
	dc.segments = slices.DeleteFunc(dc.segments, func(s *segment) bool { return s.phantom })
	dc.segments = append(dc.segments, &segment{first: first, last: last, data: raw})
	logger.With(internal.Fields{"variable": dc.name, "first": first, "last": last}).
		Info("added records")
	return nil
}

// recordShape is the shape of one record of input whose leaves are of type leaf.
func (dc *DataContainer) recordShape(leaf reflect.Type) []int {
	shape := slices.Clone(dc.effDims)
	switch {
	case dc.dataType == types.Epoch16 && leaf != timeType:
		shape = append(shape, 2)
	case !dc.dataType.IsString() && leaf != timeType && dc.numElems > 1:
		shape = append(shape, dc.numElems)
	}
	return shape
}

// encode validates values and returns them encoded in row-major order with
// the number of records they hold.
func (dc *DataContainer) encode(values any, isFlat, relax bool) ([]byte, int) {
	rs := dc.recordSize()
	if raw, ok := values.(Raw); ok {
		assert(rs > 0 && len(raw) > 0 && len(raw)%rs == 0,
			fmt.Sprint(dc.name, " raw data of ", len(raw), " bytes"),
			fmt.Errorf("%w: variable %q: %d bytes is not a whole number of %d byte records",
				ErrDimensionMismatch, dc.name, len(raw), rs))
		return slices.Clone([]byte(raw)), len(raw) / rs
	}

	v := reflect.ValueOf(values)
	assert(v.IsValid(), dc.name+" given no data",
		fmt.Errorf("%w: variable %q given no data", ErrDimensionMismatch, dc.name))
	leaf := leafType(v.Type())
	assert(accepts(dc.dataType, leaf, relax),
		fmt.Sprint(dc.name, " given ", leaf),
		fmt.Errorf("%w: variable %q is %v, given %v", ErrIncompatibleType, dc.name, dc.dataType, leaf))

	recShape := dc.recordShape(leaf)
	found := shapeOf(v)
	perRecord := product(recShape)
	var count int
	switch {
	case isFlat:
		assert(len(found) == 1 && found[0] > 0 && found[0]%perRecord == 0,
			fmt.Sprint(dc.name, " flat data of shape ", found),
			fmt.Errorf("%w: variable %q expects records of %d values, found shape %v",
				ErrDimensionMismatch, dc.name, perRecord, found))
		count = found[0] / perRecord
	case slices.Equal(found, recShape):
		count = 1
	case len(found) == len(recShape)+1 && slices.Equal(found[1:], recShape):
		count = found[0]
	default:
		fail(fmt.Sprint(dc.name, " shape ", found, ", expected ", recShape),
			fmt.Errorf("%w: variable %q expects records of shape %v, found %v",
				ErrDimensionMismatch, dc.name, recShape, found))
	}
	assert(count > 0 && product(found) > 0, dc.name+" given no data",
		fmt.Errorf("%w: variable %q given no data", ErrDimensionMismatch, dc.name))

	flat, err := flatten(v, found)
	thrower.ThrowIfError(err)
	raw, err := encodeFlat(dc.dataType, dc.numElems, flat, dc.order)
	thrower.ThrowIfError(err)
	assert(len(raw) == count*rs, fmt.Sprint(dc.name, " encoded ", len(raw), " bytes"),
		fmt.Errorf("%w: variable %q: %d records encode to %d bytes, not %d",
			ErrDimensionMismatch, dc.name, count, len(raw), count*rs))
	return raw, count
}

// placement resolves the record range of count new records and checks that
// they may be appended.
func (dc *DataContainer) placement(recordRange []int, count int) (first, last int) {
	next := dc.lastRecord() + 1
	switch len(recordRange) {
	case 0:
		first = next
	case 1, 2:
		first = recordRange[0]
	default:
		fail(fmt.Sprint(dc.name, " record range ", recordRange),
			fmt.Errorf("%w: variable %q record range %v", ErrIllegalAppend, dc.name, recordRange))
	}
	last = first + count - 1
	if len(recordRange) == 2 {
		assert(recordRange[1] == last,
			fmt.Sprint(dc.name, " range ", recordRange, " for ", count, " records"),
			fmt.Errorf("%w: variable %q record range %v holds %d records, given %d",
				ErrDimensionMismatch, dc.name, recordRange, recordRange[1]-first+1, count))
	}
	if !dc.recordVarying {
		assert(next == 0 && first == 0 && count == 1,
			dc.name+" does not vary by record",
			fmt.Errorf("%w: variable %q does not vary by record and takes a single record once",
				ErrIllegalAppend, dc.name))
	}
	assert(first >= next,
		fmt.Sprint(dc.name, " record ", first, " overlaps ", next-1),
		fmt.Errorf("%w: variable %q record %d is not after record %d", ErrIllegalAppend, dc.name, first, next-1))
	assert(first == next || dc.sparse != record.SparseNone,
		fmt.Sprint(dc.name, " gap before ", first),
		fmt.Errorf("%w: variable %q has no sparse records option, records %d-%d would be missing",
			ErrIllegalAppend, dc.name, next, first-1))
	assert(last <= math.MaxInt32,
		fmt.Sprint(dc.name, " record ", last, " too large"),
		fmt.Errorf("%w: variable %q record %d", ErrIllegalAppend, dc.name, last))
	return first, last
}

// checkTimeOrder requires the first new time to come after the last time
// already buffered. Fill values are not compared.
func (dc *DataContainer) checkTimeOrder(raw []byte) {
	w := dc.itemSize
	if dc.lastTime != nil && !dc.isFill(raw[:w]) && !dc.isFill(dc.lastTime) {
		assert(dc.after(raw[:w], dc.lastTime),
			dc.name+" time goes backwards",
			fmt.Errorf("%w: variable %q: new data starts at or before the last time added", ErrTimeOrder, dc.name))
	}
	dc.lastTime = slices.Clone(raw[len(raw)-w:])
}

func (dc *DataContainer) isFill(b []byte) bool {
	if dc.dataType == types.TT2000 {
		tt := int64(dc.order.Uint64(b))
		return tt == types.FillTT2000 || tt == types.PadTT2000
	}
	return math.Float64frombits(dc.order.Uint64(b)) == types.FillEpoch
}

// after compares two encoded times of the container's type.
func (dc *DataContainer) after(b, a []byte) bool {
	switch dc.dataType {
	case types.TT2000:
		return int64(dc.order.Uint64(b)) > int64(dc.order.Uint64(a))
	case types.Epoch16:
		bs, as := math.Float64frombits(dc.order.Uint64(b)), math.Float64frombits(dc.order.Uint64(a))
		if bs != as {
			return bs > as
		}
		return math.Float64frombits(dc.order.Uint64(b[8:])) > math.Float64frombits(dc.order.Uint64(a[8:]))
	}
	return math.Float64frombits(dc.order.Uint64(b)) > math.Float64frombits(dc.order.Uint64(a))
}
