package reader

import (
	"bytes"
	"fmt"
	"io"

	"github.com/batchatco/go-native-cdf/cdf/record"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/batchatco/go-thrower"
)

// recordRange resolves a point request: nil for all records, one record
// number, or an inclusive [first, last] pair. The range is clamped to the
// records available. single reports whether the record dimension should be
// dropped from the result.
func (v *variable) recordRange(pt []int) (first, last int, single bool) {
	if v.numRecords == 0 {
		return 0, -1, len(pt) == 1
	}
	if !v.vdr.RecordVarying() {
		return 0, 0, true
	}
	switch len(pt) {
	case 0:
		return 0, v.numRecords - 1, false
	case 1:
		assert(pt[0] >= 0 && pt[0] < v.numRecords,
			fmt.Sprint(v.name, " record ", pt[0], " out of range"),
			fmt.Errorf("%w: variable %q has %d records, record %d requested",
				ErrBadRange, v.name, v.numRecords, pt[0]))
		return pt[0], pt[0], true
	case 2:
		return max(pt[0], 0), min(pt[1], v.numRecords-1), false
	}
	thrower.Throw(fmt.Errorf("%w: %v", ErrBadRange, pt))
	panic("never gets here")
}

// recordsRaw returns records [first, last] of v as stored, with unwritten
// records filled according to the sparse records option.
func (c *CDF) recordsRaw(v *variable, first, last int) []byte {
	if first > last || v.recordSize == 0 {
		return []byte{}
	}
	rs := int64(v.recordSize)
	blocks := c.blocksOf(v)

	var readers []io.Reader
	var prev []byte // the last stored record before next
	before := -1    // the last block ending before first
	next := first
	for i, b := range blocks {
		if b.last < first {
			before = i
			continue
		}
		if b.first > last {
			break
		}
		if b.first > next {
			if prev == nil && before >= 0 {
				prev = c.lastRecord(v, blocks[before])
			}
			readers = append(readers, c.gapReader(v, next, b.first-1, prev))
			next = b.first
		}
		data := c.blockData(v, b)
		end := min(b.last, last)
		readers = append(readers, bytes.NewReader(data[int64(next-b.first)*rs:int64(end-b.first+1)*rs]))
		prev = data[int64(end-b.first)*rs : int64(end-b.first+1)*rs]
		next = end + 1
	}
	if next <= last {
		if prev == nil && before >= 0 {
			prev = c.lastRecord(v, blocks[before])
		}
		readers = append(readers, c.gapReader(v, next, last, prev))
	}

	out := make([]byte, int64(last-first+1)*rs)
	_, err := io.ReadFull(io.MultiReader(readers...), out)
	throwIf(err, ErrCorruptData)
	return out
}

func (c *CDF) lastRecord(v *variable, b block) []byte {
	if v.vdr.Sparse() != record.SparsePrevious {
		return nil
	}
	data := c.blockData(v, b)
	return data[len(data)-v.recordSize:]
}

// gapReader supplies records [first, last], which were never written.
func (c *CDF) gapReader(v *variable, first, last int, prev []byte) io.Reader {
	n := int64(last-first+1) * int64(v.recordSize)
	switch v.vdr.Sparse() {
	case record.SparsePrevious:
		if prev != nil {
			return internal.NewFillReader(prev, n)
		}
	case record.SparsePadded:
	default:
		assert(c.opts.missing == MissingPad,
			fmt.Sprint(v.name, " records ", first, "-", last, " missing"),
			fmt.Errorf("%w: variable %q records %d-%d are missing", ErrCorruptData, v.name, first, last))
		logger.With(internal.Fields{"variable": v.name, "first": first, "last": last}).
			Warn("padding missing records")
	}
	return internal.NewFillReader(v.pad, n)
}

// extracted is the result of a read before conversion to a target type.
type extracted struct {
	v      *variable
	raw    []byte // row-major, in file byte order
	count  int    // records read
	single bool
}

// shape is the result shape, without any trailing element dimension.
func (e *extracted) shape() []int {
	if e.single {
		return append([]int{}, e.v.effDims...)
	}
	return append([]int{e.count}, e.v.effDims...)
}

func (c *CDF) extract(name string, pt []int) *extracted {
	v := c.lookup(name)
	assert(len(v.effDims) <= MaxRank,
		fmt.Sprint(v.name, " has rank ", len(v.effDims)),
		fmt.Errorf("%w: variable %q has %d dimensions", ErrUnsupportedRank, v.name, len(v.effDims)))
	first, last, single := v.recordRange(pt)
	raw := c.recordsRaw(v, first, last)
	if !c.RowMajor() {
		raw = internal.ColumnToRow(raw, v.effDims, v.itemSize)
	}
	count := max(last-first+1, 0)
	if single && count == 0 {
		// A variable without records read as a single record.
		single = false
	}
	logger.With(internal.Fields{"variable": v.name, "first": first, "last": last}).
		Info("extracted records")
	return &extracted{v: v, raw: raw, count: count, single: single}
}
