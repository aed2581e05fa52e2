package reader

import (
	"fmt"
	"sync"

	"github.com/batchatco/go-native-cdf/cdf/record"
	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-native-cdf/cdf/util"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/batchatco/go-native-cdf/internal/gzipblock"
	"github.com/batchatco/go-thrower"
)

// Deepest VXR tree accepted.
const maxIndexDepth = 16

type variable struct {
	vdr        *record.VDR
	name       string
	dataType   types.DataType
	dims       []int
	varys      []bool
	effDims    []int
	itemSize   int // bytes per item, NumElems elements
	recordSize int
	numRecords int
	pad        []byte // one item
	attrs      *util.OrderedMap

	once      sync.Once
	blocks    []block
	blocksErr error
}

// block is one run of stored records, from a VXR entry.
type block struct {
	first, last int
	offset      int64
	compressed  bool
}

func (b block) count() int {
	return b.last - b.first + 1
}

// blocksOf resolves the VXR tree of v on first use.
func (c *CDF) blocksOf(v *variable) []block {
	v.once.Do(func() {
		v.blocks, v.blocksErr = c.resolveBlocks(v)
	})
	thrower.ThrowIfError(v.blocksErr)
	return v.blocks
}

func (c *CDF) resolveBlocks(v *variable) (blocks []block, err error) {
	defer thrower.RecoverError(&err)
	visited := map[int64]bool{}
	c.walkIndex(v, v.vdr.VXRHead, true, visited, &blocks, 0)
	for i, b := range blocks {
		assert(b.first >= 0 && b.first <= b.last,
			fmt.Sprint(v.name, " index entry ", b.first, "-", b.last),
			fmt.Errorf("%w: variable %q has index entry %d-%d", ErrCorruptData, v.name, b.first, b.last))
		if i > 0 {
			prev := blocks[i-1]
			assert(b.first > prev.last,
				fmt.Sprint(v.name, " index entries out of order"),
				fmt.Errorf("%w: variable %q index entries %d-%d and %d-%d overlap or are out of order",
					ErrCorruptData, v.name, prev.first, prev.last, b.first, b.last))
		}
	}
	logger.With(internal.Fields{"variable": v.name, "blocks": len(blocks)}).
		Info("resolved index")
	return blocks, nil
}

// walkIndex flattens a VXR chain, descending into subordinate VXRs.
// Subordinate VXRs are referenced one by one, so only the top level chain
// is followed.
func (c *CDF) walkIndex(v *variable, head int64, followNext bool,
	visited map[int64]bool, out *[]block, depth int) {
	assert(depth < maxIndexDepth, v.name+" index too deep",
		fmt.Errorf("%w: variable %q index deeper than %d", ErrCorruptData, v.name, maxIndexDepth))
	for off := head; !c.endOfChain(off); {
		assert(!visited[off], fmt.Sprint(v.name, " index loops at ", off),
			fmt.Errorf("%w: variable %q index loops at %d", ErrCorruptData, v.name, off))
		visited[off] = true
		vxr, err := record.DecodeVXR(c.buf, off, c.version)
		thrower.ThrowIfError(err)
		for i, at := range vxr.Offsets {
			t, err := record.PeekType(c.buf, at, c.version)
			thrower.ThrowIfError(err)
			switch t {
			case record.VXRType:
				c.walkIndex(v, at, false, visited, out, depth+1)
			case record.VVRType, record.CVVRType:
				*out = append(*out, block{
					first:      int(vxr.First[i]),
					last:       int(vxr.Last[i]),
					offset:     at,
					compressed: t == record.CVVRType,
				})
			default:
				fail(fmt.Sprint(v.name, " index points at ", t),
					fmt.Errorf("%w: variable %q index entry points at a %v", ErrCorruptData, v.name, t))
			}
		}
		if !followNext {
			return
		}
		off = vxr.Next
	}
}

// blockData returns the records stored in b, inflating compressed blocks.
func (c *CDF) blockData(v *variable, b block) []byte {
	size := int64(b.count()) * int64(v.recordSize)
	if b.compressed {
		cvvr, err := record.DecodeCVVR(c.buf, b.offset, c.version)
		thrower.ThrowIfError(err)
		data, err := gzipblock.Inflate(cvvr.Data, size)
		throwIf(err, ErrCorruptData)
		return data
	}
	vvr, err := record.DecodeVVR(c.buf, b.offset, c.version)
	thrower.ThrowIfError(err)
	assert(int64(len(vvr.Data)) >= size,
		fmt.Sprint(v.name, " VVR too short"),
		fmt.Errorf("%w: variable %q records %d-%d need %d bytes, VVR holds %d",
			ErrCorruptData, v.name, b.first, b.last, size, len(vvr.Data)))
	return vvr.Data[:size]
}

// DataBuffer is one stored run of records. Data holds the records in file
// order and byte order, inflated if the run was compressed.
type DataBuffer struct {
	First      int
	Last       int
	Compressed bool
	Data       []byte
}

// DataBuffers returns the stored runs of records of a variable, in record order.
func (c *CDF) DataBuffers(name string) (buffers []DataBuffer, err error) {
	defer thrower.RecoverError(&err)
	v := c.lookup(name)
	for _, b := range c.blocksOf(v) {
		buffers = append(buffers, DataBuffer{
			First:      b.first,
			Last:       b.last,
			Compressed: b.compressed,
			Data:       c.blockData(v, b),
		})
	}
	return buffers, nil
}
