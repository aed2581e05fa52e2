package reader

import (
	"encoding/binary"
	"fmt"

	"github.com/batchatco/go-native-cdf/cdf/record"
	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-native-cdf/cdf/util"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/batchatco/go-native-cdf/internal/gzipblock"
	"github.com/batchatco/go-thrower"
)

// New parses a CDF held in buf. The buffer must not change while the CDF
// is in use. Compressed files are inflated into a new buffer.
func New(buf []byte, opts ...Option) (c *CDF, err error) {
	defer thrower.RecoverError(&err)
	c = &CDF{
		vdrIndex: map[int64]int{},
		byName:   map[string]int{},
		rVars:    map[int32]*variable{},
		zVars:    map[int32]*variable{},
	}
	for _, opt := range opts {
		opt(&c.opts)
	}
	c.parse(buf)
	return c, nil
}

// Magic returns the magic number of buf, or false if it is too short.
func Magic(buf []byte) (uint64, bool) {
	if len(buf) < record.MagicSize {
		return 0, false
	}
	return binary.BigEndian.Uint64(buf), true
}

func (c *CDF) parse(buf []byte) {
	magic, ok := Magic(buf)
	assert(ok, "file shorter than magic number", ErrUnsupportedFormat)
	v, compressed, known := record.ForMagic(magic)
	assert(known, fmt.Sprintf("unknown magic number %#016x", magic),
		fmt.Errorf("%w: magic %#016x", ErrUnsupportedFormat, magic))
	c.version = v
	c.compressed = compressed
	if compressed {
		buf = inflateFile(buf, v)
	}
	c.buf = buf

	cdr, err := record.DecodeCDR(buf, record.MagicSize, v)
	thrower.ThrowIfError(err)
	c.cdr = cdr
	assert(int(cdr.Version) == v.Major,
		fmt.Sprintf("CDR version %d in a version %d file", cdr.Version, v.Major),
		fmt.Errorf("%w: CDR says %d, magic says %d", ErrIncompatibleVersion, cdr.Version, v.Major))
	c.encoding = types.Encoding(cdr.Encoding)
	c.order, err = c.encoding.ByteOrder()
	thrower.ThrowIfError(err)

	gdr, err := record.DecodeGDR(buf, cdr.GDROffset, v)
	thrower.ThrowIfError(err)
	c.gdr = gdr

	c.readVariables(gdr.RVDRHead, gdr.RDimSizes)
	c.readVariables(gdr.ZVDRHead, nil)
	c.readAttributes()

	logger.With(internal.Fields{
		"version":    cdr.Version,
		"release":    cdr.Release,
		"encoding":   cdr.Encoding,
		"compressed": compressed,
		"variables":  len(c.vars),
		"attributes": len(c.attrNames),
	}).Info("parsed CDF")
}

// inflateFile expands a file compressed behind a CCR into a plain file
// starting with the uncompressed magic number.
func inflateFile(buf []byte, v *record.Version) []byte {
	ccr, err := record.DecodeCCR(buf, record.MagicSize, v)
	thrower.ThrowIfError(err)
	cpr, err := record.DecodeCPR(buf, ccr.CPROffset, v)
	thrower.ThrowIfError(err)
	assert(cpr.CType == record.GzipCompression,
		fmt.Sprint("file compression type ", cpr.CType),
		fmt.Errorf("%w: compression type %d", ErrUnsupportedFormat, cpr.CType))
	body, err := gzipblock.Inflate(ccr.Data, ccr.USize)
	throwIf(err, ErrCorruptData)
	plain := make([]byte, record.MagicSize+len(body))
	binary.BigEndian.PutUint64(plain, record.CDF3Magic)
	if v.Major == 2 {
		binary.BigEndian.PutUint64(plain, record.CDF2Magic)
	}
	copy(plain[record.MagicSize:], body)
	logger.With(internal.Fields{"compressed": len(ccr.Data), "size": len(plain)}).
		Info("inflated file")
	return plain
}

func (c *CDF) endOfChain(offset int64) bool {
	return record.EndOfChain(offset, int64(len(c.buf)))
}

// readVariables walks a VDR chain. rDims are the GDR dimensions for
// rVariables, nil for zVariables.
func (c *CDF) readVariables(head int64, rDims []int32) {
	for off := head; !c.endOfChain(off); {
		_, seen := c.vdrIndex[off]
		assert(!seen, fmt.Sprint("VDR chain loops at ", off),
			fmt.Errorf("%w: VDR chain loops at %d", record.ErrCorruptRecord, off))
		vdr, err := record.DecodeVDR(c.buf, off, c.version, int32(len(rDims)))
		thrower.ThrowIfError(err)
		v := c.newVariable(vdr, rDims)
		_, dup := c.byName[v.name]
		assert(!dup, "duplicate variable "+v.name,
			fmt.Errorf("%w: duplicate variable %q", record.ErrCorruptRecord, v.name))
		c.vdrIndex[off] = len(c.vars)
		c.byName[v.name] = len(c.vars)
		c.vars = append(c.vars, v)
		if vdr.IsZ() {
			c.zVars[vdr.Num] = v
		} else {
			c.rVars[vdr.Num] = v
		}
		off = vdr.Next
	}
}

func (c *CDF) newVariable(vdr *record.VDR, rDims []int32) *variable {
	dt := types.DataType(vdr.DataType)
	width, err := dt.Width()
	thrower.ThrowIfError(err)
	numElems := int(vdr.NumElems)
	assert(numElems > 0, fmt.Sprint(vdr.Name, " has ", numElems, " elements"),
		fmt.Errorf("%w: variable %q has %d elements", record.ErrCorruptRecord, vdr.Name, numElems))

	dims := rDims
	if vdr.IsZ() {
		dims = vdr.ZDimSizes
	}
	v := &variable{
		vdr:      vdr,
		name:     vdr.Name,
		dataType: dt,
		itemSize: width * numElems,
		attrs:    util.NewEmptyOrderedMap(),
	}
	for i, d := range dims {
		assert(d >= 0, fmt.Sprint(vdr.Name, " has negative dimension"),
			fmt.Errorf("%w: variable %q dimension %d", record.ErrCorruptRecord, vdr.Name, d))
		vary := vdr.DimVarys[i] != 0
		v.dims = append(v.dims, int(d))
		v.varys = append(v.varys, vary)
		if vary {
			v.effDims = append(v.effDims, int(d))
		}
	}
	v.recordSize = internal.Product(v.effDims) * v.itemSize
	switch {
	case vdr.MaxRec < 0:
		v.numRecords = 0
	case vdr.RecordVarying():
		v.numRecords = int(vdr.MaxRec) + 1
	default:
		v.numRecords = 1
	}
	if vdr.HasPad() && len(vdr.PadValue) == v.itemSize {
		v.pad = vdr.PadValue
	} else {
		one, err := types.DefaultPad(dt, c.order)
		thrower.ThrowIfError(err)
		for range numElems {
			v.pad = append(v.pad, one...)
		}
	}
	return v
}
