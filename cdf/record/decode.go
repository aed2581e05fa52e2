package record

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-thrower"
)

// Maximum dimension count accepted from a file.
const maxDimensions = 1024

func corrupt(format string, v ...any) {
	thrower.Throw(fmt.Errorf("%w: %s", ErrCorruptRecord, fmt.Sprintf(format, v...)))
}

// decoder reads the fields of one record out of the file buffer. Any read
// outside the record or the buffer throws ErrCorruptRecord.
type decoder struct {
	buf []byte
	v   *Version
	hdr Header
	lay *layout
}

func open(buf []byte, at int64, v *Version, want ...Type) *decoder {
	hs := v.HeaderSize()
	if at < 0 || at+hs > int64(len(buf)) {
		corrupt("record offset %d outside file of %d bytes", at, len(buf))
	}
	var size int64
	if v.OffsetSize == 4 {
		size = int64(int32(binary.BigEndian.Uint32(buf[at:])))
	} else {
		size = int64(binary.BigEndian.Uint64(buf[at:]))
	}
	rt := Type(int32(binary.BigEndian.Uint32(buf[at+int64(v.OffsetSize):])))
	found := false
	for _, w := range want {
		if rt == w {
			found = true
			break
		}
	}
	if !found {
		corrupt("expected %v at offset %d, found %v", want, at, rt)
	}
	if size < hs || at+size > int64(len(buf)) {
		corrupt("%v at offset %d has bad size %d", rt, at, size)
	}
	d := &decoder{
		buf: buf[at : at+size],
		v:   v,
		hdr: Header{Offset: at, Size: size, Type: rt},
		lay: v.layoutOf(rt),
	}
	if d.lay.fixed > size {
		corrupt("%v at offset %d is too short: %d < %d", rt, at, size, d.lay.fixed)
	}
	return d
}

func (d *decoder) bytesAt(pos, n int64) []byte {
	if pos < 0 || n < 0 || pos+n > int64(len(d.buf)) {
		corrupt("%v at offset %d: field at %d+%d past record end %d",
			d.hdr.Type, d.hdr.Offset, pos, n, len(d.buf))
	}
	return d.buf[pos : pos+n]
}

func (d *decoder) int32At(pos int64) int32 {
	return int32(binary.BigEndian.Uint32(d.bytesAt(pos, 4)))
}

// offsetAt reads an offset field, sign extending 4 byte offsets so -1
// survives.
func (d *decoder) offsetAt(pos int64) int64 {
	if d.v.OffsetSize == 4 {
		return int64(d.int32At(pos))
	}
	return int64(binary.BigEndian.Uint64(d.bytesAt(pos, 8)))
}

func (d *decoder) int32(name string) int32 {
	return d.int32At(d.lay.at[name])
}

func (d *decoder) offset(name string) int64 {
	return d.offsetAt(d.lay.at[name])
}

func (d *decoder) int32s(pos int64, n int32) []int32 {
	if n < 0 || n > maxDimensions*64 {
		corrupt("%v at offset %d: bad count %d", d.hdr.Type, d.hdr.Offset, n)
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = d.int32At(pos + 4*int64(i))
	}
	return out
}

// name reads a fixed width name, which may be padded with NULs or spaces.
func (d *decoder) name(fieldName string, width int64) string {
	pos := d.lay.at[fieldName]
	if pos+width > int64(len(d.buf)) {
		width = int64(len(d.buf)) - pos
	}
	b := d.bytesAt(pos, width)
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimRight(b, " "))
}

func (d *decoder) checkDims(n int32) {
	if n < 0 || n > maxDimensions {
		corrupt("%v at offset %d: bad dimension count %d", d.hdr.Type, d.hdr.Offset, n)
	}
}

func valueWidth(dataType int32, numElems int32) int64 {
	w, err := types.DataType(dataType).Width()
	if err != nil {
		thrower.Throw(fmt.Errorf("%w: %w", ErrCorruptRecord, err))
	}
	if numElems < 0 {
		corrupt("negative element count %d", numElems)
	}
	return int64(w) * int64(numElems)
}

// DecodeCDR decodes the CDR at offset at.
func DecodeCDR(buf []byte, at int64, v *Version) (cdr *CDR, err error) {
	defer thrower.RecoverError(&err)
	d := open(buf, at, v, CDRType)
	return &CDR{
		Header:     d.hdr,
		GDROffset:  d.offset("GDRoffset"),
		Version:    d.int32("Version"),
		Release:    d.int32("Release"),
		Encoding:   d.int32("Encoding"),
		Flags:      d.int32("Flags"),
		Increment:  d.int32("Increment"),
		Identifier: d.int32("Identifier"),
		Copyright:  d.name("Copyright", int64(v.CopyrightLen)),
	}, nil
}

// DecodeGDR decodes the GDR at offset at.
func DecodeGDR(buf []byte, at int64, v *Version) (gdr *GDR, err error) {
	defer thrower.RecoverError(&err)
	d := open(buf, at, v, GDRType)
	g := &GDR{
		Header:                d.hdr,
		RVDRHead:              d.offset("rVDRhead"),
		ZVDRHead:              d.offset("zVDRhead"),
		ADRHead:               d.offset("ADRhead"),
		EOF:                   d.offset("eof"),
		NrVars:                d.int32("NrVars"),
		NumAttr:               d.int32("NumAttr"),
		RMaxRec:               d.int32("rMaxRec"),
		RNumDims:              d.int32("rNumDims"),
		NzVars:                d.int32("NzVars"),
		UIRHead:               d.offset("UIRhead"),
		LeapSecondLastUpdated: d.int32("LeapSecondLastUpdated"),
	}
	d.checkDims(g.RNumDims)
	g.RDimSizes = d.int32s(d.lay.at["rDimSizes"], g.RNumDims)
	return g, nil
}

// DecodeADR decodes the ADR at offset at.
func DecodeADR(buf []byte, at int64, v *Version) (adr *ADR, err error) {
	defer thrower.RecoverError(&err)
	d := open(buf, at, v, ADRType)
	return &ADR{
		Header:     d.hdr,
		Next:       d.offset("ADRnext"),
		AgrEDRHead: d.offset("AgrEDRhead"),
		Scope:      d.int32("Scope"),
		Num:        d.int32("Num"),
		NgrEntries: d.int32("NgrEntries"),
		MAXgrEntry: d.int32("MAXgrEntry"),
		AzEDRHead:  d.offset("AzEDRhead"),
		NzEntries:  d.int32("NzEntries"),
		MAXzEntry:  d.int32("MAXzEntry"),
		Name:       d.name("Name", int64(v.NameLen)),
	}, nil
}

// DecodeAEDR decodes the AgrEDR or AzEDR at offset at.
func DecodeAEDR(buf []byte, at int64, v *Version) (aedr *AEDR, err error) {
	defer thrower.RecoverError(&err)
	d := open(buf, at, v, AgrEDRType, AzEDRType)
	e := &AEDR{
		Header:   d.hdr,
		Next:     d.offset("AEDRnext"),
		AttrNum:  d.int32("AttrNum"),
		DataType: d.int32("DataType"),
		Num:      d.int32("Num"),
		NumElems: d.int32("NumElems"),
	}
	if v.Major >= 3 {
		e.NumStrings = d.int32("NumStrings")
	}
	n := valueWidth(e.DataType, e.NumElems)
	e.Value = d.bytesAt(d.lay.at["Value"], n)
	return e, nil
}

// DecodeVDR decodes the rVDR or zVDR at offset at. rNumDims comes from the
// GDR and is only used for r-variables.
func DecodeVDR(buf []byte, at int64, v *Version, rNumDims int32) (vdr *VDR, err error) {
	defer thrower.RecoverError(&err)
	d := open(buf, at, v, RVDRType, ZVDRType)
	r := &VDR{
		Header:         d.hdr,
		Next:           d.offset("VDRnext"),
		DataType:       d.int32("DataType"),
		MaxRec:         d.int32("MaxRec"),
		VXRHead:        d.offset("VXRhead"),
		VXRTail:        d.offset("VXRtail"),
		Flags:          d.int32("Flags"),
		SRecords:       d.int32("SRecords"),
		NumElems:       d.int32("NumElems"),
		Num:            d.int32("Num"),
		CPROffset:      d.offset("CPRorSPRoffset"),
		BlockingFactor: d.int32("BlockingFactor"),
		Name:           d.name("Name", int64(v.NameLen)),
	}
	pos := d.lay.at["zNumDims"]
	numDims := rNumDims
	if r.IsZ() {
		r.ZNumDims = d.int32At(pos)
		d.checkDims(r.ZNumDims)
		pos += 4
		r.ZDimSizes = d.int32s(pos, r.ZNumDims)
		pos += 4 * int64(r.ZNumDims)
		numDims = r.ZNumDims
	}
	d.checkDims(numDims)
	r.DimVarys = d.int32s(pos, numDims)
	pos += 4 * int64(numDims)
	if r.HasPad() {
		r.PadValue = d.bytesAt(pos, valueWidth(r.DataType, r.NumElems))
	}
	return r, nil
}

// DecodeVXR decodes the VXR at offset at.
func DecodeVXR(buf []byte, at int64, v *Version) (vxr *VXR, err error) {
	defer thrower.RecoverError(&err)
	d := open(buf, at, v, VXRType)
	x := &VXR{
		Header:       d.hdr,
		Next:         d.offset("VXRnext"),
		NEntries:     d.int32("Nentries"),
		NUsedEntries: d.int32("NusedEntries"),
	}
	if x.NUsedEntries < 0 || x.NUsedEntries > x.NEntries {
		corrupt("VXR at offset %d uses %d of %d entries", at, x.NUsedEntries, x.NEntries)
	}
	pos := d.lay.at["First"]
	n := int64(x.NEntries)
	x.First = d.int32s(pos, x.NUsedEntries)
	x.Last = d.int32s(pos+4*n, x.NUsedEntries)
	x.Offsets = make([]int64, x.NUsedEntries)
	for i := range x.Offsets {
		x.Offsets[i] = d.offsetAt(pos + 8*n + int64(i)*int64(v.OffsetSize))
	}
	return x, nil
}

// PeekType returns the type of the record at offset at, for offsets that
// may hold one of several record types.
func PeekType(buf []byte, at int64, v *Version) (t Type, err error) {
	defer thrower.RecoverError(&err)
	if at < 0 || at+v.HeaderSize() > int64(len(buf)) {
		corrupt("record offset %d outside file of %d bytes", at, len(buf))
	}
	return Type(int32(binary.BigEndian.Uint32(buf[at+int64(v.OffsetSize):]))), nil
}

// DecodeVVR decodes the VVR at offset at. Data aliases buf.
func DecodeVVR(buf []byte, at int64, v *Version) (vvr *VVR, err error) {
	defer thrower.RecoverError(&err)
	d := open(buf, at, v, VVRType)
	pos := d.lay.at["Records"]
	return &VVR{Header: d.hdr, Data: d.bytesAt(pos, d.hdr.Size-pos)}, nil
}

// DecodeCVVR decodes the CVVR at offset at. Data aliases buf.
func DecodeCVVR(buf []byte, at int64, v *Version) (cvvr *CVVR, err error) {
	defer thrower.RecoverError(&err)
	d := open(buf, at, v, CVVRType)
	c := &CVVR{Header: d.hdr, CSize: d.offset("cSize")}
	c.Data = d.bytesAt(d.lay.at["data"], c.CSize)
	return c, nil
}

// DecodeCPR decodes the CPR at offset at.
func DecodeCPR(buf []byte, at int64, v *Version) (cpr *CPR, err error) {
	defer thrower.RecoverError(&err)
	d := open(buf, at, v, CPRType)
	c := &CPR{Header: d.hdr, CType: d.int32("cType")}
	c.Parms = d.int32s(d.lay.at["cParms"], d.int32("pCount"))
	return c, nil
}

// DecodeCCR decodes the CCR at offset at. Data aliases buf.
func DecodeCCR(buf []byte, at int64, v *Version) (ccr *CCR, err error) {
	defer thrower.RecoverError(&err)
	d := open(buf, at, v, CCRType)
	c := &CCR{
		Header:    d.hdr,
		CPROffset: d.offset("CPRoffset"),
		USize:     d.offset("uSize"),
	}
	pos := d.lay.at["data"]
	c.Data = d.bytesAt(pos, d.hdr.Size-pos)
	return c, nil
}
