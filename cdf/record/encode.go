package record

import (
	"io"

	"github.com/batchatco/go-native-cdf/cdf/util"
	"github.com/batchatco/go-thrower"
)

// Reserved fields that the CDF library fills with -1 rather than 0.
var reservedMinusOne = map[Type]map[string]bool{
	CDRType:    {"rfuE": true},
	GDRType:    {"rfuE": true},
	ADRType:    {"rfuE": true},
	AgrEDRType: {"rfD": true, "rfE": true},
	ZVDRType:   {"rfuC": true, "rfuF": true},
}

func sequenceType(t Type) Type {
	switch t {
	case RVDRType:
		return ZVDRType
	case AzEDRType:
		return AgrEDRType
	}
	return t
}

// writeFixed writes the record header and every fixed field of a record of
// type t, taking values from vals by field name. Missing int32 fields are
// reserved and written as 0 or -1.
func writeFixed(w io.Writer, v *Version, t Type, size int64, vals map[string]any) {
	util.MustWriteOffset(w, v.OffsetSize, size)
	util.MustWriteBE(w, int32(t))
	st := sequenceType(t)
	for _, f := range fieldSequences[st] {
		val, has := vals[f.name]
		switch f.kind {
		case int32Field:
			var n int32
			switch {
			case has:
				n = val.(int32)
			case reservedMinusOne[st][f.name]:
				n = -1
			}
			util.MustWriteBE(w, n)
		case offsetField:
			var off int64
			if has {
				off = val.(int64)
			}
			util.MustWriteOffset(w, v.OffsetSize, off)
		case nameField:
			util.MustWritePadded(w, val.(string), v.NameLen)
		case copyrightField:
			util.MustWritePadded(w, val.(string), v.CopyrightLen)
		case trailing:
			return
		}
	}
}

func fixedSize(v *Version, t Type) int64 {
	return v.layoutOf(t).fixed
}

// EncodedSize is the size of the CDR in bytes.
func (c *CDR) EncodedSize(v *Version) int64 {
	return fixedSize(v, CDRType)
}

// Write encodes the CDR, setting its Size and Type.
func (c *CDR) Write(w io.Writer, v *Version) (err error) {
	defer thrower.RecoverError(&err)
	c.Type = CDRType
	c.Size = c.EncodedSize(v)
	writeFixed(w, v, CDRType, c.Size, map[string]any{
		"GDRoffset":  c.GDROffset,
		"Version":    c.Version,
		"Release":    c.Release,
		"Encoding":   c.Encoding,
		"Flags":      c.Flags,
		"Increment":  c.Increment,
		"Identifier": c.Identifier,
		"Copyright":  c.Copyright,
	})
	return nil
}

func (g *GDR) EncodedSize(v *Version) int64 {
	return fixedSize(v, GDRType) + 4*int64(len(g.RDimSizes))
}

func (g *GDR) Write(w io.Writer, v *Version) (err error) {
	defer thrower.RecoverError(&err)
	g.Type = GDRType
	g.Size = g.EncodedSize(v)
	g.RNumDims = int32(len(g.RDimSizes))
	writeFixed(w, v, GDRType, g.Size, map[string]any{
		"rVDRhead":              g.RVDRHead,
		"zVDRhead":              g.ZVDRHead,
		"ADRhead":               g.ADRHead,
		"eof":                   g.EOF,
		"NrVars":                g.NrVars,
		"NumAttr":               g.NumAttr,
		"rMaxRec":               g.RMaxRec,
		"rNumDims":              g.RNumDims,
		"NzVars":                g.NzVars,
		"UIRhead":               g.UIRHead,
		"LeapSecondLastUpdated": g.LeapSecondLastUpdated,
	})
	util.MustWriteBE(w, g.RDimSizes)
	return nil
}

func (a *ADR) EncodedSize(v *Version) int64 {
	return fixedSize(v, ADRType)
}

func (a *ADR) Write(w io.Writer, v *Version) (err error) {
	defer thrower.RecoverError(&err)
	a.Type = ADRType
	a.Size = a.EncodedSize(v)
	writeFixed(w, v, ADRType, a.Size, map[string]any{
		"ADRnext":    a.Next,
		"AgrEDRhead": a.AgrEDRHead,
		"Scope":      a.Scope,
		"Num":        a.Num,
		"NgrEntries": a.NgrEntries,
		"MAXgrEntry": a.MAXgrEntry,
		"AzEDRhead":  a.AzEDRHead,
		"NzEntries":  a.NzEntries,
		"MAXzEntry":  a.MAXzEntry,
		"Name":       a.Name,
	})
	return nil
}

func (e *AEDR) EncodedSize(v *Version) int64 {
	return fixedSize(v, AgrEDRType) + int64(len(e.Value))
}

// Write encodes the entry. Type must be AgrEDRType or AzEDRType, and
// defaults to AgrEDRType.
func (e *AEDR) Write(w io.Writer, v *Version) (err error) {
	defer thrower.RecoverError(&err)
	if e.Type != AzEDRType {
		e.Type = AgrEDRType
	}
	e.Size = e.EncodedSize(v)
	writeFixed(w, v, e.Type, e.Size, map[string]any{
		"AEDRnext":   e.Next,
		"AttrNum":    e.AttrNum,
		"DataType":   e.DataType,
		"Num":        e.Num,
		"NumElems":   e.NumElems,
		"NumStrings": e.NumStrings,
	})
	util.MustWriteRaw(w, e.Value)
	return nil
}

func (r *VDR) EncodedSize(v *Version) int64 {
	size := fixedSize(v, ZVDRType) + 4*int64(len(r.DimVarys))
	if r.IsZ() {
		size += 4 + 4*int64(len(r.ZDimSizes))
	}
	if r.HasPad() {
		size += int64(len(r.PadValue))
	}
	return size
}

// Write encodes the variable descriptor. Type must be RVDRType or ZVDRType,
// and defaults to ZVDRType.
func (r *VDR) Write(w io.Writer, v *Version) (err error) {
	defer thrower.RecoverError(&err)
	if r.Type != RVDRType {
		r.Type = ZVDRType
	}
	r.Size = r.EncodedSize(v)
	writeFixed(w, v, r.Type, r.Size, map[string]any{
		"VDRnext":        r.Next,
		"DataType":       r.DataType,
		"MaxRec":         r.MaxRec,
		"VXRhead":        r.VXRHead,
		"VXRtail":        r.VXRTail,
		"Flags":          r.Flags,
		"SRecords":       r.SRecords,
		"NumElems":       r.NumElems,
		"Num":            r.Num,
		"CPRorSPRoffset": r.CPROffset,
		"BlockingFactor": r.BlockingFactor,
		"Name":           r.Name,
	})
	if r.IsZ() {
		r.ZNumDims = int32(len(r.ZDimSizes))
		util.MustWriteBE(w, r.ZNumDims)
		util.MustWriteBE(w, r.ZDimSizes)
	}
	util.MustWriteBE(w, r.DimVarys)
	if r.HasPad() {
		util.MustWriteRaw(w, r.PadValue)
	}
	return nil
}

func (x *VXR) EncodedSize(v *Version) int64 {
	return fixedSize(v, VXRType) + int64(x.NEntries)*(8+int64(v.OffsetSize))
}

// Write encodes the index. Entries past the used ones are written as -1.
func (x *VXR) Write(w io.Writer, v *Version) (err error) {
	defer thrower.RecoverError(&err)
	x.Type = VXRType
	x.NUsedEntries = int32(len(x.Offsets))
	if x.NEntries < x.NUsedEntries {
		x.NEntries = x.NUsedEntries
	}
	x.Size = x.EncodedSize(v)
	writeFixed(w, v, VXRType, x.Size, map[string]any{
		"VXRnext":      x.Next,
		"Nentries":     x.NEntries,
		"NusedEntries": x.NUsedEntries,
	})
	unused := int(x.NEntries - x.NUsedEntries)
	for _, col := range [][]int32{x.First, x.Last} {
		util.MustWriteBE(w, col)
		for range unused {
			util.MustWriteBE(w, int32(-1))
		}
	}
	for _, off := range x.Offsets {
		util.MustWriteOffset(w, v.OffsetSize, off)
	}
	for range unused {
		util.MustWriteOffset(w, v.OffsetSize, -1)
	}
	return nil
}

func (r *VVR) EncodedSize(v *Version) int64 {
	return fixedSize(v, VVRType) + int64(len(r.Data))
}

func (r *VVR) Write(w io.Writer, v *Version) (err error) {
	defer thrower.RecoverError(&err)
	r.Type = VVRType
	r.Size = r.EncodedSize(v)
	writeFixed(w, v, VVRType, r.Size, nil)
	util.MustWriteRaw(w, r.Data)
	return nil
}

func (c *CVVR) EncodedSize(v *Version) int64 {
	return fixedSize(v, CVVRType) + int64(len(c.Data))
}

func (c *CVVR) Write(w io.Writer, v *Version) (err error) {
	defer thrower.RecoverError(&err)
	c.Type = CVVRType
	c.Size = c.EncodedSize(v)
	c.CSize = int64(len(c.Data))
	writeFixed(w, v, CVVRType, c.Size, map[string]any{"cSize": c.CSize})
	util.MustWriteRaw(w, c.Data)
	return nil
}

func (c *CPR) EncodedSize(v *Version) int64 {
	return fixedSize(v, CPRType) + 4*int64(len(c.Parms))
}

func (c *CPR) Write(w io.Writer, v *Version) (err error) {
	defer thrower.RecoverError(&err)
	c.Type = CPRType
	c.Size = c.EncodedSize(v)
	writeFixed(w, v, CPRType, c.Size, map[string]any{
		"cType":  c.CType,
		"pCount": int32(len(c.Parms)),
	})
	util.MustWriteBE(w, c.Parms)
	return nil
}

func (c *CCR) EncodedSize(v *Version) int64 {
	return fixedSize(v, CCRType) + int64(len(c.Data))
}

func (c *CCR) Write(w io.Writer, v *Version) (err error) {
	defer thrower.RecoverError(&err)
	c.Type = CCRType
	c.Size = c.EncodedSize(v)
	writeFixed(w, v, CCRType, c.Size, map[string]any{
		"CPRoffset": c.CPROffset,
		"uSize":     c.USize,
	})
	util.MustWriteRaw(w, c.Data)
	return nil
}
