// Package record encodes and decodes the internal records of a CDF file.
// Field positions differ between format versions, so they are computed from
// one field sequence per record type and the widths of a Version.
package record

import (
	"errors"
	"fmt"
)

// Type is the record type tag stored after the record size.
type Type int32

const (
	CDRType    Type = 1
	GDRType    Type = 2
	RVDRType   Type = 3
	ADRType    Type = 4
	AgrEDRType Type = 5
	VXRType    Type = 6
	VVRType    Type = 7
	ZVDRType   Type = 8
	AzEDRType  Type = 9
	CCRType    Type = 10
	CPRType    Type = 11
	SPRType    Type = 12
	CVVRType   Type = 13
	UIRType    Type = -1
)

func (t Type) String() string {
	switch t {
	case CDRType:
		return "CDR"
	case GDRType:
		return "GDR"
	case RVDRType:
		return "rVDR"
	case ADRType:
		return "ADR"
	case AgrEDRType:
		return "AgrEDR"
	case VXRType:
		return "VXR"
	case VVRType:
		return "VVR"
	case ZVDRType:
		return "zVDR"
	case AzEDRType:
		return "AzEDR"
	case CCRType:
		return "CCR"
	case CPRType:
		return "CPR"
	case SPRType:
		return "SPR"
	case CVVRType:
		return "CVVR"
	case UIRType:
		return "UIR"
	}
	return fmt.Sprintf("record(%d)", int32(t))
}

// Magic numbers, the first 8 bytes of a file, big-endian.
const (
	CDF3Magic           uint64 = 0xCDF300010000FFFF
	CDF3CompressedMagic uint64 = 0xCDF30001CCCC0001
	CDF2Magic           uint64 = 0xCDF260020000FFFF
	CDF2MagicDot5       uint64 = 0x0000FFFF0000FFFF
)

// MagicSize is the length of the magic number prefix.
const MagicSize = 8

var ErrCorruptRecord = errors.New("corrupt record")

type fieldKind int

const (
	int32Field fieldKind = iota
	offsetField
	nameField
	copyrightField
	// trailing marks where the variable length part of a record begins.
	trailing
)

type field struct {
	name string
	kind fieldKind
}

var fieldSequences = map[Type][]field{
	CDRType: {
		{"GDRoffset", offsetField},
		{"Version", int32Field},
		{"Release", int32Field},
		{"Encoding", int32Field},
		{"Flags", int32Field},
		{"rfuA", int32Field},
		{"rfuB", int32Field},
		{"Increment", int32Field},
		{"Identifier", int32Field},
		{"rfuE", int32Field},
		{"Copyright", copyrightField},
	},
	GDRType: {
		{"rVDRhead", offsetField},
		{"zVDRhead", offsetField},
		{"ADRhead", offsetField},
		{"eof", offsetField},
		{"NrVars", int32Field},
		{"NumAttr", int32Field},
		{"rMaxRec", int32Field},
		{"rNumDims", int32Field},
		{"NzVars", int32Field},
		{"UIRhead", offsetField},
		{"rfuC", int32Field},
		{"LeapSecondLastUpdated", int32Field},
		{"rfuE", int32Field},
		{"rDimSizes", trailing},
	},
	ADRType: {
		{"ADRnext", offsetField},
		{"AgrEDRhead", offsetField},
		{"Scope", int32Field},
		{"Num", int32Field},
		{"NgrEntries", int32Field},
		{"MAXgrEntry", int32Field},
		{"rfuA", int32Field},
		{"AzEDRhead", offsetField},
		{"NzEntries", int32Field},
		{"MAXzEntry", int32Field},
		{"rfuE", int32Field},
		{"Name", nameField},
	},
	AgrEDRType: {
		{"AEDRnext", offsetField},
		{"AttrNum", int32Field},
		{"DataType", int32Field},
		{"Num", int32Field},
		{"NumElems", int32Field},
		{"NumStrings", int32Field},
		{"rfB", int32Field},
		{"rfC", int32Field},
		{"rfD", int32Field},
		{"rfE", int32Field},
		{"Value", trailing},
	},
	ZVDRType: {
		{"VDRnext", offsetField},
		{"DataType", int32Field},
		{"MaxRec", int32Field},
		{"VXRhead", offsetField},
		{"VXRtail", offsetField},
		{"Flags", int32Field},
		{"SRecords", int32Field},
		{"rfuB", int32Field},
		{"rfuC", int32Field},
		{"rfuF", int32Field},
		{"NumElems", int32Field},
		{"Num", int32Field},
		{"CPRorSPRoffset", offsetField},
		{"BlockingFactor", int32Field},
		{"Name", nameField},
		{"zNumDims", trailing},
	},
	VXRType: {
		{"VXRnext", offsetField},
		{"Nentries", int32Field},
		{"NusedEntries", int32Field},
		{"First", trailing},
	},
	VVRType: {
		{"Records", trailing},
	},
	CVVRType: {
		{"rfuA", int32Field},
		{"cSize", offsetField},
		{"data", trailing},
	},
	CPRType: {
		{"cType", int32Field},
		{"rfuA", int32Field},
		{"pCount", int32Field},
		{"cParms", trailing},
	},
	CCRType: {
		{"CPRoffset", offsetField},
		{"uSize", offsetField},
		{"rfuA", int32Field},
		{"data", trailing},
	},
}

// layout maps field names to their byte offset from the record start.
// fixed is the size of the record without its variable length part.
type layout struct {
	at    map[string]int64
	fixed int64
}

// Version holds the field widths of one format version.
type Version struct {
	Major        int
	OffsetSize   int
	NameLen      int
	CopyrightLen int
	layouts      map[Type]*layout
}

func newVersion(major, offsetSize, nameLen, copyrightLen int) *Version {
	v := &Version{
		Major:        major,
		OffsetSize:   offsetSize,
		NameLen:      nameLen,
		CopyrightLen: copyrightLen,
		layouts:      map[Type]*layout{},
	}
	for t, fields := range fieldSequences {
		v.layouts[t] = v.computeLayout(fields)
	}
	// Record types sharing a layout.
	v.layouts[RVDRType] = v.layouts[ZVDRType]
	v.layouts[AzEDRType] = v.layouts[AgrEDRType]
	return v
}

func (v *Version) width(k fieldKind) int64 {
	switch k {
	case int32Field:
		return 4
	case offsetField:
		return int64(v.OffsetSize)
	case nameField:
		return int64(v.NameLen)
	case copyrightField:
		return int64(v.CopyrightLen)
	}
	return 0
}

func (v *Version) computeLayout(fields []field) *layout {
	l := &layout{at: map[string]int64{}}
	pos := v.HeaderSize()
	for _, f := range fields {
		l.at[f.name] = pos
		pos += v.width(f.kind)
	}
	l.fixed = pos
	return l
}

// HeaderSize is the size of the record size and record type fields.
func (v *Version) HeaderSize() int64 {
	return int64(v.OffsetSize) + 4
}

func (v *Version) layoutOf(t Type) *layout {
	l, has := v.layouts[t]
	if !has {
		panic(fmt.Sprint("no layout for ", t))
	}
	return l
}

// Offset returns the position of a named field within a record of type t.
func (v *Version) Offset(t Type, fieldName string) int64 {
	pos, has := v.layoutOf(t).at[fieldName]
	if !has {
		panic(fmt.Sprint("no field ", fieldName, " in ", t))
	}
	return pos
}

var (
	// V2 covers every CDF 2.x file: 4 byte offsets and 64 byte names.
	V2 = newVersion(2, 4, 64, 1945)
	// V3 uses 8 byte offsets and 256 byte names.
	V3 = newVersion(3, 8, 256, 256)
)

// ForMagic returns the version for a magic number, and whether the body is
// compressed behind a CCR.
func ForMagic(magic uint64) (v *Version, compressed bool, ok bool) {
	switch magic {
	case CDF3Magic:
		return V3, false, true
	case CDF3CompressedMagic:
		return V3, true, true
	case CDF2Magic, CDF2MagicDot5:
		return V2, false, true
	}
	return nil, false, false
}

// EndOfChain reports whether a next-record offset terminates a list. Files
// from different library versions use 0 or -1, and an offset at or past the
// end of the file cannot start a record either.
func EndOfChain(offset int64, fileSize int64) bool {
	return offset == 0 || offset == -1 || offset >= fileSize
}
