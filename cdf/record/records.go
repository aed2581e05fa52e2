package record

// Flag bits and option values stored in descriptor records.
const (
	CDRRowMajor   int32 = 1
	CDRSingleFile int32 = 2
	CDRChecksum   int32 = 4
	CDRMD5        int32 = 8

	VDRRecordVariance int32 = 1
	VDRPadValue       int32 = 2
	VDRCompressed     int32 = 4

	ScopeGlobal          int32 = 1
	ScopeVariable        int32 = 2
	ScopeGlobalAssumed   int32 = 3
	ScopeVariableAssumed int32 = 4

	// GzipCompression is the only compression type supported in CPRs.
	GzipCompression int32 = 5
)

// NoOffset marks an absent optional offset, such as a VDR without a CPR.
const NoOffset int64 = -1

// SparseRecords selects how records that were never written are read back.
type SparseRecords int32

const (
	SparseNone     SparseRecords = 0
	SparsePadded   SparseRecords = 1
	SparsePrevious SparseRecords = 2
)

func (s SparseRecords) String() string {
	switch s {
	case SparseNone:
		return "none"
	case SparsePadded:
		return "padded"
	case SparsePrevious:
		return "previous"
	}
	return "unknown"
}

// Header starts every record. Offset is where the record was found, and is
// not part of the encoding.
type Header struct {
	Offset int64
	Size   int64
	Type   Type
}

// CDR is the CDF descriptor record, immediately after the magic number.
type CDR struct {
	Header
	GDROffset  int64
	Version    int32
	Release    int32
	Encoding   int32
	Flags      int32
	Increment  int32
	Identifier int32
	Copyright  string
}

func (c *CDR) RowMajor() bool   { return c.Flags&CDRRowMajor != 0 }
func (c *CDR) SingleFile() bool { return c.Flags&CDRSingleFile != 0 }
func (c *CDR) Checksum() bool   { return c.Flags&CDRChecksum != 0 }
func (c *CDR) MD5() bool        { return c.Flags&CDRMD5 != 0 }

// GDR is the global descriptor record.
type GDR struct {
	Header
	RVDRHead              int64
	ZVDRHead              int64
	ADRHead               int64
	EOF                   int64
	NrVars                int32
	NumAttr               int32
	RMaxRec               int32
	RNumDims              int32
	NzVars                int32
	UIRHead               int64
	LeapSecondLastUpdated int32
	RDimSizes             []int32
}

// ADR describes one attribute and heads its entry lists.
type ADR struct {
	Header
	Next       int64
	AgrEDRHead int64
	Scope      int32
	Num        int32
	NgrEntries int32
	MAXgrEntry int32
	AzEDRHead  int64
	NzEntries  int32
	MAXzEntry  int32
	Name       string
}

// IsGlobal reports whether the attribute has global scope.
func (a *ADR) IsGlobal() bool {
	return a.Scope == ScopeGlobal || a.Scope == ScopeGlobalAssumed
}

// AEDR is one attribute entry. Header.Type tells AgrEDR and AzEDR apart.
type AEDR struct {
	Header
	Next       int64
	AttrNum    int32
	DataType   int32
	Num        int32
	NumElems   int32
	NumStrings int32
	Value      []byte
}

// VDR describes an r- or z-variable. For r-variables the dimensions live in
// the GDR and ZNumDims and ZDimSizes are unused.
type VDR struct {
	Header
	Next           int64
	DataType       int32
	MaxRec         int32
	VXRHead        int64
	VXRTail        int64
	Flags          int32
	SRecords       int32
	NumElems       int32
	Num            int32
	CPROffset      int64
	BlockingFactor int32
	Name           string
	ZNumDims       int32
	ZDimSizes      []int32
	DimVarys       []int32
	PadValue       []byte
}

func (v *VDR) IsZ() bool             { return v.Type == ZVDRType }
func (v *VDR) RecordVarying() bool   { return v.Flags&VDRRecordVariance != 0 }
func (v *VDR) HasPad() bool          { return v.Flags&VDRPadValue != 0 }
func (v *VDR) Compressed() bool      { return v.Flags&VDRCompressed != 0 }
func (v *VDR) Sparse() SparseRecords { return SparseRecords(v.SRecords) }

// VXR indexes runs of records. Only the first NusedEntries entries are in use.
type VXR struct {
	Header
	Next         int64
	NEntries     int32
	NUsedEntries int32
	First        []int32
	Last         []int32
	Offsets      []int64
}

// VVR holds uncompressed records.
type VVR struct {
	Header
	Data []byte
}

// CVVR holds gzip compressed records.
type CVVR struct {
	Header
	CSize int64
	Data  []byte
}

// CPR describes the compression of a variable or of the whole file.
type CPR struct {
	Header
	CType int32
	Parms []int32
}

// CCR wraps the compressed body of a whole file.
type CCR struct {
	Header
	CPROffset int64
	USize     int64
	Data      []byte
}
