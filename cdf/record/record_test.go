package record

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

var versions = []*Version{V2, V3}

func encode(t *testing.T, v *Version, write func(io.Writer, *Version) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, write(&buf, v))
	return buf.Bytes()
}

func TestLayoutOffsets(t *testing.T) {
	require.Equal(t, int64(84), V3.Offset(ZVDRType, "Name"))
	require.Equal(t, int64(64), V2.Offset(ZVDRType, "Name"))
	require.Equal(t, int64(340), V3.Offset(RVDRType, "zNumDims"))
	require.Equal(t, int64(128), V2.Offset(RVDRType, "zNumDims"))
	require.Equal(t, int64(56), V3.Offset(CDRType, "Copyright"))
	require.Equal(t, int64(312), V3.layoutOf(CDRType).fixed)
	require.Equal(t, int64(84), V3.layoutOf(GDRType).fixed)
	require.Equal(t, int64(324), V3.layoutOf(ADRType).fixed)
	require.Equal(t, int64(56), V3.Offset(AzEDRType, "Value"))
	require.Equal(t, int64(28), V3.Offset(VXRType, "First"))
	require.Equal(t, int64(24), V3.Offset(CVVRType, "data"))
	require.Equal(t, int64(32), V3.Offset(CCRType, "data"))
	require.Equal(t, int64(24), V3.Offset(CPRType, "cParms"))
	require.Panics(t, func() { V3.Offset(VXRType, "Name") })
}

func TestForMagic(t *testing.T) {
	v, compressed, ok := ForMagic(CDF3CompressedMagic)
	require.True(t, ok)
	require.True(t, compressed)
	require.Same(t, V3, v)
	v, compressed, ok = ForMagic(CDF2MagicDot5)
	require.True(t, ok)
	require.False(t, compressed)
	require.Same(t, V2, v)
	_, _, ok = ForMagic(0x89484446)
	require.False(t, ok)
}

func TestEndOfChain(t *testing.T) {
	require.True(t, EndOfChain(0, 100))
	require.True(t, EndOfChain(-1, 100))
	require.True(t, EndOfChain(100, 100))
	require.False(t, EndOfChain(99, 100))
}

func TestCDRRoundTrip(t *testing.T) {
	for _, v := range versions {
		cdr := &CDR{
			GDROffset: 320,
			Version:   int32(v.Major),
			Release:   9,
			Encoding:  6,
			Flags:     CDRRowMajor | CDRSingleFile,
			Increment: 1,
			Copyright: "Common Data Format (CDF)",
		}
		b := encode(t, v, cdr.Write)
		require.Equal(t, cdr.Size, int64(len(b)))
		got, err := DecodeCDR(b, 0, v)
		require.NoError(t, err)
		require.Equal(t, cdr, got)
		require.True(t, got.RowMajor())
		require.False(t, got.MD5())
	}
}

func TestGDRRoundTrip(t *testing.T) {
	for _, v := range versions {
		gdr := &GDR{
			RVDRHead:              100,
			ZVDRHead:              200,
			ADRHead:               300,
			EOF:                   4000,
			NrVars:                1,
			NumAttr:               2,
			RMaxRec:               -1,
			NzVars:                3,
			UIRHead:               0,
			LeapSecondLastUpdated: 20170101,
			RDimSizes:             []int32{3, 4},
		}
		b := encode(t, v, gdr.Write)
		got, err := DecodeGDR(b, 0, v)
		require.NoError(t, err)
		require.Equal(t, gdr, got)
		require.Equal(t, int32(2), got.RNumDims)
	}
}

func TestADRRoundTrip(t *testing.T) {
	for _, v := range versions {
		adr := &ADR{
			Next:       -1,
			AgrEDRHead: 500,
			Scope:      ScopeVariable,
			Num:        4,
			AzEDRHead:  600,
			NzEntries:  2,
			MAXzEntry:  5,
			Name:       "DEPEND_0",
		}
		b := encode(t, v, adr.Write)
		got, err := DecodeADR(b, 0, v)
		require.NoError(t, err)
		require.Equal(t, adr, got)
		require.False(t, got.IsGlobal())
	}
}

func TestNameTrimsSpaces(t *testing.T) {
	adr := &ADR{Name: "TITLE", Scope: ScopeGlobal}
	b := encode(t, V3, adr.Write)
	at := V3.Offset(ADRType, "Name")
	for i := at + 5; i < at+int64(V3.NameLen); i++ {
		b[i] = ' '
	}
	got, err := DecodeADR(b, 0, V3)
	require.NoError(t, err)
	require.Equal(t, "TITLE", got.Name)
	require.True(t, got.IsGlobal())
}

func TestAEDRRoundTrip(t *testing.T) {
	for _, v := range versions {
		value := make([]byte, 16)
		binary.LittleEndian.PutUint64(value, 7)
		binary.LittleEndian.PutUint64(value[8:], 9)
		e := &AEDR{
			Header:   Header{Type: AzEDRType},
			Next:     0,
			AttrNum:  1,
			DataType: 8,
			Num:      3,
			NumElems: 2,
			Value:    value,
		}
		b := encode(t, v, e.Write)
		got, err := DecodeAEDR(b, 0, v)
		require.NoError(t, err)
		require.Equal(t, e, got)
		require.Equal(t, AzEDRType, got.Type)
	}
}

func TestAEDRValueBounds(t *testing.T) {
	e := &AEDR{DataType: 51, NumElems: 4, Value: []byte("abcd")}
	b := encode(t, V3, e.Write)
	binary.BigEndian.PutUint32(b[V3.Offset(AgrEDRType, "NumElems"):], 40)
	_, err := DecodeAEDR(b, 0, V3)
	require.ErrorIs(t, err, ErrCorruptRecord)

	binary.BigEndian.PutUint32(b[V3.Offset(AgrEDRType, "DataType"):], 99)
	_, err = DecodeAEDR(b, 0, V3)
	require.ErrorIs(t, err, ErrCorruptRecord)
}

func TestZVDRRoundTrip(t *testing.T) {
	for _, v := range versions {
		r := &VDR{
			Next:           -1,
			DataType:       21,
			MaxRec:         9,
			VXRHead:        1000,
			VXRTail:        1000,
			Flags:          VDRRecordVariance | VDRPadValue | VDRCompressed,
			SRecords:       int32(SparsePrevious),
			NumElems:       1,
			Num:            0,
			CPROffset:      2000,
			BlockingFactor: 64,
			Name:           "Flux",
			ZDimSizes:      []int32{2, 3},
			DimVarys:       []int32{-1, -1},
			PadValue:       []byte{1, 2, 3, 4},
		}
		b := encode(t, v, r.Write)
		require.Equal(t, r.Size, int64(len(b)))
		got, err := DecodeVDR(b, 0, v, 0)
		require.NoError(t, err)
		require.Equal(t, r, got)
		require.True(t, got.IsZ())
		require.True(t, got.Compressed())
		require.Equal(t, SparsePrevious, got.Sparse())
	}
}

func TestRVDRRoundTrip(t *testing.T) {
	for _, v := range versions {
		r := &VDR{
			Header:    Header{Type: RVDRType},
			Next:      0,
			DataType:  4,
			MaxRec:    -1,
			Flags:     0,
			NumElems:  1,
			CPROffset: NoOffset,
			Name:      "counts",
			DimVarys:  []int32{-1, 0, -1},
		}
		b := encode(t, v, r.Write)
		got, err := DecodeVDR(b, 0, v, 3)
		require.NoError(t, err)
		require.Equal(t, r, got)
		require.False(t, got.IsZ())
		require.False(t, got.RecordVarying())
		require.Nil(t, got.PadValue)
	}
}

func TestVXRRoundTrip(t *testing.T) {
	for _, v := range versions {
		x := &VXR{
			Next:     0,
			NEntries: 6,
			First:    []int32{0, 5},
			Last:     []int32{4, 9},
			Offsets:  []int64{800, 900},
		}
		b := encode(t, v, x.Write)
		require.Equal(t, int64(len(b)), x.EncodedSize(v))
		got, err := DecodeVXR(b, 0, v)
		require.NoError(t, err)
		require.Equal(t, x, got)
		require.Equal(t, int32(2), got.NUsedEntries)

		typ, err := PeekType(b, 0, v)
		require.NoError(t, err)
		require.Equal(t, VXRType, typ)
	}
}

func TestVXRUsedExceedsEntries(t *testing.T) {
	x := &VXR{NEntries: 1, First: []int32{0}, Last: []int32{0}, Offsets: []int64{100}}
	b := encode(t, V3, x.Write)
	binary.BigEndian.PutUint32(b[V3.Offset(VXRType, "NusedEntries"):], 2)
	_, err := DecodeVXR(b, 0, V3)
	require.ErrorIs(t, err, ErrCorruptRecord)
}

func TestDataRecordsRoundTrip(t *testing.T) {
	for _, v := range versions {
		vvr := &VVR{Data: []byte{1, 2, 3, 4, 5}}
		b := encode(t, v, vvr.Write)
		gotVVR, err := DecodeVVR(b, 0, v)
		require.NoError(t, err)
		require.Equal(t, vvr, gotVVR)

		cvvr := &CVVR{Data: []byte{9, 8, 7}}
		b = encode(t, v, cvvr.Write)
		gotCVVR, err := DecodeCVVR(b, 0, v)
		require.NoError(t, err)
		require.Equal(t, cvvr, gotCVVR)
		require.Equal(t, int64(3), gotCVVR.CSize)

		cpr := &CPR{CType: GzipCompression, Parms: []int32{6}}
		b = encode(t, v, cpr.Write)
		gotCPR, err := DecodeCPR(b, 0, v)
		require.NoError(t, err)
		require.Equal(t, cpr, gotCPR)

		ccr := &CCR{CPROffset: 1234, USize: 5678, Data: []byte("gzip")}
		b = encode(t, v, ccr.Write)
		gotCCR, err := DecodeCCR(b, 0, v)
		require.NoError(t, err)
		require.Equal(t, ccr, gotCCR)
	}
}

func TestDecodeAtOffset(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, 100))
	vvr := &VVR{Data: []byte("records")}
	require.NoError(t, vvr.Write(&buf, V3))
	got, err := DecodeVVR(buf.Bytes(), 100, V3)
	require.NoError(t, err)
	require.Equal(t, int64(100), got.Offset)
	require.Equal(t, []byte("records"), got.Data)
}

func TestWrongRecordType(t *testing.T) {
	cdr := &CDR{Copyright: "x"}
	b := encode(t, V3, cdr.Write)
	_, err := DecodeGDR(b, 0, V3)
	require.ErrorIs(t, err, ErrCorruptRecord)
	_, err = DecodeVDR(b, 0, V3, 0)
	require.ErrorIs(t, err, ErrCorruptRecord)
}

func TestOutOfBounds(t *testing.T) {
	cdr := &CDR{Copyright: "x"}
	b := encode(t, V3, cdr.Write)

	_, err := DecodeCDR(b[:len(b)-1], 0, V3)
	require.ErrorIs(t, err, ErrCorruptRecord)
	_, err = DecodeCDR(b, int64(len(b)), V3)
	require.ErrorIs(t, err, ErrCorruptRecord)
	_, err = DecodeCDR(b, -8, V3)
	require.ErrorIs(t, err, ErrCorruptRecord)
	_, err = PeekType(b, int64(len(b)-4), V3)
	require.ErrorIs(t, err, ErrCorruptRecord)

	// A size smaller than the fixed fields.
	short := append([]byte(nil), b...)
	binary.BigEndian.PutUint64(short, 20)
	_, err = DecodeCDR(short, 0, V3)
	require.ErrorIs(t, err, ErrCorruptRecord)
}

func TestStrings(t *testing.T) {
	joined := JoinStrings([]string{"alpha", "beta", "gamma"})
	require.Equal(t, "alpha\\N beta\\N gamma", joined)
	require.Equal(t, []string{"alpha", "beta", "gamma"}, SplitStrings(joined))
	require.Equal(t, []string{"single"}, SplitStrings("single"))
}
