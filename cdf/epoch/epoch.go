// Package epoch converts the CDF time encodings (EPOCH, EPOCH16 and TT2000)
// to relative times and to time.Time.
package epoch

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/batchatco/go-native-cdf/cdf/types"
)

const (
	// epochOffsetMillis is 1970-01-01 in EPOCH milliseconds (since 0000-01-01).
	epochOffsetMillis = 62167219200000
	// epoch16OffsetSeconds is 1970-01-01 in EPOCH16 seconds.
	epoch16OffsetSeconds = 62167219200
)

// Precision is a unit of time for relative values.
type Precision int

const (
	Milliseconds Precision = iota
	Microseconds
	Nanoseconds
	Picoseconds
)

func (p Precision) perSecond() float64 {
	switch p {
	case Microseconds:
		return 1e6
	case Nanoseconds:
		return 1e9
	case Picoseconds:
		return 1e12
	}
	return 1e3
}

func (p Precision) String() string {
	switch p {
	case Microseconds:
		return "us"
	case Nanoseconds:
		return "ns"
	case Picoseconds:
		return "ps"
	}
	return "ms"
}

// ParsePrecision accepts the names returned by Precision.String.
func ParsePrecision(s string) (Precision, error) {
	for _, p := range []Precision{Milliseconds, Microseconds, Nanoseconds, Picoseconds} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown time unit %q", s)
}

// InstantModel describes how decoded times are expressed: as offsets in
// OffsetUnits from BaseTime, which counts BaseUnits since 1970-01-01 UTC.
// It is passed by value, so a model handed to a read cannot change under it.
type InstantModel struct {
	BaseTime    float64
	BaseUnits   Precision
	OffsetUnits Precision
}

// DefaultModel expresses times as milliseconds since 1970.
func DefaultModel() InstantModel {
	return InstantModel{BaseTime: 0, BaseUnits: Milliseconds, OffsetUnits: Milliseconds}
}

func (m InstantModel) baseSeconds() float64 {
	return m.BaseTime / m.BaseUnits.perSecond()
}

// baseTT is the base time on the TT2000 scale. Bases before 1972 get no
// leap second correction.
func (m InstantModel) baseTT() int64 {
	ns := int64(math.Round(m.BaseTime * (1e9 / m.BaseUnits.perSecond())))
	leaps := int64(leapsAt(floorDiv(ns, 1000000)))
	return TTEpochOffset + ns + leaps*1000000000
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// isFillEpoch reports whether an EPOCH or EPOCH16 value is the fill sentinel.
func isFillEpoch(v float64) bool {
	return v == types.FillEpoch
}

func isFillTT2000(v int64) bool {
	return v == types.FillTT2000 || v == types.PadTT2000
}

// Decode converts raw time values, encoded in the given byte order, to
// offsets from the model's base time. Fill values become NaN. TT2000 values
// are first corrected for leap seconds the file's writer did not know about.
func Decode(t types.DataType, raw []byte, order binary.ByteOrder,
	model InstantModel, recordedLeapID int32) ([]float64, error) {
	if !t.IsTime() {
		return nil, fmt.Errorf("%w: %v is not a time type", types.ErrUnsupportedType, t)
	}
	width, _ := t.Width()
	if len(raw)%width != 0 {
		return nil, fmt.Errorf("time data length %d is not a multiple of %d", len(raw), width)
	}
	n := len(raw) / width
	out := make([]float64, n)
	scale := model.OffsetUnits.perSecond()
	switch t {
	case types.Epoch:
		base := epochOffsetMillis + model.baseSeconds()*1e3
		for i := range out {
			v := math.Float64frombits(order.Uint64(raw[i*8:]))
			if isFillEpoch(v) {
				out[i] = math.NaN()
				continue
			}
			out[i] = (v - base) * scale / 1e3
		}
	case types.Epoch16:
		base := epoch16OffsetSeconds + model.baseSeconds()
		for i := range out {
			sec := math.Float64frombits(order.Uint64(raw[i*16:]))
			ps := math.Float64frombits(order.Uint64(raw[i*16+8:]))
			if isFillEpoch(sec) {
				out[i] = math.NaN()
				continue
			}
			out[i] = (sec-base)*scale + ps*scale/1e12
		}
	case types.TT2000:
		base := model.baseTT()
		for i := range out {
			v := int64(order.Uint64(raw[i*8:]))
			if isFillTT2000(v) {
				out[i] = math.NaN()
				continue
			}
			v, err := CorrectedIfNecessary(v, recordedLeapID)
			if err != nil {
				return nil, err
			}
			out[i] = float64(v-base) * scale / 1e9
		}
	}
	return out, nil
}

// EpochToTime converts EPOCH milliseconds since 0000-01-01 to a UTC time.
func EpochToTime(ms float64) time.Time {
	u := ms - epochOffsetMillis
	sec := math.Floor(u / 1e3)
	ns := math.Round((u - sec*1e3) * 1e6)
	return time.Unix(int64(sec), int64(ns)).UTC()
}

// TimeToEpoch converts a time to EPOCH milliseconds. Sub-millisecond
// precision is kept as a fraction.
func TimeToEpoch(t time.Time) float64 {
	return float64(t.Unix()+epoch16OffsetSeconds)*1e3 + float64(t.Nanosecond())/1e6
}

// Epoch16ToTime converts an EPOCH16 pair to a UTC time. Picoseconds below a
// nanosecond are dropped.
func Epoch16ToTime(sec, ps float64) time.Time {
	return time.Unix(int64(sec)-epoch16OffsetSeconds, int64(ps/1e3)).UTC()
}

// TimeToEpoch16 converts a time to an EPOCH16 pair.
func TimeToEpoch16(t time.Time) (float64, float64) {
	return float64(t.Unix() + epoch16OffsetSeconds), float64(t.Nanosecond()) * 1e3
}

// TT2000ToTime converts TT2000 nanoseconds to a UTC time. An instant inside
// an inserted leap second maps to the last nanosecond before midnight, since
// time.Time has no 23:59:60.
func TT2000ToTime(tt int64) time.Time {
	k := leapsAtTT(tt)
	u := tt - TTEpochOffset - int64(k)*1000000000
	if k < len(leapTable) && tt >= leapTable[k].tt-1000000000 {
		u = leapTable[k].unixMillis*1000000 - 1
	}
	return time.Unix(0, u).UTC()
}

// TimeToTT2000 converts a time to TT2000 nanoseconds.
func TimeToTT2000(t time.Time) (int64, error) {
	tt, err := TT2000(t.UnixMilli())
	if err != nil {
		return 0, err
	}
	return tt + int64(t.Nanosecond()%1000000), nil
}

// ToTimes decodes raw time values to UTC times. Fill values become the
// zero time.
func ToTimes(t types.DataType, raw []byte, order binary.ByteOrder,
	recordedLeapID int32) ([]time.Time, error) {
	if !t.IsTime() {
		return nil, fmt.Errorf("%w: %v is not a time type", types.ErrUnsupportedType, t)
	}
	width, _ := t.Width()
	if len(raw)%width != 0 {
		return nil, fmt.Errorf("time data length %d is not a multiple of %d", len(raw), width)
	}
	out := make([]time.Time, len(raw)/width)
	for i := range out {
		switch t {
		case types.Epoch:
			v := math.Float64frombits(order.Uint64(raw[i*8:]))
			if !isFillEpoch(v) {
				out[i] = EpochToTime(v)
			}
		case types.Epoch16:
			sec := math.Float64frombits(order.Uint64(raw[i*16:]))
			ps := math.Float64frombits(order.Uint64(raw[i*16+8:]))
			if !isFillEpoch(sec) {
				out[i] = Epoch16ToTime(sec, ps)
			}
		case types.TT2000:
			v := int64(order.Uint64(raw[i*8:]))
			if isFillTT2000(v) {
				continue
			}
			v, err := CorrectedIfNecessary(v, recordedLeapID)
			if err != nil {
				return nil, err
			}
			out[i] = TT2000ToTime(v)
		}
	}
	return out, nil
}
