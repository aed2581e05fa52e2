package epoch

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrUnsupportedRange     = errors.New("leap seconds are undefined before 1972")
	ErrStaleLeapSecondTable = errors.New("leap second table is older than the file")
)

// TTEpochOffset is the TT2000 value of 1970-01-01T00:00:00 UTC on the leap
// corrected millisecond scale, in nanoseconds.
const TTEpochOffset int64 = (42184 - 946728000000) * 1000000

// leapStart is 1972-01-01T00:00:00 UTC in Unix milliseconds.
const leapStart int64 = 63072000000

type leapSecond struct {
	// id is yyyymmdd of the day following the inserted second.
	id         int32
	unixMillis int64
	tt         int64
}

// Days following each inserted leap second.
var leapDays = [][3]int{
	{1972, 7, 1}, {1973, 1, 1}, {1974, 1, 1}, {1975, 1, 1}, {1976, 1, 1},
	{1977, 1, 1}, {1978, 1, 1}, {1979, 1, 1}, {1980, 1, 1}, {1981, 7, 1},
	{1982, 7, 1}, {1983, 7, 1}, {1985, 7, 1}, {1988, 1, 1}, {1990, 1, 1},
	{1991, 1, 1}, {1992, 7, 1}, {1993, 7, 1}, {1994, 7, 1}, {1996, 1, 1},
	{1997, 7, 1}, {1999, 1, 1}, {2006, 1, 1}, {2009, 1, 1}, {2012, 7, 1},
	{2015, 7, 1}, {2017, 1, 1},
}

var leapTable = buildLeapTable()

func buildLeapTable() []leapSecond {
	table := make([]leapSecond, len(leapDays))
	for i, d := range leapDays {
		u := time.Date(d[0], time.Month(d[1]), d[2], 0, 0, 0, 0, time.UTC).UnixMilli()
		table[i] = leapSecond{
			id:         int32(d[0]*10000 + d[1]*100 + d[2]),
			unixMillis: u,
			tt:         TTEpochOffset + 1000000*(u+1000*int64(i+1)),
		}
	}
	return table
}

// LastLeapSecondID is the id of the newest leap second this package knows.
func LastLeapSecondID() int32 {
	return leapTable[len(leapTable)-1].id
}

// leapsAt counts the leap seconds inserted at or before Unix millisecond u.
func leapsAt(u int64) int {
	return sort.Search(len(leapTable), func(i int) bool {
		return leapTable[i].unixMillis > u
	})
}

// leapsAtTT counts the leap seconds inserted at or before a TT2000 value.
func leapsAtTT(tt int64) int {
	return sort.Search(len(leapTable), func(i int) bool {
		return leapTable[i].tt > tt
	})
}

// MillisSince1970 converts Unix milliseconds to the leap corrected scale,
// adding one second for every leap second inserted up to that instant.
func MillisSince1970(unixMillis int64) (int64, error) {
	if unixMillis < leapStart {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedRange, unixMillis)
	}
	return unixMillis + 1000*int64(leapsAt(unixMillis)), nil
}

// TT2000 converts Unix milliseconds to TT2000 nanoseconds.
func TT2000(unixMillis int64) (int64, error) {
	corrected, err := MillisSince1970(unixMillis)
	if err != nil {
		return 0, err
	}
	return TTEpochOffset + 1000000*corrected, nil
}

// CorrectedIfNecessary adjusts a TT2000 value written with a leap second
// table ending at recordedID so it agrees with the current table. An id of
// zero or less means the writer's table is unknown and nothing is changed.
func CorrectedIfNecessary(tt int64, recordedID int32) (int64, error) {
	if recordedID <= 0 {
		return tt, nil
	}
	if recordedID > LastLeapSecondID() {
		return 0, fmt.Errorf("%w: file %d, table %d", ErrStaleLeapSecondTable,
			recordedID, LastLeapSecondID())
	}
	var missing, correction int64
	for _, ls := range leapTable {
		if ls.id <= recordedID {
			continue
		}
		missing++
		// In the writer's frame this boundary came missing seconds early.
		if tt < ls.tt-missing*1000000000 {
			break
		}
		correction = missing * 1000000000
	}
	return tt + correction, nil
}
