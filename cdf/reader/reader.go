// Package reader decodes CDF files held in memory. A CDF is parsed once
// into an immutable metadata graph; all reads are then pure functions of
// that graph and the backing buffer, so a CDF is safe for concurrent use.
package reader

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/batchatco/go-native-cdf/cdf/record"
	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-native-cdf/cdf/util"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/batchatco/go-thrower"
)

var (
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrIncompatibleVersion = errors.New("incompatible version")
	ErrCorruptData         = errors.New("corrupt data")
	ErrUnsupportedRank     = errors.New("unsupported rank")
	ErrNotFound            = errors.New("not found")
	ErrBadRange            = errors.New("bad record range")
	ErrIncompatibleType    = types.ErrIncompatibleType
)

// MaxRank is the largest number of effective dimensions a variable may have.
const MaxRank = 4

var (
	logger = internal.NewLogger()
)

// SetLogLevel sets the logging level to the given level, and returns
// the old level. This is for internal debugging use. The lowest level is 0
// (no error logs at all) and the highest level is 3 (errors, warnings and
// debug messages).
func SetLogLevel(level int) int {
	old := logger.LogLevel()
	switch level {
	case 0:
		logger.SetLogLevel(internal.LevelFatal)
	case 1:
		logger.SetLogLevel(internal.LevelError)
	case 2:
		logger.SetLogLevel(internal.LevelWarn)
	default:
		logger.SetLogLevel(internal.LevelInfo)
	}
	return int(old)
}

func fail(message string, err error) {
	logger.Error(message)
	thrower.Throw(err)
}

func assert(condition bool, message string, err error) {
	if condition {
		return
	}
	fail(message, err)
}

// throwIf wraps err under sentinel and throws it, if err is not nil.
func throwIf(err error, sentinel error) {
	if err == nil {
		return
	}
	if errors.Is(err, sentinel) {
		thrower.Throw(err)
	}
	thrower.Throw(fmt.Errorf("%w: %w", sentinel, err))
}

// MissingRecords decides what happens when a variable without a sparse
// records option has records that were never written.
type MissingRecords int

const (
	// MissingReject fails the read with ErrCorruptData.
	MissingReject MissingRecords = iota
	// MissingPad fills the records with the pad value.
	MissingPad
)

func (m MissingRecords) String() string {
	if m == MissingPad {
		return "pad"
	}
	return "reject"
}

// ParseMissingRecords accepts the names returned by MissingRecords.String.
func ParseMissingRecords(s string) (MissingRecords, error) {
	switch s {
	case "reject", "":
		return MissingReject, nil
	case "pad":
		return MissingPad, nil
	}
	return MissingReject, fmt.Errorf("unknown missing records option %q", s)
}

type options struct {
	missing MissingRecords
}

// Option configures how a CDF is read.
type Option func(*options)

// WithMissingRecords sets the policy for unwritten records of variables
// that have no sparse records option. The default is MissingReject.
func WithMissingRecords(m MissingRecords) Option {
	return func(o *options) {
		o.missing = m
	}
}

// CDF is a parsed CDF file.
type CDF struct {
	buf        []byte
	version    *record.Version
	compressed bool
	cdr        *record.CDR
	gdr        *record.GDR
	encoding   types.Encoding
	order      binary.ByteOrder

	// Variables in file order, rVariables first. vdrIndex maps a VDR
	// offset to its slot, byName a name.
	vars     []*variable
	vdrIndex map[int64]int
	byName   map[string]int
	rVars    map[int32]*variable
	zVars    map[int32]*variable

	attrNames   []string
	globalAttrs *util.OrderedMap
	opts        options
}

// Version is the major format version, 2 or 3.
func (c *CDF) Version() int {
	return int(c.cdr.Version)
}

// Release and Increment complete the version of the library that wrote the file.
func (c *CDF) Release() int {
	return int(c.cdr.Release)
}

func (c *CDF) Increment() int {
	return int(c.cdr.Increment)
}

func (c *CDF) Encoding() types.Encoding {
	return c.encoding
}

// ByteOrder is the byte order of data values.
func (c *CDF) ByteOrder() binary.ByteOrder {
	return c.order
}

// RowMajor reports whether multi-dimensional records are stored in row-major order.
func (c *CDF) RowMajor() bool {
	return c.cdr.RowMajor()
}

// Compressed reports whether the whole file was compressed.
func (c *CDF) Compressed() bool {
	return c.compressed
}

// Checksum reports whether the file declares an MD5 checksum. It is not verified.
func (c *CDF) Checksum() bool {
	return c.cdr.Checksum() || c.cdr.MD5()
}

// LeapSecondID is the last leap second known when the file was written, as
// yyyymmdd, or 0 if unknown.
func (c *CDF) LeapSecondID() int32 {
	return c.gdr.LeapSecondLastUpdated
}

func (c *CDF) Copyright() string {
	return c.cdr.Copyright
}

// Size is the size of the decoded file in bytes.
func (c *CDF) Size() int64 {
	return int64(len(c.buf))
}

// ListVariables lists the variables in file order.
func (c *CDF) ListVariables() []string {
	names := make([]string, len(c.vars))
	for i, v := range c.vars {
		names[i] = v.name
	}
	return names
}

// ListAttributes lists every attribute, global or variable scoped, in file order.
func (c *CDF) ListAttributes() []string {
	return append([]string(nil), c.attrNames...)
}

func (c *CDF) lookup(name string) *variable {
	i, has := c.byName[name]
	if !has {
		thrower.Throw(fmt.Errorf("%w: variable %q", ErrNotFound, name))
	}
	return c.vars[i]
}
