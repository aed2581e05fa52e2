// Package writer builds CDF version 3 files. Variables are defined up front,
// data is added record range by record range, and the whole file is laid out
// and written in one pass at the end.
package writer

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/batchatco/go-native-cdf/cdf/epoch"
	"github.com/batchatco/go-native-cdf/cdf/record"
	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-native-cdf/cdf/util"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/batchatco/go-native-cdf/internal/gzipblock"
	"github.com/batchatco/go-thrower"
)

var (
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrIllegalAppend     = errors.New("illegal append")
	ErrTimeOrder         = errors.New("times out of order")
	ErrInvalidName       = errors.New("invalid name")
	ErrDuplicate         = errors.New("duplicate name")
	ErrNotFound          = errors.New("not found")
	ErrScopeConflict     = errors.New("attribute scope conflict")
	ErrIncompatibleType  = types.ErrIncompatibleType
)

// Written into the CDR.
const (
	cdfVersion   = 3
	cdfRelease   = 9
	cdfIncrement = 0
	copyright    = "Common Data Format (CDF)\n"
)

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

type options struct {
	encoding        types.Encoding
	order           binary.ByteOrder
	rowMajor        bool
	fileCompression bool
	level           int
}

// Option configures a Writer.
type Option func(*options)

// WithEncoding sets the data encoding, and so the byte order of values.
// The default is EncodingIBMPC, little-endian.
func WithEncoding(e types.Encoding) Option {
	return func(o *options) {
		o.encoding = e
	}
}

// WithColumnMajor stores multi-dimensional records with the first index
// varying fastest.
func WithColumnMajor() Option {
	return func(o *options) {
		o.rowMajor = false
	}
}

// WithFileCompression gzips everything after the magic number.
func WithFileCompression() Option {
	return func(o *options) {
		o.fileCompression = true
	}
}

// WithCompressionLevel sets the gzip level for compressed variables and
// whole-file compression.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

// Writer accumulates the variables and attributes of one CDF. It is not safe
// for concurrent use.
type Writer struct {
	opts      options
	vars      []*Variable
	varByName map[string]*Variable
	attrs     []*attribute
	attrIndex map[string]*attribute
}

// New returns an empty Writer.
func New(opts ...Option) (w *Writer, err error) {
	defer thrower.RecoverError(&err)
	w = &Writer{
		opts: options{
			encoding: types.EncodingIBMPC,
			rowMajor: true,
			level:    gzipblock.DefaultLevel,
		},
		varByName: map[string]*Variable{},
		attrIndex: map[string]*attribute{},
	}
	for _, opt := range opts {
		opt(&w.opts)
	}
	w.opts.order, err = w.opts.encoding.ByteOrder()
	thrower.ThrowIfError(err)
	return w, nil
}

// Create writes the CDF to a new file at path.
func (w *Writer) Create(path string) (err error) {
	defer thrower.RecoverError(&err)
	file, err := os.Create(path)
	thrower.ThrowIfError(err)
	bf := bufio.NewWriter(file)
	_, err = w.WriteTo(bf)
	if err == nil {
		err = bf.Flush()
	}
	err2 := file.Close()
	if err == nil {
		err = err2
	} else if err2 != nil {
		// return the first error, log the second
		logger.Error(err2)
	}
	return err
}

// WriteTo writes the CDF to out.
func (w *Writer) WriteTo(out io.Writer) (n int64, err error) {
	defer thrower.RecoverError(&err)
	if !w.opts.fileCompression {
		cw := util.NewCountedWriter(out)
		w.writeAll(cw)
		return cw.Count(), nil
	}
	var body bytes.Buffer
	w.writeAll(&body)
	cw := util.NewCountedWriter(out)
	w.writeCompressed(cw, body.Bytes()[record.MagicSize:])
	return cw.Count(), nil
}

// fileLayout holds every record of the file with its offset assigned.
type fileLayout struct {
	cdr   *record.CDR
	gdr   *record.GDR
	attrs []*attributeLayout
	plans []*LayoutPlan
}

func (w *Writer) layout() *fileLayout {
	v := record.V3
	flags := record.CDRSingleFile
	if w.opts.rowMajor {
		flags |= record.CDRRowMajor
	}
	fl := &fileLayout{
		cdr: &record.CDR{
			Version:   cdfVersion,
			Release:   cdfRelease,
			Encoding:  int32(w.opts.encoding),
			Flags:     flags,
			Increment: cdfIncrement,
			Copyright: copyright,
		},
		gdr: &record.GDR{
			NzVars:                int32(len(w.vars)),
			NumAttr:               int32(len(w.attrs)),
			RMaxRec:               -1,
			LeapSecondLastUpdated: epoch.LastLeapSecondID(),
		},
	}
	off := int64(record.MagicSize)
	fl.cdr.Offset = off
	off += fl.cdr.EncodedSize(v)
	fl.cdr.GDROffset = off
	fl.gdr.Offset = off
	off += fl.gdr.EncodedSize(v)

	for i, a := range w.attrs {
		al := w.layoutAttribute(a, int32(i), off)
		fl.attrs = append(fl.attrs, al)
		off = al.end
	}
	for i, al := range fl.attrs {
		if i > 0 {
			fl.attrs[i-1].adr.Next = al.adr.Offset
		}
	}
	if len(fl.attrs) > 0 {
		fl.gdr.ADRHead = fl.attrs[0].adr.Offset
	}

	for _, vr := range w.vars {
		plan, err := vr.Plan(off)
		thrower.ThrowIfError(err)
		fl.plans = append(fl.plans, plan)
		off += plan.Size()
	}
	if len(fl.plans) > 0 {
		fl.gdr.ZVDRHead = fl.plans[0].Offset()
	}
	fl.gdr.EOF = off
	return fl
}

func (w *Writer) writeAll(out io.Writer) {
	v := record.V3
	fl := w.layout()
	cw := util.NewCountedWriter(out)
	at := func(off int64, what string) {
		assert(cw.Count() == off, fmt.Sprint(what, " at ", cw.Count(), ", planned ", off),
			fmt.Errorf("%s written at %d, planned at %d", what, cw.Count(), off))
	}

	util.MustWriteBE(cw, record.CDF3Magic)
	at(fl.cdr.Offset, "CDR")
	thrower.ThrowIfError(fl.cdr.Write(cw, v))
	at(fl.gdr.Offset, "GDR")
	thrower.ThrowIfError(fl.gdr.Write(cw, v))
	for _, al := range fl.attrs {
		at(al.adr.Offset, "ADR "+al.adr.Name)
		thrower.ThrowIfError(al.adr.Write(cw, v))
		for _, e := range al.entries {
			at(e.Offset, "AEDR")
			thrower.ThrowIfError(e.Write(cw, v))
		}
	}
	for i, plan := range fl.plans {
		var next int64
		if i+1 < len(fl.plans) {
			next = fl.plans[i+1].Offset()
		}
		at(plan.Offset(), "VDR "+plan.vdr.Name)
		thrower.ThrowIfError(plan.Emit(cw, next))
	}
	at(fl.gdr.EOF, "end of file")
	logger.With(internal.Fields{
		"variables":  len(fl.plans),
		"attributes": len(fl.attrs),
		"size":       fl.gdr.EOF,
	}).Info("wrote CDF")
}

// writeCompressed writes a file whose body, everything after the magic
// number, is gzipped into a CCR followed by its CPR.
func (w *Writer) writeCompressed(out io.Writer, body []byte) {
	v := record.V3
	data, err := gzipblock.Deflate(body, w.opts.level)
	thrower.ThrowIfError(err)
	ccr := &record.CCR{USize: int64(len(body)), Data: data}
	ccr.CPROffset = record.MagicSize + ccr.EncodedSize(v)
	cpr := &record.CPR{CType: record.GzipCompression, Parms: []int32{int32(w.opts.level)}}
	util.MustWriteBE(out, record.CDF3CompressedMagic)
	thrower.ThrowIfError(ccr.Write(out, v))
	thrower.ThrowIfError(cpr.Write(out, v))
	logger.With(internal.Fields{"size": len(body), "compressed": len(data)}).
		Info("compressed file")
}
