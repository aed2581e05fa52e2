package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/batchatco/go-native-cdf/cdf"
	"github.com/batchatco/go-native-cdf/cdf/api"
	"github.com/batchatco/go-native-cdf/cdf/record"
	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-native-cdf/cdf/writer"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/urfave/cli/v3"
)

type rewriteOptions struct {
	encoding     string
	columnMajor  bool
	compressFile bool
	compressVars bool
	level        int
}

func (o *rewriteOptions) writerOptions() ([]writer.Option, error) {
	var opts []writer.Option
	if o.encoding != "" {
		enc, err := types.ParseEncoding(o.encoding)
		if err != nil {
			return nil, err
		}
		opts = append(opts, writer.WithEncoding(enc))
	}
	if o.columnMajor {
		opts = append(opts, writer.WithColumnMajor())
	}
	if o.compressFile {
		opts = append(opts, writer.WithFileCompression())
	}
	if o.level != 0 {
		opts = append(opts, writer.WithCompressionLevel(o.level))
	}
	return opts, nil
}

var sparseNames = map[string]record.SparseRecords{
	record.SparseNone.String():     record.SparseNone,
	record.SparsePadded.String():   record.SparsePadded,
	record.SparsePrevious.String(): record.SparsePrevious,
}

// typedEntry keeps the stored type of an attribute value. A missing entry
// stays nil.
func typedEntry(attrs api.AttributeMap, name string, val any) (any, error) {
	typ, has := attrs.GetType(name)
	if !has || val == nil {
		return val, nil
	}
	t, err := types.Parse(typ)
	if err != nil {
		return nil, err
	}
	return writer.Entry{Type: t, Value: val}, nil
}

// copyVariable defines a variable like the one in src and copies its
// stored records, keeping any gaps.
func copyVariable(src *cdf.Handle, w *writer.Writer, name string, compress bool) error {
	info, err := src.VariableInfo(name)
	if err != nil {
		return err
	}
	v, err := w.DefineVariable(writer.VariableSpec{
		Name:             name,
		Type:             info.Type,
		NumElems:         info.NumElems,
		Dims:             info.Dimensions,
		Varys:            info.Varys,
		NoRecordVariance: !info.RecordVarying,
		Compressed:       info.Compressed || compress,
		Pad:              info.Pad,
		Sparse:           sparseNames[info.Sparse],
	})
	if err != nil {
		return err
	}
	bufs, err := src.DataBuffers(name)
	if err != nil {
		return err
	}
	if len(bufs) == 0 {
		v.AddPhantom()
	}
	for _, b := range bufs {
		pt := []int{b.First, b.Last}
		if !info.RecordVarying {
			pt = nil
		}
		vals, err := src.Values(name, pt)
		if err != nil {
			return err
		}
		if err := v.AddData(vals, pt, false, false); err != nil {
			return err
		}
		if !info.RecordVarying {
			break
		}
	}

	attrs, err := src.VariableAttributes(name)
	if err != nil {
		return err
	}
	for _, key := range attrs.Keys() {
		val, _ := attrs.Get(key)
		entry, err := typedEntry(attrs, key, val)
		if err != nil {
			return err
		}
		if err := v.SetAttribute(key, entry); err != nil {
			return fmt.Errorf("attribute %s: %w", key, err)
		}
	}
	return nil
}

// rewrite copies src into a new writer.
func rewrite(src *cdf.Handle, opts []writer.Option, compressVars bool) (*writer.Writer, error) {
	w, err := writer.New(opts...)
	if err != nil {
		return nil, err
	}
	for _, name := range src.ListVariables() {
		if err := copyVariable(src, w, name, compressVars); err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
	}
	global := src.Attributes()
	for _, key := range global.Keys() {
		val, _ := global.Get(key)
		entries := val.([]any)
		typed := make([]any, len(entries))
		for i, entry := range entries {
			typed[i], err = typedEntry(global, key, entry)
			if err != nil {
				return nil, err
			}
		}
		if err := w.AddGlobalAttribute(key, typed...); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", key, err)
		}
	}
	return w, nil
}

func rewriteCmd(s *settings) *cli.Command {
	var o rewriteOptions
	return &cli.Command{
		Name:      "rewrite",
		Usage:     "Copy a CDF, changing its encoding, majority or compression",
		ArgsUsage: "IN OUT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "encoding",
				Usage:       "data encoding of the copy (network, ibmpc, ...)",
				Destination: &o.encoding,
			},
			&cli.BoolFlag{
				Name:        "column-major",
				Usage:       "store arrays column major",
				Destination: &o.columnMajor,
			},
			&cli.BoolFlag{
				Name:        "compress",
				Usage:       "compress the whole file",
				Destination: &o.compressFile,
			},
			&cli.BoolFlag{
				Name:        "compress-vars",
				Usage:       "compress every variable",
				Destination: &o.compressVars,
			},
			&cli.IntFlag{
				Name:        "level",
				Usage:       "gzip level 1-9",
				Destination: &o.level,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := s.setup(c)
			if err != nil {
				return err
			}
			defer e.pool.Close()
			if c.NArg() != 2 {
				return errors.New("rewrite takes an input and an output file")
			}
			in, out := c.Args().Get(0), c.Args().Get(1)
			opts, err := o.writerOptions()
			if err != nil {
				return err
			}
			h, err := e.pool.Acquire(in)
			if err != nil {
				return err
			}
			w, err := rewrite(h, opts, o.compressVars)
			h.Release()
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			if err := w.Create(out); err != nil {
				return err
			}
			logger.With(internal.Fields{"in": in, "out": out}).Info("rewrote")
			return nil
		},
	}
}
