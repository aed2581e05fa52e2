package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/batchatco/go-native-cdf/cdf"
	"github.com/batchatco/go-native-cdf/cdf/api"
	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

// eachFile runs fn on every file named on the command line, holding each
// through the pool only while fn runs.
func (e *env) eachFile(c *cli.Command, fn func(path string, h *cdf.Handle) error) error {
	defer e.pool.Close()
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return errors.New("no files given")
	}
	for _, path := range paths {
		h, err := e.pool.Acquire(path)
		if err != nil {
			return err
		}
		err = fn(path, h)
		h.Release()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// finite replaces NaN, which JSON cannot hold, with null.
func finite(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		return x
	case float32:
		if math.IsNaN(float64(x)) {
			return nil
		}
		return x
	case string, nil:
		return v
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return v
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = finite(rv.Index(i).Interface())
	}
	return out
}

type fileInfo struct {
	File         string `json:"file"`
	Version      string `json:"version"`
	Encoding     string `json:"encoding"`
	RowMajor     bool   `json:"row_major"`
	Compressed   bool   `json:"compressed"`
	Checksum     bool   `json:"checksum"`
	LeapSecondID int32  `json:"leap_second_id"`
	Copyright    string `json:"copyright"`
	Size         int64  `json:"size"`
	Variables    int    `json:"variables"`
	Attributes   int    `json:"attributes"`
}

func describeFile(path string, h *cdf.Handle) fileInfo {
	return fileInfo{
		File:         path,
		Version:      fmt.Sprintf("%d.%d.%d", h.Version(), h.Release(), h.Increment()),
		Encoding:     h.Encoding().String(),
		RowMajor:     h.RowMajor(),
		Compressed:   h.Compressed(),
		Checksum:     h.Checksum(),
		LeapSecondID: h.LeapSecondID(),
		Copyright:    strings.TrimSpace(h.Copyright()),
		Size:         h.Size(),
		Variables:    len(h.ListVariables()),
		Attributes:   len(h.ListAttributes()),
	}
}

func infoCmd(s *settings) *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Print the file header",
		ArgsUsage: "FILE...",
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := s.setup(c)
			if err != nil {
				return err
			}
			var infos []fileInfo
			err = e.eachFile(c, func(path string, h *cdf.Handle) error {
				info := describeFile(path, h)
				if e.json {
					infos = append(infos, info)
					return nil
				}
				tw := tabwriter.NewWriter(e.out, 0, 4, 1, ' ', 0)
				fmt.Fprintf(tw, "file:\t%s\n", info.File)
				fmt.Fprintf(tw, "version:\t%s\n", info.Version)
				fmt.Fprintf(tw, "encoding:\t%s\n", info.Encoding)
				fmt.Fprintf(tw, "row major:\t%v\n", info.RowMajor)
				fmt.Fprintf(tw, "compressed:\t%v\n", info.Compressed)
				fmt.Fprintf(tw, "checksum:\t%v\n", info.Checksum)
				fmt.Fprintf(tw, "leap seconds:\t%d\n", info.LeapSecondID)
				fmt.Fprintf(tw, "size:\t%d\n", info.Size)
				fmt.Fprintf(tw, "variables:\t%d\n", info.Variables)
				fmt.Fprintf(tw, "attributes:\t%d\n", info.Attributes)
				fmt.Fprintf(tw, "copyright:\t%s\n", info.Copyright)
				return tw.Flush()
			})
			if err != nil || !e.json {
				return err
			}
			return e.printJSON(infos)
		},
	}
}

type varInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NumElems   int    `json:"num_elems"`
	Dims       []int  `json:"dims"`
	Varys      []bool `json:"varys"`
	Records    int    `json:"records"`
	Sparse     string `json:"sparse"`
	Compressed bool   `json:"compressed"`
	Pad        any    `json:"pad"`
	Depend0    string `json:"depend_0,omitempty"`
}

func varsCmd(s *settings) *cli.Command {
	return &cli.Command{
		Name:      "vars",
		Usage:     "List the variables",
		ArgsUsage: "FILE...",
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := s.setup(c)
			if err != nil {
				return err
			}
			all := map[string][]varInfo{}
			err = e.eachFile(c, func(path string, h *cdf.Handle) error {
				var vars []varInfo
				for _, name := range h.ListVariables() {
					info, err := h.VariableInfo(name)
					if err != nil {
						return err
					}
					vars = append(vars, varInfo{
						Name:       info.Name,
						Type:       info.Type.String(),
						NumElems:   info.NumElems,
						Dims:       info.Dimensions,
						Varys:      info.Varys,
						Records:    info.NumRecords,
						Sparse:     info.Sparse,
						Compressed: info.Compressed,
						Pad:        finite(info.Pad),
						Depend0:    info.Depend0,
					})
				}
				if e.json {
					all[path] = vars
					return nil
				}
				fmt.Fprintln(e.out, path+":")
				tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tTYPE\tELEMS\tDIMS\tRECORDS\tSPARSE\tCOMPRESSED\tDEPEND_0")
				for _, v := range vars {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%v\t%d\t%s\t%v\t%s\n", v.Name, v.Type, v.NumElems,
						dimString(v.Dims, v.Varys), v.Records, v.Sparse, v.Compressed, v.Depend0)
				}
				return tw.Flush()
			})
			if err != nil || !e.json {
				return err
			}
			return e.printJSON(all)
		},
	}
}

// dimString shows dimensions that do not vary with a leading '-'.
func dimString(dims []int, varys []bool) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprint(d)
		if !varys[i] {
			parts[i] = "-" + parts[i]
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

type attrInfo struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

func attrList(attrs api.AttributeMap) []attrInfo {
	var out []attrInfo
	for _, key := range attrs.Keys() {
		val, _ := attrs.Get(key)
		typ, _ := attrs.GetType(key)
		out = append(out, attrInfo{Name: key, Type: typ, Value: finite(val)})
	}
	return out
}

func printAttrs(w io.Writer, attrs []attrInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, a := range attrs {
		fmt.Fprintf(tw, "  %s\t%s\t%v\n", a.Name, a.Type, a.Value)
	}
	return tw.Flush()
}

func attrsCmd(s *settings) *cli.Command {
	var varName string
	return &cli.Command{
		Name:      "attrs",
		Usage:     "List the global attributes, or those of one variable",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "var",
				Usage:       "variable whose attributes to list",
				Destination: &varName,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := s.setup(c)
			if err != nil {
				return err
			}
			all := map[string][]attrInfo{}
			err = e.eachFile(c, func(path string, h *cdf.Handle) error {
				attrs := h.Attributes()
				if varName != "" {
					attrs, err = h.VariableAttributes(varName)
					if err != nil {
						return err
					}
				}
				list := attrList(attrs)
				if e.json {
					all[path] = list
					return nil
				}
				fmt.Fprintln(e.out, path+":")
				return printAttrs(e.out, list)
			})
			if err != nil || !e.json {
				return err
			}
			return e.printJSON(all)
		},
	}
}
