package main

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/batchatco/go-native-cdf/cdf"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// parseRecords reads "N" as one record and "N:M" as records N through M.
// Empty means every record.
func parseRecords(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	first, last, isRange := strings.Cut(s, ":")
	a, err := strconv.Atoi(first)
	if err != nil {
		return nil, fmt.Errorf("bad record %q: %w", s, err)
	}
	if !isRange {
		return []int{a}, nil
	}
	b, err := strconv.Atoi(last)
	if err != nil {
		return nil, fmt.Errorf("bad record range %q: %w", s, err)
	}
	return []int{a, b}, nil
}

type dumped struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Values any    `json:"values"`
}

// readVariable reads the records pt of a variable, times in the units the
// env asks for.
func (e *env) readVariable(h *cdf.Handle, name string, pt []int) (*dumped, error) {
	info, err := h.VariableInfo(name)
	if err != nil {
		return nil, err
	}
	var vals any
	switch {
	case info.Type.IsTime() && e.model == nil:
		vals, err = h.Timestamps(name, pt)
	case info.Type.IsTime():
		vals, err = h.Times(name, pt, *e.model)
	case info.Type.IsString():
		vals, err = h.Strings(name, pt)
	default:
		vals, err = h.Values(name, pt)
	}
	if err != nil {
		return nil, err
	}
	return &dumped{Name: name, Type: info.Type.String(), Values: vals}, nil
}

// dumpFile decodes the variables concurrently and returns them in order.
func (e *env) dumpFile(ctx context.Context, h *cdf.Handle, names []string, pt []int, jobs int) ([]*dumped, error) {
	out := make([]*dumped, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := e.readVariable(h, name, pt)
			if err != nil {
				return fmt.Errorf("variable %s: %w", name, err)
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func dumpCmd(s *settings) *cli.Command {
	var (
		vars    []string
		records string
		jobs    int
	)
	return &cli.Command{
		Name:      "dump",
		Usage:     "Print variable values",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "var",
				Usage:       "variables to print (default all)",
				Destination: &vars,
			},
			&cli.StringFlag{
				Name:        "records",
				Usage:       "record N or records N:M",
				Destination: &records,
			},
			&cli.IntFlag{
				Name:        "jobs",
				Usage:       "variables decoded at once",
				Value:       runtime.NumCPU(),
				Destination: &jobs,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := s.setup(c)
			if err != nil {
				return err
			}
			pt, err := parseRecords(records)
			if err != nil {
				return err
			}
			jobs = max(jobs, 1)
			all := map[string][]*dumped{}
			err = e.eachFile(c, func(path string, h *cdf.Handle) error {
				names := vars
				if len(names) == 0 {
					names = h.ListVariables()
				}
				out, err := e.dumpFile(ctx, h, names, pt, jobs)
				if err != nil {
					return err
				}
				if e.json {
					for _, d := range out {
						d.Values = finite(d.Values)
					}
					all[path] = out
					return nil
				}
				fmt.Fprintln(e.out, path+":")
				for _, d := range out {
					fmt.Fprintf(e.out, "  %s (%s): %v\n", d.Name, d.Type, d.Values)
				}
				return nil
			})
			if err != nil || !e.json {
				return err
			}
			return e.printJSON(all)
		},
	}
}
