// Command cdfdump prints the structure and contents of CDF files.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/batchatco/go-native-cdf/cdf"
	"github.com/batchatco/go-native-cdf/cdf/epoch"
	"github.com/batchatco/go-native-cdf/cdf/reader"
	"github.com/batchatco/go-native-cdf/cdf/writer"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/urfave/cli/v3"
)

var logger = internal.NewLogger()

// settings are the flags shared by every command, after the config file
// has been applied.
type settings struct {
	configFile string
	logLevel   int
	missing    string
	maxMapped  int64
	timeUnits  string
	json       bool
}

func commonFlags(s *settings) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to the config file",
			Value:       configPath(),
			Destination: &s.configFile,
		},
		&cli.IntFlag{
			Name:        "log-level",
			Usage:       "0 fatal only, 1 errors, 2 warnings, 3 everything",
			Value:       2,
			Destination: &s.logLevel,
		},
		&cli.StringFlag{
			Name:        "missing-records",
			Usage:       "unwritten records of non-sparse variables (reject, pad)",
			Value:       reader.MissingReject.String(),
			Destination: &s.missing,
		},
		&cli.Int64Flag{
			Name:        "max-mapped-memory",
			Usage:       "bytes of idle mapped files to keep open",
			Value:       1 << 30,
			Destination: &s.maxMapped,
		},
		&cli.StringFlag{
			Name:        "time-units",
			Usage:       "time values as iso timestamps or offsets from 1970 (ms, us, ns, ps)",
			Value:       "iso",
			Destination: &s.timeUnits,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "print JSON",
			Destination: &s.json,
		},
	}
}

// env is what a command runs with once its settings are resolved.
type env struct {
	settings
	out   io.Writer
	pool  *cdf.Pool
	model *epoch.InstantModel // nil for timestamps
}

// setup applies the config file and opens a file pool.
func (s *settings) setup(c *cli.Command) (*env, error) {
	cfg, err := loadConfig(s.configFile)
	if err != nil {
		return nil, err
	}
	cfg.apply(c, s)
	if s.logLevel < 0 || s.logLevel > 3 {
		return nil, fmt.Errorf("log level %d out of range 0-3", s.logLevel)
	}
	level := s.logLevel
	cdf.SetLogLevel(level)
	writer.SetLogLevel(level)
	setLogLevel(level)

	missing, err := reader.ParseMissingRecords(s.missing)
	if err != nil {
		return nil, err
	}
	e := &env{settings: *s, out: c.Root().Writer}
	if e.out == nil {
		e.out = os.Stdout
	}
	if s.timeUnits != "iso" {
		p, err := epoch.ParsePrecision(s.timeUnits)
		if err != nil {
			return nil, err
		}
		model := epoch.DefaultModel()
		model.OffsetUnits = p
		e.model = &model
	}
	e.pool = cdf.NewPool(s.maxMapped, func(path string) {
		logger.With(internal.Fields{"path": path}).Info("evicted")
	}, reader.WithMissingRecords(missing))
	return e, nil
}

func setLogLevel(level int) {
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
}

func newApp() *cli.Command {
	s := &settings{}
	return &cli.Command{
		Name:  "cdfdump",
		Usage: "Print the structure and contents of CDF files",
		Flags: commonFlags(s),
		Action: func(ctx context.Context, c *cli.Command) error {
			return cli.ShowAppHelp(c)
		},
		Commands: []*cli.Command{
			infoCmd(s),
			varsCmd(s),
			attrsCmd(s),
			dumpCmd(s),
			rewriteCmd(s),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
