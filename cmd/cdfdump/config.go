package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the cdfdump configuration file
// (~/.config/cdfdump/config.yaml). Pointers tell "not set" from zero.
type Config struct {
	MissingRecords  string `yaml:"missing_records"`
	MaxMappedMemory *int64 `yaml:"max_mapped_memory"`
	LogLevel        *int   `yaml:"log_level"`
	TimeUnits       string `yaml:"time_units"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "cdfdump", "config.yaml")
}

// loadConfig reads the config file. A missing file is an empty config; a
// malformed one is an error.
func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// isSet reports whether a flag was given on the command line, before or
// after the command name.
func isSet(c *cli.Command, name string) bool {
	return c.IsSet(name) || c.Root().IsSet(name)
}

// apply copies config values into s where the flag was not set.
func (cfg Config) apply(c *cli.Command, s *settings) {
	if cfg.MissingRecords != "" && !isSet(c, "missing-records") {
		s.missing = cfg.MissingRecords
	}
	if cfg.MaxMappedMemory != nil && !isSet(c, "max-mapped-memory") {
		s.maxMapped = *cfg.MaxMappedMemory
	}
	if cfg.LogLevel != nil && !isSet(c, "log-level") {
		s.logLevel = *cfg.LogLevel
	}
	if cfg.TimeUnits != "" && !isSet(c, "time-units") {
		s.timeUnits = cfg.TimeUnits
	}
}
