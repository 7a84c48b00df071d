// Package config holds the defaults of the command line tool and loads overrides for them from a
// YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zedseven/bmpsteg"
	"github.com/zedseven/bmpsteg/internal/logging"
)

// Config is the tool configuration. Command line flags take precedence over it.
type Config struct {
	// StegoImage is the image hide writes to when no output is given.
	StegoImage string `yaml:"stego_image"`
	// OutputBase is the file name dig appends the recovered extension to when no output is given.
	OutputBase string `yaml:"output_base"`
	// Strict makes hide refuse carriers that are not plain 24-bit bitmaps.
	Strict bool      `yaml:"strict"`
	Log    LogConfig `yaml:"log"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StegoImage: bmpsteg.DefaultStegoPath,
		OutputBase: bmpsteg.DefaultOutputBase,
		Log: LogConfig{
			Level:      logging.WarnLevel,
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the YAML file at path on top of Default. An empty path returns Default.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the tool can't use.
func (c *Config) Validate() error {
	if c.StegoImage == "" {
		return errors.New("stego_image must not be empty")
	}
	if c.OutputBase == "" {
		return errors.New("output_base must not be empty")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return errors.New("log rotation limits must not be negative")
	}
	return nil
}

// LoggingOptions converts the log section to logging options.
func (c *Config) LoggingOptions(quiet bool) logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Quiet:      quiet,
	}
}
