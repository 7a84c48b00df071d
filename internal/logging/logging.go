// Package logging builds the zap logger used by the command line tool: human-readable output on
// the console, plus an optional rotated JSON log file.
package logging

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log levels accepted by Options.Level.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Options controls where log output goes.
type Options struct {
	Level      string // One of the *Level constants; defaults to WarnLevel.
	File       string // Log file path; no file output if empty.
	MaxSizeMB  int    // Size at which the log file is rotated.
	MaxBackups int    // Rotated files to keep.
	MaxAgeDays int    // Days to keep rotated files.
	Quiet      bool   // Disables console output.
}

// ParseLevel converts a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.WarnLevel, nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return lvl, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}

// New returns a logger writing to console (unless Quiet) and to opts.File (if set).
// The returned function closes the log file and must be called once the logger is no longer used.
func New(opts Options, console io.Writer) (*zap.Logger, func() error, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	level := zap.NewAtomicLevelAt(lvl)

	var cores []zapcore.Core
	closeFn := func() error { return nil }

	if !opts.Quiet && console != nil {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.TimeKey = ""
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(consoleWriter{console}), level))
	}

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(rotator), level))
		closeFn = rotator.Close
	}

	if len(cores) == 0 {
		return zap.NewNop(), closeFn, nil
	}
	return zap.New(zapcore.NewTee(cores...)), closeFn, nil
}

// consoleWriter hides the Sync method of a console *os.File, which fails on terminals and pipes.
type consoleWriter struct {
	io.Writer
}
