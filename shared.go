package bmpsteg

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/zedseven/bmpsteg/internal/layout"
)

const (
	// HeaderSize is the size of the fixed header of an uncompressed 24-bit bitmap (14-byte file
	// header + 40-byte info header). It is copied or skipped as an opaque block.
	HeaderSize int64 = 54
	// DefaultStegoPath is where Hide writes its output when HideConfig.OutPath is empty.
	DefaultStegoPath = "stego.bmp"
	// DefaultOutputBase is the file name Dig appends the decoded extension to when DigConfig.OutBase is empty.
	DefaultOutputBase = "output_stego"
	// Magic identifies a carrier holding a record.
	Magic = layout.Magic

	VersionMax uint8 = 1
	VersionMid uint8 = 0
	VersionMin uint8 = 0
)

// Pipeline stages, as reported in errors.
const (
	StageOpen     = "open"
	StageHeader   = "header"
	StageCapacity = "capacity"
	StageCopy     = "copy"
	StageClose    = "close"
)

// Error types

// ConfigError is returned when a HideConfig or DigConfig can't be used as given.
type ConfigError struct {
	Field     string
	ErrorDesc string
}

func (e *ConfigError) Error() string {
	if len(e.ErrorDesc) > 0 {
		return fmt.Sprintf("%v: %v", e.Field, e.ErrorDesc)
	}
	return fmt.Sprintf("%v is invalid.", e.Field)
}

// IOError is returned when a file can't be opened, created, read or written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("Unable to %v '%v': %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// CapacityError is returned when the record would not fit within the carrier.
type CapacityError struct {
	Capacity       int64
	Required       int64
	AdditionalInfo string
}

func (e *CapacityError) Error() string {
	ret := "There is not enough space available to store the provided file within the provided image."
	if len(e.AdditionalInfo) > 0 {
		return fmt.Sprintf("%v Additional info: %v", ret, e.AdditionalInfo)
	}
	return fmt.Sprintf("%v Capacity: %d B, required: %d B.", ret, e.Capacity, e.Required)
}

// FormatError is returned when data read from an image does not have the expected shape: a
// missing marker, an out-of-range length or a container that ends early.
type FormatError struct {
	Stage          string
	AdditionalInfo string
	Err            error
}

func (e *FormatError) Error() string {
	ret := fmt.Sprintf("The image is not a valid container (%v).", e.Stage)
	if len(e.AdditionalInfo) > 0 && e.Err != nil {
		return fmt.Sprintf("%v Additional info: %v Inner error: %v", ret, e.AdditionalInfo, e.Err.Error())
	} else if len(e.AdditionalInfo) > 0 {
		return fmt.Sprintf("%v Additional info: %v", ret, e.AdditionalInfo)
	} else if e.Err != nil {
		return fmt.Sprintf("%v Inner error: %v", ret, e.Err.Error())
	}
	return ret
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Library methods

// Version returns the library version.
func Version() string {
	return fmt.Sprintf("%02d.%02d.%02d", VersionMax, VersionMid, VersionMin)
}

// Shared methods

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
