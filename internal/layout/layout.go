// Package layout describes the record hidden inside a carrier's pixel region: which fields it
// has, the order they are written in and how many carrier bytes each one consumes.
// The writer and the reader both walk Record, so the two can't drift apart.
package layout

import (
	"fmt"
	"math"
	"strings"

	"github.com/zedseven/bmpsteg/internal/bitcodec"
)

// Field definitions

// Defines a field of the embedded record.
type Field int

// Simply determines whether a given field is valid.
func (field Field) IsValid() bool {
	return field > FieldUnknown && field <= maxFieldVal
}

// Returns the name of the field, or "<unknown>" if unknown.
func (field Field) String() string {
	switch field {
	case FieldMagic:
		return "magic"
	case FieldExtensionLength:
		return "extension length"
	case FieldExtension:
		return "extension"
	case FieldPayloadLength:
		return "payload length"
	case FieldPayload:
		return "payload"
	default:
		return "<unknown>"
	}
}

// IsLength reports whether the field is a fixed-width 32-bit length.
func (field Field) IsLength() bool {
	return field == FieldExtensionLength || field == FieldPayloadLength
}

// Width returns the number of carrier bytes the field consumes when it carries n logical bytes.
// n is ignored for length fields.
func (field Field) Width(n int64) int64 {
	if field.IsLength() {
		return bitcodec.LengthWidth
	}
	return n * bitcodec.ByteWidth
}

const (
	FieldUnknown         Field = iota     // An unknown field.
	FieldMagic           Field = iota     // The marker that identifies a carrier holding a record.
	FieldExtensionLength Field = iota     // Length of the extension that follows.
	FieldExtension       Field = iota     // The secret file's extension, leading dot included.
	FieldPayloadLength   Field = iota     // Length of the payload that follows.
	FieldPayload         Field = iota     // The secret file's bytes.
	maxFieldVal          Field = iota - 1 // The maximum field value, used for validity checking.
)

// Record is the wire order of the embedded fields. Changing it changes the container format.
var Record = [...]Field{
	FieldMagic,
	FieldExtensionLength,
	FieldExtension,
	FieldPayloadLength,
	FieldPayload,
}

// Format constants

const (
	// Magic marks a carrier that holds a record. Its length is part of the format.
	Magic = "#*STEG*#"
	// MaxExtensionLength is the exclusive upper bound on the extension length, dot included.
	MaxExtensionLength = 50
	// LengthFieldBytes is the logical size of a length field as counted by Required.
	LengthFieldBytes = 4
	// SlackBytes is added to every capacity requirement on top of the per-field estimate.
	SlackBytes = 64
	// BytesPerPixel is the pixel size of the supported bitmaps.
	BytesPerPixel = 3
)

// Sizes holds the logical sizes of the variable-width fields of one record.
type Sizes struct {
	Extension int64
	Payload   int64
}

// Of returns the number of logical bytes a variable-width field carries.
func (s Sizes) Of(field Field) int64 {
	switch field {
	case FieldMagic:
		return int64(len(Magic))
	case FieldExtension:
		return s.Extension
	case FieldPayload:
		return s.Payload
	default:
		return 0
	}
}

// Consumed returns the exact number of carrier bytes the record occupies.
func (s Sizes) Consumed() int64 {
	total := int64(0)
	for _, field := range Record {
		total += field.Width(s.Of(field))
	}
	return total
}

// Required returns the number of carrier bytes a record needs to pass the capacity check.
// It exceeds Consumed by SlackBytes plus the logical size of both length fields.
func (s Sizes) Required() int64 {
	return (int64(len(Magic))+LengthFieldBytes+s.Extension+LengthFieldBytes+s.Payload)*bitcodec.ByteWidth + SlackBytes
}

// MaxPayload returns the largest payload that passes the capacity check for the given carrier
// capacity and extension length, or -1 if not even an empty payload fits.
func MaxPayload(capacity int64, extensionLen int64) int64 {
	fixed := Sizes{Extension: extensionLen}.Required()
	if capacity < fixed {
		return -1
	}
	return (capacity - fixed) / bitcodec.ByteWidth
}

// Capacity returns the number of carrier bytes available in a width x height bitmap.
// Dimensions whose product doesn't fit in an int64 give 0, so no record fits.
func Capacity(width, height int64) int64 {
	if width < 0 {
		width = -width
	}
	// Top-down bitmaps store a negative height
	if height < 0 {
		height = -height
	}
	if width > 0 && height > math.MaxInt64/BytesPerPixel/width {
		return 0
	}
	return width * height * BytesPerPixel
}

// Error types

// Thrown when an extension can't be stored in a record.
type ExtensionError struct {
	Extension string
}

func (e ExtensionError) Error() string {
	if !strings.HasPrefix(e.Extension, ".") {
		return fmt.Sprintf("The extension %q must start with a dot.", e.Extension)
	}
	return fmt.Sprintf("The extension %q must be 1-%d bytes long, dot included.", e.Extension, MaxExtensionLength-1)
}

// ValidExtensionLength reports whether n is an acceptable extension length.
func ValidExtensionLength(n int64) bool {
	return n > 0 && n < MaxExtensionLength
}

// CheckExtension returns an ExtensionError if ext can't be embedded.
func CheckExtension(ext string) error {
	if !strings.HasPrefix(ext, ".") || !ValidExtensionLength(int64(len(ext))) {
		return &ExtensionError{ext}
	}
	return nil
}
