package bmpsteg

import (
	"bufio"
	"errors"
	"io"

	"go.uber.org/zap"
	"golang.org/x/image/bmp"

	"github.com/zedseven/bmpsteg/internal/layout"
)

// Report describes a bitmap as a carrier.
type Report struct {
	Path     string
	FileSize int64
	Geometry Geometry
	// Capacity is the number of carrier bytes the header claims are available.
	Capacity int64
	// Decodable is whether the header is accepted by a bitmap decoder. DecodeError holds the reason if not.
	Decodable   bool
	DecodeError string
	// Strict is whether Hide would accept the image with HideConfig.Strict set.
	Strict bool
	// Embedded is whether the image holds a record. Extension and PayloadSize are only set if so.
	Embedded    bool
	Extension   string
	PayloadSize int64
}

// MaxPayload returns the largest file that fits in the image with an extension of the given
// length, or -1 if nothing fits.
func (r *Report) MaxPayload(extensionLen int) int64 {
	return layout.MaxPayload(r.Capacity, int64(extensionLen))
}

// Inspect reads the header of the bitmap at path and checks whether it holds a hidden file,
// without writing anything.
func Inspect(path string) (*Report, error) {
	log := zap.NewNop()

	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer closeFile(f, log)

	info, err := f.Stat()
	if err != nil {
		return nil, &IOError{Op: "stat", Path: path, Err: err}
	}
	report := &Report{Path: path, FileSize: info.Size()}

	if _, derr := bmp.DecodeConfig(f); derr != nil {
		report.DecodeError = derr.Error()
	} else {
		report.Decodable = true
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return nil, &IOError{Op: "seek", Path: path, Err: err}
	}

	src := bufio.NewReader(f)
	header, err := readHeader(src, path)
	if err != nil {
		return nil, err
	}
	report.Geometry = parseHeader(header)
	report.Capacity = report.Geometry.Capacity()
	report.Strict = report.Geometry.validate() == nil

	hdr, err := readRecordHeader(&extractor{src: src, path: path}, log)
	if err != nil {
		var formatErr *FormatError
		if errors.As(err, &formatErr) {
			return report, nil
		}
		return nil, err
	}
	report.Embedded = true
	report.Extension = hdr.Extension
	report.PayloadSize = hdr.PayloadSize

	return report, nil
}
