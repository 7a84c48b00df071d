package bmpsteg

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/zedseven/bmpsteg/internal/layout"
)

// Types

// DigConfig stores the configuration options for the Dig operation.
type DigConfig struct {
	ImagePath string      // The path on disk to the image holding the hidden file.
	OutBase   string      // The output path without extension; DefaultOutputBase if empty.
	Logger    *zap.Logger // Receives progress output; nothing is logged if nil.
}

// DigResult describes a successful Dig.
type DigResult struct {
	OutPath     string // OutBase with the decoded extension appended.
	Extension   string
	PayloadSize int64
}

// recordHeader holds the record fields that precede the payload.
type recordHeader struct {
	Extension   string
	PayloadSize int64
}

// Primary method

// Dig extracts a file hidden by Hide from a bitmap on disk, and saves it next to OutBase under
// the extension that was stored with it.
// If anything fails after the output file was created, the output file is removed.
func Dig(config DigConfig) (result *DigResult, err error) {
	// Input validation
	if len(config.ImagePath) <= 0 {
		return nil, &ConfigError{"ImagePath", "The path is empty."}
	}
	if len(config.OutBase) <= 0 {
		config.OutBase = DefaultOutputBase
	}

	log := loggerOrNop(config.Logger).With(zap.String("op", "dig"))

	log.Info("Loading the image", zap.String("path", config.ImagePath))
	imgFile, err := openFile(config.ImagePath)
	if err != nil {
		return nil, err
	}
	defer closeFile(imgFile, log)

	src := bufio.NewReader(imgFile)
	log.Info("Skipping the bitmap header")
	if _, err = readHeader(src, config.ImagePath); err != nil {
		return nil, err
	}

	log.Info("Reading the record header")
	ex := &extractor{src: src, path: config.ImagePath}
	hdr, err := readRecordHeader(ex, log)
	if err != nil {
		return nil, err
	}

	result = &DigResult{
		OutPath:     config.OutBase + hdr.Extension,
		Extension:   hdr.Extension,
		PayloadSize: hdr.PayloadSize,
	}

	if sameFile(config.ImagePath, result.OutPath) {
		return nil, &ConfigError{"OutBase", fmt.Sprintf("'%v' would overwrite the image being read.", result.OutPath)}
	}

	// The payload length is already validated here, ahead of the output file being created
	log.Info("Creating the output file", zap.String("path", result.OutPath))
	outFile, err := os.Create(result.OutPath)
	if err != nil {
		return nil, &IOError{Op: "create", Path: result.OutPath, Err: err}
	}
	defer func() {
		if cerr := outFile.Close(); cerr != nil && err == nil {
			err = &IOError{Op: StageClose, Path: result.OutPath, Err: cerr}
		}
		if err != nil {
			if rerr := os.Remove(outFile.Name()); rerr != nil {
				log.Warn("Unable to remove the partial output file", zap.String("path", outFile.Name()), zap.Error(rerr))
			}
			result = nil
		}
	}()

	log.Info("Writing file data", zap.Int64("bytes", hdr.PayloadSize))
	dst := bufio.NewWriter(outFile)
	if err = ex.stream(layout.FieldPayload, hdr.PayloadSize, dst, result.OutPath); err != nil {
		return nil, err
	}
	if err = dst.Flush(); err != nil {
		return nil, &IOError{Op: "write", Path: result.OutPath, Err: err}
	}

	log.Info("All done!", zap.String("out", result.OutPath))
	return result, nil
}

// Helper functions

// readRecordHeader decodes and checks every field of the record up to, but not including, the
// payload bytes.
func readRecordHeader(ex *extractor, log *zap.Logger) (recordHeader, error) {
	var hdr recordHeader
	var extensionLen int64

	for _, field := range layout.Record {
		switch field {
		case layout.FieldMagic:
			marker, err := ex.bytes(field, int64(len(Magic)))
			if err != nil {
				return hdr, err
			}
			if string(marker) != Magic {
				return hdr, &FormatError{Stage: field.String(),
					AdditionalInfo: "The marker does not match. Nothing was hidden in this image, or the data is corrupted."}
			}
		case layout.FieldExtensionLength:
			n, err := ex.length(field)
			if err != nil {
				return hdr, err
			}
			if !layout.ValidExtensionLength(int64(n)) {
				return hdr, &FormatError{Stage: field.String(),
					AdditionalInfo: fmt.Sprintf("%d is outside of 1-%d.", n, layout.MaxExtensionLength-1)}
			}
			extensionLen = int64(n)
		case layout.FieldExtension:
			ext, err := ex.bytes(field, extensionLen)
			if err != nil {
				return hdr, err
			}
			// Anything after a NUL is padding
			if i := bytes.IndexByte(ext, 0); i >= 0 {
				ext = ext[:i]
			}
			if strings.ContainsAny(string(ext), `/\`) {
				return hdr, &FormatError{Stage: field.String(), AdditionalInfo: fmt.Sprintf("%q contains a path separator.", ext)}
			}
			hdr.Extension = string(ext)
		case layout.FieldPayloadLength:
			n, err := ex.length(field)
			if err != nil {
				return hdr, err
			}
			if n > math.MaxInt32 {
				return hdr, &FormatError{Stage: field.String(), AdditionalInfo: fmt.Sprintf("%d is not a valid byte count.", int32(n))}
			}
			hdr.PayloadSize = int64(n)
		case layout.FieldPayload:
			// Streamed by the caller
			return hdr, nil
		}
		log.Debug("Read field", zap.Stringer("field", field), zap.Int64("carrierOffset", ex.read))
	}

	return hdr, nil
}
