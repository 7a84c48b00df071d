package bmpsteg

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/zedseven/bmpsteg/internal/layout"
)

// HideConfig stores the configuration options for the Hide operation.
type HideConfig struct {
	// ImagePath is the path on disk to the carrier bitmap.
	ImagePath string
	// FilePath is the path on disk to the file to hide.
	FilePath string
	// Extension is stored with the file so that Dig can name its output.
	// If empty, it is derived from FilePath with ExtensionOf.
	Extension string
	// OutPath is the path on disk to write the output image. DefaultStegoPath is used if empty.
	OutPath string
	// Strict rejects carriers whose header does not describe an uncompressed 24-bit bitmap with
	// its pixel data directly after the header.
	Strict bool
	// Logger receives progress output. Nothing is logged if it is nil.
	Logger *zap.Logger
}

// HideResult describes a successful Hide.
type HideResult struct {
	OutPath     string
	Extension   string
	PayloadSize int64
	Capacity    int64 // Carrier bytes available according to the image header.
	Required    int64 // Carrier bytes the capacity check asked for.
	Consumed    int64 // Carrier bytes that actually carry record bits.
}

// ExtensionOf returns the extension Hide stores for the file at path: everything from the first
// dot of the file's base name, or "" if there is none.
func ExtensionOf(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[i:]
	}
	return ""
}

// Hide hides the contents of a file in the pixel bytes of a bitmap on disk, and saves the result
// to a new bitmap of identical size. The carrier image is never modified.
// If anything fails after the output image was created, the output image is removed.
func Hide(config HideConfig) (result *HideResult, err error) {
	// Input validation
	if len(config.ImagePath) <= 0 {
		return nil, &ConfigError{"ImagePath", "The path is empty."}
	}
	if len(config.FilePath) <= 0 {
		return nil, &ConfigError{"FilePath", "The path is empty."}
	}
	if len(config.Extension) <= 0 {
		config.Extension = ExtensionOf(config.FilePath)
	}
	if cerr := layout.CheckExtension(config.Extension); cerr != nil {
		return nil, &ConfigError{"Extension", cerr.Error()}
	}
	if len(config.OutPath) <= 0 {
		config.OutPath = DefaultStegoPath
	}
	if sameFile(config.ImagePath, config.OutPath) {
		return nil, &ConfigError{"OutPath", fmt.Sprintf("'%v' is the carrier image itself.", config.OutPath)}
	}
	if sameFile(config.FilePath, config.OutPath) {
		return nil, &ConfigError{"OutPath", fmt.Sprintf("'%v' is the file being hidden.", config.OutPath)}
	}

	log := loggerOrNop(config.Logger).With(zap.String("op", "hide"))

	log.Info("Loading the carrier image", zap.String("path", config.ImagePath))
	imgFile, err := openFile(config.ImagePath)
	if err != nil {
		return nil, err
	}
	defer closeFile(imgFile, log)

	log.Info("Opening the secret file", zap.String("path", config.FilePath))
	secretFile, err := openFile(config.FilePath)
	if err != nil {
		return nil, err
	}
	defer closeFile(secretFile, log)

	fileInfo, err := secretFile.Stat()
	if err != nil {
		return nil, &IOError{Op: "stat", Path: config.FilePath, Err: err}
	}

	src := bufio.NewReader(imgFile)
	header, err := readHeader(src, config.ImagePath)
	if err != nil {
		return nil, err
	}
	geometry := parseHeader(header)
	if config.Strict {
		if err = geometry.validate(); err != nil {
			return nil, err
		}
	}
	log.Info("Image info", zap.Stringer("geometry", geometry))

	sizes := layout.Sizes{Extension: int64(len(config.Extension)), Payload: fileInfo.Size()}
	result = &HideResult{
		OutPath:     config.OutPath,
		Extension:   config.Extension,
		PayloadSize: sizes.Payload,
		Capacity:    geometry.Capacity(),
		Required:    sizes.Required(),
		Consumed:    sizes.Consumed(),
	}

	// Capacity check, before anything is written
	log.Info("Checking capacity", zap.Int64("capacity", result.Capacity), zap.Int64("required", result.Required))
	if sizes.Payload > math.MaxInt32 {
		return nil, &CapacityError{Capacity: result.Capacity, Required: result.Required,
			AdditionalInfo: fmt.Sprintf("The file is %d B but a record holds at most %d B.", sizes.Payload, math.MaxInt32)}
	}
	if result.Capacity < result.Required {
		return nil, &CapacityError{Capacity: result.Capacity, Required: result.Required}
	}

	log.Info("Creating the output image", zap.String("path", config.OutPath))
	outFile, err := os.Create(config.OutPath)
	if err != nil {
		return nil, &IOError{Op: "create", Path: config.OutPath, Err: err}
	}
	defer func() {
		if cerr := outFile.Close(); cerr != nil && err == nil {
			err = &IOError{Op: StageClose, Path: config.OutPath, Err: cerr}
		}
		if err != nil {
			result = nil
			if rerr := os.Remove(config.OutPath); rerr != nil {
				log.Warn("Unable to remove the partial output image", zap.String("path", config.OutPath), zap.Error(rerr))
			}
		}
	}()

	em := &embedder{
		extractor: &extractor{src: src, path: config.ImagePath},
		dst:       bufio.NewWriter(outFile),
		dstPath:   config.OutPath,
	}

	log.Info("Copying the bitmap header")
	if err = em.write(header); err != nil {
		return nil, err
	}

	secret := bufio.NewReader(secretFile)
	for _, field := range layout.Record {
		switch field {
		case layout.FieldMagic:
			err = em.bytes(field, []byte(Magic))
		case layout.FieldExtensionLength:
			err = em.length(field, uint32(len(config.Extension)))
		case layout.FieldExtension:
			err = em.bytes(field, []byte(config.Extension))
		case layout.FieldPayloadLength:
			err = em.length(field, uint32(sizes.Payload))
		case layout.FieldPayload:
			log.Info("Writing file data", zap.Int64("bytes", sizes.Payload))
			err = em.stream(field, secret, sizes.Payload, config.FilePath)
		}
		if err != nil {
			return nil, err
		}
		log.Debug("Embedded field", zap.Stringer("field", field), zap.Int64("carrierOffset", em.read))
	}

	log.Info("Copying the untouched pixel data")
	copied, err := em.copyRemainder()
	if err != nil {
		return nil, err
	}
	log.Debug("Copied remainder", zap.Int64("bytes", copied))

	if err = em.flush(); err != nil {
		return nil, err
	}

	log.Info("All done!", zap.String("out", config.OutPath))
	return result, nil
}
