package bmpsteg

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/zedseven/bmpsteg/internal/bitcodec"
	"github.com/zedseven/bmpsteg/internal/layout"
)

// Bitmap header offsets
const (
	offsetSignature   = 0
	offsetPixelOffset = 10
	offsetWidth       = 18
	offsetHeight      = 22
	offsetBitCount    = 28
	offsetCompression = 30

	bitmapSignature = "BM"
	bitmapBitCount  = 24
	compressionNone = 0
)

// Geometry is what a bitmap header says about its pixel region.
type Geometry struct {
	Signature    string
	PixelOffset  uint32
	Width        int32
	Height       int32
	BitsPerPixel uint16
	Compression  uint32
}

// Capacity returns the number of carrier bytes the header claims are available.
func (g Geometry) Capacity() int64 {
	return layout.Capacity(int64(g.Width), int64(g.Height))
}

func (g Geometry) String() string {
	return fmt.Sprintf("{%dx%d %dbpp compression=%d offset=%d}", g.Width, g.Height, g.BitsPerPixel, g.Compression, g.PixelOffset)
}

// validate checks that the header describes a bitmap this package can hide data in without
// touching anything but pixel bytes.
func (g Geometry) validate() error {
	switch {
	case g.Signature != bitmapSignature:
		return &FormatError{Stage: StageHeader, AdditionalInfo: fmt.Sprintf("Bad signature %q.", g.Signature)}
	case g.PixelOffset != uint32(HeaderSize):
		return &FormatError{Stage: StageHeader, AdditionalInfo: fmt.Sprintf("Pixel data starts at %d, not %d.", g.PixelOffset, HeaderSize)}
	case g.BitsPerPixel != bitmapBitCount:
		return &FormatError{Stage: StageHeader, AdditionalInfo: fmt.Sprintf("Only %d-bit bitmaps are supported, got %d-bit.", bitmapBitCount, g.BitsPerPixel)}
	case g.Compression != compressionNone:
		return &FormatError{Stage: StageHeader, AdditionalInfo: fmt.Sprintf("Compressed bitmaps are not supported (compression %d).", g.Compression)}
	}
	return nil
}

// Primary methods

func parseHeader(header []byte) Geometry {
	return Geometry{
		Signature:    string(header[offsetSignature : offsetSignature+2]),
		PixelOffset:  binary.LittleEndian.Uint32(header[offsetPixelOffset:]),
		Width:        int32(binary.LittleEndian.Uint32(header[offsetWidth:])),
		Height:       int32(binary.LittleEndian.Uint32(header[offsetHeight:])),
		BitsPerPixel: binary.LittleEndian.Uint16(header[offsetBitCount:]),
		Compression:  binary.LittleEndian.Uint32(header[offsetCompression:]),
	}
}

func readHeader(r io.Reader, path string) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &FormatError{Stage: StageHeader, AdditionalInfo: fmt.Sprintf("'%v' is shorter than a %d-byte bitmap header.", path, HeaderSize), Err: err}
		}
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return header, nil
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	return f, nil
}

func closeFile(f *os.File, log *zap.Logger) {
	if err := f.Close(); err != nil {
		log.Warn("Error closing the file", zap.String("path", f.Name()), zap.Error(err))
	}
}

// sameFile reports whether a and b name the same existing file.
func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// Carrier streams

// extractor reads carrier bytes that follow the header and decodes record fields from them.
type extractor struct {
	src  *bufio.Reader
	path string
	read int64 // carrier bytes consumed so far
}

func (ex *extractor) fill(field layout.Field, buf []byte) error {
	n, err := io.ReadFull(ex.src, buf)
	ex.read += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &FormatError{Stage: field.String(),
				AdditionalInfo: fmt.Sprintf("'%v' ran out of pixel data after %d bytes.", ex.path, ex.read), Err: err}
		}
		return &IOError{Op: "read", Path: ex.path, Err: err}
	}
	return nil
}

func (ex *extractor) length(field layout.Field) (uint32, error) {
	var carrier [bitcodec.LengthWidth]byte
	if err := ex.fill(field, carrier[:]); err != nil {
		return 0, err
	}
	return bitcodec.DecodeLength(carrier), nil
}

// bytes decodes n logical bytes. n must already be bounded by the caller.
func (ex *extractor) bytes(field layout.Field, n int64) ([]byte, error) {
	carrier := make([]byte, field.Width(n))
	if err := ex.fill(field, carrier); err != nil {
		return nil, err
	}
	return bitcodec.DecodeBytes(carrier), nil
}

// stream decodes n bytes, writing each one to w as soon as it is decoded.
func (ex *extractor) stream(field layout.Field, n int64, w io.ByteWriter, outPath string) error {
	var carrier [bitcodec.ByteWidth]byte
	for i := int64(0); i < n; i++ {
		if err := ex.fill(field, carrier[:]); err != nil {
			return err
		}
		if err := w.WriteByte(bitcodec.DecodeByte(carrier)); err != nil {
			return &IOError{Op: "write", Path: outPath, Err: err}
		}
	}
	return nil
}

// embedder reads carrier bytes, embeds record fields into them and writes them to the
// destination, keeping both cursors in lockstep.
type embedder struct {
	*extractor
	dst     *bufio.Writer
	dstPath string
}

func (em *embedder) write(buf []byte) error {
	if _, err := em.dst.Write(buf); err != nil {
		return &IOError{Op: "write", Path: em.dstPath, Err: err}
	}
	return nil
}

func (em *embedder) length(field layout.Field, v uint32) error {
	var carrier [bitcodec.LengthWidth]byte
	if err := em.fill(field, carrier[:]); err != nil {
		return err
	}
	carrier = bitcodec.EncodeLength(v, carrier)
	return em.write(carrier[:])
}

func (em *embedder) bytes(field layout.Field, p []byte) error {
	carrier := make([]byte, field.Width(int64(len(p))))
	if err := em.fill(field, carrier); err != nil {
		return err
	}
	bitcodec.EncodeBytes(p, carrier)
	return em.write(carrier)
}

// stream embeds exactly n bytes read from r.
func (em *embedder) stream(field layout.Field, r io.ByteReader, n int64, srcPath string) error {
	var carrier [bitcodec.ByteWidth]byte
	for i := int64(0); i < n; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return &IOError{Op: "read", Path: srcPath, Err: err}
		}
		if err = em.fill(field, carrier[:]); err != nil {
			return err
		}
		carrier = bitcodec.EncodeByte(b, carrier)
		if err = em.write(carrier[:]); err != nil {
			return err
		}
	}
	return nil
}

// copyRemainder copies every unconsumed carrier byte to the destination untouched.
func (em *embedder) copyRemainder() (int64, error) {
	n, err := em.src.WriteTo(em.dst)
	if err != nil {
		return n, &IOError{Op: "copy the remaining pixels to", Path: em.dstPath, Err: err}
	}
	return n, nil
}

func (em *embedder) flush() error {
	if err := em.dst.Flush(); err != nil {
		return &IOError{Op: "write", Path: em.dstPath, Err: err}
	}
	return nil
}
