package bmpsteg

import (
	"encoding/binary"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// bitmapHeader builds a 54-byte header for an uncompressed bitmap.
func bitmapHeader(w, h int32, bitCount uint16, pixelBytes int) []byte {
	hdr := make([]byte, HeaderSize)
	copy(hdr, "BM")
	binary.LittleEndian.PutUint32(hdr[2:], uint32(int(HeaderSize)+pixelBytes))
	binary.LittleEndian.PutUint32(hdr[10:], uint32(HeaderSize))
	binary.LittleEndian.PutUint32(hdr[14:], 40)
	binary.LittleEndian.PutUint32(hdr[18:], uint32(w))
	binary.LittleEndian.PutUint32(hdr[22:], uint32(h))
	binary.LittleEndian.PutUint16(hdr[26:], 1)
	binary.LittleEndian.PutUint16(hdr[28:], bitCount)
	binary.LittleEndian.PutUint32(hdr[34:], uint32(pixelBytes))
	return hdr
}

// writeCarrier writes a 24-bit bitmap with random pixel bytes and padded rows.
func writeCarrier(t *testing.T, dir string, w, h int32, seed int64) string {
	t.Helper()
	rowSize := (int(w)*3 + 3) &^ 3
	pixels := make([]byte, rowSize*int(h))
	rand.New(rand.NewSource(seed)).Read(pixels)

	path := filepath.Join(dir, "carrier.bmp")
	data := append(bitmapHeader(w, h, 24, len(pixels)), pixels...)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// encodeCarrier writes an opaque w x h image through the bitmap encoder.
func encodeCarrier(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x * 17) ^ (y * 31)),
				G: uint8((x * 43) + (y * 13)),
				B: uint8((x * 7) ^ (y * 11)),
				A: 255,
			})
		}
	}

	path := filepath.Join(dir, "encoded.bmp")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, bmp.Encode(f, img))
	return path
}

func writeSecret(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func randomBytes(n int, seed int64) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}
