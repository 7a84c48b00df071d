package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/zedseven/bmpsteg"
)

func writeCarrier(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * y), G: uint8(x + y), B: uint8(x ^ y), A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, bmp.Encode(f, img))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := new(app).execute(append([]string{"--quiet"}, args...), &out)
	return out.String(), err
}

func TestHideThenDig(t *testing.T) {
	dir := t.TempDir()
	carrier := filepath.Join(dir, "carrier.bmp")
	writeCarrier(t, carrier, 50, 40)
	payload := []byte("the quick brown fox")
	secret := filepath.Join(dir, "fox.txt")
	require.NoError(t, os.WriteFile(secret, payload, 0o600))
	stego := filepath.Join(dir, "stego.bmp")

	_, err := run(t, "hide", "--img", carrier, "--file", secret, "--out", stego, "--strict")
	require.NoError(t, err)

	base := filepath.Join(dir, "fox-copy")
	_, err = run(t, "dig", "--img", stego, "--out", base)
	require.NoError(t, err)

	got, err := os.ReadFile(base + ".txt")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = run(t, "inspect", "--img", stego)
	require.NoError(t, err)
}

func TestDefaultsFromConfig(t *testing.T) {
	dir := t.TempDir()
	carrier := filepath.Join(dir, "carrier.bmp")
	writeCarrier(t, carrier, 20, 20)
	secret := filepath.Join(dir, "s.bin")
	require.NoError(t, os.WriteFile(secret, []byte{1, 2, 3}, 0o600))

	stego := filepath.Join(dir, "configured.bmp")
	base := filepath.Join(dir, "configured-out")
	logFile := filepath.Join(dir, "steg.log")
	cfg := filepath.Join(dir, "steg.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(
		"stego_image: "+stego+"\noutput_base: "+base+"\nlog:\n  level: debug\n  file: "+logFile+"\n"), 0o600))

	_, err := run(t, "--config", cfg, "hide", "--img", carrier, "--file", secret)
	require.NoError(t, err)
	assert.FileExists(t, stego)

	_, err = run(t, "--config", cfg, "dig", "--img", stego)
	require.NoError(t, err)
	got, err := os.ReadFile(base + ".bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	logs, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logs), "Embedded field")
}

func TestCapacityFailure(t *testing.T) {
	dir := t.TempDir()
	carrier := filepath.Join(dir, "tiny.bmp")
	writeCarrier(t, carrier, 4, 4)
	secret := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(secret, bytes.Repeat([]byte("x"), 100), 0o600))
	stego := filepath.Join(dir, "out.bmp")

	_, err := run(t, "hide", "--img", carrier, "--file", secret, "--out", stego)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode failed")
	var capErr *bmpsteg.CapacityError
	assert.True(t, errors.As(err, &capErr))
	assert.NoFileExists(t, stego)
}

func TestLogClosedAfterFailure(t *testing.T) {
	dir := t.TempDir()
	carrier := filepath.Join(dir, "tiny.bmp")
	writeCarrier(t, carrier, 4, 4)
	secret := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(secret, bytes.Repeat([]byte("x"), 100), 0o600))
	logFile := filepath.Join(dir, "steg.log")

	a := new(app)
	var out bytes.Buffer
	err := a.execute([]string{"--quiet", "--log-level", "info", "--log-file", logFile,
		"hide", "--img", carrier, "--file", secret, "--out", filepath.Join(dir, "out.bmp")}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode failed")
	assert.Nil(t, a.logger)
	assert.Nil(t, a.closeLog)

	logs, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logs), "Checking capacity")
}

func TestDigPlainImage(t *testing.T) {
	dir := t.TempDir()
	carrier := filepath.Join(dir, "plain.bmp")
	writeCarrier(t, carrier, 30, 30)

	_, err := run(t, "dig", "--img", carrier, "--out", filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode failed")
	var formatErr *bmpsteg.FormatError
	assert.True(t, errors.As(err, &formatErr))
}

func TestArgumentValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "hide", "--img", filepath.Join(dir, "carrier.png"), "--file", "x.txt")
	assert.ErrorContains(t, err, "--img must name a .bmp file")

	_, err = run(t, "hide", "--img", filepath.Join(dir, "carrier.bmp"), "--file", "x.txt", "--out", "out.jpg")
	assert.ErrorContains(t, err, "--out must name a .bmp file")

	_, err = run(t, "dig", "--img", filepath.Join(dir, "stego.gif"))
	assert.ErrorContains(t, err, "--img must name a .bmp file")

	_, err = run(t, "hide", "--file", "x.txt")
	assert.Error(t, err, "--img is required")

	_, err = run(t, "--log-level", "loud", "version")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, bmpsteg.Version())
}
