package bitcodec

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomWindow(r *rand.Rand) [ByteWidth]byte {
	var w [ByteWidth]byte
	r.Read(w[:])
	return w
}

func TestEncodeByteSetsAllLSBs(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for n := 0; n < 64; n++ {
		carrier := randomWindow(r)
		out := EncodeByte(0xff, carrier)
		for i := range out {
			assert.Equal(t, byte(1), out[i]&1, "byte %d", i)
			assert.Equal(t, carrier[i]&^1, out[i]&^1, "upper bits changed at byte %d", i)
		}
	}
}

func TestEncodeByteClearsAllLSBs(t *testing.T) {
	carrier := [ByteWidth]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	out := EncodeByte(0x00, carrier)
	for i := range out {
		assert.Equal(t, byte(0xfe), out[i])
	}
}

func TestEncodeByteIsMSBFirst(t *testing.T) {
	var carrier [ByteWidth]byte
	out := EncodeByte(0x80, carrier)
	assert.Equal(t, [ByteWidth]byte{1, 0, 0, 0, 0, 0, 0, 0}, out)

	out = EncodeByte(0x01, carrier)
	assert.Equal(t, [ByteWidth]byte{0, 0, 0, 0, 0, 0, 0, 1}, out)
}

func TestByteRoundtrip(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for v := 0; v < 256; v++ {
		carrier := randomWindow(r)
		require.Equal(t, byte(v), DecodeByte(EncodeByte(byte(v), carrier)))
	}
}

func TestLengthRoundtrip(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	values := []uint32{0, 1, 4, 49, 50, 0x7fffffff, 0x80000000, math.MaxUint32}
	for i := 0; i < 32; i++ {
		values = append(values, r.Uint32())
	}

	for _, v := range values {
		var carrier [LengthWidth]byte
		r.Read(carrier[:])
		out := EncodeLength(v, carrier)
		require.Equal(t, v, DecodeLength(out))
		for i := range out {
			require.Equal(t, carrier[i]&^1, out[i]&^1)
		}
	}
}

func TestEncodeLengthIsMSBFirst(t *testing.T) {
	var carrier [LengthWidth]byte
	out := EncodeLength(1<<31|1, carrier)
	assert.Equal(t, byte(1), out[0])
	assert.Equal(t, byte(1), out[LengthWidth-1])
	for i := 1; i < LengthWidth-1; i++ {
		assert.Zero(t, out[i])
	}
}

func TestBytesRoundtrip(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	payload := []byte("#*STEG*#.txt")
	carrier := make([]byte, len(payload)*ByteWidth+5)
	r.Read(carrier)
	orig := append([]byte(nil), carrier...)

	EncodeBytes(payload, carrier)
	assert.Equal(t, payload, DecodeBytes(carrier[:len(payload)*ByteWidth]))
	assert.Equal(t, orig[len(payload)*ByteWidth:], carrier[len(payload)*ByteWidth:], "tail must be untouched")
}

func TestDecodeBytesEmpty(t *testing.T) {
	assert.Empty(t, DecodeBytes(nil))
}
