// Package bitcodec embeds values into the least-significant bits of carrier bytes, one bit per
// carrier byte, most-significant bit first.
package bitcodec

import (
	"github.com/zedseven/binmani"
)

const (
	// ByteWidth is the number of carrier bytes needed to hold one embedded byte.
	ByteWidth = 8
	// LengthWidth is the number of carrier bytes needed to hold one embedded 32-bit length.
	LengthWidth = 32
)

// Bit position inside a carrier byte that holds the embedded bit.
const carrierBit uint8 = 0

// EncodeByte stores value in the LSBs of carrier, leaving the other 7 bits of each carrier byte untouched.
func EncodeByte(value byte, carrier [ByteWidth]byte) [ByteWidth]byte {
	for i := 0; i < ByteWidth; i++ {
		bit := binmani.ReadFrom(uint16(value), uint8(ByteWidth-i-1), 1)
		carrier[i] = byte(binmani.WriteTo(uint16(carrier[i]), carrierBit, 1, bit))
	}
	return carrier
}

// DecodeByte rebuilds a byte from the LSBs of carrier.
// It never fails, but the result is meaningless if nothing was embedded.
func DecodeByte(carrier [ByteWidth]byte) byte {
	var value uint16
	for i := 0; i < ByteWidth; i++ {
		bit := binmani.ReadFrom(uint16(carrier[i]), carrierBit, 1)
		value = binmani.WriteTo(value, uint8(ByteWidth-i-1), 1, bit)
	}
	return byte(value)
}

// EncodeLength stores value in the LSBs of carrier, most-significant bit first.
func EncodeLength(value uint32, carrier [LengthWidth]byte) [LengthWidth]byte {
	for i := 0; i < LengthWidth; i++ {
		bit := uint16((value >> uint(LengthWidth-i-1)) & 1)
		carrier[i] = byte(binmani.WriteTo(uint16(carrier[i]), carrierBit, 1, bit))
	}
	return carrier
}

// DecodeLength is the inverse of EncodeLength.
func DecodeLength(carrier [LengthWidth]byte) uint32 {
	var value uint32
	for i := 0; i < LengthWidth; i++ {
		value = value<<1 | uint32(binmani.ReadFrom(uint16(carrier[i]), carrierBit, 1))
	}
	return value
}

// EncodeBytes embeds each byte of values into consecutive 8-byte windows of carrier.
// carrier must hold at least len(values)*ByteWidth bytes; it is modified in place.
func EncodeBytes(values []byte, carrier []byte) {
	var window [ByteWidth]byte
	for i, v := range values {
		off := i * ByteWidth
		copy(window[:], carrier[off:off+ByteWidth])
		window = EncodeByte(v, window)
		copy(carrier[off:off+ByteWidth], window[:])
	}
}

// DecodeBytes reads len(carrier)/ByteWidth bytes back out of carrier.
func DecodeBytes(carrier []byte) []byte {
	out := make([]byte, len(carrier)/ByteWidth)
	var window [ByteWidth]byte
	for i := range out {
		copy(window[:], carrier[i*ByteWidth:(i+1)*ByteWidth])
		out[i] = DecodeByte(window)
	}
	return out
}
