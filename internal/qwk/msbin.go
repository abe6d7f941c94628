package qwk

import (
	"math"

	"github.com/stlalpha/qwk/internal/validation"
)

// Legacy (Microsoft Binary Format) single-precision floats, as stored in
// NDX files:
//
//	byte 0   mantissa bits 0-7
//	byte 1   mantissa bits 8-15
//	byte 2   bit 7 sign, bits 0-6 mantissa bits 16-22
//	byte 3   exponent, biased by 129
//
// The mantissa has an implicit leading 1, so the value is
// (1 + m/2^23) * 2^(exp-129). An exponent byte of 0 means zero.
const (
	mbfBias     = 129
	mbfMantBits = 23
	mbfSignBit  = 0x80
)

// DecodeFloat converts a 4-byte legacy float to a float64.
func DecodeFloat(b [4]byte) float64 {
	if b[3] == 0 {
		return 0
	}
	mant := uint32(b[2]&^mbfSignBit)<<16 | uint32(b[1])<<8 | uint32(b[0])
	v := math.Ldexp(float64(mant|1<<mbfMantBits), int(b[3])-mbfBias-mbfMantBits)
	if b[2]&mbfSignBit != 0 {
		v = -v
	}
	return v
}

// EncodeFloat converts v to the 4-byte legacy float encoding. Zero encodes
// as four zero bytes. The mantissa is rounded to nearest.
func EncodeFloat(v float64) ([4]byte, error) {
	var out [4]byte
	if v == 0 {
		return out, nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return out, validation.Errorf(validation.KindRange, "", "cannot encode %v as a legacy float", v)
	}

	neg := v < 0
	m := math.Abs(v)
	exp := 0
	for m >= 2 {
		m /= 2
		exp++
	}
	for m < 1 {
		m *= 2
		exp--
	}

	frac := math.Round((m - 1) * (1 << mbfMantBits))
	if frac >= 1<<mbfMantBits {
		frac = 0
		exp++
	}
	biased := exp + mbfBias
	if biased < 1 || biased > 0xFF {
		return out, validation.Errorf(validation.KindRange, "", "%v is outside the legacy float exponent range", v)
	}

	f := uint32(frac)
	out[0] = byte(f)
	out[1] = byte(f >> 8)
	out[2] = byte(f>>16) &^ mbfSignBit
	if neg {
		out[2] |= mbfSignBit
	}
	out[3] = byte(biased)
	return out, nil
}

// ToRecordOffset interprets b as a byte offset and returns the record it
// falls in.
func ToRecordOffset(b [4]byte) int64 {
	return int64(math.Floor(DecodeFloat(b) / RecordSize))
}

// FromRecordOffset encodes the byte offset of record n.
func FromRecordOffset(n int64) ([4]byte, error) {
	if n < 0 {
		return [4]byte{}, validation.Errorf(validation.KindRange, "", "record offset %d is negative", n)
	}
	return EncodeFloat(float64(n) * RecordSize)
}
