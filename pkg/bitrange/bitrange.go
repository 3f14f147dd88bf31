// Package bitrange has the mask, extract, insert and sign extension primitives
// used by every field accessor. All functions are pure and work on 128 bit words
// so that any container width up to 128 shares one code path.
package bitrange

import "lukechampine.com/uint128"

// Width of the word all functions operate on.
const Width = 128

// Mask returns (1<<k)-1. k >= 128 gives all ones instead of the zero an
// overflowing shift would produce.
func Mask(k uint) uint128.Uint128 {
	if k >= Width {
		return uint128.Max
	}
	if k < 64 {
		return uint128.From64(1<<k - 1)
	}
	return uint128.New(^uint64(0), 1<<(k-64)-1)
}

// Fits reports whether v has no bits set at or above width.
func Fits(v uint128.Uint128, width uint) bool {
	if width >= Width {
		return true
	}
	return v.Rsh(width).IsZero()
}

// Extract returns bits low..=high of raw shifted down to bit zero.
func Extract(raw uint128.Uint128, low, high uint) uint128.Uint128 {
	return raw.Rsh(low).And(Mask(high - low + 1))
}

// Insert replaces bits low..=high of raw with the low bits of v. Bits of v that
// do not fit the range are dropped.
func Insert(raw uint128.Uint128, low, high uint, v uint128.Uint128) uint128.Uint128 {
	m := Mask(high - low + 1)
	cleared := raw.And(m.Lsh(low).Xor(uint128.Max))
	return cleared.Or(v.And(m).Lsh(low))
}

// SignExtend propagates bit width-1 of bits through all 128 bits.
func SignExtend(bits uint128.Uint128, width uint) uint128.Uint128 {
	if width == 0 || width >= Width {
		return bits
	}
	bits = bits.And(Mask(width))
	if bits.Rsh(width - 1).IsZero() {
		return bits
	}
	return bits.Or(Mask(width).Xor(uint128.Max))
}

// SignExtend64 is SignExtend for widths up to 64.
func SignExtend64(bits uint64, width uint) int64 {
	if width == 0 || width >= 64 {
		return int64(bits)
	}
	shift := 64 - width
	return int64(bits<<shift) >> shift
}

// Bit reports whether bit n of raw is set.
func Bit(raw uint128.Uint128, n uint) bool {
	return !raw.Rsh(n).And64(1).IsZero()
}
