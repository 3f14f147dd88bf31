// Package bitint implements integers of an arbitrary bit width between 1 and 128,
// signed or unsigned, independent of native machine widths.
//
// An Int stores the low width bits of its two's complement pattern. Bits at or
// above the width are always zero so two Ints with the same logical value and
// width have identical representations.
package bitint

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/wader/bitlayout/pkg/bitrange"
	"golang.org/x/exp/constraints"
	"lukechampine.com/uint128"
)

const MaxWidth = 128

var (
	ErrWidth    = errors.New("invalid bit width")
	ErrOverflow = errors.New("value does not fit")
)

type Int struct {
	bits   uint128.Uint128
	width  uint8
	signed bool
}

func checkWidth(width int) error {
	if width < 1 || width > MaxWidth {
		return fmt.Errorf("%w: %d", ErrWidth, width)
	}
	return nil
}

// FromBits truncates bits to width. Panics on an invalid width.
func FromBits(width int, signed bool, bits uint128.Uint128) Int {
	if err := checkWidth(width); err != nil {
		panic(err)
	}
	return Int{
		bits:   bits.And(bitrange.Mask(uint(width))),
		width:  uint8(width),
		signed: signed,
	}
}

func Uint128(width int, v uint128.Uint128) (Int, error) {
	if err := checkWidth(width); err != nil {
		return Int{}, err
	}
	if !bitrange.Fits(v, uint(width)) {
		return Int{}, fmt.Errorf("%w: %s in u%d", ErrOverflow, v, width)
	}
	return Int{bits: v, width: uint8(width)}, nil
}

func Uint(width int, v uint64) (Int, error) {
	return Uint128(width, uint128.From64(v))
}

func Sint(width int, v int64) (Int, error) {
	if err := checkWidth(width); err != nil {
		return Int{}, err
	}
	if width < 64 {
		lim := int64(1) << (width - 1)
		if v < -lim || v >= lim {
			return Int{}, fmt.Errorf("%w: %d in i%d", ErrOverflow, v, width)
		}
	}
	return FromBits(width, true, sext64(v)), nil
}

// sext64 widens v to a 128 bit two's complement pattern.
func sext64(v int64) uint128.Uint128 {
	hi := uint64(0)
	if v < 0 {
		hi = ^uint64(0)
	}
	return uint128.New(uint64(v), hi)
}

func FromUnsigned[T constraints.Unsigned](width int, v T) (Int, error) {
	return Uint(width, uint64(v))
}

func FromSigned[T constraints.Signed](width int, v T) (Int, error) {
	return Sint(width, int64(v))
}

func MustUint(width int, v uint64) Int {
	i, err := Uint(width, v)
	if err != nil {
		panic(err)
	}
	return i
}

func MustSint(width int, v int64) Int {
	i, err := Sint(width, v)
	if err != nil {
		panic(err)
	}
	return i
}

// FromBig validates that v is representable in width bits with the given signedness.
func FromBig(width int, signed bool, v *big.Int) (Int, error) {
	if err := checkWidth(width); err != nil {
		return Int{}, err
	}
	lo, hi := bounds(width, signed)
	if v.Cmp(lo) < 0 || v.Cmp(hi) > 0 {
		return Int{}, fmt.Errorf("%w: %s in %s", ErrOverflow, v, typeName(width, signed))
	}
	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, new(big.Int).Lsh(big.NewInt(1), uint(width)))
	}
	return Int{bits: uint128.FromBig(u), width: uint8(width), signed: signed}, nil
}

// Parse parses s using Go integer literal syntax, underscores and base prefixes
// included.
func Parse(width int, signed bool, s string) (Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
	if !ok {
		return Int{}, fmt.Errorf("invalid integer %q", s)
	}
	return FromBig(width, signed, v)
}

func bounds(width int, signed bool) (lo, hi *big.Int) {
	one := big.NewInt(1)
	if !signed {
		return new(big.Int), new(big.Int).Sub(new(big.Int).Lsh(one, uint(width)), one)
	}
	h := new(big.Int).Lsh(one, uint(width-1))
	return new(big.Int).Neg(h), h.Sub(h, one)
}

func typeName(width int, signed bool) string {
	if signed {
		return fmt.Sprintf("i%d", width)
	}
	return fmt.Sprintf("u%d", width)
}

func (i Int) Width() int { return int(i.width) }
func (i Int) Signed() bool { return i.signed }
func (i Int) IsZero() bool { return i.bits.IsZero() }
func (i Int) TypeName() string { return typeName(int(i.width), i.signed) }

// Bits is the raw two's complement pattern, zero above Width.
func (i Int) Bits() uint128.Uint128 { return i.bits }

// Uint64 returns the low 64 bits of the pattern.
func (i Int) Uint64() uint64 { return i.bits.Lo }

// Int64 returns the sign-extended value truncated to 64 bits.
func (i Int) Int64() int64 {
	if !i.signed {
		return int64(i.bits.Lo)
	}
	return int64(bitrange.SignExtend(i.bits, uint(i.width)).Lo)
}

// Negative reports whether the logical value is below zero.
func (i Int) Negative() bool {
	return i.signed && !i.bits.Rsh(uint(i.width-1)).IsZero()
}

func (i Int) Big() *big.Int {
	b := i.bits.Big()
	if i.Negative() {
		b.Sub(b, new(big.Int).Lsh(big.NewInt(1), uint(i.width)))
	}
	return b
}

// Equal compares logical values, width and signedness are ignored.
func (i Int) Equal(o Int) bool {
	return i.Big().Cmp(o.Big()) == 0
}

func (i Int) String() string { return i.Big().String() }

func (i Int) Hex() string {
	digits := (int(i.width) + 3) / 4
	h := i.bits.Big().Text(16)
	if len(h) < digits {
		h = strings.Repeat("0", digits-len(h)) + h
	}
	return "0x" + h
}

func (i Int) Format(f fmt.State, verb rune) {
	switch verb {
	case 'x', 'X', 'b', 'o':
		i.Big().Format(f, verb)
	default:
		fmt.Fprint(f, i.String())
	}
}
