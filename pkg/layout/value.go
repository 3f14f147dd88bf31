package layout

import (
	"fmt"
	"math"
	"math/big"

	"github.com/wader/bitlayout/pkg/bitint"
	"github.com/wader/bitlayout/pkg/bitrange"
	"github.com/wader/bitlayout/pkg/enum"
	"lukechampine.com/uint128"
)

// Value is a decoded field. Actual holds the field bits, Sym the variant name
// for enums.
type Value struct {
	Kind   Kind
	Actual bitint.Int
	Sym    string
}

func (v Value) Bool() bool { return !v.Actual.IsZero() }
func (v Value) Uint64() uint64 { return v.Actual.Uint64() }
func (v Value) Int64() int64 { return v.Actual.Int64() }
func (v Value) Int() bitint.Int { return v.Actual }
func (v Value) Matched() bool { return !v.Kind.IsEnum() || v.Sym != "" }

func (v Value) Variant() enum.Variant {
	return enum.Variant{Name: v.Sym, Value: v.Actual.Bits()}
}

// Interface converts to values gojq and encoding/json understand: bool, int,
// *big.Int or the variant name. Unmatched partial enums give their raw number.
func (v Value) Interface() any {
	switch {
	case v.Kind == Bool:
		return v.Bool()
	case v.Kind.IsEnum() && v.Sym != "":
		return v.Sym
	}
	b := v.Actual.Big()
	if b.IsInt64() && b.Int64() >= math.MinInt && b.Int64() <= math.MaxInt {
		return int(b.Int64())
	}
	return b
}

func (v Value) String() string {
	switch {
	case v.Kind == Bool:
		return fmt.Sprint(v.Bool())
	case v.Kind.IsEnum() && v.Sym != "":
		return v.Sym
	}
	return v.Actual.String()
}

var u128MaxBig = uint128.Max.Big()

// toBits turns an integer-like Go value into a 128 bit two's complement pattern.
func toBits(v any) (uint128.Uint128, bool) {
	switch v := v.(type) {
	case int:
		return sext(int64(v)), true
	case int8:
		return sext(int64(v)), true
	case int16:
		return sext(int64(v)), true
	case int32:
		return sext(int64(v)), true
	case int64:
		return sext(v), true
	case uint:
		return uint128.From64(uint64(v)), true
	case uint8:
		return uint128.From64(uint64(v)), true
	case uint16:
		return uint128.From64(uint64(v)), true
	case uint32:
		return uint128.From64(uint64(v)), true
	case uint64:
		return uint128.From64(v), true
	case uint128.Uint128:
		return v, true
	case bitint.Int:
		if v.Signed() {
			return bitrange.SignExtend(v.Bits(), uint(v.Width())), true
		}
		return v.Bits(), true
	case *big.Int:
		// big.Int And uses two's complement for negative values
		return uint128.FromBig(new(big.Int).And(v, u128MaxBig)), true
	default:
		return uint128.Zero, false
	}
}

func sext(v int64) uint128.Uint128 {
	hi := uint64(0)
	if v < 0 {
		hi = math.MaxUint64
	}
	return uint128.New(uint64(v), hi)
}
