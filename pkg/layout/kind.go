package layout

import (
	"fmt"
	"strconv"
	"strings"
)

type Kind int

const (
	Bool Kind = iota
	Unsigned
	Signed
	Enum
	// EnumPartial decodes with a non-exhaustive codec, reads can fail
	EnumPartial
)

var kindNames = map[Kind]string{
	Bool:        "bool",
	Unsigned:    "unsigned",
	Signed:      "signed",
	Enum:        "enum",
	EnumPartial: "enum_partial",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) IsEnum() bool { return k == Enum || k == EnumPartial }

type Access int

const (
	ReadWrite Access = iota
	ReadOnly
	WriteOnly
)

var accessNames = map[Access]string{
	ReadWrite: "rw",
	ReadOnly:  "r",
	WriteOnly: "w",
}

func (a Access) String() string {
	if s, ok := accessNames[a]; ok {
		return s
	}
	return fmt.Sprintf("access(%d)", int(a))
}

func (a Access) Readable() bool { return a == ReadWrite || a == ReadOnly }
func (a Access) Writable() bool { return a == ReadWrite || a == WriteOnly }

func ParseAccess(s string) (Access, error) {
	switch s {
	case "rw", "":
		return ReadWrite, nil
	case "r":
		return ReadOnly, nil
	case "w":
		return WriteOnly, nil
	default:
		return 0, fmt.Errorf("unknown access %q, expected r, w or rw", s)
	}
}

// Range is an inclusive bit range.
type Range struct {
	Low  int
	High int
}

func Bit(n int) Range { return Range{Low: n, High: n} }
func Bits(low, high int) Range { return Range{Low: low, High: high} }
func (r Range) Width() int { return r.High - r.Low + 1 }
func (r Range) Single() bool { return r.Low == r.High }
func (r Range) Shift(n int) Range { return Range{Low: r.Low + n, High: r.High + n} }

func (r Range) String() string {
	if r.Single() {
		return strconv.Itoa(r.Low)
	}
	return fmt.Sprintf("%d..=%d", r.Low, r.High)
}

// ParseRange parses "n", "lo..=hi" or the exclusive "lo..hi".
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	atoi := func(p string) (int, error) {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 0, 0)
		if err != nil {
			return 0, fmt.Errorf("invalid bit range %q", s)
		}
		return int(n), nil
	}
	if lo, hi, ok := strings.Cut(s, "..="); ok {
		l, err := atoi(lo)
		if err != nil {
			return Range{}, err
		}
		h, err := atoi(hi)
		if err != nil {
			return Range{}, err
		}
		return Range{Low: l, High: h}, nil
	}
	if lo, hi, ok := strings.Cut(s, ".."); ok {
		l, err := atoi(lo)
		if err != nil {
			return Range{}, err
		}
		h, err := atoi(hi)
		if err != nil {
			return Range{}, err
		}
		return Range{Low: l, High: h - 1}, nil
	}
	n, err := atoi(s)
	if err != nil {
		return Range{}, err
	}
	return Bit(n), nil
}

// Repeat describes Count instances at Low + i*Stride. Zero Stride means the
// range width.
type Repeat struct {
	Count  int
	Stride int
}
