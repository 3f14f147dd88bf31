// Package enum maps fixed-width discriminants to named variants.
//
// An exhaustive codec lists a variant for every value of its backing width and
// decodes totally. A non-exhaustive codec lists a proper subset and decoding an
// unlisted value fails with an *UnmatchedError carrying the raw value.
package enum

import (
	"errors"
	"fmt"

	"github.com/wader/bitlayout/pkg/bitrange"
	"lukechampine.com/uint128"
)

// MaxExhaustiveWidth bounds exhaustive codecs, they list 2^width variants.
const MaxExhaustiveWidth = 16

var (
	ErrNotExhaustive = errors.New("enum is not exhaustive")
	ErrVariant       = errors.New("variant does not belong to enum")
)

type Variant struct {
	Name  string
	Value uint128.Uint128
	Doc   string
}

func (v Variant) String() string { return v.Name }

// Error is a codec definition error.
type Error struct {
	Enum string
	Err  error
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Error() string {
	return fmt.Sprintf("enum %s: %s", e.Enum, e.Err)
}

func errorf(name string, format string, a ...any) *Error {
	return &Error{Enum: name, Err: fmt.Errorf(format, a...)}
}

// UnmatchedError is returned by Decode when no variant has the raw value.
type UnmatchedError struct {
	Enum string
	Raw  uint128.Uint128
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("enum %s: no variant for raw value %s", e.Enum, e.Raw)
}

type Codec struct {
	name       string
	doc        string
	width      int
	exhaustive bool
	variants   []Variant
	byValue    map[uint128.Uint128]int
	byName     map[string]int
	// variant index by raw value, exhaustive only
	dense []int
}

type Option func(c *Codec)

func WithDoc(doc string) Option {
	return func(c *Codec) { c.doc = doc }
}

// New validates variants and builds a codec. Variants keep their declaration
// order.
func New(name string, width int, exhaustive bool, variants []Variant, opts ...Option) (*Codec, error) {
	if width < 1 || width > bitrange.Width {
		return nil, errorf(name, "invalid width %d", width)
	}
	if len(variants) == 0 {
		return nil, errorf(name, "no variants")
	}

	c := &Codec{
		name:       name,
		width:      width,
		exhaustive: exhaustive,
		variants:   append([]Variant(nil), variants...),
		byValue:    make(map[uint128.Uint128]int, len(variants)),
		byName:     make(map[string]int, len(variants)),
	}
	for _, o := range opts {
		o(c)
	}

	for i, v := range c.variants {
		if v.Name == "" {
			return nil, errorf(name, "variant with value %s has no name", v.Value)
		}
		if j, ok := c.byName[v.Name]; ok {
			return nil, errorf(name, "duplicate variant name %s (values %s and %s)", v.Name, c.variants[j].Value, v.Value)
		}
		if j, ok := c.byValue[v.Value]; ok {
			return nil, errorf(name, "variants %s and %s share value %s", c.variants[j].Name, v.Name, v.Value)
		}
		if !bitrange.Fits(v.Value, uint(width)) {
			return nil, errorf(name, "variant %s value %s does not fit u%d", v.Name, v.Value, width)
		}
		c.byName[v.Name] = i
		c.byValue[v.Value] = i
	}

	if !exhaustive && width <= MaxExhaustiveWidth && len(c.variants) == 1<<width {
		return nil, errorf(name, "enum covers all u%d values, declare it exhaustive", width)
	}
	if exhaustive {
		if width > MaxExhaustiveWidth {
			return nil, errorf(name, "exhaustive enum width %d exceeds %d", width, MaxExhaustiveWidth)
		}
		n := 1 << width
		if len(c.variants) != n {
			// values are distinct and fit the width so only the count can be short
			return nil, errorf(name, "exhaustive enum has %d variants, u%d needs %d (first missing value %d)",
				len(c.variants), width, n, c.firstMissing(n))
		}
		c.dense = make([]int, n)
		for i, v := range c.variants {
			c.dense[v.Value.Lo] = i
		}
	}

	return c, nil
}

func MustNew(name string, width int, exhaustive bool, variants []Variant, opts ...Option) *Codec {
	c, err := New(name, width, exhaustive, variants, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Codec) firstMissing(n int) int {
	for i := 0; i < n; i++ {
		if _, ok := c.byValue[uint128.From64(uint64(i))]; !ok {
			return i
		}
	}
	return n
}

func (c *Codec) Name() string { return c.name }
func (c *Codec) Doc() string { return c.doc }
func (c *Codec) Width() int { return c.width }
func (c *Codec) Exhaustive() bool { return c.exhaustive }
func (c *Codec) Variants() []Variant { return append([]Variant(nil), c.variants...) }

// Decode looks up the variant for raw. The error is an *UnmatchedError with raw
// unchanged.
func (c *Codec) Decode(raw uint128.Uint128) (Variant, error) {
	if c.dense != nil && bitrange.Fits(raw, uint(c.width)) {
		return c.variants[c.dense[raw.Lo]], nil
	}
	if i, ok := c.byValue[raw]; ok {
		return c.variants[i], nil
	}
	return Variant{}, &UnmatchedError{Enum: c.name, Raw: raw}
}

// Total decodes raw with an exhaustive codec. Bits above the width are ignored.
// Panics if the codec is not exhaustive.
func (c *Codec) Total(raw uint128.Uint128) Variant {
	if c.dense == nil {
		panic(fmt.Errorf("enum %s: %w", c.name, ErrNotExhaustive))
	}
	return c.variants[c.dense[raw.Lo&(1<<c.width-1)]]
}

// Encode returns the discriminant of v, which must be one of the codec's
// variants.
func (c *Codec) Encode(v Variant) (uint128.Uint128, error) {
	i, ok := c.byName[v.Name]
	if !ok || !c.variants[i].Value.Equals(v.Value) {
		return uint128.Zero, fmt.Errorf("enum %s: %w: %s", c.name, ErrVariant, v.Name)
	}
	return v.Value, nil
}

func (c *Codec) Variant(name string) (Variant, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Variant{}, false
	}
	return c.variants[i], true
}

// Value returns the discriminant of the named variant.
func (c *Codec) Value(name string) (uint128.Uint128, bool) {
	v, ok := c.Variant(name)
	return v.Value, ok
}
