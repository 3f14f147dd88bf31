package layout

import (
	"fmt"

	"github.com/wader/bitlayout/pkg/bitint"
	"github.com/wader/bitlayout/pkg/bitrange"
	"lukechampine.com/uint128"
)

// Container is one raw value of a layout. The zero Container has no layout and
// is not usable.
type Container struct {
	layout *Layout
	raw    uint128.Uint128
}

func (l *Layout) New() Container {
	return Container{layout: l, raw: l.def}
}

// NewWithRawValue fails with ErrOverflow if v has bits above the container width.
func (l *Layout) NewWithRawValue(v uint128.Uint128) (Container, error) {
	if !bitrange.Fits(v, uint(l.width)) {
		return Container{}, fmt.Errorf("%s: %w: raw value %s in u%d", l.name, ErrOverflow, v, l.width)
	}
	return Container{layout: l, raw: v}, nil
}

func (l *Layout) FromUint64(v uint64) (Container, error) {
	return l.NewWithRawValue(uint128.From64(v))
}

func (l *Layout) MustFromUint64(v uint64) Container {
	c, err := l.FromUint64(v)
	if err != nil {
		panic(err)
	}
	return c
}

// Truncate drops bits of v above the container width.
func (l *Layout) Truncate(v uint128.Uint128) Container {
	return Container{layout: l, raw: v.And(bitrange.Mask(uint(l.width)))}
}

// Parse parses a raw value in Go integer literal syntax.
func (l *Layout) Parse(s string) (Container, error) {
	i, err := bitint.Parse(l.width, false, s)
	if err != nil {
		return Container{}, err
	}
	return Container{layout: l, raw: i.Bits()}, nil
}

func (c Container) Layout() *Layout { return c.layout }
func (c Container) RawValue() uint128.Uint128 { return c.raw }
func (c Container) Uint64() uint64 { return c.raw.Lo }
func (c Container) Int() bitint.Int { return bitint.FromBits(c.layout.width, false, c.raw) }
func (c Container) Hex() string { return c.Int().Hex() }
func (c Container) Equal(o Container) bool { return c.layout == o.layout && c.raw.Equals(o.raw) }

func (c Container) String() string {
	return fmt.Sprintf("%s(%s)", c.layout.name, c.Hex())
}

func (c Container) field(name string) (*Field, error) {
	f, ok := c.layout.byName[name]
	if !ok {
		return nil, &FieldError{Layout: c.layout.name, Field: name, Index: -1, Err: ErrUnknownField}
	}
	return f, nil
}

func (c Container) Get(name string) (Value, error) {
	f, err := c.field(name)
	if err != nil {
		return Value{}, err
	}
	return f.Get(c)
}

func (c Container) GetAt(name string, i int) (Value, error) {
	f, err := c.field(name)
	if err != nil {
		return Value{}, err
	}
	return f.GetAt(c, i)
}

func (c Container) With(name string, v any) (Container, error) {
	f, err := c.field(name)
	if err != nil {
		return c, err
	}
	return f.With(c, v)
}

func (c Container) WithAt(name string, i int, v any) (Container, error) {
	f, err := c.field(name)
	if err != nil {
		return c, err
	}
	return f.WithAt(c, i, v)
}

func (c Container) MustGet(name string) Value {
	v, err := c.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

func (c Container) MustGetAt(name string, i int) Value {
	v, err := c.GetAt(name, i)
	if err != nil {
		panic(err)
	}
	return v
}

func (c Container) MustWith(name string, v any) Container {
	nc, err := c.With(name, v)
	if err != nil {
		panic(err)
	}
	return nc
}

func (c Container) MustWithAt(name string, i int, v any) Container {
	nc, err := c.WithAt(name, i, v)
	if err != nil {
		panic(err)
	}
	return nc
}

// FieldValue is one decoded field instance, Index is -1 for plain fields.
type FieldValue struct {
	Field *Field
	Index int
	Value Value
	Err   error
}

func (fv FieldValue) Name() string {
	if fv.Index < 0 {
		return fv.Field.name
	}
	return fmt.Sprintf("%s[%d]", fv.Field.name, fv.Index)
}

// Fields decodes every readable field instance in declaration order.
func (c Container) Fields() []FieldValue {
	var fvs []FieldValue
	for _, f := range c.layout.fields {
		if !f.Readable() {
			continue
		}
		if !f.Repeated() {
			v, err := f.read(c, -1)
			fvs = append(fvs, FieldValue{Field: f, Index: -1, Value: v, Err: err})
			continue
		}
		for i := 0; i < f.count; i++ {
			v, err := f.read(c, i)
			fvs = append(fvs, FieldValue{Field: f, Index: i, Value: v, Err: err})
		}
	}
	return fvs
}

// Map returns readable fields as Value.Interface values, repeated fields as
// []any.
func (c Container) Map() map[string]any {
	m := map[string]any{}
	for _, fv := range c.Fields() {
		v := fv.Value.Interface()
		if fv.Index < 0 {
			m[fv.Field.name] = v
			continue
		}
		a, _ := m[fv.Field.name].([]any)
		m[fv.Field.name] = append(a, v)
	}
	return m
}
