// Package layout compiles bit-field layouts and accesses fields of containers.
//
// A Spec lists named fields over a fixed-width container word. Compile validates
// it once, reporting overlapping or out of range fields, bad repeats and enum
// mismatches as *SpecError, and builds per-field accessors specialised on the
// field kind. Containers are values; setters return a new Container with only
// the target bits changed.
package layout

import (
	"fmt"
	"io"
	"log"

	"github.com/wader/bitlayout/pkg/bitint"
	"github.com/wader/bitlayout/pkg/bitrange"
	"github.com/wader/bitlayout/pkg/enum"
	"lukechampine.com/uint128"
)

type FieldSpec struct {
	Name   string
	Doc    string
	Range  Range
	Access Access
	Kind   Kind
	// Width is the declared value width, 0 infers it from Range
	Width  int
	Enum   *enum.Codec
	Repeat *Repeat
}

type Spec struct {
	Name    string
	Doc     string
	Width   int
	Default uint128.Uint128
	Fields  []FieldSpec
}

type getFn func(raw uint128.Uint128, low uint) (Value, error)
type setFn func(raw uint128.Uint128, low uint, v any) (uint128.Uint128, error)

type Field struct {
	layout *Layout
	name   string
	doc    string
	rng    Range
	access Access
	kind   Kind
	width  int
	codec  *enum.Codec
	count  int
	stride int
	mask   uint128.Uint128

	get getFn
	set setFn
}

type Layout struct {
	name   string
	doc    string
	width  int
	def    uint128.Uint128
	fields []*Field
	byName map[string]*Field
	used   uint128.Uint128
}

type options struct {
	log *log.Logger
}

type Option func(o *options)

// WithLogger traces compilation to l.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.log = l }
}

func Compile(spec Spec, opts ...Option) (*Layout, error) {
	o := options{log: log.New(io.Discard, "", 0)}
	for _, fn := range opts {
		fn(&o)
	}

	specErr := func(field string, r *Range, format string, a ...any) error {
		return &SpecError{Layout: spec.Name, Field: field, Range: r, Err: fmt.Errorf(format, a...)}
	}

	if spec.Width < 1 || spec.Width > bitrange.Width {
		return nil, specErr("", nil, "container width %d not in 1..%d", spec.Width, bitrange.Width)
	}
	if !bitrange.Fits(spec.Default, uint(spec.Width)) {
		return nil, specErr("", nil, "default %s does not fit u%d", spec.Default, spec.Width)
	}

	l := &Layout{
		name:   spec.Name,
		doc:    spec.Doc,
		width:  spec.Width,
		def:    spec.Default,
		byName: map[string]*Field{},
	}
	o.log.Printf("compile %s: u%d default %s, %d fields", spec.Name, spec.Width, spec.Default, len(spec.Fields))

	for _, fs := range spec.Fields {
		r := fs.Range
		if fs.Name == "" {
			return nil, specErr("", &r, "field has no name")
		}
		if _, ok := l.byName[fs.Name]; ok {
			return nil, specErr(fs.Name, &r, "duplicate field")
		}
		if r.Low < 0 || r.Low > r.High {
			return nil, specErr(fs.Name, &r, "invalid range")
		}
		if r.High >= spec.Width {
			return nil, specErr(fs.Name, &r, "range exceeds u%d container", spec.Width)
		}
		w := r.Width()
		if fs.Width != 0 && fs.Width != w {
			return nil, specErr(fs.Name, &r, "declared width %d does not match range width %d", fs.Width, w)
		}

		switch fs.Kind {
		case Bool:
			if w != 1 {
				return nil, specErr(fs.Name, &r, "bool needs a single bit")
			}
		case Unsigned, Signed:
		case Enum, EnumPartial:
			if fs.Enum == nil {
				return nil, specErr(fs.Name, &r, "%s field without enum", fs.Kind)
			}
			if fs.Enum.Width() != w {
				return nil, specErr(fs.Name, &r, "enum %s is u%d, range is %d bits", fs.Enum.Name(), fs.Enum.Width(), w)
			}
			if fs.Kind == Enum && !fs.Enum.Exhaustive() {
				return nil, specErr(fs.Name, &r, "enum %s is not exhaustive, use a partial enum field", fs.Enum.Name())
			}
			if fs.Kind == EnumPartial && fs.Enum.Exhaustive() {
				return nil, specErr(fs.Name, &r, "enum %s is exhaustive, partial decode not allowed", fs.Enum.Name())
			}
		default:
			return nil, specErr(fs.Name, &r, "unknown kind %s", fs.Kind)
		}

		f := &Field{
			layout: l,
			name:   fs.Name,
			doc:    fs.Doc,
			rng:    r,
			access: fs.Access,
			kind:   fs.Kind,
			width:  w,
			codec:  fs.Enum,
		}

		if rp := fs.Repeat; rp != nil {
			stride := rp.Stride
			if stride == 0 {
				stride = w
			}
			switch {
			case rp.Count < 1:
				return nil, specErr(fs.Name, &r, "repeat count %d < 1", rp.Count)
			case rp.Count > spec.Width:
				return nil, specErr(fs.Name, &r, "repeat count %d exceeds container width", rp.Count)
			case stride < 1:
				return nil, specErr(fs.Name, &r, "stride %d < 1", stride)
			case w > 1 && stride < w:
				return nil, specErr(fs.Name, &r, "stride %d smaller than field width %d", stride, w)
			}
			// High+(Count-1)*stride <= Width-1 without overflowing int
			if rp.Count > 1 && stride > (spec.Width-1-r.High)/(rp.Count-1) {
				return nil, specErr(fs.Name, &r, "instance %d exceeds u%d container", rp.Count-1, spec.Width)
			}
			f.count = rp.Count
			f.stride = stride
		}

		for i := 0; i < f.Count(); i++ {
			ir := f.instance(i)
			f.mask = f.mask.Or(bitrange.Mask(uint(w)).Lsh(uint(ir.Low)))
		}
		if !f.mask.And(l.used).IsZero() {
			for _, pf := range l.fields {
				if !pf.mask.And(f.mask).IsZero() {
					own := f.firstIn(pf.mask)
					return nil, specErr(fs.Name, &own, "overlaps field %s (bits %s)", pf.name, pf.firstIn(f.mask))
				}
			}
		}
		l.used = l.used.Or(f.mask)

		if f.access.Readable() {
			f.get = genGet(f)
		}
		if f.access.Writable() {
			f.set = genSet(f)
		}

		o.log.Printf("  %s: bits %s %s %s count=%d stride=%d", f.name, f.rng, f.access, f.TypeName(), f.count, f.stride)

		l.fields = append(l.fields, f)
		l.byName[f.name] = f
	}

	return l, nil
}

func MustCompile(spec Spec, opts ...Option) *Layout {
	l, err := Compile(spec, opts...)
	if err != nil {
		panic(err)
	}
	return l
}

func genGet(f *Field) getFn {
	w := uint(f.width)
	switch f.kind {
	case Bool:
		return func(raw uint128.Uint128, low uint) (Value, error) {
			return Value{Kind: Bool, Actual: bitint.FromBits(1, false, bitrange.Extract(raw, low, low))}, nil
		}
	case Unsigned, Signed:
		signed := f.kind == Signed
		return func(raw uint128.Uint128, low uint) (Value, error) {
			bits := bitrange.Extract(raw, low, low+w-1)
			return Value{Kind: f.kind, Actual: bitint.FromBits(int(w), signed, bits)}, nil
		}
	case Enum:
		return func(raw uint128.Uint128, low uint) (Value, error) {
			bits := bitrange.Extract(raw, low, low+w-1)
			v := f.codec.Total(bits)
			return Value{Kind: Enum, Actual: bitint.FromBits(int(w), false, bits), Sym: v.Name}, nil
		}
	case EnumPartial:
		return func(raw uint128.Uint128, low uint) (Value, error) {
			bits := bitrange.Extract(raw, low, low+w-1)
			v := Value{Kind: EnumPartial, Actual: bitint.FromBits(int(w), false, bits)}
			ev, err := f.codec.Decode(bits)
			if err != nil {
				return v, err
			}
			v.Sym = ev.Name
			return v, nil
		}
	}
	panic("unreachable")
}

func genSet(f *Field) setFn {
	w := uint(f.width)
	insert := func(raw uint128.Uint128, low uint, bits uint128.Uint128) uint128.Uint128 {
		return bitrange.Insert(raw, low, low+w-1, bits)
	}
	typeErr := func(v any) error {
		return fmt.Errorf("%w: %T for %s field", ErrType, v, f.TypeName())
	}

	switch f.kind {
	case Bool:
		return func(raw uint128.Uint128, low uint, v any) (uint128.Uint128, error) {
			if fv, ok := v.(Value); ok {
				v = fv.Bool()
			}
			b, ok := v.(bool)
			if !ok {
				return raw, typeErr(v)
			}
			bits := uint128.Zero
			if b {
				bits = uint128.From64(1)
			}
			return insert(raw, low, bits), nil
		}
	case Unsigned, Signed:
		return func(raw uint128.Uint128, low uint, v any) (uint128.Uint128, error) {
			if fv, ok := v.(Value); ok {
				v = fv.Actual
			}
			bits, ok := toBits(v)
			if !ok {
				return raw, typeErr(v)
			}
			return insert(raw, low, bits), nil
		}
	case Enum, EnumPartial:
		return func(raw uint128.Uint128, low uint, v any) (uint128.Uint128, error) {
			var ev enum.Variant
			switch v := v.(type) {
			case enum.Variant:
				ev = v
			case Value:
				ev = v.Variant()
			case string:
				var ok bool
				if ev, ok = f.codec.Variant(v); !ok {
					return raw, fmt.Errorf("enum %s: %w: %s", f.codec.Name(), enum.ErrVariant, v)
				}
			default:
				return raw, typeErr(v)
			}
			bits, err := f.codec.Encode(ev)
			if err != nil {
				return raw, err
			}
			return insert(raw, low, bits), nil
		}
	}
	panic("unreachable")
}

func (f *Field) Name() string { return f.name }
func (f *Field) Doc() string { return f.doc }
func (f *Field) Range() Range { return f.rng }
func (f *Field) Access() Access { return f.access }
func (f *Field) Kind() Kind { return f.kind }
func (f *Field) Width() int { return f.width }
func (f *Field) Enum() *enum.Codec { return f.codec }
func (f *Field) Repeated() bool { return f.count > 0 }
func (f *Field) Stride() int { return f.stride }
func (f *Field) Readable() bool { return f.get != nil }
func (f *Field) Writable() bool { return f.set != nil }
func (f *Field) Mask() uint128.Uint128 { return f.mask }

// Count is the number of instances, 1 for plain fields.
func (f *Field) Count() int {
	if f.count == 0 {
		return 1
	}
	return f.count
}

func (f *Field) instance(i int) Range { return f.rng.Shift(i * f.stride) }

// firstIn returns the first instance with bits in mask.
func (f *Field) firstIn(mask uint128.Uint128) Range {
	m := bitrange.Mask(uint(f.width))
	for i := 0; i < f.Count(); i++ {
		ir := f.instance(i)
		if !m.Lsh(uint(ir.Low)).And(mask).IsZero() {
			return ir
		}
	}
	return f.rng
}

// Instance returns the bit range of instance i.
func (f *Field) Instance(i int) (Range, error) {
	if err := f.checkIndex(i); err != nil {
		return Range{}, err
	}
	return f.instance(i), nil
}

func (f *Field) TypeName() string {
	switch f.kind {
	case Bool:
		return "bool"
	case Unsigned:
		return fmt.Sprintf("u%d", f.width)
	case Signed:
		return fmt.Sprintf("i%d", f.width)
	case Enum:
		return f.codec.Name()
	case EnumPartial:
		return f.codec.Name() + "?"
	}
	return f.kind.String()
}

func (f *Field) fieldErr(i int, err error) error {
	return &FieldError{Layout: f.layout.name, Field: f.name, Index: i, Err: err}
}

func (f *Field) checkIndex(i int) error {
	if !f.Repeated() {
		return f.fieldErr(i, ErrNotRepeated)
	}
	if i < 0 || i >= f.count {
		return f.fieldErr(i, fmt.Errorf("%w: %d not in 0..%d", ErrIndexOutOfRange, i, f.count))
	}
	return nil
}

func (f *Field) read(c Container, i int) (Value, error) {
	if f.get == nil {
		return Value{}, f.fieldErr(i, ErrNotReadable)
	}
	low := f.rng.Low
	if i >= 0 {
		low = f.instance(i).Low
	}
	v, err := f.get(c.raw, uint(low))
	if err != nil {
		return v, f.fieldErr(i, err)
	}
	return v, nil
}

func (f *Field) write(c Container, i int, v any) (Container, error) {
	if f.set == nil {
		return c, f.fieldErr(i, ErrNotWritable)
	}
	low := f.rng.Low
	if i >= 0 {
		low = f.instance(i).Low
	}
	raw, err := f.set(c.raw, uint(low), v)
	if err != nil {
		return c, f.fieldErr(i, err)
	}
	return Container{layout: c.layout, raw: raw}, nil
}

// Get reads a plain field. For partial enums with no matching variant the
// returned Value still has Actual set.
func (f *Field) Get(c Container) (Value, error) {
	if f.Repeated() {
		return Value{}, f.fieldErr(-1, ErrRepeated)
	}
	return f.read(c, -1)
}

func (f *Field) GetAt(c Container, i int) (Value, error) {
	if err := f.checkIndex(i); err != nil {
		return Value{}, err
	}
	return f.read(c, i)
}

// With returns c with the field set to v. Integers are truncated to the field
// width.
func (f *Field) With(c Container, v any) (Container, error) {
	if f.Repeated() {
		return c, f.fieldErr(-1, ErrRepeated)
	}
	return f.write(c, -1, v)
}

func (f *Field) WithAt(c Container, i int, v any) (Container, error) {
	if err := f.checkIndex(i); err != nil {
		return c, err
	}
	return f.write(c, i, v)
}

func (l *Layout) Name() string { return l.name }
func (l *Layout) Doc() string { return l.doc }
func (l *Layout) Width() int { return l.width }
func (l *Layout) Default() uint128.Uint128 { return l.def }
func (l *Layout) Fields() []*Field { return append([]*Field(nil), l.fields...) }

// Reserved is the mask of bits no field covers.
func (l *Layout) Reserved() uint128.Uint128 {
	return bitrange.Mask(uint(l.width)).And(l.used.Xor(uint128.Max))
}

func (l *Layout) Field(name string) (*Field, bool) {
	f, ok := l.byName[name]
	return f, ok
}

// Enums returns the distinct enum codecs used by fields in declaration order.
func (l *Layout) Enums() []*enum.Codec {
	var cs []*enum.Codec
	seen := map[*enum.Codec]bool{}
	for _, f := range l.fields {
		if f.codec != nil && !seen[f.codec] {
			seen[f.codec] = true
			cs = append(cs, f.codec)
		}
	}
	return cs
}
