//nolint:tagliatelle
// Package schema reads bit layout definitions from YAML, TOML or generic maps
// and compiles them into layouts.
package schema

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/copystructure"
	"github.com/mitchellh/mapstructure"
	"github.com/wader/bitlayout/pkg/enum"
	"github.com/wader/bitlayout/pkg/layout"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
	"lukechampine.com/uint128"
)

// ValueError is an error at a line of the schema document. Line is 0 for
// documents without positions.
type ValueError struct {
	Line int
	Err  error
}

func (v ValueError) Unwrap() error { return v.Err }

func (v ValueError) Error() string {
	if v.Line == 0 {
		return v.Err.Error()
	}
	return fmt.Sprintf("%d: %s", v.Line, v.Err)
}

func valueErrorf(line int, format string, a ...any) ValueError {
	return ValueError{
		Line: line,
		Err:  fmt.Errorf(format, a...),
	}
}

// meta:
//   id: <name>
//   title: <string>
//   doc: <string>
//
// width: <1..128>
// default: <number> | <const>
//
// consts:
//   <name>: <number>
//
// enums:
//   <name>:
//     width: <bits>
//     exhaustive: <bool>
//     doc: <string>
//     values:
//       <number>: <name>
//       <number>:
//         id: <name>
//         doc: <doc>
//
// fields:
//   - id: <name>
//     bits: <lo>..=<hi> | <lo>..<hi+1> | <n>
//     bit: <n>
//     access: r | w | rw
//     type: bool | u<n> | i<n> | <enum> | <enum>?
//     repeat: <count>
//     repeat:
//       count: <count>
//       stride: <bits>
//     doc: <string>

// Number is an integer literal in Go syntax or the name of a constant. Kept as
// text so values above 64 bits survive decoding.
type Number string

func (n *Number) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return valueErrorf(value.Line, "expected a number or constant name")
	}
	*n = Number(value.Value)
	return nil
}

type Meta struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title,omitempty"`
	Doc   string `yaml:"doc,omitempty"`
}

type EnumEntry struct {
	ID  string `yaml:"id"`
	Doc string `yaml:"doc,omitempty"`
}

func (e *EnumEntry) UnmarshalYAML(value *yaml.Node) error {
	type et EnumEntry
	var ev et

	if value.Kind == yaml.ScalarNode {
		return value.Decode(&e.ID)
	}
	if err := checkKeys(value, "id", "doc"); err != nil {
		return err
	}
	if err := value.Decode(&ev); err != nil {
		return valueErrorf(value.Line, "failed to parse enum entry as string or id/doc")
	}
	(*e) = EnumEntry(ev)
	return nil
}

type Enum struct {
	Width      int                  `yaml:"width"`
	Exhaustive bool                 `yaml:"exhaustive,omitempty"`
	Doc        string               `yaml:"doc,omitempty"`
	Values     map[string]EnumEntry `yaml:"values"`
	Line       int                  `yaml:"-"`
}

func (e *Enum) UnmarshalYAML(value *yaml.Node) error {
	type et Enum
	var ev et

	if err := checkKeys(value, "width", "exhaustive", "doc", "values"); err != nil {
		return err
	}
	if err := value.Decode(&ev); err != nil {
		return err
	}
	(*e) = Enum(ev)
	e.Line = value.Line
	return nil
}

type Repeat struct {
	Count  int `yaml:"count"`
	Stride int `yaml:"stride,omitempty"`
}

func (r *Repeat) UnmarshalYAML(value *yaml.Node) error {
	type rt Repeat
	var rv rt

	if value.Kind == yaml.ScalarNode {
		return value.Decode(&r.Count)
	}
	if err := checkKeys(value, "count", "stride"); err != nil {
		return err
	}
	if err := value.Decode(&rv); err != nil {
		return err
	}
	(*r) = Repeat(rv)
	return nil
}

type Field struct {
	ID     string  `yaml:"id"`
	Bits   string  `yaml:"bits,omitempty"`
	Bit    *int    `yaml:"bit,omitempty"`
	Access string  `yaml:"access,omitempty"`
	Type   string  `yaml:"type,omitempty"`
	Repeat *Repeat `yaml:"repeat,omitempty"`
	Doc    string  `yaml:"doc,omitempty"`
	Line   int     `yaml:"-"`
}

func (f *Field) UnmarshalYAML(value *yaml.Node) error {
	type ft Field
	var fv ft

	if err := checkKeys(value, "id", "bits", "bit", "access", "type", "repeat", "doc"); err != nil {
		return err
	}
	if err := value.Decode(&fv); err != nil {
		return err
	}
	(*f) = Field(fv)
	f.Line = value.Line
	return nil
}

type Schema struct {
	Meta    Meta              `yaml:"meta"`
	Width   int               `yaml:"width"`
	Default Number            `yaml:"default,omitempty"`
	Consts  map[string]Number `yaml:"consts,omitempty"`
	Enums   map[string]*Enum  `yaml:"enums,omitempty"`
	Fields  []*Field          `yaml:"fields"`
}

func checkKeys(n *yaml.Node, known ...string) error {
	if n.Kind != yaml.MappingNode {
		return valueErrorf(n.Line, "expected a mapping")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		if !slices.Contains(known, k.Value) {
			return valueErrorf(k.Line, "unknown key %q, expected one of %s", k.Value, strings.Join(known, ", "))
		}
	}
	return nil
}

// Parse reads a YAML schema.
func Parse(r io.Reader) (*Schema, error) {
	s := &Schema{}
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	if err := d.Decode(s); err != nil {
		return nil, err
	}

	return s, nil
}

func ParseYAML(b []byte) (*Schema, error) {
	return Parse(strings.NewReader(string(b)))
}

// ParseTOML reads a TOML schema. Numbers above int64 have to be strings.
func ParseTOML(b []byte) (*Schema, error) {
	m := map[string]any{}
	if _, err := toml.Decode(string(b), &m); err != nil {
		return nil, err
	}
	return FromMap(m)
}

// FromMap decodes a schema from generic values, as produced by encoding/json or
// a TOML decoder. Unknown keys are errors.
func FromMap(m map[string]any) (*Schema, error) {
	s := &Schema{}
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(entryHook, repeatHook),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "yaml",
		Result:           s,
	})
	if err != nil {
		return nil, err
	}
	if err := d.Decode(m); err != nil {
		return nil, err
	}
	return s, nil
}

var (
	enumEntryType = reflect.TypeOf(EnumEntry{})
	repeatType    = reflect.TypeOf(Repeat{})
)

// entryHook allows the "value: name" shorthand.
func entryHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != enumEntryType || from.Kind() != reflect.String {
		return data, nil
	}
	return map[string]any{"id": data}, nil
}

// repeatHook allows "repeat: count" shorthand.
func repeatHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != repeatType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return map[string]any{"count": data}, nil
	}
	return data, nil
}

// Clone returns a deep copy.
func (s *Schema) Clone() *Schema {
	c, err := copystructure.Copy(s)
	if err != nil {
		panic(err)
	}
	return c.(*Schema)
}

func (s *Schema) Name() string { return s.Meta.ID }

// YAML encodes the schema in the form Parse reads.
func (s *Schema) YAML() ([]byte, error) { return yaml.Marshal(s) }

func parseNumber(s string) (uint128.Uint128, bool, error) {
	b, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
	if !ok {
		return uint128.Zero, false, nil
	}
	if b.Sign() < 0 || b.BitLen() > 128 {
		return uint128.Zero, true, fmt.Errorf("%s does not fit u128", s)
	}
	return uint128.FromBig(b), true, nil
}

type compiler struct {
	s      *Schema
	consts map[string]uint128.Uint128
	enums  map[string]*enum.Codec
}

func (c *compiler) number(line int, n Number) (uint128.Uint128, error) {
	v, ok, err := parseNumber(string(n))
	if err != nil {
		return v, valueErrorf(line, "%w", err)
	}
	if ok {
		return v, nil
	}
	if v, ok := c.consts[string(n)]; ok {
		return v, nil
	}
	return uint128.Zero, valueErrorf(line, "unknown constant %q", string(n))
}

func isIntType(s string) (layout.Kind, int, bool) {
	if len(s) < 2 || (s[0] != 'u' && s[0] != 'i') {
		return 0, 0, false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 1 {
		return 0, 0, false
	}
	if s[0] == 'i' {
		return layout.Signed, n, true
	}
	return layout.Unsigned, n, true
}

func (c *compiler) compileEnums() error {
	names := maps.Keys(c.s.Enums)
	slices.Sort(names)

	for _, name := range names {
		e := c.s.Enums[name]
		if _, _, ok := isIntType(name); ok || name == "bool" {
			return valueErrorf(e.Line, "enum name %s shadows a builtin type", name)
		}

		var vs []enum.Variant
		for ns, ee := range e.Values {
			v, err := c.number(e.Line, Number(ns))
			if err != nil {
				return err
			}
			vs = append(vs, enum.Variant{Name: ee.ID, Value: v, Doc: ee.Doc})
		}
		sort.Slice(vs, func(i, j int) bool { return vs[i].Value.Cmp(vs[j].Value) < 0 })

		ec, err := enum.New(name, e.Width, e.Exhaustive, vs, enum.WithDoc(e.Doc))
		if err != nil {
			return ValueError{Line: e.Line, Err: err}
		}
		c.enums[name] = ec
	}
	return nil
}

func (c *compiler) field(f *Field) (layout.FieldSpec, error) {
	fs := layout.FieldSpec{Name: f.ID, Doc: f.Doc}

	switch {
	case f.Bit != nil && f.Bits != "":
		return fs, valueErrorf(f.Line, "%s: both bit and bits set", f.ID)
	case f.Bit != nil:
		fs.Range = layout.Bit(*f.Bit)
	case f.Bits != "":
		r, err := layout.ParseRange(f.Bits)
		if err != nil {
			return fs, valueErrorf(f.Line, "%s: %w", f.ID, err)
		}
		fs.Range = r
	default:
		return fs, valueErrorf(f.Line, "%s: bit or bits required", f.ID)
	}

	a, err := layout.ParseAccess(f.Access)
	if err != nil {
		return fs, valueErrorf(f.Line, "%s: %w", f.ID, err)
	}
	fs.Access = a

	t := f.Type
	if t == "" {
		t = "bool"
		if !fs.Range.Single() {
			t = fmt.Sprintf("u%d", fs.Range.Width())
		}
	}
	if t == "bool" {
		fs.Kind = layout.Bool
	} else if k, w, ok := isIntType(t); ok {
		fs.Kind = k
		fs.Width = w
	} else {
		name := strings.TrimSuffix(t, "?")
		partial := name != t
		ec, ok := c.enums[name]
		if !ok {
			return fs, valueErrorf(f.Line, "%s: unknown type %q", f.ID, t)
		}
		fs.Kind = layout.Enum
		if partial {
			fs.Kind = layout.EnumPartial
		}
		fs.Enum = ec
	}

	if f.Repeat != nil {
		fs.Repeat = &layout.Repeat{Count: f.Repeat.Count, Stride: f.Repeat.Stride}
	}

	return fs, nil
}

// Spec resolves constants and enums into a layout spec without compiling it.
func (s *Schema) Spec() (layout.Spec, error) {
	c := &compiler{
		s:      s,
		consts: map[string]uint128.Uint128{},
		enums:  map[string]*enum.Codec{},
	}

	if s.Meta.ID == "" {
		return layout.Spec{}, fmt.Errorf("meta.id is required")
	}

	for name, n := range s.Consts {
		v, ok, err := parseNumber(string(n))
		if err != nil {
			return layout.Spec{}, fmt.Errorf("const %s: %w", name, err)
		}
		if !ok {
			return layout.Spec{}, fmt.Errorf("const %s: invalid number %q", name, string(n))
		}
		if _, isNum, _ := parseNumber(name); isNum {
			return layout.Spec{}, fmt.Errorf("const %s: name is a number", name)
		}
		c.consts[name] = v
	}

	if err := c.compileEnums(); err != nil {
		return layout.Spec{}, err
	}

	spec := layout.Spec{
		Name:  s.Meta.ID,
		Doc:   strings.TrimSpace(strings.Join([]string{s.Meta.Title, s.Meta.Doc}, "\n\n")),
		Width: s.Width,
	}
	if s.Default != "" {
		v, err := c.number(0, s.Default)
		if err != nil {
			return layout.Spec{}, fmt.Errorf("default: %w", err)
		}
		spec.Default = v
	}
	for _, f := range s.Fields {
		fs, err := c.field(f)
		if err != nil {
			return layout.Spec{}, err
		}
		spec.Fields = append(spec.Fields, fs)
	}

	return spec, nil
}

// Compile builds the layout. Layout definition errors are *layout.SpecError
// wrapped in a ValueError with the line of the offending field.
func (s *Schema) Compile(opts ...layout.Option) (*layout.Layout, error) {
	spec, err := s.Spec()
	if err != nil {
		return nil, err
	}
	l, err := layout.Compile(spec, opts...)
	if err != nil {
		var se *layout.SpecError
		if errors.As(err, &se) && se.Field != "" {
			for _, f := range s.Fields {
				if f.ID == se.Field {
					return nil, ValueError{Line: f.Line, Err: err}
				}
			}
		}
		return nil, err
	}
	return l, nil
}

func CompileYAML(b []byte, opts ...layout.Option) (*layout.Layout, error) {
	s, err := ParseYAML(b)
	if err != nil {
		return nil, err
	}
	return s.Compile(opts...)
}

func MustCompileYAML(b []byte, opts ...layout.Option) *layout.Layout {
	l, err := CompileYAML(b, opts...)
	if err != nil {
		panic(err)
	}
	return l
}
