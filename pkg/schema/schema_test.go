package schema_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/wader/bitlayout/pkg/enum"
	"github.com/wader/bitlayout/pkg/layout"
	"github.com/wader/bitlayout/pkg/schema"
	"lukechampine.com/uint128"
)

const uartYAML = `
meta:
  id: uart_ctrl
  title: UART control register
  doc: Example register.
width: 32
default: RESET
consts:
  RESET: 0x0BAD_CAFE
enums:
  parity:
    width: 2
    exhaustive: true
    doc: Parity mode.
    values:
      0: none
      1: {id: odd, doc: odd parity}
      2: even
      3: mark
  speed:
    width: 3
    values:
      0b001: slow
      0b100: fast
fields:
  - id: enable
    bit: 0
  - id: parity
    bits: 1..=2
    type: parity
  - id: speed
    bits: 3..6
    type: speed?
  - id: baudrate
    bits: 8..=15
    type: u8
    access: r
  - id: offset
    bits: 16..=23
    type: i8
    access: w
  - id: flags
    bits: 24
    type: bool
    repeat: {count: 4, stride: 2}
  - id: spare
    bits: 6..=6
    repeat: 2
`

func TestParseYAML(t *testing.T) {
	l, err := schema.CompileYAML([]byte(uartYAML))
	if err != nil {
		t.Fatal(err)
	}
	if l.Name() != "uart_ctrl" || l.Width() != 32 {
		t.Fatalf("got %s u%d", l.Name(), l.Width())
	}
	if !l.Default().Equals(uint128.From64(0x0BADCAFE)) {
		t.Fatalf("default %s", l.Default())
	}
	if !strings.HasPrefix(l.Doc(), "UART control register") {
		t.Fatalf("doc %q", l.Doc())
	}

	testCases := []struct {
		name   string
		typ    string
		bits   string
		access layout.Access
		count  int
	}{
		{"enable", "bool", "0", layout.ReadWrite, 1},
		{"parity", "parity", "1..=2", layout.ReadWrite, 1},
		{"speed", "speed?", "3..=5", layout.ReadWrite, 1},
		{"baudrate", "u8", "8..=15", layout.ReadOnly, 1},
		{"offset", "i8", "16..=23", layout.WriteOnly, 1},
		{"flags", "bool", "24", layout.ReadWrite, 4},
		{"spare", "bool", "6", layout.ReadWrite, 2},
	}
	fields := l.Fields()
	if len(fields) != len(testCases) {
		t.Fatalf("%d fields", len(fields))
	}
	for i, tc := range testCases {
		f := fields[i]
		if f.Name() != tc.name || f.TypeName() != tc.typ || f.Range().String() != tc.bits || f.Access() != tc.access || f.Count() != tc.count {
			t.Errorf("field %d: got %s %s %s %s %d", i, f.Name(), f.TypeName(), f.Range(), f.Access(), f.Count())
		}
	}

	parity, _ := l.Field("parity")
	vs := parity.Enum().Variants()
	if len(vs) != 4 || vs[1].Name != "odd" || vs[1].Doc != "odd parity" {
		t.Fatalf("variants %v", vs)
	}
	speed, _ := l.Field("speed")
	if speed.Enum().Exhaustive() {
		t.Fatal("speed should not be exhaustive")
	}

	c := l.New().MustWith("speed", "fast").MustWith("parity", "even")
	if got := c.MustGet("speed").Sym; got != "fast" {
		t.Fatalf("speed %s", got)
	}
	if got := c.MustGet("parity").Sym; got != "even" {
		t.Fatalf("parity %s", got)
	}
}

const uartTOML = `
width = 32
default = "RESET"

[meta]
id = "uart_ctrl"

[consts]
RESET = 0x0BADCAFE

[enums.parity]
width = 2
exhaustive = true

[enums.parity.values]
0 = "none"
1 = { id = "odd", doc = "odd parity" }
2 = "even"
3 = "mark"

[[fields]]
id = "enable"
bit = 0

[[fields]]
id = "parity"
bits = "1..=2"
type = "parity"

[[fields]]
id = "flags"
bits = 24
repeat = 4
`

func TestParseTOML(t *testing.T) {
	s, err := schema.ParseTOML([]byte(uartTOML))
	if err != nil {
		t.Fatal(err)
	}
	l, err := s.Compile()
	if err != nil {
		t.Fatal(err)
	}
	if l.New().Uint64() != 0x0BADCAFE {
		t.Fatalf("default %s", l.New())
	}
	parity, ok := l.Field("parity")
	if !ok || !parity.Enum().Exhaustive() {
		t.Fatal("parity enum missing")
	}
	if v, _ := parity.Enum().Variant("odd"); v.Doc != "odd parity" {
		t.Fatalf("odd %v", v)
	}
	flags, _ := l.Field("flags")
	if flags.Count() != 4 || flags.Kind() != layout.Bool {
		t.Fatalf("flags %s count %d", flags.TypeName(), flags.Count())
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	s, err := schema.ParseTOML([]byte(uartTOML))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.YAML()
	if err != nil {
		t.Fatal(err)
	}
	l, err := schema.CompileYAML(b)
	if err != nil {
		t.Fatalf("%s\n%s", err, b)
	}
	want, err := s.Compile()
	if err != nil {
		t.Fatal(err)
	}
	if l.Name() != want.Name() || !l.Default().Equals(want.Default()) || len(l.Fields()) != len(want.Fields()) {
		t.Fatalf("got %s %s", l.Name(), l.Default())
	}
	for i, f := range l.Fields() {
		w := want.Fields()[i]
		if f.Name() != w.Name() || f.Range() != w.Range() || f.TypeName() != w.TypeName() || f.Count() != w.Count() {
			t.Errorf("field %d: %s %s %s, want %s %s %s", i, f.Name(), f.Range(), f.TypeName(), w.Name(), w.Range(), w.TypeName())
		}
	}
}

func TestFromMapJSON(t *testing.T) {
	var m map[string]any
	err := json.Unmarshal([]byte(`{
		"meta": {"id": "j"},
		"width": 128,
		"default": "0xFFFF_0000_0000_0000_0000_0000_0000_0000",
		"fields": [
			{"id": "top", "bits": "112..=127", "type": "u16"},
			{"id": "low", "bits": "0..=63", "type": "i64"}
		]
	}`), &m)
	if err != nil {
		t.Fatal(err)
	}
	s, err := schema.FromMap(m)
	if err != nil {
		t.Fatal(err)
	}
	l, err := s.Compile()
	if err != nil {
		t.Fatal(err)
	}
	c := l.New()
	if got := c.MustGet("top").Uint64(); got != 0xFFFF {
		t.Fatalf("top %#x", got)
	}

	m["bogus"] = 1
	if _, err := schema.FromMap(m); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestErrors(t *testing.T) {
	testCases := []struct {
		name     string
		yaml     string
		wantLine int
		wantErr  string
	}{
		{
			name: "unknown field key",
			yaml: `
meta: {id: t}
width: 8
fields:
  - id: a
    bits: 0..=3
    typo: u4
`,
			wantLine: 7,
			wantErr:  `unknown key "typo"`,
		},
		{
			name: "overlap reported at field line",
			yaml: `
meta: {id: t}
width: 8
fields:
  - id: a
    bits: 0..=3
  - id: b
    bits: 3..=4
`,
			wantLine: 7,
			wantErr:  "overlaps field a",
		},
		{
			name: "unknown type",
			yaml: `
meta: {id: t}
width: 8
fields:
  - id: a
    bits: 0..=3
    type: nope
`,
			wantLine: 5,
			wantErr:  `unknown type "nope"`,
		},
		{
			name: "exhaustive missing value",
			yaml: `
meta: {id: t}
width: 8
enums:
  e:
    width: 2
    exhaustive: true
    values: {0: a, 1: b, 3: d}
fields:
  - id: a
    bits: 0..=1
    type: e
`,
			wantLine: 6,
			wantErr:  "first missing value 2",
		},
		{
			name: "partial marker required",
			yaml: `
meta: {id: t}
width: 8
enums:
  e:
    width: 2
    values: {0: a}
fields:
  - id: a
    bits: 0..=1
    type: e
`,
			wantLine: 9,
			wantErr:  "not exhaustive",
		},
		{
			name: "width mismatch",
			yaml: `
meta: {id: t}
width: 8
fields:
  - id: a
    bits: 0..=3
    type: u5
`,
			wantLine: 5,
			wantErr:  "declared width 5",
		},
		{
			name: "bit and bits",
			yaml: `
meta: {id: t}
width: 8
fields:
  - id: a
    bit: 1
    bits: 0..=3
`,
			wantLine: 5,
			wantErr:  "both bit and bits",
		},
		{
			name: "unknown constant",
			yaml: `
meta: {id: t}
width: 8
enums:
  e:
    width: 2
    values: {NOPE: a}
`,
			wantLine: 6,
			wantErr:  `unknown constant "NOPE"`,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := schema.CompileYAML([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			var ve schema.ValueError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValueError, got %T %v", err, err)
			}
			if ve.Line != tc.wantLine {
				t.Errorf("line %d want %d (%v)", ve.Line, tc.wantLine, err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("%q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestSpecErrorUnwraps(t *testing.T) {
	_, err := schema.CompileYAML([]byte(`
meta: {id: t}
width: 8
fields:
  - id: a
    bits: 0..=8
`))
	var se *layout.SpecError
	if !errors.As(err, &se) || se.Field != "a" {
		t.Fatalf("expected SpecError for a, got %v", err)
	}
}

func TestEnumShadowsBuiltin(t *testing.T) {
	_, err := schema.CompileYAML([]byte(`
meta: {id: t}
width: 8
enums:
  u2:
    width: 2
    values: {0: a}
`))
	if err == nil || !strings.Contains(err.Error(), "shadows") {
		t.Fatalf("got %v", err)
	}
}

func TestClone(t *testing.T) {
	s, err := schema.ParseYAML([]byte(uartYAML))
	if err != nil {
		t.Fatal(err)
	}
	c := s.Clone()
	c.Fields[0].ID = "changed"
	c.Enums["parity"].Values["0"] = schema.EnumEntry{ID: "changed"}
	if s.Fields[0].ID != "enable" || s.Enums["parity"].Values["0"].ID != "none" {
		t.Fatal("clone shares state")
	}
	if *c.Fields[0].Bit != 0 {
		t.Fatal("bit not copied")
	}
}

func TestNonExhaustiveDecode(t *testing.T) {
	l := schema.MustCompileYAML([]byte(uartYAML))
	c := l.MustFromUint64(0b010 << 3)
	_, err := c.Get("speed")
	var ue *enum.UnmatchedError
	if !errors.As(err, &ue) || ue.Raw.Lo != 0b010 {
		t.Fatalf("got %v", err)
	}
}
