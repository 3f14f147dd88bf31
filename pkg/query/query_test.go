package query_test

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/wader/bitlayout/pkg/query"
	"github.com/wader/bitlayout/pkg/schema"
)

var testLayout = schema.MustCompileYAML([]byte(`
meta: {id: ctrl}
width: 128
enums:
  mode:
    width: 2
    exhaustive: true
    values: {0: off, 1: slow, 2: fast, 3: turbo}
fields:
  - id: mode
    bits: 0..=1
    type: mode
  - id: flags
    bit: 4
    repeat: 4
  - id: level
    bits: 8..=15
    type: i8
  - id: top
    bits: 120..=127
    type: u8
`))

func TestRun(t *testing.T) {
	c := testLayout.New().
		MustWith("mode", "fast").
		MustWithAt("flags", 1, true).
		MustWithAt("flags", 3, true).
		MustWith("level", -3)

	testCases := []struct {
		expr string
		want string
	}{
		{".mode", "[fast]"},
		{".level", "[-3]"},
		{"[.flags[] | select(.)] | length", "[2]"},
		{"$raw", fmt.Sprintf("[%d]", c.Uint64())},
		{"$layout", "[ctrl]"},
		{".flags[]", "[false true false true]"},
		{"empty", "[]"},
	}
	for _, tc := range testCases {
		vs, err := query.Run(c, tc.expr)
		if err != nil {
			t.Errorf("%s: %v", tc.expr, err)
			continue
		}
		if got := fmt.Sprint(vs); got != tc.want {
			t.Errorf("%s: got %s want %s", tc.expr, got, tc.want)
		}
	}
}

func TestRawAbove64Bits(t *testing.T) {
	c := testLayout.New().MustWith("top", 0x80)
	vs, err := query.Run(c, "$raw")
	if err != nil {
		t.Fatal(err)
	}
	want := new(big.Int).Lsh(big.NewInt(1), 127)
	b, ok := vs[0].(*big.Int)
	if !ok || b.Cmp(want) != 0 {
		t.Fatalf("got %T %v", vs[0], vs[0])
	}
}

func TestErrors(t *testing.T) {
	if _, err := query.Compile(".mode |"); err == nil {
		t.Error("expected parse error")
	}
	if _, err := query.Compile("$nope"); err == nil {
		t.Error("expected compile error for unknown variable")
	}
	if _, err := query.Run(testLayout.New(), `error("boom")`); err == nil {
		t.Error("expected runtime error")
	}
}
