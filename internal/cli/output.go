package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/wader/bitlayout/pkg/bitint"
	"github.com/wader/bitlayout/pkg/layout"
	"gopkg.in/yaml.v3"
)

const (
	ansiReset = "\x1b[0m"
	ansiName  = "\x1b[1;34m"
	ansiError = "\x1b[31m"
)

func (a *app) paint(code string, s string) string {
	if !a.color() {
		return s
	}
	return code + s + ansiReset
}

func (a *app) printTable(w io.Writer, c layout.Container) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	// only the first column, painted in every row, and the untabbed last cell
	// may carry escapes
	fmt.Fprintf(tw, "%s\t%s\t\t%s\n", a.paint(ansiName, c.Layout().Name()), "raw", c.Hex())
	for _, fv := range c.Fields() {
		f := fv.Field
		rng := f.Range()
		if fv.Index >= 0 {
			rng, _ = f.Instance(fv.Index)
		}
		value := fv.Value.String()
		if fv.Err != nil {
			value = a.paint(ansiError, fv.Err.Error())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			a.paint(ansiName, fv.Name()), rng, f.TypeName(), fv.Value.Actual.Hex(), value)
	}
	return tw.Flush()
}

type dump struct {
	Layout string         `json:"layout" yaml:"layout"`
	Raw    string         `json:"raw" yaml:"raw"`
	Fields map[string]any `json:"fields" yaml:"fields"`
}

func (a *app) printContainer(w io.Writer, c layout.Container) error {
	d := dump{Layout: c.Layout().Name(), Raw: c.Hex(), Fields: c.Map()}
	switch a.output {
	case "json":
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(d)
	case "yaml":
		e := yaml.NewEncoder(w)
		e.SetIndent(2)
		if err := e.Encode(d); err != nil {
			return err
		}
		return e.Close()
	}
	return a.printTable(w, c)
}

type assignment struct {
	name  string
	index int
	value string
}

// parseAssignment parses name=value or name[index]=value.
func parseAssignment(s string) (assignment, error) {
	lhs, value, ok := strings.Cut(s, "=")
	if !ok || lhs == "" {
		return assignment{}, fmt.Errorf("%q: expected name=value or name[index]=value", s)
	}
	as := assignment{name: lhs, index: -1, value: value}
	if i := strings.IndexByte(lhs, '['); i >= 0 {
		if !strings.HasSuffix(lhs, "]") {
			return assignment{}, fmt.Errorf("%q: missing ]", s)
		}
		n, err := strconv.Atoi(lhs[i+1 : len(lhs)-1])
		if err != nil {
			return assignment{}, fmt.Errorf("%q: bad index: %w", s, err)
		}
		as.name = lhs[:i]
		as.index = n
	}
	return as, nil
}

// fieldValue converts the text form of a value to what the field setter takes.
func fieldValue(f *layout.Field, s string) (any, error) {
	switch f.Kind() {
	case layout.Bool:
		return strconv.ParseBool(s)
	case layout.Unsigned, layout.Signed:
		return bitint.Parse(f.Width(), f.Kind() == layout.Signed, s)
	}
	return s, nil
}

func apply(c layout.Container, s string) (layout.Container, error) {
	as, err := parseAssignment(s)
	if err != nil {
		return c, err
	}
	f, ok := c.Layout().Field(as.name)
	if !ok {
		return c, fmt.Errorf("%s: %w", as.name, layout.ErrUnknownField)
	}
	v, err := fieldValue(f, as.value)
	if err != nil {
		return c, fmt.Errorf("%s: %w", as.name, err)
	}
	if as.index >= 0 {
		return c.WithAt(as.name, as.index, v)
	}
	return c.With(as.name, v)
}
