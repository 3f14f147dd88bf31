// Package gen generates typed Go accessors for a layout.
//
// The generated type wraps layout.Container and embeds the schema source, so
// the output only depends on this module at runtime.
package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/wader/bitlayout/pkg/layout"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Options struct {
	Package string
	// Type defaults to the layout name in CamelCase
	Type string
}

// GoName converts snake, kebab or dotted names to CamelCase.
func GoName(s string) string {
	title := cases.Title(language.Und, cases.NoLower)
	var sb strings.Builder
	for _, p := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		sb.WriteString(title.String(p))
	}
	n := sb.String()
	if n == "" || unicode.IsDigit(rune(n[0])) {
		n = "X" + n
	}
	return n
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func goString(s string) string {
	if strings.Contains(s, "`") {
		return strconv.Quote(s)
	}
	return "`" + s + "`"
}

func comment(s string) []string {
	var ls []string
	for _, l := range strings.Split(strings.TrimSpace(s), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			ls = append(ls, l)
		}
	}
	return ls
}

// nativeType is the smallest Go integer type holding w bits.
func nativeType(signed bool, w int) string {
	n := 8
	for n < w {
		n *= 2
	}
	if signed {
		return fmt.Sprintf("int%d", n)
	}
	return fmt.Sprintf("uint%d", n)
}

type method struct {
	Doc  []string
	Decl string
	Body string
}

type constant struct {
	Name  string
	Value string
}

type data struct {
	Package string
	Type    string
	Var     string
	Source  string
	Doc     []string
	Imports []string
	Consts  []constant
	Methods []method
}

var fileTemplate = template.Must(template.New("file").Parse(`// Code generated by bitlayout gen. DO NOT EDIT.

package {{.Package}}

import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)

const {{.Var}}Schema = {{.Source}}

var {{.Var}}Layout = schema.MustCompileYAML([]byte({{.Var}}Schema))

{{range .Doc}}// {{.}}
{{end -}}
type {{.Type}} struct {
	c layout.Container
}

// New{{.Type}} returns the default value.
func New{{.Type}}() {{.Type}} { return {{.Type}}{c: {{.Var}}Layout.New()} }

// {{.Type}}FromRaw fails if v has bits above the container width.
func {{.Type}}FromRaw(v uint128.Uint128) ({{.Type}}, error) {
	c, err := {{.Var}}Layout.NewWithRawValue(v)
	return {{.Type}}{c: c}, err
}

func (r {{.Type}}) RawValue() uint128.Uint128 { return r.c.RawValue() }
func (r {{.Type}}) Container() layout.Container { return r.c }
func (r {{.Type}}) String() string { return r.c.String() }
{{if .Consts}}
const (
{{- range .Consts}}
	{{.Name}} = {{.Value}}
{{- end}}
)
{{end}}
{{- range .Methods}}
{{range .Doc}}// {{.}}
{{end -}}
func (r {{$.Type}}) {{.Decl}} {
	{{.Body}}
}
{{end -}}
`))

func accessors(typ string, f *layout.Field) []method {
	var ms []method
	name := GoName(f.Name())
	key := strconv.Quote(f.Name())
	get, with, idxParam, idxArg := "MustGet", "MustWith", "", key
	if f.Repeated() {
		get, with, idxParam, idxArg = "MustGetAt", "MustWithAt", "i int", key+", i"
	}

	var ret, expr, param string
	fallible := false
	switch f.Kind() {
	case layout.Bool:
		ret, expr = "bool", ".Bool()"
	case layout.Unsigned, layout.Signed:
		signed := f.Kind() == layout.Signed
		switch {
		case f.Width() > 64:
			ret, expr = "bitint.Int", ".Int()"
		case signed:
			ret, expr = nativeType(true, f.Width()), ".Int64()"
		default:
			ret, expr = nativeType(false, f.Width()), ".Uint64()"
		}
	case layout.Enum, layout.EnumPartial:
		ret, expr = "string", ".Sym"
		fallible = true
	}
	param = ret

	sep := ""
	if idxParam != "" {
		sep = ", "
	}

	if f.Readable() {
		m := method{Doc: comment(f.Doc())}
		switch {
		case f.Kind() == layout.EnumPartial:
			m.Decl = fmt.Sprintf("%s(%s) (%s, error)", name, idxParam, ret)
			m.Body = fmt.Sprintf("v, err := r.c.%s(%s)\n\treturn v.Sym, err", strings.TrimPrefix(get, "Must"), idxArg)
		case ret == "uint64" || ret == "int64" || ret == "bool" || ret == "string" || ret == "bitint.Int":
			m.Decl = fmt.Sprintf("%s(%s) %s", name, idxParam, ret)
			m.Body = fmt.Sprintf("return r.c.%s(%s)%s", get, idxArg, expr)
		default:
			m.Decl = fmt.Sprintf("%s(%s) %s", name, idxParam, ret)
			m.Body = fmt.Sprintf("return %s(r.c.%s(%s)%s)", ret, get, idxArg, expr)
		}
		ms = append(ms, m)
	}

	if f.Writable() {
		m := method{}
		if fallible {
			m.Decl = fmt.Sprintf("With%s(%s%sv %s) (%s, error)", name, idxParam, sep, param, typ)
			m.Body = fmt.Sprintf("c, err := r.c.%s(%s, v)\n\treturn %s{c: c}, err", strings.TrimPrefix(with, "Must"), idxArg, typ)
		} else {
			m.Decl = fmt.Sprintf("With%s(%s%sv %s) %s", name, idxParam, sep, param, typ)
			m.Body = fmt.Sprintf("return %s{c: r.c.%s(%s, v)}", typ, with, idxArg)
		}
		ms = append(ms, m)
	}

	if f.Repeated() {
		ms = append(ms, method{
			Decl: fmt.Sprintf("%sLen() int", name),
			Body: fmt.Sprintf("return %d", f.Count()),
		})
	}

	return ms
}

// Generate returns gofmt'ed source for l. src is the schema document l was
// compiled from and is embedded in the output.
func Generate(l *layout.Layout, src []byte, opts Options) ([]byte, error) {
	if opts.Package == "" {
		return nil, fmt.Errorf("package name required")
	}
	typ := opts.Type
	if typ == "" {
		typ = GoName(l.Name())
	}

	d := data{
		Package: opts.Package,
		Type:    typ,
		Var:     lowerFirst(typ),
		Source:  goString(string(src)),
		Doc:     comment(l.Doc()),
		Imports: []string{
			"github.com/wader/bitlayout/pkg/layout",
			"github.com/wader/bitlayout/pkg/schema",
			"lukechampine.com/uint128",
		},
	}

	wide := false
	seen := map[string]string{"RawValue": "", "Container": "", "String": ""}
	for _, f := range l.Fields() {
		if f.Width() > 64 && !f.Kind().IsEnum() {
			wide = true
		}
		for _, m := range accessors(typ, f) {
			mn, _, _ := strings.Cut(m.Decl, "(")
			if other, ok := seen[mn]; ok {
				return nil, fmt.Errorf("field %s: method %s already used by %q", f.Name(), mn, other)
			}
			seen[mn] = f.Name()
			d.Methods = append(d.Methods, m)
		}
	}
	if wide {
		d.Imports = append([]string{"github.com/wader/bitlayout/pkg/bitint"}, d.Imports...)
	}

	for _, e := range l.Enums() {
		for _, v := range e.Variants() {
			d.Consts = append(d.Consts, constant{
				Name:  GoName(e.Name()) + GoName(v.Name),
				Value: strconv.Quote(v.Name),
			})
		}
	}

	b := &bytes.Buffer{}
	if err := fileTemplate.Execute(b, d); err != nil {
		return nil, err
	}
	out, err := format.Source(b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w\n%s", err, b.String())
	}
	return out, nil
}
