// Package doc renders layout documentation as markdown and HTML.
package doc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/wader/bitlayout/pkg/bitint"
	"github.com/wader/bitlayout/pkg/layout"
)

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

func repeat(f *layout.Field) string {
	if !f.Repeated() {
		return ""
	}
	return fmt.Sprintf("%d, stride %d", f.Count(), f.Stride())
}

// Markdown returns a field table followed by one table per enum.
func Markdown(l *layout.Layout) []byte {
	b := &bytes.Buffer{}

	fmt.Fprintf(b, "# %s\n\n", l.Name())
	if d := strings.TrimSpace(l.Doc()); d != "" {
		fmt.Fprintf(b, "%s\n\n", d)
	}
	fmt.Fprintf(b, "Width %d bits, default %s.\n\n", l.Width(), bitint.FromBits(l.Width(), false, l.Default()).Hex())

	fmt.Fprintln(b, "|Field|Bits|Access|Type|Repeat|Description|")
	fmt.Fprintln(b, "|-|-|-|-|-|-|")
	for _, f := range l.Fields() {
		fmt.Fprintf(b, "|%s|%s|%s|%s|%s|%s|\n", f.Name(), f.Range(), f.Access(), f.TypeName(), repeat(f), cell(f.Doc()))
	}
	if r := l.Reserved(); !r.IsZero() {
		fmt.Fprintf(b, "\nReserved bits mask %s.\n", bitint.FromBits(l.Width(), false, r).Hex())
	}

	for _, e := range l.Enums() {
		kind := "partial"
		if e.Exhaustive() {
			kind = "exhaustive"
		}
		fmt.Fprintf(b, "\n## %s\n\n", e.Name())
		fmt.Fprintf(b, "u%d, %s.\n\n", e.Width(), kind)
		if d := strings.TrimSpace(e.Doc()); d != "" {
			fmt.Fprintf(b, "%s\n\n", d)
		}
		fmt.Fprintln(b, "|Value|Name|Description|")
		fmt.Fprintln(b, "|-|-|-|")
		for _, v := range e.Variants() {
			fmt.Fprintf(b, "|%s|%s|%s|\n", v.Value, v.Name, cell(v.Doc))
		}
	}

	return b.Bytes()
}

func HTML(l *layout.Layout) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.CompletePage, Title: l.Name()})
	return markdown.ToHTML(Markdown(l), p, r)
}
