package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/wader/bitlayout/format"
	"github.com/wader/bitlayout/pkg/doc"
	"github.com/wader/bitlayout/pkg/gen"
	"github.com/wader/bitlayout/pkg/layout"
	"github.com/wader/bitlayout/pkg/query"
)

// container loads the schema and parses raw, the layout default if empty.
func (a *app) container(raw string) (layout.Container, error) {
	src, err := a.load()
	if err != nil {
		return layout.Container{}, err
	}
	if raw == "" {
		return src.layout.New(), nil
	}
	return src.layout.Parse(raw)
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compile schema and report errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.load()
			if err != nil {
				return err
			}
			l := src.layout
			fmt.Fprintf(a.stdout, "%s: ok, u%d, %d fields, reserved %s\n",
				l.Name(), l.Width(), len(l.Fields()), l.Truncate(l.Reserved()).Hex())
			return nil
		},
	}
}

func (a *app) decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [RAW]",
		Short: "Print all readable fields of a raw value",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) > 0 {
				raw = args[0]
			}
			c, err := a.container(raw)
			if err != nil {
				return err
			}
			return a.printContainer(a.stdout, c)
		},
	}
}

func (a *app) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set RAW name[index]=value...",
		Short: "Set fields and print the new raw value",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.container(args[0])
			if err != nil {
				return err
			}
			for _, s := range args[1:] {
				if c, err = apply(c, s); err != nil {
					return err
				}
			}
			if a.output == "table" {
				fmt.Fprintln(a.stdout, c.Hex())
				return nil
			}
			return a.printContainer(a.stdout, c)
		},
	}
}

func printJSONLines(w io.Writer, vs []any) error {
	e := json.NewEncoder(w)
	for _, v := range vs {
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query RAW EXPR",
		Short: "Run a jq expression on the decoded fields",
		Long: `Run a jq expression on the decoded fields. $raw is the raw value and
$layout the layout name.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.container(args[0])
			if err != nil {
				return err
			}
			vs, err := query.Run(c, args[1])
			if err != nil {
				return err
			}
			return printJSONLines(a.stdout, vs)
		},
	}
}

func (a *app) docCmd() *cobra.Command {
	var asHTML bool
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Render schema documentation as markdown or HTML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.load()
			if err != nil {
				return err
			}
			b := doc.Markdown(src.layout)
			if asHTML {
				b = doc.HTML(src.layout)
			}
			_, err = a.stdout.Write(b)
			return err
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "render HTML")
	return cmd
}

func (a *app) genCmd() *cobra.Command {
	var opts gen.Options
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate typed Go accessors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.load()
			if err != nil {
				return err
			}
			if opts.Package == "" {
				opts.Package = strings.ToLower(gen.GoName(src.layout.Name()))
			}
			b, err := gen.Generate(src.layout, src.yaml, opts)
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(b)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Package, "package", "", "package name (default layout name)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "type name (default layout name in CamelCase)")
	return cmd
}

func (a *app) formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List built-in formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			for _, name := range format.Names() {
				s, err := format.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\tu%d\t%d fields\t%s\n", name, s.Width, len(s.Fields), s.Meta.Title)
			}
			return tw.Flush()
		},
	}
}
