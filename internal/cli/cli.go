// Package cli implements the bitlayout command.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/wader/bitlayout/internal/config"
	"golang.org/x/exp/slices"
	"golang.org/x/term"

	// register built-in formats
	_ "github.com/wader/bitlayout/format/all"
)

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	schemaPath string
	formatName string
	output     string
	verbose    bool

	cfg config.Config
	log *log.Logger
}

func newRootCmd(stdin io.Reader, stdout io.Writer, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "bitlayout",
		Short: "Decode, encode and document bit-field registers",
		Long: `bitlayout compiles bit layout schemas (YAML, TOML or JSON) and reads and
writes fields of raw register values.

Example: bitlayout -f ipv4_word0 decode 0x45000054
This will print all fields of the first IPv4 header word.`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup() },
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/bitlayout/config.toml)")
	pf.StringVarP(&a.schemaPath, "schema", "s", "", "schema file (.yml, .yaml, .toml or .json)")
	pf.StringVarP(&a.formatName, "format", "f", "", "built-in format name, see formats")
	pf.StringVarP(&a.output, "output", "o", "", "output format: table, json or yaml")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log schema compilation to stderr")

	rootCmd.AddCommand(
		a.checkCmd(),
		a.decodeCmd(),
		a.setCmd(),
		a.queryCmd(),
		a.docCmd(),
		a.genCmd(),
		a.formatsCmd(),
		a.replCmd(),
	)

	return rootCmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.output == "" {
		a.output = cfg.Output
	}
	if !slices.Contains(config.Outputs, a.output) {
		return fmt.Errorf("output %q is not one of table, json, yaml", a.output)
	}
	if a.formatName == "" {
		a.formatName = cfg.Format
	}
	w := io.Discard
	if a.verbose {
		w = a.stderr
	}
	a.log = log.New(w, "bitlayout: ", 0)
	return nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) color() bool {
	switch a.cfg.Color {
	case "always":
		return true
	case "never":
		return false
	}
	return isTerminal(a.stdout) && os.Getenv("NO_COLOR") == ""
}

func Execute() {
	err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute()
	if err != nil {
		os.Exit(1)
	}
}
