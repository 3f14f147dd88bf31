package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"
	"github.com/wader/bitlayout/pkg/layout"
	"github.com/wader/bitlayout/pkg/query"
)

const replHelp = `get [name[index]...]        print fields, all if none given
set name[index]=value...    set fields
raw [value]                 print or replace the raw value
show                        print all fields
query expr                  run a jq expression
reset                       back to the layout default
help                        this help
quit                        exit
`

type session struct {
	a *app
	c layout.Container
	w io.Writer
}

func (s *session) get(names []string) error {
	if len(names) == 0 {
		return s.a.printTable(s.w, s.c)
	}
	for _, n := range names {
		as, err := parseAssignment(n + "=")
		if err != nil {
			return err
		}
		var v layout.Value
		if as.index >= 0 {
			v, err = s.c.GetAt(as.name, as.index)
		} else {
			v, err = s.c.Get(as.name)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(s.w, "%s = %s (%s)\n", n, v, v.Actual.Hex())
	}
	return nil
}

// exec runs one command line, quit is true on quit or exit.
func (s *session) exec(line string) (quit bool, err error) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch cmd {
	case "":
	case "get":
		return false, s.get(args)
	case "show":
		return false, s.a.printTable(s.w, s.c)
	case "set":
		if len(args) == 0 {
			return false, errors.New("set needs name=value")
		}
		c := s.c
		for _, arg := range args {
			if c, err = apply(c, arg); err != nil {
				return false, err
			}
		}
		s.c = c
		fmt.Fprintln(s.w, s.c.Hex())
	case "raw":
		if len(args) > 0 {
			c, err := s.c.Layout().Parse(args[0])
			if err != nil {
				return false, err
			}
			s.c = c
		}
		fmt.Fprintln(s.w, s.c.Hex())
	case "reset":
		s.c = s.c.Layout().New()
		fmt.Fprintln(s.w, s.c.Hex())
	case "query":
		vs, err := query.Run(s.c, rest)
		if err != nil {
			return false, err
		}
		return false, printJSONLines(s.w, vs)
	case "help", "?":
		fmt.Fprint(s.w, replHelp)
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
	return false, nil
}

// scan runs commands from a non-interactive reader.
func (s *session) scan(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		quit, err := s.exec(sc.Text())
		if err != nil {
			fmt.Fprintf(s.a.stderr, "error: %s\n", err)
		}
		if quit {
			return nil
		}
	}
	return sc.Err()
}

func (s *session) readline() error {
	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:      s.a.cfg.Prompt,
		HistoryFile: s.a.cfg.History(),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		quit, err := s.exec(line)
		if err != nil {
			fmt.Fprintf(s.a.stderr, "error: %s\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (a *app) replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl [RAW]",
		Short: "Interactively read and write fields",
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
			s := &session{a: a, c: c, w: a.stdout}
			if isTerminal(a.stdin) && isTerminal(a.stdout) {
				return s.readline()
			}
			return s.scan(a.stdin)
		},
	}
}
