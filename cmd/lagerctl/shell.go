package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	prompt "github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/client"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/handler"
)

func newShellCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell with operation completion",
		Long: `Interactive shell. Each line is an operation followed by key=value
arguments, as for "lagerctl call". Built-in commands: help, tree [id], exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("shell needs a terminal")
			}
			c, err := g.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			sh := &shell{ctx: cmd.Context(), c: c, out: cmd.OutOrStdout()}
			c.OnDisconnect(func(err error) {
				fmt.Fprintf(os.Stderr, "\ndisconnected: %v\n", err)
			})

			fmt.Fprintf(sh.out, "connected to %s, type help for operations\n", g.addr)
			prompt.New(sh.execute, sh.complete,
				prompt.OptionPrefix("lager> "),
				prompt.OptionTitle("lagerctl"),
				prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
					return breakline && isExit(in)
				}),
			).Run()
			return nil
		},
	}
}

type shell struct {
	ctx context.Context
	c   *client.Client
	out io.Writer
}

func isExit(line string) bool {
	switch strings.TrimSpace(line) {
	case "exit", "quit":
		return true
	}
	return false
}

func (s *shell) execute(line string) {
	words, err := splitWords(line)
	if err != nil {
		fmt.Fprintln(s.out, "error:", err)
		return
	}
	if len(words) == 0 || isExit(line) {
		return
	}

	if !s.c.IsConnected() {
		if err := s.c.Reconnect(s.ctx); err != nil {
			fmt.Fprintln(s.out, "error:", err)
			return
		}
	}

	switch words[0] {
	case "help":
		printOps(s.out)
		return
	case "tree":
		op, args := "storage.list", map[string]any{}
		if len(words) > 1 {
			op, args["id"] = "storage.get", words[1]
		}
		res, err := s.c.Call(s.ctx, op, args)
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
			return
		}
		printTree(s.out, res)
		return
	}

	args, err := parseArgs(words[1:])
	if err != nil {
		fmt.Fprintln(s.out, "error:", err)
		return
	}
	res, err := s.c.Call(s.ctx, words[0], args)
	if err != nil {
		fmt.Fprintln(s.out, "error:", err)
		return
	}
	printJSON(s.out, res)
}

func (s *shell) complete(d prompt.Document) []prompt.Suggest {
	return suggest(d.TextBeforeCursor(), d.GetWordBeforeCursor())
}

// suggest completes operation names in the first word and argument keys
// of that operation afterwards.
func suggest(before, word string) []prompt.Suggest {
	fields := strings.Fields(before)
	ops := handler.Operations()

	if len(fields) == 0 || (len(fields) == 1 && !strings.HasSuffix(before, " ")) {
		sugg := []prompt.Suggest{
			{Text: "help", Description: "list operations"},
			{Text: "tree", Description: "print the storage hierarchy"},
			{Text: "exit", Description: "leave the shell"},
		}
		for _, op := range ops {
			sugg = append(sugg, prompt.Suggest{Text: op.Name, Description: op.Summary})
		}
		return prompt.FilterHasPrefix(sugg, word, true)
	}
	if strings.Contains(word, "=") {
		return nil
	}

	var sugg []prompt.Suggest
	for _, op := range ops {
		if op.Name != fields[0] {
			continue
		}
		for _, a := range op.Args {
			key := strings.TrimSuffix(a, "?")
			if strings.Contains(before, " "+key+"=") {
				continue
			}
			desc := "required"
			if strings.HasSuffix(a, "?") {
				desc = "optional"
			}
			sugg = append(sugg, prompt.Suggest{Text: key + "=", Description: desc})
		}
	}
	return prompt.FilterHasPrefix(sugg, word, true)
}

// splitWords splits a shell line on spaces. Single or double quotes group
// words; quotes inside a word are removed (name="Hall A").
func splitWords(line string) ([]string, error) {
	var (
		words []string
		cur   strings.Builder
		quote rune
		inTok bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inTok = true
		case unicode.IsSpace(r):
			if inTok {
				words = append(words, cur.String())
				cur.Reset()
				inTok = false
			}
		default:
			cur.WriteRune(r)
			inTok = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inTok {
		words = append(words, cur.String())
	}
	return words, nil
}
