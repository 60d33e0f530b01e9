package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/handler"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/wire"
)

func newOpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List server operations",
		Run: func(cmd *cobra.Command, args []string) {
			printOps(cmd.OutOrStdout())
		},
	}
}

func printOps(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, op := range handler.Operations() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", op.Name, strings.Join(op.Args, " "), op.Summary)
	}
	tw.Flush()
}

func newCallCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "call OP [key=value ...]",
		Short: "Run one operation and print its JSON result",
		Example: `  lagerctl call storage.create name="Hall A"
  lagerctl call space.create name=Shelf storage_id=<id> size=12
  lagerctl call product.create name=Glue space_id=<id> attributes='{"brand":"Acme"}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callArgs, err := parseArgs(args[1:])
			if err != nil {
				return err
			}
			c, err := g.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Call(cmd.Context(), args[0], callArgs)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

// parseArgs turns key=value words into call arguments. Values that parse as
// JSON (numbers, true/false, null, objects) keep their type; anything else
// is a string.
func parseArgs(words []string) (wire.Args, error) {
	args := wire.Args{}
	for _, w := range words {
		key, raw, ok := strings.Cut(w, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q: expected key=value", w)
		}
		args[key] = parseValue(raw)
	}
	return args, nil
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case nil:
		if raw != "null" {
			return raw
		}
	case []any:
		// lists are not a value type of any operation
		return raw
	}
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
