package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/wire"
)

func newTreeCmd(g *globalFlags) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "tree [STORAGE_ID]",
		Short: "Print the storage hierarchy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			callArgs := wire.Args{"depth": depth}
			op := "storage.list"
			if len(args) == 1 {
				op = "storage.get"
				callArgs["id"] = args[0]
			}
			res, err := c.Call(cmd.Context(), op, callArgs)
			if err != nil {
				return err
			}
			printTree(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", -1, "render depth (-1: server default)")
	return cmd
}

// printTree draws rendered storage nodes, a single one or a list.
func printTree(w io.Writer, res any) {
	switch v := res.(type) {
	case []any:
		if len(v) == 0 {
			fmt.Fprintln(w, "(no storages)")
		}
		for _, n := range v {
			if m, ok := n.(map[string]any); ok {
				printStorage(w, m, "", "")
			}
		}
	case map[string]any:
		printStorage(w, v, "", "")
	}
}

func printStorage(w io.Writer, n map[string]any, first, rest string) {
	fmt.Fprintf(w, "%s%s  [%v]\n", first, n["name"], n["id"])

	var items []func(first, rest string)
	for _, sp := range list(n["spaces"]) {
		items = append(items, func(f, r string) { printSpace(w, sp, f, r) })
	}
	for _, child := range list(n["children"]) {
		items = append(items, func(f, r string) { printStorage(w, child, f, r) })
	}
	for i, item := range items {
		if i == len(items)-1 {
			item(rest+"└── ", rest+"    ")
		} else {
			item(rest+"├── ", rest+"│   ")
		}
	}
}

func printSpace(w io.Writer, sp map[string]any, first, rest string) {
	fmt.Fprintf(w, "%sspace %s%s  [%v]\n", first, sp["name"], optional("size", sp["size"]), sp["id"])
	products := list(sp["products"])
	for i, p := range products {
		branch := "├── "
		if i == len(products)-1 {
			branch = "└── "
		}
		fmt.Fprintf(w, "%s%sproduct %s%s%s  [%v]\n", rest, branch, p["name"],
			optional("price", p["price"]), attributeSummary(p["attributes"]), p["id"])
	}
}

func list(v any) []map[string]any {
	items, _ := v.([]any)
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func optional(label string, v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(" %s=%v", label, v)
}

func attributeSummary(v any) string {
	attrs := list(v)
	if len(attrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, fmt.Sprintf("%v=%v", a["key"], a["value"]))
	}
	return " {" + strings.Join(parts, ", ") + "}"
}
