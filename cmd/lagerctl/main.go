// lagerctl is the command line client of the inventory server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/client"
)

// Version is set at build time via ldflags
var Version = "dev"

type globalFlags struct {
	addr     string
	httpAddr string
	token    string
	askToken bool
	tls      bool
	insecure bool
	timeout  time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "lagerctl",
		Short:         "Inventory server client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.addr, "addr", "localhost:9170", "wire protocol server address")
	pf.StringVar(&g.httpAddr, "http", "http://localhost:8080", "REST base URL (export)")
	pf.StringVar(&g.token, "token", os.Getenv("LAGER_TOKEN"), "auth token (default $LAGER_TOKEN)")
	pf.BoolVar(&g.askToken, "ask-token", false, "prompt for the token")
	pf.BoolVar(&g.tls, "tls", false, "connect with TLS")
	pf.BoolVar(&g.insecure, "insecure", false, "skip TLS certificate verification")
	pf.DurationVar(&g.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "lagerctl %s\n", Version)
			},
		},
		newOpsCmd(),
		newCallCmd(g),
		newTreeCmd(g),
		newShellCmd(g),
		newExportCmd(g),
	)
	return root
}

// resolveToken asks for the token on the terminal when requested.
func (g *globalFlags) resolveToken() (string, error) {
	if !g.askToken {
		return g.token, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--ask-token needs a terminal")
	}
	fmt.Fprint(os.Stderr, "Token: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	g.token = string(b)
	g.askToken = false
	return g.token, nil
}

// connect opens an authenticated wire connection.
func (g *globalFlags) connect(ctx context.Context) (*client.Client, error) {
	token, err := g.resolveToken()
	if err != nil {
		return nil, err
	}
	c := client.New(&client.Config{
		Addr:           g.addr,
		Token:          token,
		TLS:            g.tls,
		TLSSkipVerify:  g.insecure,
		RequestTimeout: g.timeout,
	})
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", g.addr, err)
	}
	return c, nil
}
