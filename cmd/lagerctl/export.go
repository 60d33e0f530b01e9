package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/export"
)

func newExportCmd(g *globalFlags) *cobra.Command {
	var compression string
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Download a Parquet snapshot of all products",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := export.ParseCompressionType(compression); err != nil {
				return err
			}
			token, err := g.resolveToken()
			if err != nil {
				return err
			}

			u := strings.TrimSuffix(g.httpAddr, "/") + "/api/v1/export?compression=" + url.QueryEscape(compression)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
			if err != nil {
				return err
			}
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}

			httpClient := &http.Client{Timeout: g.timeout}
			resp, err := httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("export: %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}

			if err := saveFile(args[0], resp.Body); err != nil {
				return err
			}
			rows, err := export.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("verify %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d products to %s\n", len(rows), args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&compression, "compression", "c", "zstd", "none, snappy, gzip, zstd or lz4")
	return cmd
}

// saveFile writes r to path via a temporary file in the same directory.
func saveFile(path string, r io.Reader) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("download: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
