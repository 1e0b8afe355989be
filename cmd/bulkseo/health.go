package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwygoda/bulkseo/internal/domain"
	"github.com/cwygoda/bulkseo/internal/health"
)

func newHealthCmd(c *cli) *cobra.Command {
	var (
		plugin string
		format string
	)

	cmd := &cobra.Command{
		Use:   "health [file|-]",
		Short: "Score exported products against the SEO content checklist",
		Long: `Reads a JSON array of products, or an object with a "products" array,
and reports the content health of each one. Reads stdin when no file is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !health.ValidPlugin(plugin) {
				return fmt.Errorf("unknown plugin %q (known: %s)", plugin, strings.Join(health.Plugins(), ", "))
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown format %q", format)
			}

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			products, err := readProducts(in)
			if err != nil {
				return err
			}

			results := health.NewAnalyzer().AnalyzeBatch(products, plugin)
			summary := health.GenerateSummary(results)

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(contentHealthReport{Results: results, Summary: summary})
			}
			renderReport(out, results, summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&plugin, "plugin", "", "SEO plugin whose metadata keys to check ("+strings.Join(health.Plugins(), ", ")+")")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json)")
	return cmd
}

type contentHealthReport struct {
	Results []health.ProductHealth `json:"results"`
	Summary health.Summary         `json:"summary"`
}

// readProducts accepts either a bare array or a {"products": [...]} wrapper.
func readProducts(r io.Reader) ([]domain.Product, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("no products in input")
	}

	if data[0] == '[' {
		var products []domain.Product
		if err := json.Unmarshal(data, &products); err != nil {
			return nil, fmt.Errorf("parse products: %w", err)
		}
		return products, nil
	}

	var wrapper struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse products: %w", err)
	}
	return wrapper.Products, nil
}
