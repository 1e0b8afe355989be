package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwygoda/bulkseo/internal/config"
)

// cli holds state shared between commands.
type cli struct {
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "bulkseo",
		Short: "Bulk SEO content generation for e-commerce catalogs",
		Long: `bulkseo generates SEO content for store products in batches and scores
existing product content against an SEO checklist.

Example usage:
  bulkseo serve                               # Run the API and batch worker
  bulkseo health products.json --plugin yoast # Score exported products`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			c.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/bulkseo/config.toml)")

	root.AddCommand(newServeCmd(c))
	root.AddCommand(newHealthCmd(c))
	return root
}
