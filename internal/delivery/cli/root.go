// Package cli is the command-line front end: one-shot optimization and
// normalization runs against local files, plus rule file checks.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/macrolens/grocer/config"
	"github.com/macrolens/grocer/internal/app"
)

var version = "dev"

var configPath string

// newApp builds the planner; replaced in tests.
var newApp = app.New

var rootCmd = &cobra.Command{
	Use:   "grocer",
	Short: "Minimum-cost grocery baskets under nutrition constraints",
	Long: `grocer normalizes grocery catalogs with inconsistent nutrition labels and
solves for the cheapest basket that meets a set of nutrition and composition rules.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./config.yaml if present)")
}

// SetVersion sets the version printed by the version command
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command; ctx is cancelled on interrupt by the caller.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadApp loads configuration, applies per-command overrides and wires the
// planner. The caller closes the returned app.
func loadApp(ctx context.Context, override func(*config.Config)) (*app.App, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	return newApp(ctx, cfg)
}

func catalogOverride(cfg *config.Config, catalogPath, rulesPath string) {
	if catalogPath != "" {
		cfg.Catalog.Source = "file"
		cfg.Catalog.Path = catalogPath
	}
	if rulesPath != "" {
		cfg.Rules.Path = rulesPath
		cfg.Rules.Watch = false
	}
}
