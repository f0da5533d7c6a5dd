package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/macrolens/grocer/config"
	"github.com/macrolens/grocer/internal/domain"
)

var normalizeJSON bool

var normalizeCmd = &cobra.Command{
	Use:   "normalize [catalog]",
	Short: "Normalize a catalog and report what was dropped",
	Long: `Converts every record of the catalog to the per-reference-unit schema and
prints the normalization counters. Without an argument the configured catalog
source is read.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().BoolVar(&normalizeJSON, "json", false, "output the canonical catalog as JSON")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	catalogPath := ""
	if len(args) == 1 {
		catalogPath = args[0]
	}
	a, err := loadApp(ctx, func(cfg *config.Config) {
		catalogOverride(cfg, catalogPath, "")
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Source == nil {
		return fmt.Errorf("%w: no catalog given and no catalog source configured", domain.ErrInvalidRequest)
	}
	products, err := a.Source.Products(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCatalogSourceFailure, err)
	}

	catalog, err := a.Planner.Normalize(ctx, products)
	if err != nil {
		return err
	}

	if normalizeJSON {
		data, err := json.MarshalIndent(catalog, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal catalog: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	s := catalog.Stats
	cmd.Printf("Vocabulary:       %s\n", s.VocabularyVersion)
	cmd.Printf("Processed:        %d\n", s.Processed)
	cmd.Printf("Accepted:         %d\n", s.Accepted)
	cmd.Printf("Dropped:          %d\n", len(s.Dropped))
	reasons := make([]string, 0, len(s.DropCounts))
	for r := range s.DropCounts {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		cmd.Printf("  %-26s %d\n", r, s.DropCounts[domain.DropReason(r)])
	}
	cmd.Printf("Field failures:   %d\n", s.FieldParseFailures)
	cmd.Printf("Unmapped fields:  %d\n", s.UnmappedFields)
	cmd.Printf("Unit fallbacks:   %d\n", s.UnitFallbacks)
	cmd.Printf("Uncategorized:    %d\n", s.Uncategorized)
	return nil
}
