package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/macrolens/grocer/config"
	"github.com/macrolens/grocer/internal/domain"
	"github.com/macrolens/grocer/internal/usecase"
)

var (
	optimizeCatalog string
	optimizeRules   string
	optimizeJSON    bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Compute the minimum-cost basket",
	Long: `Normalizes the catalog, builds the linear program from the rule file and
prints the cheapest basket that satisfies every rule.`,
	Args: cobra.NoArgs,
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVarP(&optimizeCatalog, "catalog", "c", "", "catalog file (CSV or JSON); defaults to the configured source")
	optimizeCmd.Flags().StringVarP(&optimizeRules, "rules", "r", "", "rule file (YAML, TOML or JSON); defaults to the configured rules")
	optimizeCmd.Flags().BoolVar(&optimizeJSON, "json", false, "output the full result as JSON")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx, func(cfg *config.Config) {
		catalogOverride(cfg, optimizeCatalog, optimizeRules)
	})
	if err != nil {
		return err
	}
	defer a.Close()

	result, planErr := a.Planner.Plan(ctx, &usecase.PlanRequest{})
	if optimizeJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return planErr
	}

	if planErr != nil {
		var infeasible *domain.InfeasibleError
		if errors.As(planErr, &infeasible) && len(infeasible.Implicated) > 0 {
			cmd.Println("Conflicting rules:")
			for _, name := range infeasible.Implicated {
				cmd.Printf("  - %s\n", name)
			}
		}
		return fmt.Errorf("optimization failed: %w", planErr)
	}

	outputBasket(cmd, result)
	return nil
}

func outputBasket(cmd *cobra.Command, result *domain.PlanResult) {
	b := result.Basket
	stats := result.Report.Normalization
	cmd.Printf("Run %s: %d/%d products usable, %d variables, %d constraints\n",
		result.Report.RunID, stats.Accepted, stats.Processed, result.Report.Variables, result.Report.Constraints)
	cmd.Println()

	if len(b.Items) == 0 {
		cmd.Println("Empty basket.")
	}
	for _, it := range b.Items {
		cmd.Printf("  %-12s %-32s %9.1f g  %8.2f\n", it.ProductID, truncate(it.Name, 32), it.Grams, it.Cost)
	}
	cmd.Println()
	cmd.Printf("Total cost: %.2f\n", b.TotalCost)

	nutrients := make([]string, 0, len(b.Nutrients))
	for n := range b.Nutrients {
		nutrients = append(nutrients, string(n))
	}
	sort.Strings(nutrients)
	for _, n := range nutrients {
		nutrient := domain.Nutrient(n)
		cmd.Printf("  %-14s %10.1f %s\n", n, b.Nutrients[nutrient], nutrient.Unit())
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
