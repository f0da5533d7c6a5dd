package cli

import (
	"github.com/spf13/cobra"

	"github.com/macrolens/grocer/internal/infrastructure/rules"
)

var validateRulesCmd = &cobra.Command{
	Use:   "validate-rules <file>",
	Short: "Check a rule file without solving",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := rules.Load(args[0])
		if err != nil {
			return err
		}
		name := set.Spec.Name
		if name == "" {
			name = "(unnamed)"
		}
		cmd.Printf("%s: spec %s, objective %s, %d rules, %d taxonomy rules\n",
			args[0], name, set.Spec.Objective.EffectiveSense(), len(set.Spec.Rules), len(set.Taxonomy.Rules))
		for _, r := range set.Spec.Rules {
			cmd.Printf("  - %s\n", r.Label())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateRulesCmd)
}
