package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jask/banksync/internal/rules"
)

func newRulesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
	}
	cmd.AddCommand(newRulesListCommand(e))
	cmd.AddCommand(newRulesAddCommand(e))
	cmd.AddCommand(newRulesDeleteCommand(e))
	cmd.AddCommand(newRulesTestCommand(e))
	return cmd
}

func newRulesListCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := e.rules.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No rules defined.")
				return nil
			}
			for _, r := range all {
				state := " "
				if !r.Enabled {
					state = "off"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%3d %-3s %-20s %-8s %-8s %-25q -> %s\n",
					r.Priority, state, r.Name, r.Kind, r.Field, r.Pattern, r.CategoryName)
			}
			return nil
		},
	}
}

func newRulesAddCommand(e *env) *cobra.Command {
	var (
		kind     string
		field    string
		priority int
		payee    string
	)
	cmd := &cobra.Command{
		Use:   "add <name> <pattern> <category-id> <category-name>",
		Short: "Create a rule",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateCategory(cmd, e, args[2]); err != nil {
				return err
			}
			rule := rules.Rule{
				ID:            uuid.NewString(),
				Name:          args[0],
				Pattern:       args[1],
				Kind:          rules.PatternKind(kind),
				Field:         rules.TargetField(field),
				CategoryID:    args[2],
				CategoryName:  args[3],
				PayeeOverride: payee,
				Priority:      priority,
				Enabled:       true,
			}
			if err := e.rules.Create(cmd.Context(), rule); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule %q created (%s).\n", rule.Name, rule.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(rules.KindContains), "pattern kind: contains, exact, regex")
	cmd.Flags().StringVar(&field, "field", string(rules.FieldCombined), "target field: payee, memo, combined")
	cmd.Flags().IntVar(&priority, "priority", 100, "evaluation priority (lower first)")
	cmd.Flags().StringVar(&payee, "payee-override", "", "payee to substitute on match")
	return cmd
}

// validateCategory checks the target category exists in the budget before a
// rule referencing it is stored. Without a configured token there is no
// budget to ask, so offline rule creation proceeds unvalidated.
func validateCategory(cmd *cobra.Command, e *env, categoryID string) error {
	if e.cfg.Ynab.Token == "" {
		e.log.Debug().Msg("ynab token not configured, skipping category validation")
		return nil
	}
	budget, err := e.newBudgetClient(e.cfg)
	if err != nil {
		return err
	}
	cats, err := budget.ListCategories(cmd.Context(), e.cfg.Ynab.BudgetID)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	for _, c := range cats {
		if c.ID == categoryID {
			return nil
		}
	}
	return fmt.Errorf("category %s not found in budget (see `banksync categories`)", categoryID)
}

func newRulesDeleteCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.rules.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Rule deleted.")
			return nil
		},
	}
}

func newRulesTestCommand(e *env) *cobra.Command {
	var (
		kind  string
		field string
		memo  string
	)
	cmd := &cobra.Command{
		Use:   "test <pattern> <payee>",
		Short: "Test a pattern against a payee/memo without saving a rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := rules.TestPattern(args[0], rules.PatternKind(kind), rules.TargetField(field), args[1], memo)
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintln(cmd.OutOrStdout(), "match")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "no match")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(rules.KindContains), "pattern kind: contains, exact, regex")
	cmd.Flags().StringVar(&field, "field", string(rules.FieldCombined), "target field: payee, memo, combined")
	cmd.Flags().StringVar(&memo, "memo", "", "memo text to match against")
	return cmd
}
