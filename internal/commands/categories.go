package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCategoriesCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the budget's categories and their ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			budget, err := e.newBudgetClient(e.cfg)
			if err != nil {
				return err
			}
			cats, err := budget.ListCategories(cmd.Context(), e.cfg.Ynab.BudgetID)
			if err != nil {
				return err
			}
			if len(cats) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No categories in budget.")
				return nil
			}
			group := ""
			for _, c := range cats {
				if c.Group != group {
					group = c.Group
					fmt.Fprintln(cmd.OutOrStdout(), group)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %-36s %s\n", c.ID, c.Name)
			}
			return nil
		},
	}
}
