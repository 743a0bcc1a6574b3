package commands

import (
	"bufio"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jask/banksync/internal/bank"
	"github.com/jask/banksync/internal/dedup"
	"github.com/jask/banksync/internal/service"
)

func newSyncCommand(e *env) *cobra.Command {
	var (
		dryRun   bool
		daysBack int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a sync session: fetch, categorize, detect duplicates, import",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			bankClient, err := e.newBankClient(e.cfg)
			if err != nil {
				return err
			}
			budget, err := e.newBudgetClient(e.cfg)
			if err != nil {
				return err
			}

			if daysBack == 0 {
				daysBack = e.cfg.Sync.DaysBack
			}
			mgr := service.NewManager(bankClient, budget, e.rules, e.sessions, service.Options{
				BudgetID:      e.cfg.Ynab.BudgetID,
				BankAccountID: e.cfg.Bank.AccountID,
				YnabAccountID: e.cfg.Ynab.AccountID,
				DaysBack:      daysBack,
				ImportTimeout: time.Duration(e.cfg.Sync.ImportTimeoutSeconds) * time.Second,
			}, e.log)

			snap, err := mgr.Start(ctx, bank.Credentials{Username: e.cfg.Bank.Username})
			if err != nil {
				return err
			}

			if snap.State == service.StateAwaitingTan {
				fmt.Fprintln(cmd.OutOrStdout(), "Confirm the login on your phone, then press enter.")
				if snap.TanChallenge != nil && snap.TanChallenge.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), "  "+snap.TanChallenge.Message)
				}
				reader := bufio.NewReader(cmd.InOrStdin())
				if _, err := reader.ReadString('\n'); err != nil {
					_ = mgr.Cancel()
					return err
				}
				snap, err = mgr.ConfirmTan(ctx)
				if err != nil {
					return err
				}
			}

			printReview(cmd, snap)

			if dryRun {
				_ = mgr.Cancel()
				fmt.Fprintln(cmd.OutOrStdout(), "Dry run: nothing imported.")
				return nil
			}

			snap, err = mgr.Import(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Done: %d imported, %d skipped, %d fetched.\n",
				snap.ImportedCount, snap.SkippedCount, len(snap.Transactions))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and classify without importing")
	cmd.Flags().IntVar(&daysBack, "days", 0, "override the configured fetch window")
	return cmd
}

func printReview(cmd *cobra.Command, snap service.Snapshot) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Fetched %d transactions:\n", len(snap.Transactions))
	for _, tx := range snap.Transactions {
		cat := tx.CategoryName
		if cat == "" {
			cat = "-"
		}
		dup := ""
		switch tx.Duplicate.Kind {
		case dedup.ConfirmedDuplicate:
			dup = "  DUPLICATE (" + tx.Duplicate.MatchedReference + ")"
		case dedup.PossibleDuplicate:
			dup = "  possible duplicate: " + tx.Duplicate.Reason
		}
		fmt.Fprintf(out, "  %s  %8s %s  %-30s %-20s [%s]%s\n",
			tx.Bank.BookingDate.Format(time.DateOnly), tx.Bank.Amount.StringFixed(2),
			tx.Bank.Currency, tx.EffectivePayee(), cat, tx.Status, dup)
		for _, link := range tx.Links {
			fmt.Fprintf(out, "      %s: %s\n", link.Label, link.URL)
		}
	}
}
