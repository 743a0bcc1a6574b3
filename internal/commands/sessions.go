package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCommand(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Show recent sync session history",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := e.sessions.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions yet.")
				return nil
			}
			for _, rec := range recs {
				status := rec.Status
				if rec.FailReason != "" {
					status += " (" + rec.FailReason + ")"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-30s fetched %3d  imported %3d  skipped %3d\n",
					rec.StartedAt.Format(time.RFC3339), status,
					rec.TransactionCount, rec.ImportedCount, rec.SkippedCount)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of sessions to show")
	return cmd
}
