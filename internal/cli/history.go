package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"rcsync/internal/history"
)

func newHistoryCommand(opts *options) *cobra.Command {
	var limit int
	var card string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs, or the status history of one card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.HistoryEnabled() {
				return errors.New("run history is disabled (db_path is empty)")
			}
			db, err := history.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening history %s: %w", cfg.DBPath, err)
			}
			defer db.Close()

			if card != "" {
				entries, err := db.StatusHistory(cmd.Context(), card)
				if err != nil {
					return err
				}
				history.RenderEntries(cmd.OutOrStdout(), entries)
				return nil
			}

			runs, err := db.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			history.RenderRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	cmd.Flags().StringVar(&card, "card", "", "show the status history of this card number")
	return cmd
}
