package cli

import (
	"github.com/spf13/cobra"
)

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation pass and save the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, log, err := opts.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			defer a.Close()

			_, err = a.RunOnce(cmd.Context())
			return err
		},
	}
}

func newScheduleCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run reconciliation passes on run_schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, log, err := opts.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			defer a.Close()

			return a.Schedule(cmd.Context())
		},
	}
}
