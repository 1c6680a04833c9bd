// Package cli implements the rcsync command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rcsync/internal/app"
	"rcsync/internal/config"
	"rcsync/internal/logger"
)

// Version is set at build time with -ldflags "-X rcsync/internal/cli.Version=...".
var Version = "dev"

type options struct {
	configPath string
	debug      bool
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "rcsync",
		Short:        "Reconcile ration card transaction status for the reporting month",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is $CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newScheduleCommand(opts))
	root.AddCommand(newHistoryCommand(opts))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rcsync version %s\n", Version)
		},
	})
	return root
}

func (o *options) loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (logger.Logger, error) {
	return logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
}

// buildApp loads config and wires the app. The caller closes the app and syncs the logger.
func (o *options) buildApp(ctx context.Context) (*app.App, logger.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}
