package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/depository/pkg/depository"
)

// app carries what the persistent flags resolve to.
type app struct {
	cfgFile string
	env     string
	verbose bool

	settings *depository.Settings
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "depository",
		Short: "Map relational rows to records",
		Long: `depository maps the rows of a relational table to records.

Databases, the record cache and the change feed are read from a YAML or
JSON file given with --config; DEPOSITORY_* environment variables
override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "configuration file (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&a.env, "env", "", "environment to use (overrides the configured one)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(newSchemaCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newDrainCmd(a))

	return cmd
}

func (a *app) load() error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	settings, err := depository.LoadConfig(a.cfgFile)
	if err != nil {
		return err
	}
	if a.env != "" {
		settings.Environment = a.env
	}
	a.settings = settings
	return nil
}

func (a *app) connect(ctx context.Context) (*depository.Connection, error) {
	return depository.Connect(ctx, a.settings, a.logger)
}
