package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/depository/pkg/depository"
)

func newDrainCmd(a *app) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Consume the change feed and log every change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			drainer, err := conn.NewDrainer(func(_ context.Context, change *depository.Change) error {
				a.logger.Info("change",
					"id", change.ID,
					"table", change.Table,
					"operation", change.Operation,
					"key", change.Key,
				)
				return nil
			})
			if err != nil {
				return err
			}

			if once {
				n, err := drainer.Drain(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "drained %d change(s)\n", n)
				return nil
			}

			if err := drainer.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			drainer.Stop()

			stats := drainer.Stats()
			a.logger.Info("drainer stopped", "processed", stats.Processed, "retried", stats.Retried, "dropped", stats.Dropped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "drain what is queued and exit")
	return cmd
}
