// Package watch implements the command that runs the surveillance core.
package watch

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tsanev/camguard-go/internal/conf"
	"github.com/tsanev/camguard-go/internal/surveillance"
)

// Command returns the watch subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the surveillance pipelines for all active cameras",
		Long: "Starts a capture and processing pipeline for every active camera, " +
			"the schedule evaluator and the storage quota guard, and runs until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, settings)
		},
	}
	return cmd
}

func runWatch(ctx context.Context, settings *conf.Settings) error {
	return surveillance.Run(ctx, settings)
}
