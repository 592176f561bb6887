package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run collect, persist and snapshot a single time without waits",
		RunE:  withApp(runOnce),
	}
}

func runOnce(ctx context.Context, appInstance App) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := appInstance.Runner().RunOnce(ctx); err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}
	appInstance.Logger().Info("pipeline run finished")
	return nil
}
