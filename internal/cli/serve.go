package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	runtimepkg "github.com/drblury/vehicleflow/internal/runtime"
	loggingpkg "github.com/drblury/vehicleflow/internal/runtime/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Consume insert requests from the inbound topic",
	Long: `Subscribes to INBOUND_TOPIC on the configured transport and processes
every delivered message until SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := runtimepkg.TryNewService(ctx, cfg, loggingpkg.NewSlogServiceLogger(logger), runtimepkg.ServiceDependencies{})
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close service", "error", err)
		}
	}()

	if err := svc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
