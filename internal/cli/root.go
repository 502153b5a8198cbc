// Package cli implements the vehicleflow command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	configpkg "github.com/drblury/vehicleflow/internal/runtime/config"
	loggingpkg "github.com/drblury/vehicleflow/internal/runtime/logging"
)

var (
	cfgFile string
	cfg     *configpkg.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vehicleflow",
	Short: "Vehicle ingestion service",
	Long: `vehicleflow consumes vehicle insert requests, stores the vehicles in bulk
and publishes one completion event per request.

Configuration is read from an optional YAML file and from environment
variables such as PUBSUB_SYSTEM, COMPLETION_TOPIC and STORE_DRIVER.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables override it")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := configpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	logger = loggingpkg.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return nil
}
