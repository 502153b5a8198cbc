package cli

import (
	"github.com/spf13/cobra"

	errspkg "github.com/drblury/vehicleflow/internal/runtime/errors"
	storepkg "github.com/drblury/vehicleflow/internal/runtime/store"
)

var migrateStore = storepkg.Migrate

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply PostgreSQL schema migrations",
	Long:  `Applies the embedded migrations to POSTGRES_URL. Already applied migrations are skipped.`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if cfg.PostgresURL == "" {
		return errspkg.Newf(errspkg.ErrConfiguration, "migrate", "postgres url is required")
	}
	if err := migrateStore(cfg.PostgresURL, logger); err != nil {
		return err
	}
	logger.Info("Migrations applied")
	return nil
}
