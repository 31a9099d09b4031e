package cli

import (
	"fmt"

	"github.com/lifedata/connector/internal/config"
	"github.com/lifedata/connector/internal/logging"
	"github.com/lifedata/connector/internal/warehouse"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the warehouse schema",
	Long: `Apply pending warehouse migrations: the two credential tables and one
raw table per entity.

Postgres and Neon use the embedded golang-migrate migrations; a SQLite
warehouse is migrated when it is opened.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var schemaVersion uint
	switch cfg.Warehouse.Driver {
	case config.DriverSQLite:
		db, err := warehouse.OpenSQLite(cfg.Warehouse.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		v, err := db.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		schemaVersion = uint(v)
	default:
		schemaVersion, err = warehouse.MigratePostgres(ctx, cfg.Warehouse.URL, cfg.Warehouse.Schema, logger)
		if err != nil {
			return err
		}
	}

	logger.Audit(logging.NewAuditEvent(logging.SchemaMigrated, cfg.Warehouse.Driver, "migrate").
		WithDetail("version", schemaVersion))
	fmt.Fprintf(cmd.OutOrStdout(), "warehouse schema at version %d (%s)\n", schemaVersion, cfg.Warehouse.Driver)
	return nil
}
