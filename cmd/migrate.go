package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/frahmantamala/leaf/db"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "to run db migration files under db/migrations directory",
	}
	migrateRollback bool
	migrateDir      string
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
	migrateCmd.PersistentFlags().StringVarP(&migrateDir, "dir", "d", "", "read migrations from this directory instead of the embedded ones")
}

// migrationsFS prefers an on-disk directory when --dir is given.
func migrationsFS() (fs.FS, string) {
	if migrateDir != "" {
		return os.DirFS(migrateDir), "."
	}
	return db.Migrations, db.MigrationsDir
}

func runMigration(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := newLogger(cfg)

	conn, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	fsys, dir := migrationsFS()
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose: %w", err)
	}

	if migrateRollback {
		if err := goose.DownContext(ctx, conn.DB, dir); err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
		lg.Info("Rolled back latest migration")
		return nil
	}

	if err := goose.UpContext(ctx, conn.DB, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, conn.DB)
	if err != nil {
		return fmt.Errorf("goose version: %w", err)
	}
	lg.Info("Database migrated", "version", version)
	return nil
}
