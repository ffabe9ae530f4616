package cmd

import (
	"context"
	"fmt"

	"github.com/frahmantamala/leaf/internal/permission"
	threatPostgres "github.com/frahmantamala/leaf/internal/threat/postgres"
	userPostgres "github.com/frahmantamala/leaf/internal/user/postgres"
	"github.com/spf13/cobra"
)

var seedGroups = []struct {
	Name        string
	Permissions permission.Permission
}{
	{"administrators", permission.All},
	{"moderators", permission.ReadUsers | permission.ReadThreats | permission.ModifyThreats},
	{"reporters", permission.ReadThreats | permission.ModifyThreats},
	{"observers", permission.ReadThreats},
}

var seedCategories = []string{
	"illegal dumping",
	"air pollution",
	"water pollution",
	"deforestation",
	"noise",
	"wildlife harm",
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with default groups and threat categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		lg := newLogger(cfg)
		ctx := context.Background()

		db, err := initDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		gdb, err := initGorm(db, cfg.AppEnv)
		if err != nil {
			return err
		}

		groups := userPostgres.NewGroupRepository(gdb)
		categories := threatPostgres.NewCategoryRepository(gdb)

		if clearData {
			if err := groups.Clear(ctx); err != nil {
				return fmt.Errorf("failed to clear groups: %w", err)
			}
			removed, err := categories.Clear(ctx)
			if err != nil {
				return fmt.Errorf("failed to clear threat categories: %w", err)
			}
			lg.Info("Cleared seeded data", "categories_removed", removed)
		}

		for _, g := range seedGroups {
			group, err := groups.Ensure(ctx, g.Name, int(g.Permissions))
			if err != nil {
				return fmt.Errorf("failed to seed group %s: %w", g.Name, err)
			}
			lg.Info("Seeded group", "group", group.Name, "permissions", group.Permissions)
		}

		for _, name := range seedCategories {
			c, created, err := categories.Ensure(ctx, name)
			if err != nil {
				return fmt.Errorf("failed to seed threat category %s: %w", name, err)
			}
			if created {
				lg.Info("Seeded threat category", "category", c.Name)
			}
		}

		lg.Info("Seeding finished")
		return nil
	},
}
