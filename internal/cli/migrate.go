package cli

import (
	"github.com/spf13/cobra"

	"github.com/soloking1412/Unicorn-Launchpad/pkg/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back snapshot database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := config.OpenDB(conf.Database)
		if err != nil {
			return err
		}
		return config.ExecuteMigrations(db, conf.Database.MigrationsDir)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := config.OpenDB(conf.Database)
		if err != nil {
			return err
		}
		return config.RollbackMigration(db, conf.Database.MigrationsDir)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	RootCmd.AddCommand(migrateCmd)
}
