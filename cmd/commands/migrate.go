package commands

import (
	"Fasting-Tracker/cmd/config"
	migration "Fasting-Tracker/cmd/database/migrate"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the remote tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := config.ConnectDB()
		if err != nil {
			return err
		}
		if err := migration.Migrate(db); err != nil {
			return err
		}
		logger.Info("database migration complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
