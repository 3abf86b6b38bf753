package commands

import (
	"Fasting-Tracker/cmd/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Close fasts left open past their target and grace window",
	Long: `Loads every stored owner snapshot and closes any fast that has been open
longer than its target plus RECOVERY_GRACE_HOURS. Recovered sessions keep
source=auto_recover. Anonymous owners are only updated locally; signed-in
owners are synced to the remote store during the sweep.

A running serve process keeps its own copy of every owner it has open and may
write that copy back over the sweep's result. It applies the same recovery on
its next request for that owner, so the outcome is the same either way.`,
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
		rdb, err := config.ConnectRedis(cmd.Context())
		if err != nil {
			return err
		}
		defer rdb.Close()

		services, err := config.NewServices(db, rdb, logger)
		if err != nil {
			return err
		}
		recovered, err := services.FastingService.RecoverAll(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("recovery sweep complete", zap.Int("recovered", recovered))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}
