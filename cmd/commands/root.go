package commands

import (
	"Fasting-Tracker/internal/utils"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "fasting-tracker",
	Short: "Fasting tracker backend",
	Long: `Fasting tracker backend: intermittent-fasting sessions, meal records
and AI meal analysis, with local state in Redis and a durable copy in Postgres.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := utils.LoadConfigFrom(configPath); err != nil {
			return fmt.Errorf("failed to load config %s: %w", configPath, err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute is called by main.main().
func Execute() error {
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", utils.DefaultConfigPath, "path to the YAML config file")
}

func newLogger() (*zap.Logger, error) {
	return utils.NewLogger(utils.GetConfig("LOG_LEVEL"))
}
