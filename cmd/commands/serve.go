package commands

import (
	"Fasting-Tracker/cmd/config"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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
	app, err := config.NewApp(services, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go services.EvictIdle(ctx, logger)
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = config.Port()
	}
	logger.Info("listening", zap.String("port", port))
	if err := app.Listen(":" + port); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
