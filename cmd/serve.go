package cmd

import (
	"context"
	"fmt"

	"socdash/bootstrap"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe starts the server and blocks until a shutdown signal
func runServe(ctx context.Context) error {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	app, err := bootstrap.NewApp(ctx, bootstrap.Options{ConfigFile: configFile, LogLevel: level})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Shutdown()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	return app.WaitForShutdown(ctx)
}
