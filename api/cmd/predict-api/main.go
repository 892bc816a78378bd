package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pkm2-predict/api/internal/app"
	"pkm2-predict/api/internal/config"
	"pkm2-predict/api/internal/features"
	"pkm2-predict/api/internal/handle"
	"pkm2-predict/api/internal/httpserver"
	"pkm2-predict/api/internal/logging"
	"pkm2-predict/api/internal/otel"
)

const serviceName = "predict-api"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Serve PKM2 activity predictions over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := logging.New(serviceName, cfg.LogDebug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	shutdown, err := otel.Setup(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	h := handle.New(a.Service, features.Required, log)
	log.Info("starting",
		zap.String("port", cfg.Port),
		zap.String("descriptor_provider", a.Provider.Name()),
		zap.Strings("cors_origins", cfg.AllowedOrigins))
	return httpserver.Run(ctx, ":"+cfg.Port, httpserver.NewHandler(h, cfg.AllowedOrigins, log), log)
}
