// Package main implements radarctl, the operator CLI for the crop radar
// maintenance jobs. It runs the same scheduler.Runner as the Lambda, without
// the Lambda shim, for local development, backfills, and debugging.
//
// Usage:
//
//	radarctl tasks
//	radarctl run warm_baselines --crop rice
//	radarctl run export_review --reference-time 2026-03-05T02:00:00Z
//	radarctl run export_review --dry-run
//	radarctl schedule --warm "15 */6 * * *" --export "30 0 * * *"
//	radarctl schema apply
//
// Configuration is read the same way as the services (environment, .env,
// SSM outside local mode).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cropradar/internal/app"
	"cropradar/internal/config"
	"cropradar/internal/scheduler"
	"cropradar/internal/types"
)

// taskRunner is the subset of scheduler.Runner used by the commands.
type taskRunner interface {
	Run(ctx context.Context, payload scheduler.MaintenancePayload) (string, error)
}

// deps are the factories behind each command. Tests replace them.
type deps struct {
	newRunner   func(ctx context.Context, logger *slog.Logger) (taskRunner, func(), error)
	applySchema func(ctx context.Context, logger *slog.Logger) error
	logger      *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := newRootCmd(defaultDeps(logger)).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func defaultDeps(logger *slog.Logger) deps {
	return deps{
		newRunner: func(ctx context.Context, logger *slog.Logger) (taskRunner, func(), error) {
			cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
			if err != nil {
				return nil, nil, err
			}
			return app.NewMaintenanceRunner(ctx, cfg, logger)
		},
		applySchema: func(ctx context.Context, logger *slog.Logger) error {
			cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
			if err != nil {
				return err
			}
			dbCfg := cfg.Database
			dbCfg.Driver = config.DriverPostgres
			dbCfg.ApplySchema = true
			storage, err := app.OpenStorage(ctx, dbCfg, types.RealClock{}, logger)
			if err != nil {
				return err
			}
			storage.Close()
			return nil
		},
		logger: logger,
	}
}
