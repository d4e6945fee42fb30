// Package main is the entrypoint for the Maintenance Lambda function.
//
// EventBridge rules send a scheduler.MaintenancePayload naming the task; the
// scheduler.Runner acquires the hourly job lock and routes it to the baseline
// warmer or the review exporter. Connections are opened once per cold start
// and reused across invocations.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"cropradar/internal/app"
	"cropradar/internal/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Maintenance Lambda initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	runner, _, err := app.NewMaintenanceRunner(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize maintenance runner", "error", err)
		os.Exit(1)
	}

	logger.Info("Maintenance Lambda initialized",
		"worker_id", runner.WorkerID,
	)

	lambda.Start(runner.Run)
}
