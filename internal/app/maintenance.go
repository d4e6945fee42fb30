package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"cropradar/internal/cache"
	"cropradar/internal/config"
	"cropradar/internal/export"
	"cropradar/internal/outbreak"
	"cropradar/internal/scheduler"
	"cropradar/internal/types"
)

// NewMaintenanceRunner wires a scheduler.Runner against the configured
// storage, cache, and AWS clients. The returned func releases connections.
func NewMaintenanceRunner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*scheduler.Runner, func(), error) {
	clock := types.RealClock{}
	thresholds := cfg.Outbreak.Thresholds()

	storage, err := OpenStorage(ctx, cfg.Database, clock, logger)
	if err != nil {
		return nil, nil, err
	}
	backend := OpenCache(ctx, cfg, clock, logger)
	release := func() {
		backend.Close()
		storage.Close()
	}

	awsCfg, err := LoadAWS(ctx, cfg.AWS)
	if err != nil {
		release()
		return nil, nil, err
	}
	telemetry := NewTelemetry(cfg.Observability, awsCfg, logger)

	baselines := cache.NewCachedBaselines(
		outbreak.NewBaselineService(storage.Reports, thresholds, logger),
		backend.Store,
		cfg.Cache.BaselineTTL,
		thresholds.BaselineDays,
		cache.WithClock(clock),
		cache.WithRecorder(telemetry.Recorders),
		cache.WithLogger(logger),
	)

	var recorder export.Recorder
	if telemetry.CloudWatch != nil {
		recorder = telemetry.CloudWatch
	}

	return &scheduler.Runner{
		Warmer: cache.NewWarmer(storage.Reports, baselines, thresholds, cfg.Cache.WarmChunkSize, logger),
		Exporter: export.NewReviewExporter(
			storage.Reports,
			NewS3Client(awsCfg, cfg.AWS),
			cfg.AWS.ReviewExportBucket,
			recorder,
			logger,
		),
		JobLock:  backend.Lock,
		WorkerID: uuid.New().String(),
		Logger:   logger,
		Clock:    clock,
	}, release, nil
}
