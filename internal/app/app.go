// Package app assembles the runtime dependencies shared by the API server and
// the maintenance Lambda: the report store, the baseline cache, AWS clients,
// and the telemetry recorders.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"cropradar/internal/cache"
	"cropradar/internal/config"
	"cropradar/internal/core"
	"cropradar/internal/db"
	"cropradar/internal/metrics"
	"cropradar/internal/outbreak"
	"cropradar/internal/scheduler"
	"cropradar/internal/types"
)

// ReportStore is implemented by both the Postgres repository and the
// in-memory store.
type ReportStore interface {
	outbreak.ReportRepository
	outbreak.CellLister
	outbreak.ReviewReader
}

var (
	_ ReportStore = (*db.ReportRepository)(nil)
	_ ReportStore = (*db.MemoryReportStore)(nil)
)

// Storage is an opened report store.
type Storage struct {
	Reports ReportStore
	// Probe is nil for the in-memory store.
	Probe core.HealthProbe
	Close func()
}

// OpenStorage connects the report store selected by cfg.Driver.
func OpenStorage(ctx context.Context, cfg config.DatabaseConfig, clock types.Clock, logger *slog.Logger) (*Storage, error) {
	if cfg.Driver == config.DriverMemory {
		logger.WarnContext(ctx, "using in-memory report store; reports are lost on restart")
		return &Storage{
			Reports: db.NewMemoryReportStore(clock),
			Close:   func() {},
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.URL.Unmask(), db.PoolOptions{
		MaxConns:          cfg.MaxConns,
		MinConns:          cfg.MinConns,
		MaxConnLifetime:   cfg.MaxConnLifetime,
		HealthCheckPeriod: cfg.HealthCheckPeriod,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database pool: %w", err)
	}
	if cfg.ApplySchema {
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
		logger.InfoContext(ctx, "database schema ensured")
	}

	return &Storage{
		Reports: db.NewReportRepository(pool, clock),
		Probe:   core.NewProbe("database", pool.Ping),
		Close:   pool.Close,
	}, nil
}

// Cache is the baseline cache backend plus the job lock living next to it.
type Cache struct {
	Store cache.Store
	Lock  scheduler.JobLocker
	// Probe is nil for the in-process cache.
	Probe core.HealthProbe
	Close func()
}

// OpenCache connects to Redis when configured. An unreachable Redis at
// startup falls back to the in-process cache so the engine keeps serving.
func OpenCache(ctx context.Context, cfg *config.Config, clock types.Clock, logger *slog.Logger) *Cache {
	if cfg.Redis.Enabled() {
		client, err := cache.NewClient(ctx, cache.ClientOptions{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password.Unmask(),
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err == nil {
			return &Cache{
				Store: cache.NewRedisStore(client, cache.BreakerSettings{
					MaxFailures: cfg.Cache.BreakerMaxFailures,
					OpenTimeout: cfg.Cache.BreakerOpenTimeout,
				}),
				Lock:  cache.NewRedisLock(client),
				Probe: core.NewProbe("redis", client.Health),
				Close: func() { _ = client.Close() },
			}
		}
		logger.WarnContext(ctx, "redis unavailable, falling back to in-process cache",
			"addr", cfg.Redis.Addr,
			"error", err,
		)
	}

	store := cache.NewMemoryStore(clock)
	stop := make(chan struct{})
	go sweep(store, cfg.Cache.BaselineTTL, stop)

	return &Cache{
		Store: store,
		Lock:  cache.NewMemoryLock(clock),
		Close: func() { close(stop) },
	}
}

func sweep(store *cache.MemoryStore, every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			store.Sweep()
		case <-stop:
			return
		}
	}
}

// LoadAWS loads the SDK configuration for cfg.Region. A non-empty
// EndpointURL points every client at LocalStack.
func LoadAWS(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
	return awsCfg, nil
}

// NewS3Client creates an S3 client. Path-style addressing is forced when a
// custom endpoint is configured.
func NewS3Client(awsCfg aws.Config, cfg config.AWSConfig) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.EndpointURL != ""
	})
}

// Telemetry groups the recorders built from the observability settings.
type Telemetry struct {
	Recorders  metrics.Fanout
	Prometheus *metrics.Prometheus
	CloudWatch *metrics.CloudWatchMetrics
}

// NewTelemetry builds the enabled recorders. The result is usable with every
// backend disabled.
func NewTelemetry(cfg config.ObservabilityConfig, awsCfg aws.Config, logger *slog.Logger) *Telemetry {
	t := &Telemetry{}
	if cfg.EnablePrometheus {
		t.Prometheus = metrics.NewPrometheus(cfg.MetricNamespace)
		t.Recorders = append(t.Recorders, t.Prometheus)
	}
	if cfg.EnableCloudWatch {
		t.CloudWatch = metrics.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.MetricNamespace, logger)
		t.Recorders = append(t.Recorders, t.CloudWatch)
	}
	return t
}
