// Package main is the entry point for the crop radar API server.
//
// It loads the configuration, opens the report store and the baseline cache,
// wires the outbreak engine behind the core chassis, and starts serving.
//
// Inside AWS Lambda the router is served through a Function URL adapter;
// everywhere else it runs as a standard HTTP server on the configured port.
//
// SIGINT and SIGTERM drain in-flight requests before exiting.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambdaurl"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"cropradar/internal/api/handlers"
	"cropradar/internal/app"
	"cropradar/internal/cache"
	"cropradar/internal/config"
	"cropradar/internal/core"
	"cropradar/internal/outbreak"
	"cropradar/internal/queue"
	"cropradar/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("crop radar API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"storage", cfg.Database.Driver,
	)

	ctx := context.Background()
	clock := types.RealClock{}

	storage, err := app.OpenStorage(ctx, cfg.Database, clock, logger)
	if err != nil {
		return err
	}
	backend := app.OpenCache(ctx, cfg, clock, logger)

	awsCfg, err := app.LoadAWS(ctx, cfg.AWS)
	if err != nil {
		storage.Close()
		backend.Close()
		return err
	}

	srv, err := buildServer(cfg, logger, storage, backend, awsCfg)
	if err != nil {
		storage.Close()
		backend.Close()
		return fmt.Errorf("creating server: %w", err)
	}

	if isLambdaEnvironment() {
		return runLambda(srv, logger)
	}
	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires the outbreak engine onto the core chassis.
func buildServer(cfg *config.Config, logger *slog.Logger, storage *app.Storage, backend *app.Cache, awsCfg aws.Config) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}

	thresholds := cfg.Outbreak.Thresholds()
	clock := types.RealClock{}
	telemetry := app.NewTelemetry(cfg.Observability, awsCfg, logger)

	baselines := cache.NewCachedBaselines(
		outbreak.NewBaselineService(storage.Reports, thresholds, logger),
		backend.Store,
		cfg.Cache.BaselineTTL,
		thresholds.BaselineDays,
		cache.WithClock(clock),
		cache.WithRecorder(telemetry.Recorders),
		cache.WithLogger(logger),
	)

	acceptorOpts := []outbreak.AcceptorOption{
		outbreak.WithAcceptorMetrics(telemetry.Recorders),
		outbreak.WithAcceptorClock(clock),
	}
	if cfg.AWS.ReportIngestQueue != "" || cfg.AWS.ReportReviewQueue != "" {
		publisher := queue.NewReportEventPublisher(sqs.NewFromConfig(awsCfg), queue.Queues{
			Ingest: cfg.AWS.ReportIngestQueue,
			Review: cfg.AWS.ReportReviewQueue,
		}, logger)
		acceptorOpts = append(acceptorOpts, outbreak.WithEventPublisher(publisher))
	}

	outbreakHandler := handlers.NewOutbreakHandler(
		outbreak.NewAggregator(storage.Reports, thresholds, clock, logger),
		outbreak.NewRadarAssembler(storage.Reports, baselines, thresholds, telemetry.Recorders, logger),
		outbreak.NewAcceptor(storage.Reports, thresholds, logger, acceptorOpts...),
		outbreak.NewPrivacyGate(thresholds),
		srv.Validator,
		logger,
	)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, outbreakHandler.RegisterRoutes)

	if telemetry.Prometheus != nil {
		srv.Metrics = telemetry.Prometheus
		srv.MetricsHandler = telemetry.Prometheus.Handler()
	}
	for _, probe := range []core.HealthProbe{storage.Probe, backend.Probe} {
		if probe != nil {
			srv.HealthProbes = append(srv.HealthProbes, probe)
		}
	}
	srv.Closers = append(srv.Closers, backend.Close, storage.Close)

	srv.MountRoutes()
	return srv, nil
}

// isLambdaEnvironment reports whether the Lambda runtime API is present.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runLambda serves the router behind a Lambda Function URL. lambdaurl.Start
// does not return.
func runLambda(srv *core.Server, logger *slog.Logger) error {
	logger.Info("starting in Lambda mode")
	lambdaurl.Start(srv.Handler())
	return nil
}

// runHTTPServer serves until SIGINT or SIGTERM, then drains in-flight
// requests and releases the pool and cache within ShutdownTimeout.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "cause", context.Cause(gctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

// newLogger builds the JSON logger. Unknown levels fall back to info.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
