package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropradar/internal/cache"
	"cropradar/internal/config"
	"cropradar/internal/db"
	"cropradar/internal/scheduler"
	"cropradar/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestOpenStorage_Memory(t *testing.T) {
	st, err := OpenStorage(context.Background(), config.DatabaseConfig{Driver: config.DriverMemory}, types.RealClock{}, testLogger)
	require.NoError(t, err)
	defer st.Close()

	assert.IsType(t, &db.MemoryReportStore{}, st.Reports)
	assert.Nil(t, st.Probe)
}

func TestOpenStorage_BadURL(t *testing.T) {
	_, err := OpenStorage(context.Background(), config.DatabaseConfig{
		Driver: config.DriverPostgres,
		URL:    "::not a url::",
	}, types.RealClock{}, testLogger)
	assert.Error(t, err)
}

func TestOpenCache_MemoryWhenRedisDisabled(t *testing.T) {
	cfg := &config.Config{Cache: config.CacheConfig{BaselineTTL: time.Minute}}

	c := OpenCache(context.Background(), cfg, fixedClock{time.Now()}, testLogger)
	defer c.Close()

	assert.Equal(t, "memory", c.Store.Name())
	assert.IsType(t, &cache.MemoryLock{}, c.Lock)
	assert.Nil(t, c.Probe)
}

func TestOpenCache_FallsBackWhenRedisUnreachable(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Addr:        "127.0.0.1:1",
			DialTimeout: 50 * time.Millisecond,
		},
		Cache: config.CacheConfig{BaselineTTL: time.Minute},
	}

	c := OpenCache(context.Background(), cfg, types.RealClock{}, testLogger)
	defer c.Close()

	assert.Equal(t, "memory", c.Store.Name())
}

func TestLoadAWS_EndpointOverride(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	awsCfg, err := LoadAWS(context.Background(), config.AWSConfig{
		Region:      "eu-west-1",
		EndpointURL: "http://localhost:4566",
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", awsCfg.Region)
	assert.Equal(t, "http://localhost:4566", aws.ToString(awsCfg.BaseEndpoint))

	assert.True(t, NewS3Client(awsCfg, config.AWSConfig{EndpointURL: "http://localhost:4566"}).Options().UsePathStyle)
}

func TestNewTelemetry(t *testing.T) {
	t.Run("all disabled", func(t *testing.T) {
		tel := NewTelemetry(config.ObservabilityConfig{}, aws.Config{}, testLogger)
		assert.Empty(t, tel.Recorders)
		assert.Nil(t, tel.Prometheus)
		assert.Nil(t, tel.CloudWatch)
	})

	t.Run("prometheus and cloudwatch", func(t *testing.T) {
		tel := NewTelemetry(config.ObservabilityConfig{
			MetricNamespace:  "CropRadar",
			EnablePrometheus: true,
			EnableCloudWatch: true,
		}, aws.Config{Region: "us-east-1"}, testLogger)
		assert.Len(t, tel.Recorders, 2)
		assert.NotNil(t, tel.Prometheus)
		assert.NotNil(t, tel.CloudWatch)
	})
}

func TestNewMaintenanceRunner_MemoryMode(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		AWS:      config.AWSConfig{Region: "us-east-1"},
		Outbreak: config.OutbreakConfig{
			MinConfidence: 0.75, WindowHours: 72, KAnon: 3,
			RisingSigma: 1, SurgingSigma: 2, BaselineDays: 30, TopLabels: 5,
		},
		Cache: config.CacheConfig{BaselineTTL: time.Minute, WarmChunkSize: 50},
	}

	runner, release, err := NewMaintenanceRunner(context.Background(), cfg, testLogger)
	require.NoError(t, err)
	defer release()

	out, err := runner.Run(context.Background(), scheduler.MaintenancePayload{Task: scheduler.TaskWarmBaselines})
	require.NoError(t, err)
	assert.Equal(t, "task warm_baselines complete: 0 items processed", out)

	// No bucket configured: the export is a logged no-op.
	out, err = runner.Run(context.Background(), scheduler.MaintenancePayload{Task: scheduler.TaskExportReview})
	require.NoError(t, err)
	assert.Equal(t, "task export_review complete: 0 items processed", out)
}
