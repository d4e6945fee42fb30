package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cropradar/internal/cache"
	"cropradar/internal/export"
	"cropradar/internal/types"
)

// LockTTL covers the Lambda timeout with margin.
const LockTTL = 15 * time.Minute

// BaselineWarmer primes the baseline cache for one crop.
type BaselineWarmer interface {
	Warm(ctx context.Context, crop types.Crop) (cache.WarmResult, error)
}

// ReviewExporter exports one UTC day of pending_review reports.
type ReviewExporter interface {
	ExportDay(ctx context.Context, day time.Time) (*export.Result, error)
}

// JobLocker abstracts the distributed lock acquisition.
type JobLocker interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
}

// Runner executes maintenance payloads. It backs both the Lambda handler and
// the radarctl CLI.
type Runner struct {
	Warmer   BaselineWarmer
	Exporter ReviewExporter
	JobLock  JobLocker
	WorkerID string
	Logger   *slog.Logger
	// Clock defaults to the system clock.
	Clock types.Clock
}

// LockID is the job lock key for a task in the hour containing now.
func LockID(task TaskType, now time.Time) string {
	return fmt.Sprintf("%s:%s", task, now.Truncate(time.Hour).Format("2006-01-02T15"))
}

// Run processes one MaintenancePayload:
//  1. Validate the payload and determine the reference time.
//  2. Acquire the job lock "task:hour". A held lock skips the run.
//  3. Switch on the task and run it.
func (r *Runner) Run(ctx context.Context, payload MaintenancePayload) (string, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := r.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	if err := payload.Validate(); err != nil {
		return "", err
	}

	now := payload.Now(clock.Now())
	task := string(payload.Task)
	logger.InfoContext(ctx, "maintenance task invoked",
		"task", task,
		"reference_time", now.Format(time.RFC3339),
		"worker_id", r.WorkerID,
	)

	lockID := LockID(payload.Task, now)
	acquired, err := r.JobLock.Acquire(ctx, lockID, r.WorkerID, LockTTL)
	if err != nil {
		logger.ErrorContext(ctx, "failed to acquire job lock",
			"lock_id", lockID,
			"error", err,
		)
		return "", fmt.Errorf("acquiring job lock %s: %w", lockID, err)
	}
	if !acquired {
		logger.InfoContext(ctx, "job lock not acquired, another worker is processing",
			"lock_id", lockID,
		)
		return fmt.Sprintf("skipped: lock %s held by another worker", lockID), nil
	}

	items, execErr := r.dispatch(ctx, payload, now, logger)
	if execErr != nil {
		logger.ErrorContext(ctx, "task execution failed",
			"task", task,
			"error", execErr,
			"items_before_error", items,
		)
		return "", fmt.Errorf("task %s failed: %w", task, execErr)
	}

	result := fmt.Sprintf("task %s complete: %d items processed", task, items)
	logger.InfoContext(ctx, result,
		"task", task,
		"items", items,
	)
	return result, nil
}

// dispatch runs the task and returns the number of items processed.
func (r *Runner) dispatch(ctx context.Context, payload MaintenancePayload, now time.Time, logger *slog.Logger) (int, error) {
	switch payload.Task {
	case TaskWarmBaselines:
		total := 0
		for _, crop := range payload.ResolveCrops() {
			res, err := r.Warmer.Warm(ctx, crop)
			if err != nil {
				return total, fmt.Errorf("warming %s baselines: %w", crop, err)
			}
			logger.InfoContext(ctx, "baselines warmed",
				"crop", string(crop),
				"active_cells", res.ActiveCells,
				"cells_with_history", res.CellsWithHistory,
				"chunks", res.Chunks,
			)
			total += res.ActiveCells
		}
		return total, nil

	case TaskExportReview:
		res, err := r.Exporter.ExportDay(ctx, now.AddDate(0, 0, -1))
		if err != nil {
			return 0, fmt.Errorf("exporting review reports: %w", err)
		}
		return res.Reports(), nil

	default:
		return 0, fmt.Errorf("unknown task type: %q", payload.Task)
	}
}
