package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"cropradar/internal/scheduler"
)

// Default cadences mirror the EventBridge rules.
const (
	defaultWarmSpec   = "15 */6 * * *"
	defaultExportSpec = "30 0 * * *"
)

func newScheduleCmd(d deps) *cobra.Command {
	var warmSpec, exportSpec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the maintenance tasks on a cron schedule until interrupted",
		Long: "Runs warm_baselines and export_review in-process on standard five-field\n" +
			"cron expressions (UTC). Stands in for the EventBridge rules when running\n" +
			"outside AWS. An empty expression disables that task.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			runner, release, err := d.newRunner(ctx, d.logger)
			if err != nil {
				return fmt.Errorf("initializing runner: %w", err)
			}
			defer release()

			c, err := newCron(ctx, runner, map[scheduler.TaskType]string{
				scheduler.TaskWarmBaselines: warmSpec,
				scheduler.TaskExportReview:  exportSpec,
			}, d.logger)
			if err != nil {
				return err
			}

			c.Start()
			d.logger.InfoContext(ctx, "scheduler started",
				"warm_baselines", warmSpec,
				"export_review", exportSpec,
			)
			<-ctx.Done()

			d.logger.Info("scheduler stopping, waiting for running jobs")
			<-c.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&warmSpec, "warm", defaultWarmSpec, "cron expression for warm_baselines")
	cmd.Flags().StringVar(&exportSpec, "export", defaultExportSpec, "cron expression for export_review")
	return cmd
}

// newCron registers one job per non-empty spec. A job still running when its
// next tick fires is skipped.
func newCron(ctx context.Context, runner taskRunner, specs map[scheduler.TaskType]string, logger *slog.Logger) (*cron.Cron, error) {
	clog := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	for _, t := range scheduler.Tasks {
		spec := specs[t.Type]
		if spec == "" {
			continue
		}
		task := t.Type
		if _, err := c.AddFunc(spec, func() {
			if _, err := runner.Run(ctx, scheduler.MaintenancePayload{Task: task}); err != nil {
				logger.ErrorContext(ctx, "scheduled task failed", "task", string(task), "error", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid cron expression %q for %s: %w", spec, task, err)
		}
	}
	return c, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
