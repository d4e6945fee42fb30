package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cropradar/internal/scheduler"
	"cropradar/internal/types"
)

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "radarctl",
		Short:         "Operate the crop radar maintenance jobs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newTasksCmd(),
		newRunCmd(d),
		newScheduleCmd(d),
		newSchemaCmd(d),
	)
	return root
}

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the available maintenance tasks",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, t := range scheduler.Tasks {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", t.Type, t.Description)
			}
		},
	}
}

func newRunCmd(d deps) *cobra.Command {
	var (
		refTime string
		crops   []string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "run TASK",
		Short: "Run one maintenance task now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := buildPayload(args[0], refTime, crops)
			if err != nil {
				return err
			}

			if dryRun {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(payload)
			}

			runner, release, err := d.newRunner(cmd.Context(), d.logger)
			if err != nil {
				return fmt.Errorf("initializing runner: %w", err)
			}
			defer release()

			result, err := runner.Run(cmd.Context(), payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&refTime, "reference-time", "", "override the reference time (RFC3339)")
	cmd.Flags().StringSliceVar(&crops, "crop", nil, "restrict the task to these crops (default all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the payload without executing")
	return cmd
}

// buildPayload validates the CLI arguments into a MaintenancePayload.
func buildPayload(task, refTime string, crops []string) (scheduler.MaintenancePayload, error) {
	payload := scheduler.MaintenancePayload{Task: scheduler.TaskType(task)}

	if refTime != "" {
		t, err := time.Parse(time.RFC3339, refTime)
		if err != nil {
			return payload, fmt.Errorf("invalid --reference-time %q: expected RFC3339, e.g. 2026-01-15T02:00:00Z", refTime)
		}
		payload.ReferenceTime = &t
	}
	for _, c := range crops {
		payload.Crops = append(payload.Crops, types.Crop(c))
	}

	return payload, payload.Validate()
}

func newSchemaCmd(d deps) *cobra.Command {
	schema := &cobra.Command{
		Use:   "schema",
		Short: "Manage the Postgres schema",
	}
	schema.AddCommand(&cobra.Command{
		Use:   "apply",
		Short: "Create the outbreak tables and indexes if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := d.applySchema(cmd.Context(), d.logger); err != nil {
				return fmt.Errorf("applying schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	})
	return schema
}
