// Package scheduler defines the maintenance tasks and the Runner that
// executes them. EventBridge rules (or radarctl) send a MaintenancePayload
// naming the task; the Runner routes it to the baseline warmer or the review
// exporter.
package scheduler

import (
	"fmt"
	"time"

	"cropradar/internal/types"
)

// TaskType identifies which maintenance job should handle an EventBridge event.
type TaskType string

const (
	// TaskWarmBaselines primes the baseline cache for every active cell.
	TaskWarmBaselines TaskType = "warm_baselines"
	// TaskExportReview exports the previous UTC day's pending_review reports.
	TaskExportReview TaskType = "export_review"
)

// Tasks describes every supported task, in display order.
var Tasks = []struct {
	Type        TaskType
	Description string
}{
	{TaskWarmBaselines, "Prime the baseline cache for cells active in the baseline window"},
	{TaskExportReview, "Export yesterday's pending_review reports to S3 as zstd NDJSON"},
}

// MaintenancePayload is the JSON payload sent by EventBridge:
//
//	{
//	  "task": "warm_baselines",
//	  "reference_time": "2026-03-04T02:00:00Z",  // optional
//	  "crops": ["rice"]                          // optional, defaults to all
//	}
type MaintenancePayload struct {
	Task TaskType `json:"task"`
	// ReferenceTime overrides "now" for manual invocation and backfills.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
	// Crops restricts the task to a subset of crops.
	Crops []types.Crop `json:"crops,omitempty"`
}

// Validate rejects unknown tasks and crops.
func (p MaintenancePayload) Validate() error {
	switch p.Task {
	case TaskWarmBaselines, TaskExportReview:
	case "":
		return fmt.Errorf("empty task type in maintenance payload")
	default:
		return fmt.Errorf("unknown task type: %q", p.Task)
	}
	for _, c := range p.Crops {
		if !c.IsValid() {
			return fmt.Errorf("unknown crop %q in maintenance payload", c)
		}
	}
	return nil
}

// ResolveCrops returns the requested crops, or every supported crop.
func (p MaintenancePayload) ResolveCrops() []types.Crop {
	if len(p.Crops) == 0 {
		return types.AllCrops
	}
	return p.Crops
}

// Now returns the reference time in UTC, falling back to fallback.
func (p MaintenancePayload) Now(fallback time.Time) time.Time {
	if p.ReferenceTime != nil {
		return p.ReferenceTime.UTC()
	}
	return fallback.UTC()
}
