package db

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"cropradar/internal/outbreak"
	"cropradar/internal/types"
)

// MemoryReportStore is an in-process implementation of the outbreak storage
// port. It backs local mode and end-to-end tests and applies the same window
// and confidence rules as ReportRepository.
type MemoryReportStore struct {
	mu      sync.RWMutex
	reports []types.OutbreakReport
	clock   types.Clock
}

var (
	_ outbreak.ReportRepository = (*MemoryReportStore)(nil)
	_ outbreak.CellLister       = (*MemoryReportStore)(nil)
	_ outbreak.ReviewReader     = (*MemoryReportStore)(nil)
)

// NewMemoryReportStore creates an empty store. Window cutoffs are computed
// from clock, which defaults to wall time.
func NewMemoryReportStore(clock types.Clock) *MemoryReportStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryReportStore{clock: clock}
}

// InsertReport stores a copy of report.
func (s *MemoryReportStore) InsertReport(ctx context.Context, report *types.OutbreakReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stored := *report
	if report.Confidence != nil {
		c := *report.Confidence
		stored.Confidence = &c
	}
	if report.Evidence != nil {
		e := *report.Evidence
		stored.Evidence = &e
	}
	if report.Contact != nil {
		c := *report.Contact
		stored.Contact = &c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, stored)
	return stored.ID, nil
}

func qualifies(r *types.OutbreakReport, minConfidence float64) bool {
	if r.Confidence == nil {
		return r.Source != types.SourceScan
	}
	return *r.Confidence >= minConfidence
}

// scan calls fn for every qualifying report of crop observed at or after
// cutoff in one of cells. A nil cells set matches every cell.
func (s *MemoryReportStore) scan(crop types.Crop, cells map[string]struct{}, cutoff time.Time, minConfidence float64, fn func(*types.OutbreakReport)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.reports {
		r := &s.reports[i]
		if r.Crop != crop || r.ObservedAt.Before(cutoff) || !qualifies(r, minConfidence) {
			continue
		}
		if cells != nil {
			if _, ok := cells[r.Geohash5]; !ok {
				continue
			}
		}
		fn(r)
	}
}

func (s *MemoryReportStore) cutoffHours(hours int) time.Time {
	return s.clock.Now().UTC().Add(-time.Duration(hours) * time.Hour)
}

func (s *MemoryReportStore) window(q outbreak.WindowQuery, fn func(*types.OutbreakReport)) {
	s.scan(q.Crop, map[string]struct{}{q.Geohash5: {}}, s.cutoffHours(q.SinceHours), q.MinConfidence, fn)
}

func cellSet(cells []string) map[string]struct{} {
	set := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		set[c] = struct{}{}
	}
	return set
}

func utcDay(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// GetCountsByDay returns per-UTC-day counts, oldest day first.
func (s *MemoryReportStore) GetCountsByDay(ctx context.Context, q outbreak.WindowQuery) ([]types.DailyCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	byDay := make(map[string]int)
	s.window(q, func(r *types.OutbreakReport) { byDay[utcDay(r.ObservedAt)]++ })

	out := make([]types.DailyCount, 0, len(byDay))
	for _, day := range slices.Sorted(maps.Keys(byDay)) {
		out = append(out, types.DailyCount{Date: day, Count: byDay[day]})
	}
	return out, nil
}

// GetTopLabels returns up to limit labels by descending frequency, ties
// broken alphabetically.
func (s *MemoryReportStore) GetTopLabels(ctx context.Context, q outbreak.WindowQuery, limit int) ([]types.LabelCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	byLabel := make(map[string]int)
	s.window(q, func(r *types.OutbreakReport) { byLabel[r.Label]++ })

	out := make([]types.LabelCount, 0, len(byLabel))
	for label, n := range byLabel {
		out = append(out, types.LabelCount{Label: label, Count: n})
	}
	slices.SortFunc(out, func(a, b types.LabelCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetTotal returns the number of qualifying reports.
func (s *MemoryReportStore) GetTotal(ctx context.Context, q outbreak.WindowQuery) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	total := 0
	s.window(q, func(*types.OutbreakReport) { total++ })
	return total, nil
}

// GetUniqueFields counts distinct fields; reports without a field ID count
// individually. Nil when nothing qualifies.
func (s *MemoryReportStore) GetUniqueFields(ctx context.Context, q outbreak.WindowQuery) (*int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fields := make(map[string]struct{})
	s.window(q, func(r *types.OutbreakReport) {
		key := r.FieldID
		if key == "" {
			key = "report:" + r.ID
		}
		fields[key] = struct{}{}
	})
	if len(fields) == 0 {
		return nil, nil
	}
	n := len(fields)
	return &n, nil
}

// GetRadarCounts returns current-window counts for the requested cells that
// have at least one qualifying report, sorted by geohash5.
func (s *MemoryReportStore) GetRadarCounts(ctx context.Context, q outbreak.CellsQuery) ([]types.CellCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	byCell := make(map[string]int)
	s.scan(q.Crop, cellSet(q.Geohashes), s.cutoffHours(q.SinceHours), q.MinConfidence, func(r *types.OutbreakReport) {
		byCell[r.Geohash5]++
	})

	out := make([]types.CellCount, 0, len(byCell))
	for _, gh := range slices.Sorted(maps.Keys(byCell)) {
		out = append(out, types.CellCount{Geohash5: gh, Count: byCell[gh]})
	}
	return out, nil
}

// GetDailyCountsByCell returns the counts of every observed day in the
// trailing q.Days window, per cell, in day order.
func (s *MemoryReportStore) GetDailyCountsByCell(ctx context.Context, q outbreak.CellsQuery) (map[string][]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	byCellDay := make(map[string]map[string]int)
	s.scan(q.Crop, cellSet(q.Geohashes), s.cutoffHours(q.Days*24), q.MinConfidence, func(r *types.OutbreakReport) {
		days, ok := byCellDay[r.Geohash5]
		if !ok {
			days = make(map[string]int)
			byCellDay[r.Geohash5] = days
		}
		days[utcDay(r.ObservedAt)]++
	})

	out := make(map[string][]int, len(byCellDay))
	for gh, days := range byCellDay {
		series := make([]int, 0, len(days))
		for _, day := range slices.Sorted(maps.Keys(days)) {
			series = append(series, days[day])
		}
		out[gh] = series
	}
	return out, nil
}

// ListActiveCells returns the sorted cells with qualifying activity in the
// trailing window.
func (s *MemoryReportStore) ListActiveCells(ctx context.Context, crop types.Crop, days int, minConfidence float64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	s.scan(crop, nil, s.cutoffHours(days*24), minConfidence, func(r *types.OutbreakReport) {
		seen[r.Geohash5] = struct{}{}
	})
	return slices.Sorted(maps.Keys(seen)), nil
}

// ListReportsByStatus returns copies of the reports with status created in
// [from, to), oldest first.
func (s *MemoryReportStore) ListReportsByStatus(ctx context.Context, status types.ReportStatus, from, to time.Time) ([]types.OutbreakReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.OutbreakReport
	for _, r := range s.reports {
		if r.Status != status || r.CreatedAt.Before(from) || !r.CreatedAt.Before(to) {
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b types.OutbreakReport) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// Len returns the number of stored reports.
func (s *MemoryReportStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}
