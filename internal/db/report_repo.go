package db

import (
	"context"
	"fmt"
	"time"

	"cropradar/internal/outbreak"
	"cropradar/internal/types"
)

// qualifyingFilter is the confidence rule shared by every aggregate read. A
// scan without a confidence never qualifies; manual and partner reports carry
// none and always do. The placeholder index of the threshold is substituted by
// the caller.
const qualifyingFilter = `(confidence >= $%d OR (confidence IS NULL AND source <> 'scan'))`

// ReportRepository is the PostgreSQL implementation of the outbreak storage
// port. Reports are append-only; nothing here updates or deletes a row.
type ReportRepository struct {
	db    DBTX
	clock types.Clock
}

var (
	_ outbreak.ReportRepository = (*ReportRepository)(nil)
	_ outbreak.CellLister       = (*ReportRepository)(nil)
	_ outbreak.ReviewReader     = (*ReportRepository)(nil)
)

// NewReportRepository creates a ReportRepository backed by the given database
// connection (pool or transaction). Window cutoffs are computed from clock,
// which defaults to wall time.
func NewReportRepository(db DBTX, clock types.Clock) *ReportRepository {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &ReportRepository{db: db, clock: clock}
}

func (r *ReportRepository) cutoffHours(hours int) time.Time {
	return r.clock.Now().UTC().Add(-time.Duration(hours) * time.Hour)
}

// InsertReport appends a report and returns its stored identifier.
func (r *ReportRepository) InsertReport(ctx context.Context, report *types.OutbreakReport) (string, error) {
	var photoHash, ticketID, coopID, shopID *string
	if report.Evidence != nil {
		photoHash = nullIfEmpty(report.Evidence.PhotoHash)
		ticketID = nullIfEmpty(report.Evidence.TicketID)
	}
	if report.Contact != nil {
		coopID = nullIfEmpty(report.Contact.CoOpID)
		shopID = nullIfEmpty(report.Contact.ShopID)
	}

	var id string
	err := r.db.QueryRow(ctx,
		`INSERT INTO outbreak_reports (
			id, geohash5, crop, label, confidence, observed_at, source, status,
			photo_hash, ticket_id, coop_id, shop_id, device_id, field_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id::text`,
		report.ID,
		report.Geohash5,
		string(report.Crop),
		report.Label,
		report.Confidence,
		report.ObservedAt,
		string(report.Source),
		string(report.Status),
		photoHash,
		ticketID,
		coopID,
		shopID,
		nullIfEmpty(report.DeviceID),
		nullIfEmpty(report.FieldID),
		report.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to insert outbreak report", err)
	}
	return id, nil
}

// GetCountsByDay returns per-UTC-day counts for the window, oldest day first.
// Days without qualifying reports are omitted.
func (r *ReportRepository) GetCountsByDay(ctx context.Context, q outbreak.WindowQuery) ([]types.DailyCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT to_char(observed_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*)
		 FROM outbreak_reports
		 WHERE geohash5 = $1 AND crop = $2 AND observed_at >= $3
		   AND `+filterAt(4)+`
		 GROUP BY day
		 ORDER BY day`,
		q.Geohash5, string(q.Crop), r.cutoffHours(q.SinceHours), q.MinConfidence,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query daily counts", err)
	}
	defer rows.Close()

	out := []types.DailyCount{}
	for rows.Next() {
		var dc types.DailyCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan daily count row", err)
		}
		out = append(out, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating daily count rows", err)
	}
	return out, nil
}

// GetTopLabels returns up to limit labels by descending frequency. Ties are
// broken alphabetically so the ordering is stable across calls.
func (r *ReportRepository) GetTopLabels(ctx context.Context, q outbreak.WindowQuery, limit int) ([]types.LabelCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT label, COUNT(*) AS cnt
		 FROM outbreak_reports
		 WHERE geohash5 = $1 AND crop = $2 AND observed_at >= $3
		   AND `+filterAt(4)+`
		 GROUP BY label
		 ORDER BY cnt DESC, label ASC
		 LIMIT $5`,
		q.Geohash5, string(q.Crop), r.cutoffHours(q.SinceHours), q.MinConfidence, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query top labels", err)
	}
	defer rows.Close()

	out := []types.LabelCount{}
	for rows.Next() {
		var lc types.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan label row", err)
		}
		out = append(out, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating label rows", err)
	}
	return out, nil
}

// GetTotal returns the number of qualifying reports in the window.
func (r *ReportRepository) GetTotal(ctx context.Context, q outbreak.WindowQuery) (int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM outbreak_reports
		 WHERE geohash5 = $1 AND crop = $2 AND observed_at >= $3
		   AND `+filterAt(4),
		q.Geohash5, string(q.Crop), r.cutoffHours(q.SinceHours), q.MinConfidence,
	).Scan(&total)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count outbreak reports", err)
	}
	return total, nil
}

// GetUniqueFields counts distinct affected fields. A report without a field
// ID stands for a field of its own. Returns nil when nothing qualifies.
func (r *ReportRepository) GetUniqueFields(ctx context.Context, q outbreak.WindowQuery) (*int, error) {
	var unique *int
	err := r.db.QueryRow(ctx,
		`SELECT NULLIF(COUNT(DISTINCT COALESCE(field_id, id::text)), 0)
		 FROM outbreak_reports
		 WHERE geohash5 = $1 AND crop = $2 AND observed_at >= $3
		   AND `+filterAt(4),
		q.Geohash5, string(q.Crop), r.cutoffHours(q.SinceHours), q.MinConfidence,
	).Scan(&unique)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to count unique fields", err)
	}
	return unique, nil
}

// GetRadarCounts returns current-window counts for every requested cell with
// at least one qualifying report.
func (r *ReportRepository) GetRadarCounts(ctx context.Context, q outbreak.CellsQuery) ([]types.CellCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT geohash5, COUNT(*)
		 FROM outbreak_reports
		 WHERE geohash5 = ANY($1) AND crop = $2 AND observed_at >= $3
		   AND `+filterAt(4)+`
		 GROUP BY geohash5
		 ORDER BY geohash5`,
		q.Geohashes, string(q.Crop), r.cutoffHours(q.SinceHours), q.MinConfidence,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query radar counts", err)
	}
	defer rows.Close()

	out := []types.CellCount{}
	for rows.Next() {
		var cc types.CellCount
		if err := rows.Scan(&cc.Geohash5, &cc.Count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan radar count row", err)
		}
		out = append(out, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating radar count rows", err)
	}
	return out, nil
}

// GetDailyCountsByCell returns the per-day counts of every observed day in
// the trailing q.Days window, grouped by cell.
func (r *ReportRepository) GetDailyCountsByCell(ctx context.Context, q outbreak.CellsQuery) (map[string][]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT geohash5, date_trunc('day', observed_at AT TIME ZONE 'UTC') AS day, COUNT(*)
		 FROM outbreak_reports
		 WHERE geohash5 = ANY($1) AND crop = $2 AND observed_at >= $3
		   AND `+filterAt(4)+`
		 GROUP BY geohash5, day
		 ORDER BY geohash5, day`,
		q.Geohashes, string(q.Crop), r.cutoffHours(q.Days*24), q.MinConfidence,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query baseline series", err)
	}
	defer rows.Close()

	out := make(map[string][]int)
	for rows.Next() {
		var (
			gh    string
			day   time.Time
			count int
		)
		if err := rows.Scan(&gh, &day, &count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan baseline series row", err)
		}
		out[gh] = append(out[gh], count)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating baseline series rows", err)
	}
	return out, nil
}

// ListActiveCells returns the cells with at least one qualifying report in
// the trailing window, sorted.
func (r *ReportRepository) ListActiveCells(ctx context.Context, crop types.Crop, days int, minConfidence float64) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT geohash5
		 FROM outbreak_reports
		 WHERE crop = $1 AND observed_at >= $2
		   AND `+filterAt(3)+`
		 ORDER BY geohash5`,
		string(crop), r.cutoffHours(days*24), minConfidence,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list active cells", err)
	}
	defer rows.Close()

	var cells []string
	for rows.Next() {
		var gh string
		if err := rows.Scan(&gh); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan active cell row", err)
		}
		cells = append(cells, gh)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating active cell rows", err)
	}
	return cells, nil
}

// ListReportsByStatus returns reports with the given status created in
// [from, to), oldest first.
func (r *ReportRepository) ListReportsByStatus(ctx context.Context, status types.ReportStatus, from, to time.Time) ([]types.OutbreakReport, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text, geohash5, crop, label, confidence, observed_at, source, status,
		        photo_hash, ticket_id, coop_id, shop_id, device_id, field_id, created_at
		 FROM outbreak_reports
		 WHERE status = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at, id`,
		string(status), from, to,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list reports by status", err)
	}
	defer rows.Close()

	var out []types.OutbreakReport
	for rows.Next() {
		var (
			rep                                 types.OutbreakReport
			crop, source, st                    string
			photoHash, ticketID, coopID, shopID *string
			deviceID, fieldID                   *string
		)
		if err := rows.Scan(
			&rep.ID, &rep.Geohash5, &crop, &rep.Label, &rep.Confidence, &rep.ObservedAt, &source, &st,
			&photoHash, &ticketID, &coopID, &shopID, &deviceID, &fieldID, &rep.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan report row", err)
		}
		rep.Crop = types.Crop(crop)
		rep.Source = types.ReportSource(source)
		rep.Status = types.ReportStatus(st)
		if photoHash != nil || ticketID != nil {
			rep.Evidence = &types.Evidence{PhotoHash: deref(photoHash), TicketID: deref(ticketID)}
		}
		if coopID != nil || shopID != nil {
			rep.Contact = &types.Contact{CoOpID: deref(coopID), ShopID: deref(shopID)}
		}
		rep.DeviceID = deref(deviceID)
		rep.FieldID = deref(fieldID)
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating report rows", err)
	}
	return out, nil
}

func filterAt(placeholder int) string {
	return fmt.Sprintf(qualifyingFilter, placeholder)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
