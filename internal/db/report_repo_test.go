package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cropradar/internal/outbreak"
	"cropradar/internal/types"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var repoNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func newTestRepo() (*ReportRepository, *mockDBTX) {
	m := new(mockDBTX)
	return NewReportRepository(m, fixedClock{now: repoNow}), m
}

func windowQuery() outbreak.WindowQuery {
	return outbreak.WindowQuery{Geohash5: "w4rqn", Crop: types.CropRice, SinceHours: 72, MinConfidence: 0.75}
}

func requireDBError(t *testing.T, err error) {
	t.Helper()
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestReportRepository_InsertReport(t *testing.T) {
	repo, m := newTestRepo()
	conf := 0.9
	report := &types.OutbreakReport{
		ID:         "0b7e3c1e-8d0f-4b55-9a3e-7f9d5a0c1b2d",
		Geohash5:   "w4rqn",
		Crop:       types.CropRice,
		Label:      "rice_blast",
		Confidence: &conf,
		ObservedAt: repoNow.Add(-time.Hour),
		Source:     types.SourceScan,
		Evidence:   &types.Evidence{PhotoHash: "sha256:abc"},
		Status:     types.StatusQueued,
		CreatedAt:  repoNow,
	}

	m.On("QueryRow", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "INSERT INTO outbreak_reports")
	}), mock.MatchedBy(func(args []any) bool {
		// ticket_id, coop_id, shop_id, device_id, field_id are stored as NULL.
		return len(args) == 15 &&
			args[0] == report.ID &&
			args[6] == "scan" &&
			args[7] == "queued" &&
			*(args[8].(*string)) == "sha256:abc" &&
			args[9].(*string) == nil &&
			args[13].(*string) == nil
	})).Return(&mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*string) = report.ID
		return nil
	}})

	id, err := repo.InsertReport(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, report.ID, id)
	m.AssertExpectations(t)
}

func TestReportRepository_InsertReport_DBError(t *testing.T) {
	repo, m := newTestRepo()
	m.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("unique violation")})

	id, err := repo.InsertReport(context.Background(), &types.OutbreakReport{ID: "x"})
	assert.Empty(t, id)
	requireDBError(t, err)
}

func TestReportRepository_WindowReadsUseCutoffAndFilter(t *testing.T) {
	repo, m := newTestRepo()
	wantCutoff := repoNow.Add(-72 * time.Hour)

	m.On("QueryRow", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "confidence >= $4 OR (confidence IS NULL AND source <> 'scan')")
	}), []any{"w4rqn", "rice", wantCutoff, 0.75}).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*int) = 7
			return nil
		}})

	total, err := repo.GetTotal(context.Background(), windowQuery())
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	m.AssertExpectations(t)
}

func TestReportRepository_GetCountsByDay(t *testing.T) {
	repo, m := newTestRepo()
	rows := newMockRows([][]any{
		{"2026-03-02", 2},
		{"2026-03-03", 5},
	})
	m.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	got, err := repo.GetCountsByDay(context.Background(), windowQuery())
	require.NoError(t, err)
	assert.Equal(t, []types.DailyCount{
		{Date: "2026-03-02", Count: 2},
		{Date: "2026-03-03", Count: 5},
	}, got)
	assert.True(t, rows.closed)
}

func TestReportRepository_GetCountsByDay_EmptyIsNotNil(t *testing.T) {
	repo, m := newTestRepo()
	m.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(newMockRows(nil), nil)

	got, err := repo.GetCountsByDay(context.Background(), windowQuery())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReportRepository_GetTopLabels_PassesLimit(t *testing.T) {
	repo, m := newTestRepo()
	m.On("Query", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "LIMIT $5")
	}), mock.MatchedBy(func(args []any) bool {
		return len(args) == 5 && args[4] == 5
	})).Return(newMockRows([][]any{{"rice_blast", 4}, {"brown_spot", 1}}), nil)

	got, err := repo.GetTopLabels(context.Background(), windowQuery(), 5)
	require.NoError(t, err)
	assert.Equal(t, []types.LabelCount{{Label: "rice_blast", Count: 4}, {Label: "brown_spot", Count: 1}}, got)
	m.AssertExpectations(t)
}

func TestReportRepository_GetUniqueFields(t *testing.T) {
	t.Run("some", func(t *testing.T) {
		repo, m := newTestRepo()
		m.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(&mockRow{scanFn: func(dest ...any) error {
				n := 3
				*dest[0].(**int) = &n
				return nil
			}})

		got, err := repo.GetUniqueFields(context.Background(), windowQuery())
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 3, *got)
	})

	t.Run("none", func(t *testing.T) {
		repo, m := newTestRepo()
		m.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(&mockRow{scanFn: func(dest ...any) error { return nil }})

		got, err := repo.GetUniqueFields(context.Background(), windowQuery())
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestReportRepository_GetRadarCounts(t *testing.T) {
	repo, m := newTestRepo()
	cells := []string{"w4rqn", "w4rqp"}
	m.On("Query", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "geohash5 = ANY($1)")
	}), []any{cells, "durian", repoNow.Add(-24 * time.Hour), 0.5}).
		Return(newMockRows([][]any{{"w4rqn", 4}}), nil)

	got, err := repo.GetRadarCounts(context.Background(), outbreak.CellsQuery{
		Geohashes:     cells,
		Crop:          types.CropDurian,
		SinceHours:    24,
		MinConfidence: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, []types.CellCount{{Geohash5: "w4rqn", Count: 4}}, got)
	m.AssertExpectations(t)
}

func TestReportRepository_GetDailyCountsByCell(t *testing.T) {
	repo, m := newTestRepo()
	d1 := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 3)
	m.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return args[2] == repoNow.Add(-30*24*time.Hour)
	})).Return(newMockRows([][]any{
		{"w4rqn", d1, 2},
		{"w4rqn", d2, 6},
		{"w4rqp", d1, 1},
	}), nil)

	got, err := repo.GetDailyCountsByCell(context.Background(), outbreak.CellsQuery{
		Geohashes:     []string{"w4rqn", "w4rqp", "w4rqq"},
		Crop:          types.CropRice,
		Days:          30,
		MinConfidence: 0.75,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"w4rqn": {2, 6}, "w4rqp": {1}}, got)
	m.AssertExpectations(t)
}

func TestReportRepository_QueryErrorsAreWrapped(t *testing.T) {
	queryErr := errors.New("connection refused")

	tests := []struct {
		name string
		call func(*ReportRepository) error
	}{
		{"counts by day", func(r *ReportRepository) error {
			_, err := r.GetCountsByDay(context.Background(), windowQuery())
			return err
		}},
		{"top labels", func(r *ReportRepository) error {
			_, err := r.GetTopLabels(context.Background(), windowQuery(), 5)
			return err
		}},
		{"radar counts", func(r *ReportRepository) error {
			_, err := r.GetRadarCounts(context.Background(), outbreak.CellsQuery{Geohashes: []string{"w4rqn"}})
			return err
		}},
		{"daily by cell", func(r *ReportRepository) error {
			_, err := r.GetDailyCountsByCell(context.Background(), outbreak.CellsQuery{Geohashes: []string{"w4rqn"}})
			return err
		}},
		{"active cells", func(r *ReportRepository) error {
			_, err := r.ListActiveCells(context.Background(), types.CropRice, 30, 0.75)
			return err
		}},
		{"by status", func(r *ReportRepository) error {
			_, err := r.ListReportsByStatus(context.Background(), types.StatusPendingReview, repoNow.Add(-24*time.Hour), repoNow)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, m := newTestRepo()
			m.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil, queryErr)

			err := tt.call(repo)
			requireDBError(t, err)
			assert.ErrorIs(t, err, queryErr)
		})
	}
}

func TestReportRepository_RowsErr(t *testing.T) {
	repo, m := newTestRepo()
	rows := newMockRows(nil)
	rows.errVal = errors.New("cursor closed")
	m.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	_, err := repo.GetRadarCounts(context.Background(), outbreak.CellsQuery{Geohashes: []string{"w4rqn"}})
	requireDBError(t, err)
}

func TestReportRepository_ListActiveCells(t *testing.T) {
	repo, m := newTestRepo()
	m.On("Query", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "confidence >= $3")
	}), []any{"rice", repoNow.Add(-30 * 24 * time.Hour), 0.75}).
		Return(newMockRows([][]any{{"w4rqn"}, {"w4rqp"}}), nil)

	got, err := repo.ListActiveCells(context.Background(), types.CropRice, 30, 0.75)
	require.NoError(t, err)
	assert.Equal(t, []string{"w4rqn", "w4rqp"}, got)
}

func TestReportRepository_ListReportsByStatus(t *testing.T) {
	repo, m := newTestRepo()
	from := repoNow.Add(-24 * time.Hour)
	conf := 0.4
	photo := "sha256:abc"
	field := "field-7"

	m.On("Query", mock.Anything, mock.AnythingOfType("string"), []any{"pending_review", from, repoNow}).
		Return(newMockRows([][]any{
			{"r1", "w4rqn", "rice", "rice_blast", &conf, from.Add(time.Hour), "scan", "pending_review",
				&photo, nil, nil, nil, nil, &field, from.Add(2 * time.Hour)},
			{"r2", "w4rqp", "durian", "leaf_spot", nil, from.Add(3 * time.Hour), "manual", "pending_review",
				nil, nil, nil, nil, nil, nil, from.Add(4 * time.Hour)},
		}), nil)

	got, err := repo.ListReportsByStatus(context.Background(), types.StatusPendingReview, from, repoNow)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, types.CropRice, got[0].Crop)
	assert.Equal(t, types.SourceScan, got[0].Source)
	require.NotNil(t, got[0].Confidence)
	assert.Equal(t, 0.4, *got[0].Confidence)
	require.NotNil(t, got[0].Evidence)
	assert.Equal(t, "sha256:abc", got[0].Evidence.PhotoHash)
	assert.Nil(t, got[0].Contact)
	assert.Equal(t, "field-7", got[0].FieldID)

	assert.Nil(t, got[1].Confidence)
	assert.Nil(t, got[1].Evidence)
	assert.Equal(t, types.StatusPendingReview, got[1].Status)
}

func TestEnsureSchema(t *testing.T) {
	m := new(mockDBTX)
	m.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "CREATE TABLE IF NOT EXISTS outbreak_reports")
	}), mock.Anything).Return(pgconn.NewCommandTag("CREATE TABLE"), nil)

	require.NoError(t, EnsureSchema(context.Background(), m))
	m.AssertExpectations(t)
}

func TestEnsureSchema_Error(t *testing.T) {
	m := new(mockDBTX)
	m.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("permission denied"))

	assert.Error(t, EnsureSchema(context.Background(), m))
}
