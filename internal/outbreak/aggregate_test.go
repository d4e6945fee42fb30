package outbreak

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropradar/internal/types"
)

func newTestAggregator(repo *fakeRepo) *Aggregator {
	return NewAggregator(repo, DefaultThresholds(), &fixedClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}, nil)
}

func TestAggregator_AppliesDefaults(t *testing.T) {
	repo := &fakeRepo{}
	_, err := newTestAggregator(repo).GetOutbreak(context.Background(), types.OutbreakQuery{
		Geohash5: "W4RQN",
		Crop:     types.CropRice,
	})
	require.NoError(t, err)

	require.Len(t, repo.windowQueries, 4, "trend, labels, total, and unique fields are each read once")
	for _, q := range repo.windowQueries {
		assert.Equal(t, WindowQuery{
			Geohash5:      "w4rqn",
			Crop:          types.CropRice,
			SinceHours:    72,
			MinConfidence: 0.75,
		}, q)
	}
	assert.Equal(t, DefaultTopLabels, repo.labelLimit)
}

func TestAggregator_CallerWindowAndConfidence(t *testing.T) {
	repo := &fakeRepo{}
	resp, err := newTestAggregator(repo).GetOutbreak(context.Background(), types.OutbreakQuery{
		Geohash5:      "w4rqn",
		Crop:          types.CropDurian,
		SinceHours:    24,
		MinConfidence: floatPtr(0.9),
	})
	require.NoError(t, err)

	assert.Equal(t, 24, resp.WindowHours)
	assert.Equal(t, 0.9, resp.Confidence.MinConfidence)
	for _, q := range repo.windowQueries {
		assert.Equal(t, 24, q.SinceHours)
		assert.Equal(t, 0.9, q.MinConfidence)
	}
}

func TestAggregator_KAnonymity(t *testing.T) {
	for total := 0; total <= 6; total++ {
		repo := &fakeRepo{total: total}
		resp, err := newTestAggregator(repo).GetOutbreak(context.Background(), types.OutbreakQuery{Geohash5: "w4rqn", Crop: types.CropRice})
		require.NoError(t, err)
		assert.Equal(t, total >= 3, resp.Confidence.KAnonymity, "total=%d", total)
	}
}

func TestAggregator_MergesReads(t *testing.T) {
	repo := &fakeRepo{
		trend: []types.DailyCount{
			{Date: "2026-02-28", Count: 1},
			{Date: "2026-03-01", Count: 4},
		},
		labels: []types.LabelCount{
			{Label: "rice_blast", Count: 3},
			{Label: "sheath_blight", Count: 2},
		},
		total:   5,
		uniques: intPtr(4),
	}

	resp, err := newTestAggregator(repo).GetOutbreak(context.Background(), types.OutbreakQuery{Geohash5: "w4rqn", Crop: types.CropRice})
	require.NoError(t, err)

	want := &types.OutbreakResponse{
		Geohash5:     "w4rqn",
		Crop:         types.CropRice,
		WindowHours:  72,
		TotalReports: 5,
		UniqueFields: intPtr(4),
		TopLabels:    repo.labels,
		Trend:        repo.trend,
		Confidence:   types.ResponseConfidence{KAnonymity: true, MinConfidence: 0.75},
		LastUpdated:  time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("GetOutbreak() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregator_EmptyCellHasEmptySlices(t *testing.T) {
	resp, err := newTestAggregator(&fakeRepo{}).GetOutbreak(context.Background(), types.OutbreakQuery{Geohash5: "w4rqn", Crop: types.CropRice})
	require.NoError(t, err)

	assert.NotNil(t, resp.TopLabels)
	assert.NotNil(t, resp.Trend)
	assert.Nil(t, resp.UniqueFields)
	assert.False(t, resp.Confidence.KAnonymity)
}

func TestAggregator_AnyReadFailureFailsWhole(t *testing.T) {
	storageErr := errors.New("statement timeout")

	cases := map[string]func(*fakeRepo){
		"trend":   func(r *fakeRepo) { r.trendErr = storageErr },
		"labels":  func(r *fakeRepo) { r.labelsErr = storageErr },
		"total":   func(r *fakeRepo) { r.totalErr = storageErr },
		"uniques": func(r *fakeRepo) { r.uniquesErr = storageErr },
	}
	for name, breakRepo := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &fakeRepo{total: 10}
			breakRepo(repo)

			resp, err := newTestAggregator(repo).GetOutbreak(context.Background(), types.OutbreakQuery{Geohash5: "w4rqn", Crop: types.CropRice})
			assert.Nil(t, resp)
			assert.Same(t, storageErr, err)
		})
	}
}

func TestAggregator_RepeatedQueriesAreIdentical(t *testing.T) {
	repo := &fakeRepo{
		trend:   []types.DailyCount{{Date: "2026-03-01", Count: 3}},
		labels:  []types.LabelCount{{Label: "rice_blast", Count: 3}},
		total:   3,
		uniques: intPtr(2),
	}
	clock := &fixedClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
	agg := NewAggregator(repo, DefaultThresholds(), clock, nil)
	q := types.OutbreakQuery{Geohash5: "w4rqn", Crop: types.CropRice}

	first, err := agg.GetOutbreak(context.Background(), q)
	require.NoError(t, err)
	clock.now = clock.now.Add(time.Minute)
	second, err := agg.GetOutbreak(context.Background(), q)
	require.NoError(t, err)

	assert.NotEqual(t, first.LastUpdated, second.LastUpdated)
	if diff := cmp.Diff(first, second, cmpopts.IgnoreFields(types.OutbreakResponse{}, "LastUpdated")); diff != "" {
		t.Errorf("repeated query mismatch (-first +second):\n%s", diff)
	}
}
