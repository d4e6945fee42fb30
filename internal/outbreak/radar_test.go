package outbreak

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropradar/internal/types"
)

func TestRadar_SurgingAgainstBaseline(t *testing.T) {
	repo := &fakeRepo{cells: []types.CellCount{{Geohash5: "w4rqn", Count: 5}}}
	baselines := &stubBaselines{stats: map[string]types.BaselineStat{
		"w4rqn": {Geohash5: "w4rqn", Median: 2, Sigma: 1},
	}}
	radar := NewRadarAssembler(repo, baselines, DefaultThresholds(), nil, nil)

	resp, err := radar.GetRadar(context.Background(), types.RadarQuery{
		Geohashes: []string{"w4rqn"},
		Crop:      types.CropRice,
	})
	require.NoError(t, err)

	require.Len(t, resp.Buckets, 1)
	b := resp.Buckets[0]
	assert.Equal(t, "w4rqn", b.Geohash5)
	require.NotNil(t, b.Count)
	assert.Equal(t, 5, *b.Count)
	assert.Equal(t, types.SeveritySurging, b.Severity)
	assert.True(t, b.KAnonymity)
	assert.Equal(t, 72, resp.SinceHours)
	assert.Equal(t, Legend(), resp.Legend)
}

func TestRadar_MissingBaselineUsesDefault(t *testing.T) {
	repo := &fakeRepo{cells: []types.CellCount{
		{Geohash5: "w4rqp", Count: 1},
		{Geohash5: "w4rqn", Count: 2},
	}}
	radar := NewRadarAssembler(repo, &stubBaselines{}, DefaultThresholds(), nil, nil)

	resp, err := radar.GetRadar(context.Background(), types.RadarQuery{
		Geohashes: []string{"w4rqp", "w4rqn"},
		Crop:      types.CropDurian,
	})
	require.NoError(t, err)

	require.Len(t, resp.Buckets, 2)
	assert.Equal(t, "w4rqn", resp.Buckets[0].Geohash5, "buckets are sorted by geohash")
	for _, b := range resp.Buckets {
		assert.Equal(t, types.SeveritySurging, b.Severity, "any report in a cell without history is surging")
		assert.False(t, b.KAnonymity)
	}
}

func TestRadar_StableWithinBand(t *testing.T) {
	repo := &fakeRepo{cells: []types.CellCount{{Geohash5: "w4rqn", Count: 4}}}
	baselines := &stubBaselines{stats: map[string]types.BaselineStat{
		"w4rqn": {Geohash5: "w4rqn", Median: 3, Sigma: 1},
	}}

	resp, err := NewRadarAssembler(repo, baselines, DefaultThresholds(), nil, nil).GetRadar(context.Background(), types.RadarQuery{
		Geohashes: []string{"w4rqn"},
		Crop:      types.CropRice,
	})
	require.NoError(t, err)
	require.Len(t, resp.Buckets, 1)
	assert.Equal(t, types.SeverityStable, resp.Buckets[0].Severity, "a count on the band edge stays in the lower band")
}

func TestRadar_DedupesAndNormalizesCells(t *testing.T) {
	repo := &fakeRepo{}
	radar := NewRadarAssembler(repo, &stubBaselines{}, DefaultThresholds(), nil, nil)

	_, err := radar.GetRadar(context.Background(), types.RadarQuery{
		Geohashes:     []string{"W4RQN", "w4rqn", " w4rqp ", ""},
		Crop:          types.CropRice,
		SinceHours:    24,
		MinConfidence: floatPtr(0.5),
	})
	require.NoError(t, err)

	require.Len(t, repo.cellQueries, 1)
	q := repo.cellQueries[0]
	assert.Equal(t, []string{"w4rqn", "w4rqp"}, q.Geohashes)
	assert.Equal(t, 24, q.SinceHours)
	assert.Equal(t, 0.5, q.MinConfidence)
}

func TestRadar_NoCellsSkipsStorage(t *testing.T) {
	repo := &fakeRepo{}
	baselines := &stubBaselines{}
	metrics := &recordingMetrics{}

	resp, err := NewRadarAssembler(repo, baselines, DefaultThresholds(), metrics, nil).GetRadar(context.Background(), types.RadarQuery{Crop: types.CropRice})
	require.NoError(t, err)

	assert.Empty(t, resp.Buckets)
	assert.NotNil(t, resp.Buckets)
	assert.Empty(t, repo.cellQueries)
	assert.Zero(t, baselines.calls)
	assert.Empty(t, metrics.radar)
}

func TestRadar_ErrorsPropagateUnchanged(t *testing.T) {
	t.Run("counts", func(t *testing.T) {
		storageErr := errors.New("connection reset")
		repo := &fakeRepo{cellsErr: storageErr}

		resp, err := NewRadarAssembler(repo, &stubBaselines{}, DefaultThresholds(), nil, nil).GetRadar(context.Background(), types.RadarQuery{
			Geohashes: []string{"w4rqn"},
			Crop:      types.CropRice,
		})
		assert.Nil(t, resp)
		assert.Same(t, storageErr, err)
	})

	t.Run("baselines", func(t *testing.T) {
		baselineErr := errors.New("baseline read failed")
		repo := &fakeRepo{cells: []types.CellCount{{Geohash5: "w4rqn", Count: 5}}}

		resp, err := NewRadarAssembler(repo, &stubBaselines{err: baselineErr}, DefaultThresholds(), nil, nil).GetRadar(context.Background(), types.RadarQuery{
			Geohashes: []string{"w4rqn"},
			Crop:      types.CropRice,
		})
		assert.Nil(t, resp)
		assert.Same(t, baselineErr, err)
	})
}

func TestRadar_RecordsSeverityDistribution(t *testing.T) {
	repo := &fakeRepo{cells: []types.CellCount{
		{Geohash5: "w4rqn", Count: 5},
		{Geohash5: "w4rqp", Count: 3},
		{Geohash5: "w4rqq", Count: 2},
	}}
	baselines := &stubBaselines{stats: map[string]types.BaselineStat{
		"w4rqn": {Median: 2, Sigma: 1},
		"w4rqp": {Median: 1, Sigma: 1.5},
		"w4rqq": {Median: 2, Sigma: 1},
	}}
	metrics := &recordingMetrics{}

	_, err := NewRadarAssembler(repo, baselines, DefaultThresholds(), metrics, nil).GetRadar(context.Background(), types.RadarQuery{
		Geohashes: []string{"w4rqn", "w4rqp", "w4rqq"},
		Crop:      types.CropRice,
	})
	require.NoError(t, err)

	require.Len(t, metrics.radar, 1)
	assert.Equal(t, map[types.Severity]int{
		types.SeveritySurging: 1,
		types.SeverityRising:  1,
		types.SeverityStable:  1,
	}, metrics.radar[0])
}
