package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/navaids/internal/config"
	"github.com/sells-group/navaids/internal/geo"
	"github.com/sells-group/navaids/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func square(minLng, minLat, maxLng, maxLat float64) []geom.Coord {
	return []geom.Coord{
		{minLng, minLat}, {maxLng, minLat}, {maxLng, maxLat}, {minLng, maxLat}, {minLng, minLat},
	}
}

func TestSQLiteStore_InsertAndAll(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := s.InsertAll(ctx, samplePoints())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	first := all[0]
	assert.NotEmpty(t, first.RowID)
	assert.Equal(t, "D01-2024-0117", *first.ID)
	assert.Equal(t, 19815.0, *first.LightListNumber)
	assert.Equal(t, model.SourceDiscrepancy, first.Source)
	assert.Nil(t, first.Height)
	assert.InDelta(t, -72.0467, first.Lng(), 1e-9)

	second := all[1]
	assert.Nil(t, second.ID)
	assert.Equal(t, "weekly district 1", second.Source)
	assert.Equal(t, 5.0, *second.Range)
	assert.NotEqual(t, first.RowID, second.RowID)
}

func TestSQLiteStore_RowIDsDifferAcrossInserts(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	pts := samplePoints()[:1]
	_, err := s.InsertAll(ctx, pts)
	require.NoError(t, err)
	_, err = s.InsertAll(ctx, pts)
	require.NoError(t, err)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, *all[0].ID, *all[1].ID)
	assert.NotEqual(t, all[0].RowID, all[1].RowID)
}

func TestSQLiteStore_InsertAll_RefusesInvalid(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	points := samplePoints()
	points[0].Location = model.NewLocation(-200, 41)

	_, err := s.InsertAll(ctx, points)
	require.Error(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStore_ReplaceAndDelete(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.InsertAll(ctx, samplePoints())
	require.NoError(t, err)

	n, err := s.Replace(ctx, samplePoints()[1:])
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	bad := samplePoints()
	bad[1].Source = ""
	_, err = s.Replace(ctx, bad)
	require.Error(t, err)

	count, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "failed replace keeps prior points")

	deleted, err := s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestSQLiteStore_FindNear(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.InsertAll(ctx, append(samplePoints(), model.Point{
		Source:   model.WeeklySource("7"),
		Location: model.NewLocation(-80.1, 25.7),
	}))
	require.NoError(t, err)

	// Race Rock is about 0.3 mi away, Plum Gut about 9 mi.
	center := model.NewLocation(-72.05, 41.24)

	near, err := s.FindNear(ctx, center, geo.MilesToRadians(5), 100)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, "Race Rock Light", *near[0].AidName)

	wider, err := s.FindNear(ctx, center, geo.MilesToRadians(20), 100)
	require.NoError(t, err)
	require.Len(t, wider, 2)
	assert.Equal(t, "Race Rock Light", *wider[0].AidName, "nearest first")
	assert.Equal(t, "Plum Gut Light", *wider[1].AidName)

	limited, err := s.FindNear(ctx, center, geo.MilesToRadians(20), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_FindNear_HighLatitudeBoxEdge(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.InsertAll(ctx, []model.Point{{
		AidName:  model.String("Edge Buoy"),
		Source:   model.WeeklySource("17"),
		Location: model.NewLocation(29.5, 63.43),
	}})
	require.NoError(t, err)

	r := geo.MilesToRadians(1000)
	require.LessOrEqual(t, geo.CentralAngle(0, 60, 29.5, 63.43), r)

	near, err := s.FindNear(ctx, model.NewLocation(0, 60), r, 100)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, "Edge Buoy", *near[0].AidName)
}

func TestSQLiteStore_FindWithin(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.InsertAll(ctx, []model.Point{
		{Source: "a", Location: model.NewLocation(0.5, 0.5)},
		{Source: "b", Location: model.NewLocation(2.5, 2.5)},
		{Source: "c", Location: model.NewLocation(5, 5)},
		{Source: "d", Location: model.NewLocation(0, 1)},
		{Source: "e", Location: model.NewLocation(9, 9)},
	})
	require.NoError(t, err)

	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		square(0, 0, 6, 6),
		square(2, 2, 3, 3),
	})

	got, err := s.FindWithin(ctx, poly)
	require.NoError(t, err)

	var sources []string
	for _, p := range got {
		sources = append(sources, p.Source)
	}
	// b sits in the hole, d on the outer boundary, e outside.
	assert.Equal(t, []string{"a", "c", "d"}, sources)
}

func TestSQLiteStore_RefreshLog(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	last, err := s.LastSuccess(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	ok, err := s.StartRefresh(ctx, config.StrategySwap)
	require.NoError(t, err)
	require.NoError(t, s.CompleteRefresh(ctx, ok, 4, map[string]any{"notice": 1, "weekly": 3}))

	failed, err := s.StartRefresh(ctx, config.StrategySwap)
	require.NoError(t, err)
	require.NoError(t, s.FailRefresh(ctx, failed, "no points fetched"))

	runs, err := s.ListRefreshes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, failed, runs[0].ID)
	assert.Equal(t, model.RefreshFailed, runs[0].Status)
	assert.Equal(t, "no points fetched", runs[0].Error)
	assert.Equal(t, model.RefreshComplete, runs[1].Status)
	assert.Equal(t, int64(4), runs[1].RowsSynced)
	assert.Equal(t, float64(3), runs[1].Metadata["weekly"])
	assert.NotNil(t, runs[1].CompletedAt)

	last, err = s.LastSuccess(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)

	err = s.FailRefresh(ctx, 999, "missing")
	assert.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "open.db"),
	})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate(context.Background()))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
