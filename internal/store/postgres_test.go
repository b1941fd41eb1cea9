package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/navaids/internal/geo"
	"github.com/sells-group/navaids/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

var pointRowColumns = []string{
	"row_id", "id", "aid_name", "type", "light_list_number", "source",
	"summary", "characteristic", "location_description", "height",
	"nominal_range", "structure", "st_x", "st_y",
}

func samplePoints() []model.Point {
	return []model.Point{
		{
			ID:              model.String("D01-2024-0117"),
			AidName:         model.String("Race Rock Light"),
			Type:            model.String("Light"),
			LightListNumber: model.Float(19815),
			Source:          model.SourceDiscrepancy,
			Location:        model.NewLocation(-72.0467, 41.2436),
			Summary:         model.String("EXTINGUISHED"),
		},
		{
			AidName:  model.String("Plum Gut Light"),
			Source:   model.WeeklySource("1"),
			Location: model.NewLocation(-72.2106, 41.1739),
			Height:   model.Float(21),
			Range:    model.Float(5),
		},
	}
}

func TestPostgresStore_InsertAll(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"navaid", "points"}, copyColumns()).
		WillReturnResult(2)

	n, err := s.InsertAll(context.Background(), samplePoints())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertAll_RefusesInvalid(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	points := samplePoints()
	points[1].Location = nil

	_, err := s.InsertAll(context.Background(), points)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "point 1 refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Replace(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "navaid"."points"`).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectCopyFrom(pgx.Identifier{"navaid", "points"}, copyColumns()).
		WillReturnResult(2)
	mock.ExpectCommit()

	n, err := s.Replace(context.Background(), samplePoints())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Replace_CopyFailureRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "navaid"."points"`).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectCopyFrom(pgx.Identifier{"navaid", "points"}, copyColumns()).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := s.Replace(context.Background(), samplePoints())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replace points")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteAll(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM "navaid"."points"`).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindNear(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	radians := geo.MilesToRadians(5)
	mock.ExpectQuery(`ST_DWithin`).
		WithArgs(-72.05, 41.24, radians*geo.EarthRadiusMeters, 100).
		WillReturnRows(mock.NewRows(pointRowColumns).
			AddRow("row-1", model.String("D01-2024-0117"), model.String("Race Rock Light"), model.String("Light"),
				model.Float(19815), model.SourceDiscrepancy, model.String("EXTINGUISHED"), nil, nil, nil, nil, nil,
				-72.0467, 41.2436))

	points, err := s.FindNear(context.Background(), model.NewLocation(-72.05, 41.24), radians, 0)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "row-1", points[0].RowID)
	assert.Equal(t, "Race Rock Light", *points[0].AidName)
	assert.Nil(t, points[0].Characteristic)
	assert.InDelta(t, -72.0467, points[0].Lng(), 1e-9)
	assert.InDelta(t, 41.2436, points[0].Lat(), 1e-9)
	assert.Equal(t, model.SRID, points[0].Location.SRID())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindNear_NoCenter(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	_, err := s.FindNear(context.Background(), nil, 0.01, 10)
	require.Error(t, err)
}

func TestPostgresStore_FindWithin(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{-73, 41}, {-71, 41}, {-71, 42}, {-73, 42}, {-73, 41},
	}}).SetSRID(model.SRID)

	mock.ExpectQuery(`ST_Covers\(ST_SetSRID\(ST_GeomFromEWKB\(\$1\), 4326\), geom\)`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows(pointRowColumns))

	points, err := s.FindWithin(context.Background(), poly)
	require.NoError(t, err)
	assert.Empty(t, points)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_All_LoadOrder(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM navaid.points ORDER BY seq$`).
		WillReturnRows(mock.NewRows(pointRowColumns).
			AddRow("f3c1", nil, model.String("Race Rock Light"), nil, nil, model.SourceDiscrepancy,
				nil, nil, nil, nil, nil, nil, -72.0467, 41.2436).
			AddRow("0a9e", nil, model.String("Plum Gut Light"), nil, nil, model.WeeklySource("1"),
				nil, nil, nil, nil, nil, nil, -72.2106, 41.1739))

	points, err := s.All(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "Race Rock Light", *points[0].AidName)
	assert.Equal(t, "Plum Gut Light", *points[1].AidName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM navaid.points`).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RefreshLog(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO navaid.refresh_log`).
		WithArgs("swap").
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectExec(`UPDATE navaid.refresh_log\s+SET status = 'complete'`).
		WithArgs(int64(4), pgxmock.AnyArg(), int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	id, err := s.StartRefresh(ctx, "swap")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	require.NoError(t, s.CompleteRefresh(ctx, id, 4, map[string]any{"notice": 1}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRefresh(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE navaid.refresh_log\s+SET status = 'failed'`).
		WithArgs("no points fetched", int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FailRefresh(context.Background(), 3, "no points fetched"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LastSuccess(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT started_at FROM navaid.refresh_log`).
		WillReturnRows(mock.NewRows([]string{"started_at"}).AddRow(when))

	got, err := s.LastSuccess(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, when.Equal(*got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LastSuccess_Never(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT started_at FROM navaid.refresh_log`).
		WillReturnError(pgx.ErrNoRows)

	got, err := s.LastSuccess(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRefreshes(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	done := started.Add(time.Minute)
	mock.ExpectQuery(`FROM navaid.refresh_log ORDER BY started_at DESC`).
		WithArgs(5).
		WillReturnRows(mock.NewRows([]string{"id", "strategy", "status", "started_at", "completed_at", "rows_synced", "error", "metadata"}).
			AddRow(int64(2), "swap", "failed", started, &done, int64(0), model.String("boom"), nil).
			AddRow(int64(1), "swap", "complete", started, &done, int64(4), nil, []byte(`{"weekly":3}`)))

	runs, err := s.ListRefreshes(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, model.RefreshFailed, runs[0].Status)
	assert.Equal(t, "boom", runs[0].Error)
	assert.Equal(t, int64(4), runs[1].RowsSynced)
	assert.Equal(t, float64(3), runs[1].Metadata["weekly"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	names, err := migrationNames()
	require.NoError(t, err)
	require.Equal(t, []string{"001_points.sql", "002_refresh_log.sql", "003_points_seq.sql"}, names)

	mock.ExpectExec(`SELECT pg_advisory_lock`).WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS navaid`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(`SELECT filename FROM navaid.schema_migrations`).
		WillReturnRows(mock.NewRows([]string{"filename"}).AddRow("001_points.sql"))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS navaid.refresh_log`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`INSERT INTO navaid.schema_migrations`).WithArgs("002_refresh_log.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`ALTER TABLE navaid.points ADD COLUMN IF NOT EXISTS seq BIGSERIAL`).
		WillReturnResult(pgxmock.NewResult("ALTER", 0))
	mock.ExpectExec(`INSERT INTO navaid.schema_migrations`).WithArgs("003_points_seq.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
