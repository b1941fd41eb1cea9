package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/navaids/internal/db"
	"github.com/sells-group/navaids/internal/geo"
	"github.com/sells-group/navaids/internal/model"
)

// pointsTable holds the live navigational aids.
const pointsTable db.Table = "navaid.points"

const selectPoints = `SELECT row_id, id, aid_name, type, light_list_number, source,
	summary, characteristic, location_description, height, nominal_range, structure,
	ST_X(geom), ST_Y(geom)
	FROM navaid.points`

// PostgresStore implements Store on PostGIS using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Migrate applies the embedded schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InsertAll bulk-loads points with COPY, storing each location as EWKB.
func (s *PostgresStore) InsertAll(ctx context.Context, points []model.Point) (int64, error) {
	rows, err := copyRows(points)
	if err != nil {
		return 0, err
	}
	n, err := db.CopyFrom(ctx, s.pool, pointsTable, copyColumns(), rows)
	return n, eris.Wrap(err, "postgres: insert points")
}

// DeleteAll removes every stored point.
func (s *PostgresStore) DeleteAll(ctx context.Context) (int64, error) {
	n, err := db.DeleteAll(ctx, s.pool, pointsTable)
	return n, eris.Wrap(err, "postgres: delete points")
}

// Replace swaps the stored points for the given set in one transaction.
func (s *PostgresStore) Replace(ctx context.Context, points []model.Point) (int64, error) {
	rows, err := copyRows(points)
	if err != nil {
		return 0, err
	}
	n, err := db.ReplaceAll(ctx, s.pool, pointsTable, copyColumns(), rows)
	return n, eris.Wrap(err, "postgres: replace points")
}

// FindNear returns points within radiusRadians of center, nearest first.
func (s *PostgresStore) FindNear(ctx context.Context, center *geom.Point, radiusRadians float64, limit int) ([]model.Point, error) {
	if center == nil || center.Empty() {
		return nil, eris.New("postgres: find near: no center")
	}
	rows, err := s.pool.Query(ctx, selectPoints+`
		WHERE ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY geom::geography <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		LIMIT $4`,
		center.X(), center.Y(), radiusRadians*geo.EarthRadiusMeters, normalizeLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find near")
	}
	return collectPoints(rows)
}

// FindWithin returns points covered by polygon, boundary included.
func (s *PostgresStore) FindWithin(ctx context.Context, polygon *geom.Polygon) ([]model.Point, error) {
	if polygon == nil || polygon.Empty() {
		return nil, eris.New("postgres: find within: no polygon")
	}
	wkb, err := ewkb.Marshal(polygon, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode polygon")
	}
	rows, err := s.pool.Query(ctx, selectPoints+`
		WHERE ST_Covers(ST_SetSRID(ST_GeomFromEWKB($1), 4326), geom)`,
		wkb,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find within")
	}
	return collectPoints(rows)
}

// All returns every stored point in insertion order.
func (s *PostgresStore) All(ctx context.Context) ([]model.Point, error) {
	rows, err := s.pool.Query(ctx, selectPoints+` ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: all points")
	}
	return collectPoints(rows)
}

// Count returns the number of stored points.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM navaid.points`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count points")
	}
	return n, nil
}

func copyColumns() []string {
	return append(append([]string{}, pointColumns...), "geom")
}

// copyRows validates points and builds COPY rows with EWKB geometry last.
func copyRows(points []model.Point) ([][]any, error) {
	if err := validatePoints(points); err != nil {
		return nil, err
	}
	rows := make([][]any, 0, len(points))
	for i := range points {
		loc := model.NewLocation(points[i].Lng(), points[i].Lat())
		wkb, err := ewkb.Marshal(loc, ewkb.NDR)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: encode point %d", i)
		}
		rows = append(rows, append(attrs(uuid.New().String(), &points[i]), wkb))
	}
	return rows, nil
}

func collectPoints(rows pgx.Rows) ([]model.Point, error) {
	defer rows.Close()

	var points []model.Point
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: iterate points")
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
