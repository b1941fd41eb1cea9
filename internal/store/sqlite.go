package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
	_ "modernc.org/sqlite"

	"github.com/sells-group/navaids/internal/geo"
	"github.com/sells-group/navaids/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Coordinates are
// plain columns and spatial predicates run in Go.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS points (
	row_id               TEXT PRIMARY KEY,
	id                   TEXT,
	aid_name             TEXT,
	type                 TEXT,
	light_list_number    REAL,
	source               TEXT NOT NULL,
	summary              TEXT,
	characteristic       TEXT,
	location_description TEXT,
	height               REAL,
	nominal_range        REAL,
	structure            TEXT,
	lng                  REAL NOT NULL,
	lat                  REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_points_lat_lng ON points(lat, lng);
CREATE INDEX IF NOT EXISTS idx_points_source ON points(source);

CREATE TABLE IF NOT EXISTS refresh_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy     TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	rows_synced  INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	metadata     TEXT
);

CREATE INDEX IF NOT EXISTS idx_refresh_log_started ON refresh_log(started_at);
`

const sqliteSelectPoints = `SELECT row_id, id, aid_name, type, light_list_number, source,
	summary, characteristic, location_description, height, nominal_range, structure,
	lng, lat FROM points`

// Migrate creates the tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertAll inserts points in one transaction.
func (s *SQLiteStore) InsertAll(ctx context.Context, points []model.Point) (int64, error) {
	if err := validatePoints(points); err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) (int64, error) {
		return insertPoints(ctx, tx, points)
	})
}

// DeleteAll removes every stored point.
func (s *SQLiteStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM points`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete points")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// Replace deletes the stored points and inserts the new set in one
// transaction. On failure the prior points remain.
func (s *SQLiteStore) Replace(ctx context.Context, points []model.Point) (int64, error) {
	if err := validatePoints(points); err != nil {
		return 0, err
	}
	return s.inTx(ctx, func(tx *sql.Tx) (int64, error) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM points`); err != nil {
			return 0, eris.Wrap(err, "sqlite: replace: delete points")
		}
		return insertPoints(ctx, tx, points)
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) (int64, error)) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	n, err := fn(tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return n, nil
}

func insertPoints(ctx context.Context, tx *sql.Tx, points []model.Point) (int64, error) {
	cols := append(append([]string{}, pointColumns...), "lng", "lat")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO points (`+strings.Join(cols, ", ")+`) VALUES (`+placeholders+`)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	for i := range points {
		args := append(attrs(uuid.New().String(), &points[i]), points[i].Lng(), points[i].Lat())
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert point %d", i)
		}
	}
	return int64(len(points)), nil
}

// FindNear returns points within radiusRadians of center, nearest first.
// A bounding box narrows the scan before the great-circle check.
func (s *SQLiteStore) FindNear(ctx context.Context, center *geom.Point, radiusRadians float64, limit int) ([]model.Point, error) {
	if center == nil || center.Empty() {
		return nil, eris.New("sqlite: find near: no center")
	}
	lng, lat := center.X(), center.Y()
	box := geo.BoundingBox(lng, lat, radiusRadians)

	candidates, err := s.query(ctx, sqliteSelectPoints+`
		WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`,
		box.MinLat, box.MaxLat, box.MinLng, box.MaxLng,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find near")
	}

	type hit struct {
		p     model.Point
		angle float64
	}
	var hits []hit
	for _, p := range candidates {
		if a := geo.CentralAngle(lng, lat, p.Lng(), p.Lat()); a <= radiusRadians {
			hits = append(hits, hit{p: p, angle: a})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].angle < hits[j].angle })

	limit = normalizeLimit(limit)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	points := make([]model.Point, len(hits))
	for i, h := range hits {
		points[i] = h.p
	}
	return points, nil
}

// FindWithin returns points inside polygon's exterior ring and outside its
// holes. Points on a boundary count as inside.
func (s *SQLiteStore) FindWithin(ctx context.Context, polygon *geom.Polygon) ([]model.Point, error) {
	if polygon == nil || polygon.Empty() {
		return nil, eris.New("sqlite: find within: no polygon")
	}
	b := polygon.Bounds()
	candidates, err := s.query(ctx, sqliteSelectPoints+`
		WHERE lng BETWEEN ? AND ? AND lat BETWEEN ? AND ? ORDER BY rowid`,
		b.Min(0), b.Max(0), b.Min(1), b.Max(1),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find within")
	}

	var points []model.Point
	for _, p := range candidates {
		if polygonCovers(polygon, geom.Coord{p.Lng(), p.Lat()}) {
			points = append(points, p)
		}
	}
	return points, nil
}

func polygonCovers(polygon *geom.Polygon, c geom.Coord) bool {
	layout := polygon.Layout()
	if !xy.IsPointInRing(layout, c, polygon.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < polygon.NumLinearRings(); i++ {
		if xy.LocatePointInRing(layout, c, polygon.LinearRing(i).FlatCoords()) == location.Interior {
			return false
		}
	}
	return true
}

// All returns every stored point in insertion order.
func (s *SQLiteStore) All(ctx context.Context) ([]model.Point, error) {
	points, err := s.query(ctx, sqliteSelectPoints+` ORDER BY rowid`)
	return points, eris.Wrap(err, "sqlite: all points")
}

// Count returns the number of stored points.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM points`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count points")
	}
	return n, nil
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]model.Point, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []model.Point
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
