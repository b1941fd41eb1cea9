// Package store persists normalized navigational aids and answers the
// spatial queries served by the API.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/navaids/internal/model"
)

// Store defines the persistence interface for navigational aids.
type Store interface {
	// Points
	InsertAll(ctx context.Context, points []model.Point) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	Replace(ctx context.Context, points []model.Point) (int64, error)

	// Queries
	FindNear(ctx context.Context, center *geom.Point, radiusRadians float64, limit int) ([]model.Point, error)
	FindWithin(ctx context.Context, polygon *geom.Polygon) ([]model.Point, error)
	All(ctx context.Context) ([]model.Point, error)
	Count(ctx context.Context) (int64, error)

	RefreshLog

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// RefreshLog records refresh cycles.
type RefreshLog interface {
	StartRefresh(ctx context.Context, strategy string) (int64, error)
	CompleteRefresh(ctx context.Context, id int64, rows int64, metadata map[string]any) error
	FailRefresh(ctx context.Context, id int64, msg string) error
	ListRefreshes(ctx context.Context, limit int) ([]model.RefreshRun, error)
	// LastSuccess returns the start time of the newest completed cycle, or
	// nil when none has completed.
	LastSuccess(ctx context.Context) (*time.Time, error)
}

// pointColumns is the column order shared by both backends for writes.
var pointColumns = []string{
	"row_id", "id", "aid_name", "type", "light_list_number", "source",
	"summary", "characteristic", "location_description", "height",
	"nominal_range", "structure",
}

// validatePoints rejects the whole batch if any point cannot be persisted.
func validatePoints(points []model.Point) error {
	for i := range points {
		if err := points[i].Validate(); err != nil {
			return eris.Wrapf(err, "store: point %d refused", i)
		}
	}
	return nil
}

// attrs returns the non-geometry column values of p in pointColumns order.
func attrs(rowID string, p *model.Point) []any {
	return []any{
		rowID, p.ID, p.AidName, p.Type, p.LightListNumber, p.Source,
		p.Summary, p.Characteristic, p.LocationDescription, p.Height,
		p.Range, p.Structure,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

// scanPoint reads a row selected as pointColumns followed by lng and lat.
func scanPoint(row scannable) (model.Point, error) {
	var p model.Point
	var lng, lat float64
	err := row.Scan(
		&p.RowID, &p.ID, &p.AidName, &p.Type, &p.LightListNumber, &p.Source,
		&p.Summary, &p.Characteristic, &p.LocationDescription, &p.Height,
		&p.Range, &p.Structure, &lng, &lat,
	)
	if err != nil {
		return model.Point{}, eris.Wrap(err, "store: scan point")
	}
	p.Location = model.NewLocation(lng, lat)
	return p, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
