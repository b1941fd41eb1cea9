// Package export writes stored navigational aids as CSV.
package export

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/navaids/internal/model"
)

// Lister returns every stored point.
type Lister interface {
	All(ctx context.Context) ([]model.Point, error)
}

// row is one CSV record. Absent fields are written as empty cells.
type row struct {
	RowID               string   `csv:"rowId"`
	ID                  *string  `csv:"id"`
	AidName             *string  `csv:"aidName"`
	Type                *string  `csv:"type"`
	LightListNumber     *float64 `csv:"lightListNumber"`
	Source              string   `csv:"source"`
	Longitude           float64  `csv:"longitude"`
	Latitude            float64  `csv:"latitude"`
	Summary             *string  `csv:"summary"`
	Characteristic      *string  `csv:"characteristic"`
	LocationDescription *string  `csv:"locationDescription"`
	Height              *float64 `csv:"height"`
	Range               *float64 `csv:"range"`
	Structure           *string  `csv:"structure"`
}

func toRow(p *model.Point) row {
	return row{
		RowID:               p.RowID,
		ID:                  p.ID,
		AidName:             p.AidName,
		Type:                p.Type,
		LightListNumber:     p.LightListNumber,
		Source:              p.Source,
		Longitude:           p.Lng(),
		Latitude:            p.Lat(),
		Summary:             p.Summary,
		Characteristic:      p.Characteristic,
		LocationDescription: p.LocationDescription,
		Height:              p.Height,
		Range:               p.Range,
		Structure:           p.Structure,
	}
}

// WriteCSV writes a header and one record per point.
func WriteCSV(w io.Writer, points []model.Point) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(row{}); err != nil {
		return eris.Wrap(err, "export: encode header")
	}
	for i := range points {
		if err := enc.Encode(toRow(&points[i])); err != nil {
			return eris.Wrapf(err, "export: encode point %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

// Export writes every stored point to w and returns how many were written.
func Export(ctx context.Context, src Lister, w io.Writer) (int, error) {
	points, err := src.All(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "export: list points")
	}
	if err := WriteCSV(w, points); err != nil {
		return 0, err
	}
	return len(points), nil
}
