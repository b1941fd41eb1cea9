package feed

import (
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/navaids/internal/geo"
	"github.com/sells-group/navaids/internal/model"
)

// Fixed element names shared by every weekly light-list feed.
const (
	weeklyCharacteristic = "Characteristic"
	weeklyLocation       = "Location"
	weeklyLLNR           = "LLNR"
	weeklyHeight         = "Height"
	weeklyRange          = "Range"
	weeklyDistrict       = "District"
	weeklyStructure      = "Structure"
	weeklyRemarks        = "Remarks"
)

// WeeklyExtractor reads one district's weekly light-list document. The
// element names for aid name, aid type, and coordinates come from the
// document's own schema.
type WeeklyExtractor struct {
	// District tags records whose District element is empty.
	District string
}

var _ Extractor = WeeklyExtractor{}

// Extract resolves the document schema and converts every record that has a
// valid location, in document order.
func (w WeeklyExtractor) Extract(r io.Reader) ([]model.Point, error) {
	root, err := ParseNode(r)
	if err != nil {
		return nil, err
	}
	schema, err := ResolveSchema(root)
	if err != nil {
		return nil, err
	}
	return w.Records(root, schema)
}

// Records converts the records of an already-resolved document.
func (w WeeklyExtractor) Records(root *Node, schema Schema) ([]model.Point, error) {
	data := root.Child("dataroot")
	if data == nil {
		return nil, eris.New("feed: weekly document has no dataroot")
	}

	fm := schema.FieldMap
	records := data.All(schema.Collection)
	points := make([]model.Point, 0, len(records))
	for _, rec := range records {
		loc, ok := geo.ParsePoint(rec.Value(fm.Latitude), rec.Value(fm.Longitude))
		if !ok {
			continue
		}
		district := rec.Value(weeklyDistrict)
		if district == "" {
			district = w.District
		}
		points = append(points, model.Point{
			AidName:             text(rec.Value(fm.AidName)),
			Type:                text(rec.Value(fm.AidType)),
			LightListNumber:     parseLeadingFloat(rec.Value(weeklyLLNR)),
			Source:              model.WeeklySource(district),
			Location:            loc,
			Summary:             text(rec.Value(weeklyRemarks)),
			Characteristic:      text(rec.Value(weeklyCharacteristic)),
			LocationDescription: text(rec.Value(weeklyLocation)),
			Height:              parseLeadingFloat(rec.Value(weeklyHeight)),
			Range:               parseLeadingFloat(rec.Value(weeklyRange)),
			Structure:           text(rec.Value(weeklyStructure)),
		})
	}
	return withLocation(points), nil
}
