package feed

import (
	"encoding/xml"
	"io"

	"github.com/sells-group/navaids/internal/fetcher"
	"github.com/sells-group/navaids/internal/geo"
	"github.com/sells-group/navaids/internal/model"
)

type noticeDoc struct {
	XMLName       xml.Name      `xml:"LNM"`
	Discrepancies []noticeEntry `xml:"DISCREPANCIES>DISCREPANCY"`
	TempChanges   []noticeEntry `xml:"TEMPORARY_CHANGES>TEMPORARY_CHANGE"`
}

type noticeEntry struct {
	DiscrepancyID string `xml:"DISCREPANCY_UNIQUE_IDENTIFIER"`
	TempChangeID  string `xml:"TEMPCHANGE_UNIQUE_IDENTIFIER"`
	Summary       string `xml:"STATUS>SUMMARY"`
	Aid           struct {
		Name            string `xml:"AID_NAME"`
		Type            string `xml:"TYPE"`
		Latitude        string `xml:"ASSIGNED_LATITUDE"`
		Longitude       string `xml:"ASSIGNED_LONGITUDE"`
		LightListNumber string `xml:"LIGHT_LIST_NUMBER"`
	} `xml:"AID"`
}

// NoticeExtractor reads the Local Notice to Mariners document: discrepancies
// followed by temporary changes, each in document order.
type NoticeExtractor struct{}

var _ Extractor = NoticeExtractor{}

// Extract decodes the document and converts every entry that has both
// assigned coordinates. Entries with missing or malformed coordinates are
// dropped.
func (NoticeExtractor) Extract(r io.Reader) ([]model.Point, error) {
	var doc noticeDoc
	if err := fetcher.DecodeXML(r, &doc); err != nil {
		return nil, err
	}

	points := make([]model.Point, 0, len(doc.Discrepancies)+len(doc.TempChanges))
	for _, e := range doc.Discrepancies {
		if p, ok := e.point(e.DiscrepancyID, model.SourceDiscrepancy); ok {
			points = append(points, p)
		}
	}
	for _, e := range doc.TempChanges {
		if p, ok := e.point(e.TempChangeID, model.SourceTempChange); ok {
			points = append(points, p)
		}
	}
	return withLocation(points), nil
}

func (e noticeEntry) point(id, source string) (model.Point, bool) {
	loc, ok := geo.ParsePoint(e.Aid.Latitude, e.Aid.Longitude)
	if !ok {
		return model.Point{}, false
	}
	return model.Point{
		ID:              text(id),
		AidName:         text(e.Aid.Name),
		Type:            text(e.Aid.Type),
		LightListNumber: parseLeadingFloat(e.Aid.LightListNumber),
		Source:          source,
		Location:        loc,
		Summary:         text(e.Summary),
	}, true
}
