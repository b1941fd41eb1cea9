// Package model defines the normalized navigational-aid record shared by the
// feed extractors, the stores, and the query API.
package model

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// SRID is the spatial reference of every point location (WGS 84).
const SRID = 4326

// Source tags for notice-feed records.
const (
	SourceDiscrepancy = "DISCREPANCY"
	SourceTempChange  = "TEMPCHANGE"
)

// WeeklySource returns the source tag for a weekly light-list district.
func WeeklySource(district string) string {
	return fmt.Sprintf("weekly district %s", district)
}

// Point is one normalized navigational aid. Optional fields are pointers so
// that absent values encode as JSON null and every record carries the same
// keys regardless of which feed produced it.
type Point struct {
	RowID               string      `json:"rowId,omitempty"`
	ID                  *string     `json:"id"`
	AidName             *string     `json:"aidName"`
	Type                *string     `json:"type"`
	LightListNumber     *float64    `json:"lightListNumber"`
	Source              string      `json:"source"`
	Location            *geom.Point `json:"location"`
	Summary             *string     `json:"summary"`
	Characteristic      *string     `json:"characteristic"`
	LocationDescription *string     `json:"locationDescription"`
	Height              *float64    `json:"height"`
	Range               *float64    `json:"range"`
	Structure           *string     `json:"structure"`
}

// Lng returns the longitude of the point's location, or 0 when unset.
func (p *Point) Lng() float64 {
	if p.Location == nil || p.Location.Empty() {
		return 0
	}
	return p.Location.X()
}

// Lat returns the latitude of the point's location, or 0 when unset.
func (p *Point) Lat() float64 {
	if p.Location == nil || p.Location.Empty() {
		return 0
	}
	return p.Location.Y()
}

// Validate reports whether the point may be persisted: it needs a source and
// a location with finite coordinates inside the WGS 84 range.
func (p *Point) Validate() error {
	if p.Source == "" {
		return eris.New("model: point has no source")
	}
	if p.Location == nil || p.Location.Empty() {
		return eris.New("model: point has no location")
	}
	lng, lat := p.Location.X(), p.Location.Y()
	if math.IsNaN(lng) || math.IsInf(lng, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return eris.Errorf("model: point has non-finite coordinates [%v, %v]", lng, lat)
	}
	if lng < -180 || lng > 180 {
		return eris.Errorf("model: longitude %v out of range", lng)
	}
	if lat < -90 || lat > 90 {
		return eris.Errorf("model: latitude %v out of range", lat)
	}
	return nil
}

// NewLocation builds a WGS 84 point from longitude and latitude.
func NewLocation(lng, lat float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(SRID)
}

type pointAlias Point

// MarshalJSON encodes the location as a GeoJSON point geometry.
func (p Point) MarshalJSON() ([]byte, error) {
	loc := json.RawMessage("null")
	if p.Location != nil {
		b, err := geojson.Marshal(p.Location)
		if err != nil {
			return nil, eris.Wrap(err, "model: encode location")
		}
		loc = b
	}
	return json.Marshal(struct {
		pointAlias
		Location json.RawMessage `json:"location"`
	}{pointAlias(p), loc})
}

// UnmarshalJSON decodes a point whose location is a GeoJSON point geometry.
func (p *Point) UnmarshalJSON(data []byte) error {
	aux := struct {
		*pointAlias
		Location json.RawMessage `json:"location"`
	}{pointAlias: (*pointAlias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return eris.Wrap(err, "model: decode point")
	}

	p.Location = nil
	if len(aux.Location) == 0 || string(aux.Location) == "null" {
		return nil
	}
	var g geom.T
	if err := geojson.Unmarshal(aux.Location, &g); err != nil {
		return eris.Wrap(err, "model: decode location")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return eris.Errorf("model: location is %T, want point", g)
	}
	p.Location = NewLocation(pt.X(), pt.Y())
	return nil
}

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Float returns a pointer to f.
func Float(f float64) *float64 {
	return &f
}

// Deref returns the pointed-to string or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
