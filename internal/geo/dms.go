// Package geo converts DMS coordinate strings into WGS 84 points and provides
// great-circle helpers for radius queries.
package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/navaids/internal/model"
)

// Axis selects which hemisphere letters a DMS string may carry.
type Axis int

const (
	Latitude Axis = iota
	Longitude
)

// ParseDMS converts a degrees-minutes-seconds string such as "41-15-22.980N"
// into signed decimal degrees. It returns false for empty input, a hemisphere
// letter that does not belong to the axis, anything other than three
// non-negative numeric components, or a result outside the axis range.
func ParseDMS(s string, axis Axis) (float64, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, false
	}

	hemi := strings.ToUpper(s[len(s)-1:])
	sign := 1.0
	switch {
	case axis == Latitude && hemi == "N", axis == Longitude && hemi == "E":
	case axis == Latitude && hemi == "S", axis == Longitude && hemi == "W":
		sign = -1
	default:
		return 0, false
	}

	parts := strings.Split(s[:len(s)-1], "-")
	if len(parts) != 3 {
		return 0, false
	}

	var comp [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		comp[i] = v
	}

	dec := sign * (comp[0] + comp[1]/60 + comp[2]/3600)
	limit := 90.0
	if axis == Longitude {
		limit = 180
	}
	if dec < -limit || dec > limit {
		return 0, false
	}
	return dec, true
}

// ParsePoint converts a DMS latitude/longitude pair into a WGS 84 point with
// coordinates [longitude, latitude]. It returns false when either side fails
// to convert; callers drop the record.
func ParsePoint(lat, lng string) (*geom.Point, bool) {
	y, ok := ParseDMS(lat, Latitude)
	if !ok {
		return nil, false
	}
	x, ok := ParseDMS(lng, Longitude)
	if !ok {
		return nil, false
	}
	return model.NewLocation(x, y), true
}
