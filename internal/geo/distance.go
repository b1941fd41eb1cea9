package geo

import "math"

// EarthRadiusMiles converts query distances in miles to radians.
const EarthRadiusMiles = 3959.0

// EarthRadiusMeters is the mean Earth radius used to turn radians into meters.
const EarthRadiusMeters = 6371008.8

// MilesToRadians converts a surface distance in miles to a central angle.
func MilesToRadians(miles float64) float64 {
	return miles / EarthRadiusMiles
}

// CentralAngle returns the great-circle angle in radians between two
// lng/lat positions given in degrees.
func CentralAngle(lng1, lat1, lng2, lat2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Box is a lng/lat rectangle in degrees.
type Box struct {
	MinLng, MinLat, MaxLng, MaxLat float64
}

// BoundingBox returns a box enclosing every position within radians of the
// center. The longitude half-width is asin(sin(r)/cos(lat)), reached poleward
// of the center. Near the poles or across the antimeridian the box widens to
// the full longitude range.
func BoundingBox(lng, lat, radians float64) Box {
	delta := radians * 180 / math.Pi
	b := Box{MinLat: math.Max(lat-delta, -90), MaxLat: math.Min(lat+delta, 90)}

	sinR, cosLat := math.Sin(radians), math.Cos(toRad(lat))
	if b.MinLat <= -90 || b.MaxLat >= 90 || sinR >= cosLat {
		b.MinLng, b.MaxLng = -180, 180
		return b
	}
	lngDelta := math.Asin(sinR/cosLat) * 180 / math.Pi
	if lng-lngDelta < -180 || lng+lngDelta > 180 {
		b.MinLng, b.MaxLng = -180, 180
		return b
	}
	b.MinLng, b.MaxLng = lng-lngDelta, lng+lngDelta
	return b
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
