package api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/navaids/internal/geo"
	"github.com/sells-group/navaids/internal/model"
)

const (
	defaultDistanceMiles = 5
	defaultLimit         = 100
	maxLimit             = 1000
	maxBodyBytes         = 1 << 20
)

// handleNear serves GET /api/points/near?lat=&lng=&distance=&limit=.
// distance is in miles.
func (s *Server) handleNear(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := floatParam(q.Get("lat"), math.NaN())
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		writeError(w, http.StatusBadRequest, "lat must be a number in [-90, 90]")
		return
	}
	lng, err := floatParam(q.Get("lng"), math.NaN())
	if err != nil || math.IsNaN(lng) || lng < -180 || lng > 180 {
		writeError(w, http.StatusBadRequest, "lng must be a number in [-180, 180]")
		return
	}
	distance, err := floatParam(q.Get("distance"), defaultDistanceMiles)
	if err != nil || !(distance > 0) || math.IsInf(distance, 0) {
		writeError(w, http.StatusBadRequest, "distance must be a positive number of miles")
		return
	}
	limit := defaultLimit
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}
	limit = min(limit, maxLimit)

	points, err := s.store.FindNear(r.Context(), model.NewLocation(lng, lat), geo.MilesToRadians(distance), limit)
	if err != nil {
		zap.L().Error("api: find near", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writePoints(w, points)
}

// withinRequest is a GeoJSON polygon; the type member is optional.
type withinRequest struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// handleWithin serves POST /api/points/within.
func (s *Server) handleWithin(w http.ResponseWriter, r *http.Request) {
	var req withinRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type != "" && req.Type != "Polygon" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported geometry type %q", req.Type))
		return
	}
	poly, err := polygon(req.Coordinates)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := s.store.FindWithin(r.Context(), poly)
	if err != nil {
		zap.L().Error("api: find within", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writePoints(w, points)
}

// polygon validates GeoJSON rings and builds a WGS 84 polygon. Every ring
// needs at least four positions and must be closed.
func polygon(rings [][][]float64) (*geom.Polygon, error) {
	if len(rings) == 0 {
		return nil, eris.New("coordinates must hold at least one ring")
	}
	coords := make([][]geom.Coord, len(rings))
	for i, ring := range rings {
		if len(ring) < 4 {
			return nil, eris.Errorf("ring %d has %d positions, want at least 4", i, len(ring))
		}
		coords[i] = make([]geom.Coord, len(ring))
		for j, pos := range ring {
			if len(pos) < 2 {
				return nil, eris.Errorf("ring %d position %d needs [lng, lat]", i, j)
			}
			lng, lat := pos[0], pos[1]
			if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
				return nil, eris.Errorf("ring %d position %d out of range", i, j)
			}
			coords[i][j] = geom.Coord{lng, lat}
		}
		first, last := coords[i][0], coords[i][len(ring)-1]
		if first[0] != last[0] || first[1] != last[1] {
			return nil, eris.Errorf("ring %d is not closed", i)
		}
	}
	poly, err := geom.NewPolygon(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, eris.Wrap(err, "invalid polygon")
	}
	return poly.SetSRID(model.SRID), nil
}

func floatParam(v string, def float64) (float64, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

func writePoints(w http.ResponseWriter, points []model.Point) {
	if points == nil {
		points = []model.Point{}
	}
	writeJSON(w, http.StatusOK, points)
}
