package dataset

import (
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
)

// geometry columns recognized in exports, upper-cased
var geomColumns = map[string]bool{
	"GEOMETRY": true,
	"GEOM":     true,
	"SHAPE":    true,
	"WKT":      true,
	"WKB":      true,
}

func isGeomColumn(name string) bool { return geomColumns[strings.ToUpper(name)] }

// decodeWKB parses binary geometry, returning nil on garbage
func decodeWKB(b []byte) orb.Geometry {
	if len(b) == 0 {
		return nil
	}
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil
	}
	return g
}

// decodeWKT parses text geometry, returning nil on garbage
func decodeWKT(s string) orb.Geometry {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil
	}
	return g
}

// Centroid returns a representative point for the feature geometry
func (f Feature) Centroid() (orb.Point, bool) {
	if f.Geom == nil {
		return orb.Point{}, false
	}
	p, ok := f.Geom.(orb.Point)
	if !ok {
		p, _ = planar.CentroidArea(f.Geom)
		if f.Geom.Bound().IsEmpty() {
			return orb.Point{}, false
		}
	}
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
		return orb.Point{}, false
	}
	return p, true
}
