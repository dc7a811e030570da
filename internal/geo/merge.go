package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// Merge flattens every Polygon and MultiPolygon feature of fc into a single
// MultiPolygon so the whole outline can be filled as one shape. Ring-sets
// keep their encounter order. Features of any other type are skipped.
//
// An empty or nil collection yields an empty MultiPolygon, which callers
// treat as "nothing to render". Overlapping or touching fragments are kept
// side by side, never unioned.
func Merge(fc FeatureCollection) (geom.MultiPolygon, error) {
	var polys []geom.Polygon
	for _, f := range fc {
		switch f.Kind {
		case KindPolygon, KindMultiPolygon:
			polys = append(polys, f.Polygons...)
		}
	}
	return NewMultiPolygon(polys)
}

// NewMultiPolygon groups polys as they are. Ring closure, simplicity and
// overlap between polygons are not validated: boundary data is drawn the
// way it was published.
func NewMultiPolygon(polys []geom.Polygon) (geom.MultiPolygon, error) {
	mp, err := geom.NewMultiPolygon(polys, geom.DisableAllValidations)
	if err != nil {
		return geom.MultiPolygon{}, fmt.Errorf("failed to build multipolygon: %w", err)
	}
	return mp, nil
}

// Rings returns the rings of every polygon of mp as lng/lat pairs, exterior
// ring first within each polygon.
func Rings(mp geom.MultiPolygon) [][][]geom.XY {
	out := make([][][]geom.XY, 0, mp.NumPolygons())
	for i := 0; i < mp.NumPolygons(); i++ {
		out = append(out, PolygonRings(mp.PolygonN(i)))
	}
	return out
}

// PolygonRings returns the rings of p, exterior ring first.
func PolygonRings(p geom.Polygon) [][]geom.XY {
	if p.IsEmpty() {
		return nil
	}
	rings := make([][]geom.XY, 0, 1+p.NumInteriorRings())
	rings = append(rings, lineXYs(p.ExteriorRing()))
	for i := 0; i < p.NumInteriorRings(); i++ {
		rings = append(rings, lineXYs(p.InteriorRingN(i)))
	}
	return rings
}

func lineXYs(ls geom.LineString) []geom.XY {
	seq := ls.Coordinates()
	xys := make([]geom.XY, seq.Length())
	for i := range xys {
		xys[i] = seq.GetXY(i)
	}
	return xys
}
