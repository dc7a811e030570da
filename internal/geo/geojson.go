package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrInvalidGeoJSON is returned when a document cannot be read as GeoJSON.
var ErrInvalidGeoJSON = errors.New("invalid GeoJSON")

// Kind is the GeoJSON geometry type of a feature.
type Kind int

const (
	KindOther Kind = iota
	KindPolygon
	KindMultiPolygon
)

func (k Kind) String() string {
	switch k {
	case KindPolygon:
		return "Polygon"
	case KindMultiPolygon:
		return "MultiPolygon"
	default:
		return "Other"
	}
}

// Feature is a decoded GeoJSON feature. Only polygonal geometries carry
// ring-sets; anything else keeps its properties and an empty Polygons slice.
type Feature struct {
	Kind       Kind
	Polygons   []geom.Polygon
	Properties map[string]any
}

// Property returns a property as a string, or "" when absent or not a string.
func (f Feature) Property(name string) string {
	if f.Properties == nil {
		return ""
	}
	s, _ := f.Properties[name].(string)
	return s
}

// Geometry returns the feature geometry as a generic geom.Geometry. Features
// without a polygonal geometry give an empty one.
func (f Feature) Geometry() (geom.Geometry, error) {
	switch f.Kind {
	case KindPolygon:
		if len(f.Polygons) == 1 {
			return f.Polygons[0].AsGeometry(), nil
		}
	case KindMultiPolygon:
		mp, err := NewMultiPolygon(f.Polygons)
		if err != nil {
			return geom.Geometry{}, err
		}
		return mp.AsGeometry(), nil
	}
	return geom.Geometry{}, nil
}

// FeatureCollection is an ordered list of features.
type FeatureCollection []Feature

type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type rawFeature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   *rawGeometry   `json:"geometry"`
}

type rawDocument struct {
	Type        string          `json:"type"`
	Features    []rawFeature    `json:"features"`
	Properties  map[string]any  `json:"properties"`
	Geometry    *rawGeometry    `json:"geometry"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// DecodeFeatureCollection parses a GeoJSON FeatureCollection. A bare Feature
// or a bare geometry object is accepted and wrapped into a one-element
// collection. Coordinates are taken as-is: ring winding and closure are not
// checked.
func DecodeFeatureCollection(data []byte) (FeatureCollection, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeoJSON, err)
	}

	var raw []rawFeature
	switch doc.Type {
	case "FeatureCollection":
		raw = doc.Features
	case "Feature":
		raw = []rawFeature{{Type: doc.Type, Properties: doc.Properties, Geometry: doc.Geometry}}
	case "":
		return nil, fmt.Errorf("%w: missing type member", ErrInvalidGeoJSON)
	default:
		raw = []rawFeature{{Type: "Feature", Geometry: &rawGeometry{Type: doc.Type, Coordinates: doc.Coordinates}}}
	}

	fc := make(FeatureCollection, 0, len(raw))
	for i, rf := range raw {
		f, err := decodeFeature(rf)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		fc = append(fc, f)
	}
	return fc, nil
}

func decodeFeature(rf rawFeature) (Feature, error) {
	f := Feature{Kind: KindOther, Properties: rf.Properties}
	if rf.Geometry == nil {
		return f, nil
	}
	switch rf.Geometry.Type {
	case "Polygon", "MultiPolygon":
	default:
		return f, nil
	}

	g, err := decodeGeometry(*rf.Geometry)
	if err != nil {
		return f, err
	}
	if p, ok := g.AsPolygon(); ok {
		f.Kind = KindPolygon
		f.Polygons = []geom.Polygon{p}
	} else if mp, ok := g.AsMultiPolygon(); ok {
		f.Kind = KindMultiPolygon
		f.Polygons = mp.Dump()
	}
	return f, nil
}

// decodeGeometry builds a geometry object without validating it, so open or
// self-intersecting rings pass through. Elevation is dropped; the renderer is
// two dimensional.
func decodeGeometry(rg rawGeometry) (geom.Geometry, error) {
	data, err := json.Marshal(rg)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("%w: %v", ErrInvalidGeoJSON, err)
	}
	g, err := geom.UnmarshalGeoJSON(data, geom.DisableAllValidations)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("%w: %s coordinates: %v", ErrInvalidGeoJSON, rg.Type, err)
	}
	return g.Force2D(), nil
}
