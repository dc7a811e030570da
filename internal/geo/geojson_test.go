package geo

import (
	"errors"
	"testing"
)

func TestDecodeFeatureCollection_Properties(t *testing.T) {
	data := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"ST_NM":"Kerala","code":32},
		 "geometry":{"type":"Polygon","coordinates":[[[76,8],[77,8],[77,9],[76,8]]]}}
	]}`

	fc, err := DecodeFeatureCollection([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fc) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc))
	}
	if fc[0].Kind != KindPolygon {
		t.Errorf("expected Polygon kind, got %s", fc[0].Kind)
	}
	if got := fc[0].Property("ST_NM"); got != "Kerala" {
		t.Errorf("expected ST_NM=Kerala, got %q", got)
	}
	if got := fc[0].Property("code"); got != "" {
		t.Errorf("expected non-string property to read as empty, got %q", got)
	}
	if got := fc[0].Property("missing"); got != "" {
		t.Errorf("expected missing property to read as empty, got %q", got)
	}
}

func TestDecodeFeatureCollection_ElevationDropped(t *testing.T) {
	data := `{"type":"Polygon","coordinates":[[[76,8,100],[77,8,100],[77,9,100],[76,8,100]]]}`

	fc, err := DecodeFeatureCollection([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ring := PolygonRings(fc[0].Polygons[0])[0]
	if ring[1].X != 77 || ring[1].Y != 8 {
		t.Errorf("unexpected second point %+v", ring[1])
	}
}

func TestDecodeFeatureCollection_BareFeature(t *testing.T) {
	data := `{"type":"Feature","properties":{"ST_NM":"Goa"},"geometry":{"type":"MultiPolygon","coordinates":[[[[73,15],[74,15],[74,16],[73,15]]]]}}`

	fc, err := DecodeFeatureCollection([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fc) != 1 || fc[0].Kind != KindMultiPolygon || len(fc[0].Polygons) != 1 {
		t.Fatalf("unexpected collection %+v", fc)
	}
	if fc[0].Property("ST_NM") != "Goa" {
		t.Errorf("expected ST_NM=Goa, got %q", fc[0].Property("ST_NM"))
	}
}

func TestDecodeFeatureCollection_NonPolygonalKept(t *testing.T) {
	data := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[77,28]}},
		{"type":"Feature","properties":{},"geometry":null}
	]}`

	fc, err := DecodeFeatureCollection([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fc) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc))
	}
	for i, f := range fc {
		if f.Kind != KindOther || len(f.Polygons) != 0 {
			t.Errorf("feature %d: expected Other kind without ring-sets", i)
		}
	}
}

func TestDecodeFeatureCollection_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"type":`,
		"missing type":    `{"features":[]}`,
		"short coord":     `{"type":"Polygon","coordinates":[[[76],[77,8],[77,9]]]}`,
		"bad coordinates": `{"type":"MultiPolygon","coordinates":"nope"}`,
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeFeatureCollection([]byte(data))
			if !errors.Is(err, ErrInvalidGeoJSON) {
				t.Errorf("expected ErrInvalidGeoJSON, got %v", err)
			}
		})
	}
}

func TestFeature_Geometry(t *testing.T) {
	fc, err := DecodeFeatureCollection([]byte(mixedCollection))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, want := range []bool{false, false} {
		g, err := fc[i].Geometry()
		if err != nil {
			t.Fatalf("feature %d: unexpected error: %v", i, err)
		}
		if g.IsEmpty() != want {
			t.Errorf("feature %d: expected non-empty geometry", i)
		}
	}
	g, err := (Feature{}).Geometry()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !g.IsEmpty() {
		t.Error("expected zero feature to have an empty geometry")
	}
}
