package geo

import (
	"errors"
	"math"
	"testing"
)

func TestProject_Origin(t *testing.T) {
	xy := Project(0, 0)

	if math.Abs(xy.X) > 1e-6 || math.Abs(xy.Y) > 1e-6 {
		t.Errorf("expected origin to project to 0,0, got %v", xy)
	}
}

func TestProject_Delhi(t *testing.T) {
	xy := Project(77.1025, 28.7041)

	// reference values from the spherical mercator formulas
	wantX := EarthRadius * 77.1025 * math.Pi / 180
	wantY := EarthRadius * math.Log(math.Tan(math.Pi/4+28.7041*math.Pi/360))

	if math.Abs(xy.X-wantX) > 1 {
		t.Errorf("expected X≈%f, got %f", wantX, xy.X)
	}
	if math.Abs(xy.Y-wantY) > 1 {
		t.Errorf("expected Y≈%f, got %f", wantY, xy.Y)
	}
}

func TestLatLng_Validate(t *testing.T) {
	if err := (LatLng{Lat: 19.0760, Lng: 72.8777}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := []LatLng{
		{Lat: 91, Lng: 0},
		{Lat: -91, Lng: 0},
		{Lat: 0, Lng: 181},
		{Lat: 0, Lng: -181},
		{Lat: math.NaN(), Lng: 0},
	}
	for _, p := range bad {
		if err := p.Validate(); !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("expected ErrInvalidCoordinates for %+v, got %v", p, err)
		}
	}
}

func TestBoundsOf(t *testing.T) {
	fc, err := DecodeFeatureCollection([]byte(mixedCollection))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, ok := BoundsOf(mustMerge(t, fc))
	if !ok {
		t.Fatal("expected bounds")
	}
	want := Bounds{MinLng: 0, MinLat: 0, MaxLng: 31, MaxLat: 31}
	if b != want {
		t.Errorf("expected %+v, got %+v", want, b)
	}
}

func TestBounds_Pad(t *testing.T) {
	b := Bounds{MinLng: 68, MinLat: 6, MaxLng: 98, MaxLat: 36}

	padded := b.Pad(0.5)

	want := Bounds{MinLng: 53, MinLat: -9, MaxLng: 113, MaxLat: 51}
	if padded != want {
		t.Errorf("expected %+v, got %+v", want, padded)
	}
}

func TestBounds_Center(t *testing.T) {
	c := Bounds{MinLng: 68, MinLat: 6, MaxLng: 98, MaxLat: 36}.Center()

	if c.Lat != 21 || c.Lng != 83 {
		t.Errorf("expected center 21,83, got %+v", c)
	}
}
