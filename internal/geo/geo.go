// Package geo decodes boundary data, merges polygon fragments and converts
// between geographic (EPSG:4326) and web mercator (EPSG:3857) coordinates.
package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when a latitude/longitude pair is out of range.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// EarthRadius is the sphere radius used by EPSG:3857, in meters.
const EarthRadius = 6378137.0

var toWebMercator = wgs84.EPSG().Transform(4326, 3857)

// LatLng is a geographic position in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the position lies on the globe.
func (p LatLng) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Project converts a longitude/latitude pair to web mercator meters.
func Project(lng, lat float64) geom.XY {
	x, y, _ := toWebMercator(lng, lat, 0)
	return geom.XY{X: x, Y: y}
}

// Bounds is a geographic bounding box.
type Bounds struct {
	MinLng float64 `json:"minLng"`
	MinLat float64 `json:"minLat"`
	MaxLng float64 `json:"maxLng"`
	MaxLat float64 `json:"maxLat"`
}

// BoundsOf returns the bounding box of mp. ok is false for an empty geometry.
func BoundsOf(mp geom.MultiPolygon) (b Bounds, ok bool) {
	b = Bounds{MinLng: math.Inf(1), MinLat: math.Inf(1), MaxLng: math.Inf(-1), MaxLat: math.Inf(-1)}
	for _, poly := range Rings(mp) {
		for _, ring := range poly {
			for _, xy := range ring {
				b.MinLng = math.Min(b.MinLng, xy.X)
				b.MaxLng = math.Max(b.MaxLng, xy.X)
				b.MinLat = math.Min(b.MinLat, xy.Y)
				b.MaxLat = math.Max(b.MaxLat, xy.Y)
				ok = true
			}
		}
	}
	if !ok {
		return Bounds{}, false
	}
	return b, true
}

// Pad grows the box by ratio of its size on every side.
func (b Bounds) Pad(ratio float64) Bounds {
	dLat := math.Abs(b.MaxLat-b.MinLat) * ratio
	dLng := math.Abs(b.MaxLng-b.MinLng) * ratio
	return Bounds{
		MinLng: b.MinLng - dLng,
		MinLat: b.MinLat - dLat,
		MaxLng: b.MaxLng + dLng,
		MaxLat: b.MaxLat + dLat,
	}
}

// Center returns the middle of the box in degrees.
func (b Bounds) Center() LatLng {
	return LatLng{Lat: (b.MinLat + b.MaxLat) / 2, Lng: (b.MinLng + b.MaxLng) / 2}
}

// Projected returns the south-west and north-east corners in web mercator.
func (b Bounds) Projected() (sw, ne geom.XY) {
	return Project(b.MinLng, b.MinLat), Project(b.MaxLng, b.MaxLat)
}
