package scene

import (
	"math"

	"github.com/tricolour/indiamap/internal/geo"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

const (
	tileSize = 256
	maxZoom  = 18
)

var fromWebMercator = wgs84.EPSG().Transform(3857, 4326)

// View is the viewport state of a map.
type View struct {
	Center    geo.LatLng  `json:"center"`
	Zoom      int         `json:"zoom"`
	MinZoom   int         `json:"minZoom"`
	MaxBounds *geo.Bounds `json:"maxBounds,omitempty"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
}

// View returns the current viewport.
func (m *Map) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v := m.view
	if v.MaxBounds != nil {
		b := *v.MaxBounds
		v.MaxBounds = &b
	}
	return v
}

// SetMaxBounds restricts panning to b.
func (m *Map) SetMaxBounds(b geo.Bounds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view.MaxBounds = &b
}

// SetMinZoom changes the minimum zoom. The current zoom is raised to it if
// needed.
func (m *Map) SetMinZoom(z int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view.MinZoom = z
	if m.view.Zoom < z {
		m.view.Zoom = z
	}
}

// FitBounds centers the viewport on b at the largest whole zoom that keeps
// b inside the viewport minus padding pixels on every side.
func (m *Map) FitBounds(b geo.Bounds, padding int) View {
	m.mu.Lock()
	defer m.mu.Unlock()

	sw, ne := b.Projected()
	m.view.Zoom = boundsZoom(ne.X-sw.X, ne.Y-sw.Y, m.view.Width-2*padding, m.view.Height-2*padding, m.view.MinZoom)

	cx, cy := (sw.X+ne.X)/2, (sw.Y+ne.Y)/2
	lng, lat, _ := fromWebMercator(cx, cy, 0)
	m.view.Center = geo.LatLng{Lat: lat, Lng: lng}
	return m.view
}

func boundsZoom(dx, dy float64, availW, availH, minZoom int) int {
	if availW <= 0 || availH <= 0 {
		return minZoom
	}
	ratio := math.Inf(1)
	if dx > 0 {
		ratio = float64(availW) / dx
	}
	if dy > 0 {
		ratio = math.Min(ratio, float64(availH)/dy)
	}
	if math.IsInf(ratio, 1) {
		return maxZoom
	}
	z := int(math.Floor(math.Log2(ratio * 2 * math.Pi * geo.EarthRadius / tileSize)))
	if z < minZoom {
		z = minZoom
	}
	if z > maxZoom {
		z = maxZoom
	}
	return z
}

// metersPerPixel at zoom z.
func metersPerPixel(z int) float64 {
	return 2 * math.Pi * geo.EarthRadius / (tileSize * math.Exp2(float64(z)))
}

// projector maps lng/lat to viewport pixels.
type projector struct {
	center geom.XY
	scale  float64
	w, h   float64
}

func newProjector(v View) projector {
	return projector{
		center: geo.Project(v.Center.Lng, v.Center.Lat),
		scale:  1 / metersPerPixel(v.Zoom),
		w:      float64(v.Width),
		h:      float64(v.Height),
	}
}

func (p projector) pixel(lng, lat float64) (float64, float64) {
	xy := geo.Project(lng, lat)
	return (xy.X-p.center.X)*p.scale + p.w/2, (p.center.Y-xy.Y)*p.scale + p.h/2
}
