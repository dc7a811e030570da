// Package scene is the visual substrate of the map: named panes with a
// stacking order, styled shapes, markers with custom visuals, and the
// viewport. It renders to SVG and notifies listeners of visual changes.
package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tricolour/indiamap/internal/geo"

	geom "github.com/peterstace/simplefeatures/geom"
)

// Default pane names and stacking, following the usual web map layout.
const (
	OverlayPane = "overlayPane"
	MarkerPane  = "markerPane"

	OverlayZ = 400
	MarkerZ  = 600
)

var (
	// ErrUnknownPane is returned when drawing into a pane that was never created.
	ErrUnknownPane = errors.New("unknown pane")
	// ErrNotAttached is returned for an element that is not part of the scene.
	ErrNotAttached = errors.New("element not attached to scene")
)

// Pane is a named draw layer.
type Pane struct {
	Name   string `json:"name"`
	ZIndex int    `json:"zIndex"`
}

// Style describes how a shape is painted.
type Style struct {
	Fill          string  `json:"fill"`
	FillOpacity   float64 `json:"fillOpacity"`
	Stroke        string  `json:"stroke"`
	StrokeOpacity float64 `json:"strokeOpacity"`
	Weight        float64 `json:"weight"`
}

// Tooltip is a hover label.
type Tooltip struct {
	Text      string `json:"text"`
	Direction string `json:"direction"`
	ClassName string `json:"className,omitempty"`
	Permanent bool   `json:"permanent"`
}

// Shape is a multipolygon drawn into a pane.
type Shape struct {
	ID       int
	Pane     string
	Geometry geom.MultiPolygon
	Style    Style
	Tooltip  *Tooltip
}

// FrameChange is emitted whenever a marker visual shows a new frame.
type FrameChange struct {
	MarkerID int    `json:"marker"`
	Frame    string `json:"frame"`
	URL      string `json:"url"`
	Index    int    `json:"index"`
}

// Listener receives frame changes. It runs on the animation tick and must
// not block.
type Listener func(FrameChange)

// Map is one map instance.
type Map struct {
	logger *slog.Logger

	mu        sync.RWMutex
	view      View
	panes     map[string]Pane
	shapes    []*Shape
	markers   []*MarkerElement
	nextID    int
	listeners map[int]Listener
	nextSub   int
}

// New creates a map with the overlay and marker panes.
func New(view View, logger *slog.Logger) *Map {
	if logger == nil {
		logger = slog.Default()
	}
	return &Map{
		logger: logger,
		view:   view,
		panes: map[string]Pane{
			OverlayPane: {Name: OverlayPane, ZIndex: OverlayZ},
			MarkerPane:  {Name: MarkerPane, ZIndex: MarkerZ},
		},
		listeners: make(map[int]Listener),
	}
}

// CreatePane adds a named pane, or restacks an existing one.
func (m *Map) CreatePane(name string, zIndex int) Pane {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := Pane{Name: name, ZIndex: zIndex}
	m.panes[name] = p
	return p
}

// Panes returns the panes ordered bottom to top.
func (m *Map) Panes() []Pane {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedPanesLocked()
}

func (m *Map) sortedPanesLocked() []Pane {
	out := make([]Pane, 0, len(m.panes))
	for _, p := range m.panes {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ZIndex != out[j].ZIndex {
			return out[i].ZIndex < out[j].ZIndex
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// AddShape draws mp into pane with style. An empty geometry is accepted and
// simply renders nothing.
func (m *Map) AddShape(pane string, mp geom.MultiPolygon, style Style, tooltip *Tooltip) (*Shape, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.panes[pane]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPane, pane)
	}
	m.nextID++
	s := &Shape{ID: m.nextID, Pane: pane, Geometry: mp, Style: style, Tooltip: tooltip}
	m.shapes = append(m.shapes, s)
	return s, nil
}

// Shapes returns the shapes of pane in draw order; an empty pane name
// returns every shape.
func (m *Map) Shapes(pane string) []*Shape {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Shape
	for _, s := range m.shapes {
		if pane == "" || s.Pane == pane {
			out = append(out, s)
		}
	}
	return out
}

// TooltipAt returns the tooltip of the top-most shape under p.
func (m *Map) TooltipAt(p geo.LatLng) (Tooltip, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	point, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.Lng, Y: p.Lat}})
	if err != nil {
		return Tooltip{}, false
	}
	pt := point.AsGeometry()
	panes := m.sortedPanesLocked()
	for i := len(panes) - 1; i >= 0; i-- {
		for j := len(m.shapes) - 1; j >= 0; j-- {
			s := m.shapes[j]
			if s.Pane != panes[i].Name || s.Tooltip == nil {
				continue
			}
			if geom.Intersects(s.Geometry.AsGeometry(), pt) {
				return *s.Tooltip, true
			}
		}
	}
	return Tooltip{}, false
}

// Subscribe registers fn for frame changes and returns a function that
// removes it.
func (m *Map) Subscribe(fn Listener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Map) notify(c FrameChange) {
	m.mu.RLock()
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()
	for _, fn := range fns {
		fn(c)
	}
}
