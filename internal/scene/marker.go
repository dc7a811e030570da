package scene

import (
	"errors"
	"sync"

	"github.com/tricolour/indiamap/internal/anim"
	"github.com/tricolour/indiamap/internal/geo"
)

// Offset is a pixel offset relative to the icon's top-left corner.
type Offset struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Icon is the visual of a marker: an image clipped to ViewHeight pixels.
type Icon struct {
	URL           string `json:"url"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`     // image height
	ViewHeight    int    `json:"viewHeight"` // visible height, 0 means Height
	Anchor        Offset `json:"anchor"`
	TooltipAnchor Offset `json:"tooltipAnchor"`
	ClassName     string `json:"className,omitempty"`
}

func (i Icon) visibleHeight() int {
	if i.ViewHeight > 0 {
		return i.ViewHeight
	}
	return i.Height
}

// MarkerOptions configures AddMarker.
type MarkerOptions struct {
	Position geo.LatLng
	Icon     Icon
	Tooltip  *Tooltip
	Link     string // navigation target rendered as the element's link

	// OnAttached runs once the element is part of the scene and may be
	// driven, e.g. by an animation player.
	OnAttached func(*MarkerElement)
}

// MarkerElement is a marker placed in the scene. It implements anim.Visual.
type MarkerElement struct {
	id    int
	scene *Map
	opts  MarkerOptions

	mu       sync.RWMutex
	src      string
	frame    anim.Frame
	hasFrame bool
	attached bool
}

// ID returns the element id, unique within its map.
func (e *MarkerElement) ID() int { return e.id }

// Position returns the marker position.
func (e *MarkerElement) Position() geo.LatLng { return e.opts.Position }

// Icon returns the marker icon.
func (e *MarkerElement) Icon() Icon { return e.opts.Icon }

// Tooltip returns the hover label, if any.
func (e *MarkerElement) Tooltip() *Tooltip { return e.opts.Tooltip }

// Link returns the navigation target.
func (e *MarkerElement) Link() string { return e.opts.Link }

// Source returns the image currently shown.
func (e *MarkerElement) Source() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.src
}

// Frame returns the animation frame currently shown, if any.
func (e *MarkerElement) Frame() (anim.Frame, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.frame, e.hasFrame
}

// Attached reports whether the element is part of the scene.
func (e *MarkerElement) Attached() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.attached
}

// SetFrame swaps the shown image for frame f. Frames sent to a detached
// element are dropped.
func (e *MarkerElement) SetFrame(f anim.Frame) {
	e.mu.Lock()
	if !e.attached {
		e.mu.Unlock()
		return
	}
	e.src = f.URL
	e.frame = f
	e.hasFrame = true
	e.mu.Unlock()

	e.scene.notify(FrameChange{MarkerID: e.id, Frame: f.Name, URL: f.URL, Index: f.Index})
}

// AddMarker places a marker and returns its element. OnAttached, when set,
// is called after the element is in the scene, before AddMarker returns.
func (m *Map) AddMarker(opts MarkerOptions) (*MarkerElement, error) {
	if err := opts.Position.Validate(); err != nil {
		return nil, err
	}
	if opts.Icon.URL == "" {
		return nil, errors.New("marker icon needs an image")
	}

	m.mu.Lock()
	m.nextID++
	e := &MarkerElement{id: m.nextID, scene: m, opts: opts, src: opts.Icon.URL, attached: true}
	m.markers = append(m.markers, e)
	m.mu.Unlock()

	if opts.OnAttached != nil {
		opts.OnAttached(e)
	}
	return e, nil
}

// RemoveMarker detaches e from the scene.
func (m *Map) RemoveMarker(e *MarkerElement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, el := range m.markers {
		if el == e {
			m.markers = append(m.markers[:i:i], m.markers[i+1:]...)
			e.mu.Lock()
			e.attached = false
			e.mu.Unlock()
			return nil
		}
	}
	return ErrNotAttached
}

// Marker looks up an attached marker by id.
func (m *Map) Marker(id int) (*MarkerElement, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.markers {
		if e.id == id {
			return e, true
		}
	}
	return nil, false
}

// Markers returns the attached markers in insertion order.
func (m *Map) Markers() []*MarkerElement {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*MarkerElement, len(m.markers))
	copy(out, m.markers)
	return out
}
