// Package markers places clickable markers on the map. Each marker pairs a
// position with a navigation target, a hover label and either a static icon
// or an animated frame sequence driven by the shared clock.
package markers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tricolour/indiamap/internal/anim"
	"github.com/tricolour/indiamap/internal/clock"
	"github.com/tricolour/indiamap/internal/geo"
	"github.com/tricolour/indiamap/internal/scene"
)

var (
	// ErrInvalidDescriptor is returned by Add for a descriptor that cannot
	// become a marker.
	ErrInvalidDescriptor = errors.New("invalid marker descriptor")
	// ErrUnknownMarker is returned for handles or ids the registry does not hold.
	ErrUnknownMarker = errors.New("unknown marker")
)

// DefaultFallbackIcon is shown by animated markers whose first frame never
// loaded.
const DefaultFallbackIcon = "Animation.gif"

// AnimatedIcon is the icon geometry of animated markers: a 55px image shown
// through a 40px window, anchored at its bottom-left corner.
var AnimatedIcon = scene.Icon{
	Width:         55,
	Height:        55,
	ViewHeight:    40,
	Anchor:        scene.Offset{X: 1, Y: 40},
	TooltipAnchor: scene.Offset{X: 20, Y: -40},
	ClassName:     "custom-video-icon",
}

// StaticIcon is the icon geometry of markers showing a single image.
var StaticIcon = scene.Icon{
	Width:         35,
	Height:        35,
	Anchor:        scene.Offset{X: 2, Y: 35},
	TooltipAnchor: scene.Offset{X: 20, Y: -35},
	ClassName:     "custom-video-icon",
}

// Descriptor is the immutable description of one marker. Exactly one of Icon
// and Frames is the visual.
type Descriptor struct {
	Lat       float64
	Lng       float64
	TargetURL string
	Label     string
	Icon      string         // static image URL
	Frames    *anim.FrameSet // animated visual
}

// Animated reports whether the marker is driven by a frame sequence.
func (d Descriptor) Animated() bool {
	return d.Frames != nil
}

// Validate checks coordinates, target and visual.
func (d Descriptor) Validate() error {
	if err := (geo.LatLng{Lat: d.Lat, Lng: d.Lng}).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	u, err := url.Parse(d.TargetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: target %q is not an absolute http(s) URL", ErrInvalidDescriptor, d.TargetURL)
	}
	if d.Label == "" {
		return fmt.Errorf("%w: empty label", ErrInvalidDescriptor)
	}
	switch {
	case d.Frames == nil && d.Icon == "":
		return fmt.Errorf("%w: %s has no visual", ErrInvalidDescriptor, d.Label)
	case d.Frames != nil && d.Icon != "":
		return fmt.Errorf("%w: %s has both an icon and frames", ErrInvalidDescriptor, d.Label)
	}
	return nil
}

// Handle is the typed reference to a placed marker.
type Handle struct {
	desc    Descriptor
	element *scene.MarkerElement
	player  *anim.Player
	visits  atomic.Int64
}

// ID returns the marker id, equal to its scene element id.
func (h *Handle) ID() int { return h.element.ID() }

// Descriptor returns what the marker was created from.
func (h *Handle) Descriptor() Descriptor { return h.desc }

// Element returns the scene element.
func (h *Handle) Element() *scene.MarkerElement { return h.element }

// Player returns the frame player, nil for static markers.
func (h *Handle) Player() *anim.Player { return h.player }

// Visits returns how many recorded clicks led to the target.
func (h *Handle) Visits() int64 { return h.visits.Load() }

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithFallbackIcon sets the image shown by animated markers with no loaded
// frames.
func WithFallbackIcon(u string) Option {
	return func(r *Registry) { r.fallbackIcon = u }
}

// Registry owns the markers of one map.
type Registry struct {
	scene        *scene.Map
	clock        *clock.Clock
	loop         time.Duration
	logger       *slog.Logger
	fallbackIcon string

	mu      sync.RWMutex
	handles map[int]*Handle
	order   []*Handle
}

// New creates a registry placing markers on m. Animated markers cycle once
// per loop and are refreshed by c.
func New(m *scene.Map, c *clock.Clock, loop time.Duration, opts ...Option) (*Registry, error) {
	if m == nil || c == nil {
		return nil, errors.New("registry needs a map and a clock")
	}
	if loop <= 0 {
		return nil, anim.ErrInvalidLoop
	}
	r := &Registry{
		scene:        m,
		clock:        c,
		loop:         loop,
		logger:       slog.Default(),
		fallbackIcon: DefaultFallbackIcon,
		handles:      make(map[int]*Handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Add places the marker described by d.
//
// For an animated marker the player is built in the element's attached
// callback, so it never exists before its visual does; it is then
// registered with the clock and the clock is started.
func (r *Registry) Add(d Descriptor) (*Handle, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	h := &Handle{desc: d}
	opts := scene.MarkerOptions{
		Position: geo.LatLng{Lat: d.Lat, Lng: d.Lng},
		Tooltip:  &scene.Tooltip{Text: d.Label, Direction: "top"},
		Link:     d.TargetURL,
	}

	var attachErr error
	if d.Animated() {
		opts.Icon = AnimatedIcon
		opts.Icon.URL = r.fallbackIcon
		if f, ok := d.Frames.Frame(0); ok {
			opts.Icon.URL = f.URL
		}
		if !d.Frames.Complete() {
			r.logger.Warn("marker frames incomplete, animation stays idle",
				"label", d.Label, "loaded", d.Frames.Len(), "want", d.Frames.Count())
		}
		opts.OnAttached = func(e *scene.MarkerElement) {
			p, err := anim.NewPlayer(d.Frames, r.loop, e)
			if err != nil {
				attachErr = err
				return
			}
			h.player = p
			r.clock.Register(p)
			r.clock.Start()
		}
	} else {
		opts.Icon = StaticIcon
		opts.Icon.URL = d.Icon
	}

	e, err := r.scene.AddMarker(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if attachErr != nil {
		_ = r.scene.RemoveMarker(e)
		return nil, fmt.Errorf("creating player for %s: %w", d.Label, attachErr)
	}
	h.element = e

	r.mu.Lock()
	r.handles[e.ID()] = h
	r.order = append(r.order, h)
	r.mu.Unlock()

	r.logger.Debug("marker added", "id", e.ID(), "label", d.Label, "animated", d.Animated())
	return h, nil
}

// Remove unregisters the marker's player from the clock, then detaches its
// element. No tick that starts after Remove returns reaches the marker; a
// tick already running on the scheduler goroutine may still finish its
// refresh. Stop the scheduler first when that matters. It is safe to call
// from inside a clock tick.
func (r *Registry) Remove(h *Handle) error {
	if h == nil || h.element == nil {
		return ErrUnknownMarker
	}
	r.mu.Lock()
	if r.handles[h.ID()] != h {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownMarker, h.ID())
	}
	delete(r.handles, h.ID())
	for i, o := range r.order {
		if o == h {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if h.player != nil {
		r.clock.Unregister(h.player)
	}
	if err := r.scene.RemoveMarker(h.element); err != nil && !errors.Is(err, scene.ErrNotAttached) {
		return err
	}
	r.logger.Debug("marker removed", "id", h.ID(), "label", h.desc.Label)
	return nil
}

// Teardown removes every marker, newest first.
func (r *Registry) Teardown() {
	handles := r.Handles()
	for i := len(handles) - 1; i >= 0; i-- {
		if err := r.Remove(handles[i]); err != nil {
			r.logger.Warn("removing marker", "id", handles[i].ID(), "error", err)
		}
	}
}

// Get returns the marker with the given id.
func (r *Registry) Get(id int) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

// Lookup resolves a textual id, as carried by interaction events.
func (r *Registry) Lookup(target string) (*Handle, error) {
	id, err := strconv.Atoi(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMarker, target)
	}
	h, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMarker, id)
	}
	return h, nil
}

// Handles returns the markers in insertion order.
func (r *Registry) Handles() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of placed markers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
