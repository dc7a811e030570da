package boundary

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/tricolour/indiamap/internal/dispatcher"
	"github.com/tricolour/indiamap/internal/geo"
	"github.com/tricolour/indiamap/internal/scene"

	geom "github.com/peterstace/simplefeatures/geom"
)

// StatesPane stacks the state outlines above the country fill.
const (
	StatesPane = "statesPane"
	StatesZ    = 450
)

// StateNameProperty is the feature property labelling a state.
const StateNameProperty = "ST_NM"

// CommandHover resolves the label under a map position.
const CommandHover = "map:hover"

var (
	// CountryStyle paints the merged outline with the tricolour gradient.
	CountryStyle = scene.Style{Fill: scene.TricolourGradient.FillURL(), FillOpacity: 1, Stroke: "none"}
	// StatesStyle draws state borders only.
	StatesStyle = scene.Style{Fill: "transparent", Stroke: "#000000", StrokeOpacity: 0.5, Weight: 1}
)

// Fetcher retrieves a feature collection. *Client implements it.
type Fetcher interface {
	FetchFeatures(ctx context.Context, source string) (geo.FeatureCollection, error)
}

// Options tune the viewport adjustments after the country layer loads.
type Options struct {
	Padding      int     // fit padding in pixels
	MaxBoundsPad float64 // ratio the fitted bounds are grown by to restrict panning
}

// DefaultOptions pads the fit by 50px and lets the view pan half the
// country's extent beyond it.
var DefaultOptions = Options{Padding: 50, MaxBoundsPad: 0.5}

// Loader builds the boundary layers of one map.
type Loader struct {
	scene   *scene.Map
	fetcher Fetcher
	opts    Options
	logger  *slog.Logger

	mu      sync.RWMutex
	country geom.MultiPolygon
	hasCtry bool
	states  int
}

// NewLoader creates a loader drawing into m.
func NewLoader(m *scene.Map, f Fetcher, opts Options, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	m.CreatePane(StatesPane, StatesZ)
	return &Loader{scene: m, fetcher: f, opts: opts, logger: logger}
}

// LoadCountry fetches the country outline, merges every polygonal feature
// into one multipolygon, draws it, and fits the viewport to it. An empty
// outline is drawn but the viewport is left alone.
func (l *Loader) LoadCountry(ctx context.Context, source string) error {
	fc, err := l.fetcher.FetchFeatures(ctx, source)
	if err != nil {
		return err
	}
	merged, err := geo.Merge(fc)
	if err != nil {
		return err
	}

	if _, err := l.scene.AddShape(scene.OverlayPane, merged, CountryStyle, nil); err != nil {
		return err
	}
	l.mu.Lock()
	l.country = merged
	l.hasCtry = true
	l.mu.Unlock()

	b, ok := geo.BoundsOf(merged)
	if !ok {
		l.logger.Debug("country outline empty, viewport unchanged", "source", source)
		return nil
	}
	v := l.scene.FitBounds(b, l.opts.Padding)
	l.scene.SetMaxBounds(b.Pad(l.opts.MaxBoundsPad))
	l.scene.SetMinZoom(v.Zoom - 1)

	l.logger.Info("country layer loaded",
		"features", len(fc), "polygons", merged.NumPolygons(), "zoom", v.Zoom)
	return nil
}

// LoadStates fetches the state outlines and draws one shape per polygonal
// feature, labelled by its state name when present.
func (l *Loader) LoadStates(ctx context.Context, source string) error {
	fc, err := l.fetcher.FetchFeatures(ctx, source)
	if err != nil {
		return err
	}

	drawn := 0
	for _, f := range fc {
		if f.Kind == geo.KindOther {
			continue
		}
		var tip *scene.Tooltip
		if name := f.Property(StateNameProperty); name != "" {
			tip = &scene.Tooltip{Text: name, Direction: "center", ClassName: "state-label"}
		}
		mp, err := geo.NewMultiPolygon(f.Polygons)
		if err != nil {
			return err
		}
		if _, err := l.scene.AddShape(StatesPane, mp, StatesStyle, tip); err != nil {
			return err
		}
		drawn++
	}

	l.mu.Lock()
	l.states += drawn
	l.mu.Unlock()

	l.logger.Info("states layer loaded", "features", len(fc), "drawn", drawn)
	return nil
}

// LoadAll loads both layers concurrently. A failing layer is logged and
// omitted; the other is unaffected. The joined errors are returned.
func (l *Loader) LoadAll(ctx context.Context, countrySource, statesSource string) error {
	var (
		wg        sync.WaitGroup
		ctryErr   error
		statesErr error
	)
	if countrySource != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ctryErr = l.LoadCountry(ctx, countrySource); ctryErr != nil {
				l.logger.Error("country layer omitted", "source", countrySource, "error", ctryErr)
			}
		}()
	}
	if statesSource != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if statesErr = l.LoadStates(ctx, statesSource); statesErr != nil {
				l.logger.Error("states layer omitted", "source", statesSource, "error", statesErr)
			}
		}()
	}
	wg.Wait()
	return errors.Join(ctryErr, statesErr)
}

// Country returns the merged country outline once loaded.
func (l *Loader) Country() (geom.MultiPolygon, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.country, l.hasCtry
}

// States returns the number of state shapes drawn.
func (l *Loader) States() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.states
}

// RegisterHandlers binds map hovers on d. The event carries the position
// as Args [lat, lng] and resolves to the label under it, or "".
func (l *Loader) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CommandHover, func(e dispatcher.Event) (any, error) {
		if len(e.Args) != 2 {
			return nil, errors.New("hover needs lat and lng")
		}
		lat, err := strconv.ParseFloat(e.Args[0], 64)
		if err != nil {
			return nil, err
		}
		lng, err := strconv.ParseFloat(e.Args[1], 64)
		if err != nil {
			return nil, err
		}
		p := geo.LatLng{Lat: lat, Lng: lng}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		tip, ok := l.scene.TooltipAt(p)
		if !ok {
			return "", nil
		}
		return tip.Text, nil
	})
}
