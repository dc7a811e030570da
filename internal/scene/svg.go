package scene

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	"github.com/tricolour/indiamap/internal/geo"

	svg "github.com/ajstarks/svgo"
)

// Gradient is a linear gradient definition referenced by fill "url(#ID)".
type Gradient struct {
	ID     string
	Stops  []GradientStop
	X1, Y1 uint8 // percent
	X2, Y2 uint8
}

// GradientStop is one color stop of a gradient.
type GradientStop struct {
	Offset  uint8 // percent
	Color   string
	Opacity float64
}

// TricolourGradient is the saffron/white/green vertical band fill of the
// national outline.
var TricolourGradient = Gradient{
	ID: "india-flag",
	X1: 0, Y1: 0, X2: 0, Y2: 100,
	Stops: []GradientStop{
		{Offset: 0, Color: "#FF671F", Opacity: 1},
		{Offset: 33, Color: "#FF671F", Opacity: 1},
		{Offset: 33, Color: "#FFFFFF", Opacity: 1},
		{Offset: 66, Color: "#FFFFFF", Opacity: 1},
		{Offset: 66, Color: "#046A38", Opacity: 1},
		{Offset: 100, Color: "#046A38", Opacity: 1},
	},
}

// FillURL returns the fill value that references g.
func (g Gradient) FillURL() string {
	return "url(#" + g.ID + ")"
}

// errWriter remembers the first write error; svgo has no error returns.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

// RenderSVG writes the scene as a standalone SVG document: gradient
// definitions, then every pane bottom to top with its shapes, then the
// markers showing their current image.
func (m *Map) RenderSVG(w io.Writer, gradients ...Gradient) error {
	m.mu.RLock()
	view := m.view
	panes := m.sortedPanesLocked()
	shapes := append([]*Shape(nil), m.shapes...)
	markers := append([]*MarkerElement(nil), m.markers...)
	m.mu.RUnlock()

	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Start(view.Width, view.Height)

	if len(gradients) > 0 {
		canvas.Def()
		for _, g := range gradients {
			stops := make([]svg.Offcolor, 0, len(g.Stops))
			for _, s := range g.Stops {
				stops = append(stops, svg.Offcolor{Offset: s.Offset, Color: s.Color, Opacity: s.Opacity})
			}
			canvas.LinearGradient(g.ID, g.X1, g.Y1, g.X2, g.Y2, stops)
		}
		canvas.DefEnd()
	}

	proj := newProjector(view)
	for _, pane := range panes {
		canvas.Gid(pane.Name)
		for _, s := range shapes {
			if s.Pane != pane.Name {
				continue
			}
			renderShape(canvas, proj, s)
		}
		if pane.Name == MarkerPane {
			for _, e := range markers {
				renderMarker(canvas, proj, e)
			}
		}
		canvas.Gend()
	}

	canvas.End()
	return ew.err
}

func renderShape(canvas *svg.SVG, proj projector, s *Shape) {
	d := shapePath(proj, s)
	if d == "" {
		return
	}
	if s.Tooltip != nil {
		canvas.Group(fmt.Sprintf(`class="%s"`, html.EscapeString(tooltipClass(s.Tooltip))))
		canvas.Title(s.Tooltip.Text)
	}
	canvas.Path(d, styleAttr(s.Style), `fill-rule="evenodd"`)
	if s.Tooltip != nil {
		canvas.Gend()
	}
}

func tooltipClass(t *Tooltip) string {
	if t.ClassName != "" {
		return t.ClassName
	}
	return "tooltip-" + t.Direction
}

func shapePath(proj projector, s *Shape) string {
	var b strings.Builder
	for _, poly := range geo.Rings(s.Geometry) {
		for _, ring := range poly {
			for i, xy := range ring {
				x, y := proj.pixel(xy.X, xy.Y)
				if i == 0 {
					fmt.Fprintf(&b, "M%.1f %.1f", x, y)
				} else {
					fmt.Fprintf(&b, "L%.1f %.1f", x, y)
				}
			}
			if len(ring) > 0 {
				b.WriteString("Z")
			}
		}
	}
	return b.String()
}

func styleAttr(st Style) string {
	stroke := st.Stroke
	if stroke == "" || st.Weight <= 0 {
		stroke = "none"
	}
	fill := st.Fill
	if fill == "" {
		fill = "none"
	}
	return fmt.Sprintf(`style="fill:%s;fill-opacity:%g;stroke:%s;stroke-opacity:%g;stroke-width:%g"`,
		fill, st.FillOpacity, stroke, st.StrokeOpacity, st.Weight)
}

func renderMarker(canvas *svg.SVG, proj projector, e *MarkerElement) {
	icon := e.Icon()
	px, py := proj.pixel(e.Position().Lng, e.Position().Lat)
	x := int(math.Round(px)) - icon.Anchor.X
	y := int(math.Round(py)) - icon.Anchor.Y

	title := ""
	if t := e.Tooltip(); t != nil {
		title = t.Text
	}
	if link := e.Link(); link != "" {
		canvas.Link(html.EscapeString(link), html.EscapeString(title))
	}
	canvas.Image(x, y, icon.Width, icon.visibleHeight(), html.EscapeString(e.Source()),
		fmt.Sprintf(`id="marker-%d"`, e.ID()),
		`preserveAspectRatio="xMinYMin slice"`)
	if e.Link() != "" {
		canvas.LinkEnd()
	}
}
