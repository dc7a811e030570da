package scene

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tricolour/indiamap/internal/anim"
	"github.com/tricolour/indiamap/internal/geo"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testView() View {
	return View{Center: geo.LatLng{Lat: 22.5, Lng: 82.0}, Zoom: 5, MinZoom: 4, Width: 800, Height: 800}
}

func square(lng, lat, size float64) geom.MultiPolygon {
	flat := []float64{lng, lat, lng + size, lat, lng + size, lat + size, lng, lat + size, lng, lat}
	ring, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		panic(err)
	}
	poly, err := geom.NewPolygon([]geom.LineString{ring})
	if err != nil {
		panic(err)
	}
	mp, err := geom.NewMultiPolygon([]geom.Polygon{poly})
	if err != nil {
		panic(err)
	}
	return mp
}

func TestMap_DefaultPanes(t *testing.T) {
	m := New(testView(), nil)

	panes := m.Panes()

	require.Len(t, panes, 2)
	assert.Equal(t, OverlayPane, panes[0].Name)
	assert.Equal(t, MarkerPane, panes[1].Name)
}

func TestMap_CreatePaneStacksAboveOverlay(t *testing.T) {
	m := New(testView(), nil)

	m.CreatePane("statesPane", 450)

	names := []string{}
	for _, p := range m.Panes() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{OverlayPane, "statesPane", MarkerPane}, names)
}

func TestMap_AddShapeUnknownPane(t *testing.T) {
	m := New(testView(), nil)

	_, err := m.AddShape("nope", square(0, 0, 1), Style{}, nil)

	assert.ErrorIs(t, err, ErrUnknownPane)
}

func TestMap_ShapesByPane(t *testing.T) {
	m := New(testView(), nil)
	m.CreatePane("statesPane", 450)
	_, err := m.AddShape(OverlayPane, square(70, 10, 20), Style{}, nil)
	require.NoError(t, err)
	_, err = m.AddShape("statesPane", square(75, 15, 1), Style{}, &Tooltip{Text: "Telangana"})
	require.NoError(t, err)

	assert.Len(t, m.Shapes(OverlayPane), 1)
	assert.Len(t, m.Shapes("statesPane"), 1)
	assert.Len(t, m.Shapes(""), 2)
}

func TestMap_TooltipAt(t *testing.T) {
	m := New(testView(), nil)
	m.CreatePane("statesPane", 450)
	_, _ = m.AddShape(OverlayPane, square(60, 0, 40), Style{}, &Tooltip{Text: "India"})
	_, _ = m.AddShape("statesPane", square(76, 8, 1), Style{}, &Tooltip{Text: "Kerala"})

	tip, ok := m.TooltipAt(geo.LatLng{Lat: 8.5, Lng: 76.5})
	require.True(t, ok)
	assert.Equal(t, "Kerala", tip.Text, "upper pane wins")

	tip, ok = m.TooltipAt(geo.LatLng{Lat: 30, Lng: 70})
	require.True(t, ok)
	assert.Equal(t, "India", tip.Text)

	_, ok = m.TooltipAt(geo.LatLng{Lat: -30, Lng: 10})
	assert.False(t, ok)
}

func TestMap_AddMarkerAttachedCallback(t *testing.T) {
	m := New(testView(), nil)
	var attachedSeen bool
	var cbElement *MarkerElement

	e, err := m.AddMarker(MarkerOptions{
		Position: geo.LatLng{Lat: 28.7041, Lng: 77.1025},
		Icon:     Icon{URL: "/svg_sequence/0001.svg", Width: 55, Height: 55, ViewHeight: 40},
		OnAttached: func(el *MarkerElement) {
			cbElement = el
			attachedSeen = el.Attached()
			_, inScene := m.Marker(el.ID())
			assert.True(t, inScene, "element must be in the scene when the callback runs")
		},
	})

	require.NoError(t, err)
	assert.Same(t, e, cbElement)
	assert.True(t, attachedSeen)
	assert.Equal(t, "/svg_sequence/0001.svg", e.Source())
}

func TestMap_AddMarkerValidation(t *testing.T) {
	m := New(testView(), nil)

	_, err := m.AddMarker(MarkerOptions{Position: geo.LatLng{Lat: 100}, Icon: Icon{URL: "x.svg"}})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)

	_, err = m.AddMarker(MarkerOptions{Position: geo.LatLng{Lat: 10, Lng: 10}})
	assert.Error(t, err)
}

func TestMap_RemoveMarker(t *testing.T) {
	m := New(testView(), nil)
	e, err := m.AddMarker(MarkerOptions{Position: geo.LatLng{Lat: 19.076, Lng: 72.8777}, Icon: Icon{URL: "a.svg"}})
	require.NoError(t, err)

	require.NoError(t, m.RemoveMarker(e))

	assert.False(t, e.Attached())
	assert.Empty(t, m.Markers())
	assert.ErrorIs(t, m.RemoveMarker(e), ErrNotAttached)
}

func TestMarkerElement_SetFrameNotifies(t *testing.T) {
	m := New(testView(), nil)
	e, err := m.AddMarker(MarkerOptions{Position: geo.LatLng{Lat: 12.9716, Lng: 77.5946}, Icon: Icon{URL: "0001.svg"}})
	require.NoError(t, err)
	var changes []FrameChange
	unsubscribe := m.Subscribe(func(c FrameChange) { changes = append(changes, c) })

	e.SetFrame(anim.Frame{Index: 43, Name: "0044.svg", URL: "/f/0044.svg"})

	require.Len(t, changes, 1)
	assert.Equal(t, FrameChange{MarkerID: e.ID(), Frame: "0044.svg", URL: "/f/0044.svg", Index: 43}, changes[0])
	assert.Equal(t, "/f/0044.svg", e.Source())
	f, ok := e.Frame()
	require.True(t, ok)
	assert.Equal(t, 43, f.Index)

	unsubscribe()
	e.SetFrame(anim.Frame{Index: 44, Name: "0045.svg", URL: "/f/0045.svg"})
	assert.Len(t, changes, 1)
}

func TestMarkerElement_SetFrameAfterRemoveIgnored(t *testing.T) {
	m := New(testView(), nil)
	e, err := m.AddMarker(MarkerOptions{Position: geo.LatLng{Lat: 12.9716, Lng: 77.5946}, Icon: Icon{URL: "0001.svg"}})
	require.NoError(t, err)
	var changes int
	m.Subscribe(func(FrameChange) { changes++ })
	require.NoError(t, m.RemoveMarker(e))

	e.SetFrame(anim.Frame{Index: 1, URL: "0002.svg"})

	assert.Zero(t, changes)
	assert.Equal(t, "0001.svg", e.Source())
}

func TestMap_FitBounds(t *testing.T) {
	m := New(View{Width: 800, Height: 800}, nil)
	b := geo.Bounds{MinLng: 68.1, MinLat: 6.7, MaxLng: 97.4, MaxLat: 37.1}

	v := m.FitBounds(b, 50)

	sw, ne := b.Projected()
	fits := func(z int) bool {
		mpp := metersPerPixel(z)
		return (ne.X-sw.X)/mpp <= 700 && (ne.Y-sw.Y)/mpp <= 700
	}
	assert.True(t, fits(v.Zoom), "bounds fit at the chosen zoom")
	assert.False(t, fits(v.Zoom+1), "chosen zoom is the largest that fits")
	assert.InDelta(t, 82.75, v.Center.Lng, 0.01)
	assert.Greater(t, v.Center.Lat, 6.7)
	assert.Less(t, v.Center.Lat, 37.1)
}

func TestMap_FitBoundsRespectsMinZoom(t *testing.T) {
	m := New(View{Width: 100, Height: 100, MinZoom: 6}, nil)

	v := m.FitBounds(geo.Bounds{MinLng: -170, MinLat: -80, MaxLng: 170, MaxLat: 80}, 10)

	assert.Equal(t, 6, v.Zoom)
}

func TestMap_MaxBoundsAndMinZoom(t *testing.T) {
	m := New(testView(), nil)
	b := geo.Bounds{MinLng: 68, MinLat: 6, MaxLng: 98, MaxLat: 36}

	m.SetMaxBounds(b.Pad(0.5))
	m.SetMinZoom(3)

	v := m.View()
	require.NotNil(t, v.MaxBounds)
	assert.Equal(t, b.Pad(0.5), *v.MaxBounds)
	assert.Equal(t, 3, v.MinZoom)
	assert.Equal(t, 5, v.Zoom)

	m.SetMinZoom(7)
	assert.Equal(t, 7, m.View().Zoom)
}

func TestMap_RenderSVG(t *testing.T) {
	m := New(testView(), nil)
	m.CreatePane("statesPane", 450)
	_, err := m.AddShape(OverlayPane, square(70, 10, 20), Style{Fill: TricolourGradient.FillURL(), FillOpacity: 1}, nil)
	require.NoError(t, err)
	_, err = m.AddShape("statesPane", square(76, 8, 1), Style{Fill: "transparent", Stroke: "#000000", Weight: 1, StrokeOpacity: 0.5}, &Tooltip{Text: "Kerala", Direction: "center", ClassName: "state-label"})
	require.NoError(t, err)
	_, err = m.AddMarker(MarkerOptions{
		Position: geo.LatLng{Lat: 28.7041, Lng: 77.1025},
		Icon:     Icon{URL: "/svg_sequence/0001.svg", Width: 55, Height: 55, ViewHeight: 40, Anchor: Offset{X: 1, Y: 40}},
		Tooltip:  &Tooltip{Text: "Delhi", Direction: "top"},
		Link:     "https://delhi-site.com",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.RenderSVG(&buf, TricolourGradient))
	out := buf.String()

	assert.Contains(t, out, `id="india-flag"`)
	assert.Contains(t, out, "#FF671F")
	assert.Contains(t, out, "#046A38")
	assert.Contains(t, out, "fill:url(#india-flag)")
	assert.Contains(t, out, "Kerala")
	assert.Contains(t, out, "https://delhi-site.com")
	assert.Contains(t, out, "/svg_sequence/0001.svg")

	overlay := strings.Index(out, `id="overlayPane"`)
	states := strings.Index(out, `id="statesPane"`)
	markers := strings.Index(out, `id="markerPane"`)
	require.True(t, overlay >= 0 && states >= 0 && markers >= 0)
	assert.Less(t, overlay, states, "states render above the base fill")
	assert.Less(t, states, markers)
}

func TestMap_RenderSVGEmptyShape(t *testing.T) {
	m := New(testView(), nil)
	_, err := m.AddShape(OverlayPane, geom.MultiPolygon{}, Style{Fill: "red"}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.RenderSVG(&buf))

	assert.NotContains(t, buf.String(), "<path")
}

func TestStyleAttr_NoStroke(t *testing.T) {
	s := styleAttr(Style{Fill: "url(#india-flag)", FillOpacity: 1, Stroke: "none", Weight: 0})

	assert.Contains(t, s, "stroke:none")
	assert.Contains(t, s, "fill-opacity:1")
}
