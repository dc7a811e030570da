// Package server exposes the map over HTTP: the rendered scene, its state
// as JSON, marker interactions, frame assets and a websocket stream of
// frame changes.
package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/gorilla/mux"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/tricolour/indiamap/internal/boundary"
	"github.com/tricolour/indiamap/internal/dispatcher"
	"github.com/tricolour/indiamap/internal/logging"
	"github.com/tricolour/indiamap/internal/markers"
	"github.com/tricolour/indiamap/internal/monitor"
	"github.com/tricolour/indiamap/internal/scene"
)

// Config holds the listener settings.
type Config struct {
	Addr           string
	AllowedOrigins []string
}

// StatusSource produces the status report.
type StatusSource interface {
	Snapshot() monitor.Status
}

// Deps are the components the server reads from and dispatches to.
// Boundary, Status and Frames may be nil. A nil Hub gets a fresh one.
type Deps struct {
	Scene      *scene.Map
	Markers    *markers.Registry
	Boundary   *boundary.Loader
	Dispatcher *dispatcher.Dispatcher
	Hub        *Hub
	Status     StatusSource

	Frames     afero.Fs
	FramesDir  string
	FramesPath string // URL prefix frame URLs are built with

	Access zerolog.Logger
	Logger *slog.Logger
}

// Server is the HTTP front of one map.
type Server struct {
	deps       Deps
	hub        *Hub
	handler    http.Handler
	httpServer *http.Server

	unsubscribe func()
}

// New builds the router and subscribes the websocket hub to the scene.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Scene == nil || deps.Markers == nil || deps.Dispatcher == nil {
		return nil, errors.New("server needs a scene, a marker registry and a dispatcher")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Logger, cfg.AllowedOrigins)
	}

	s := &Server{
		deps: deps,
		hub:  deps.Hub,
	}

	r := mux.NewRouter()
	r.Use(accessLogMiddleware(deps.Access))

	r.HandleFunc("/healthcheck", s.healthcheck).Methods("GET")
	r.HandleFunc("/map.svg", s.mapSVG).Methods("GET")
	r.HandleFunc("/api/view", s.view).Methods("GET")
	r.HandleFunc("/api/boundary", s.boundary).Methods("GET")
	r.HandleFunc("/api/markers", s.markerList).Methods("GET")
	r.HandleFunc("/api/hover", s.hover).Methods("GET")
	r.HandleFunc("/api/status", s.status).Methods("GET")
	r.HandleFunc("/markers/{id}/visit", s.visit).Methods("GET")
	r.HandleFunc("/markers/{id}/label", s.label).Methods("GET")
	if deps.Frames != nil && deps.FramesPath != "" {
		r.HandleFunc(path.Join("/", deps.FramesPath, "{name}"), s.frame).Methods("GET")
	}
	r.Handle("/ws", s.hub).Methods("GET")

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	s.handler = corsHandler.Handler(r)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.unsubscribe = deps.Scene.Subscribe(s.hub.Publish)

	return s, nil
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the websocket broadcaster.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves until Shutdown. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.deps.Logger.Info("Starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the frame stream, closes subscribers and drains in-flight
// requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthcheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) mapSVG(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.deps.Scene.RenderSVG(&buf, scene.TricolourGradient); err != nil {
		s.deps.Logger.ErrorContext(r.Context(), "failed to render map", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = buf.WriteTo(w)
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Scene.View())
}

func (s *Server) boundary(w http.ResponseWriter, r *http.Request) {
	if s.deps.Boundary == nil {
		http.NotFound(w, r)
		return
	}
	mp, ok := s.deps.Boundary.Country()
	if !ok {
		http.NotFound(w, r)
		return
	}
	feature := geom.GeoJSONFeature{
		Geometry:   mp.AsGeometry(),
		Properties: map[string]any{"name": "India", "polygons": mp.NumPolygons()},
	}
	w.Header().Set("Content-Type", "application/geo+json")
	s.writeJSON(w, http.StatusOK, feature)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	if s.deps.Status == nil {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Status.Snapshot())
}

// markerView is one entry of the marker list.
type markerView struct {
	ID        int     `json:"id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Label     string  `json:"label"`
	TargetURL string  `json:"targetUrl"`
	Animated  bool    `json:"animated"`
	Source    string  `json:"src"`
	Frame     string  `json:"frame,omitempty"`
	Visits    int64   `json:"visits"`
}

func (s *Server) markerList(w http.ResponseWriter, r *http.Request) {
	handles := s.deps.Markers.Handles()
	out := make([]markerView, 0, len(handles))
	for _, h := range handles {
		d := h.Descriptor()
		v := markerView{
			ID:        h.ID(),
			Lat:       d.Lat,
			Lng:       d.Lng,
			Label:     d.Label,
			TargetURL: d.TargetURL,
			Animated:  d.Animated(),
			Source:    h.Element().Source(),
			Visits:    h.Visits(),
		}
		if f, ok := h.Element().Frame(); ok {
			v.Frame = f.Name
		}
		out = append(out, v)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) visit(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Dispatcher.Dispatch(dispatcher.Event{
		Command: markers.CommandClick,
		Target:  mux.Vars(r)["id"],
	})
	if err != nil {
		s.dispatchError(w, r, err)
		return
	}
	nav, ok := res.(markers.Navigation)
	if !ok {
		http.Error(w, "unexpected click result", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, nav.URL, http.StatusFound)
}

func (s *Server) label(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Dispatcher.Dispatch(dispatcher.Event{
		Command: markers.CommandHover,
		Target:  mux.Vars(r)["id"],
	})
	if err != nil {
		s.dispatchError(w, r, err)
		return
	}
	text, _ := res.(string)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (s *Server) hover(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.deps.Dispatcher.Dispatch(dispatcher.Event{
		Command: boundary.CommandHover,
		Args:    []string{q.Get("lat"), q.Get("lng")},
	})
	if errors.Is(err, dispatcher.ErrUnknownCommand) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	text, _ := res.(string)
	s.writeJSON(w, http.StatusOK, map[string]string{"label": text})
}

func (s *Server) frame(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" || name != path.Base(name) || name == ".." {
		http.NotFound(w, r)
		return
	}
	f, err := s.deps.Frames.Open(path.Join(s.deps.FramesDir, name))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) dispatchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, markers.ErrUnknownMarker):
		http.NotFound(w, r)
	case errors.Is(err, dispatcher.ErrClosed):
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
	default:
		s.deps.Logger.ErrorContext(r.Context(), "interaction failed", "error", err)
		http.Error(w, "interaction failed", http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.deps.Logger.Warn("failed to write response", "error", err)
	}
}

// accessLogMiddleware writes one access line per request.
func accessLogMiddleware(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			ctx := logging.WithAttrs(r.Context(), slog.String("method", r.Method), slog.String("path", r.URL.Path))

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
