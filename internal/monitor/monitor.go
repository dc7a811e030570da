// Package monitor samples the running map at a fixed interval and keeps a
// status file with the latest snapshot.
package monitor

import (
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/tricolour/indiamap/internal/boundary"
	"github.com/tricolour/indiamap/internal/clock"
	"github.com/tricolour/indiamap/internal/markers"
)

// StreamStats reports on the live frame stream.
type StreamStats interface {
	Len() int
	Dropped() int64
}

// Dependencies holds all dependencies for the monitor service. Boundary and
// Stream may be nil; StatusFile may be empty to skip the file.
type Dependencies struct {
	Clock    *clock.Clock
	Markers  *markers.Registry
	Boundary *boundary.Loader
	Stream   StreamStats

	Fs         afero.Fs
	StatusFile string
	Interval   time.Duration
	Logger     *slog.Logger
}

// Status is one snapshot of the map.
type Status struct {
	Time          time.Time `json:"time"`
	Markers       int       `json:"markers"`
	Animating     int       `json:"animating"`
	ClockRunning  bool      `json:"clockRunning"`
	LastTickMs    float64   `json:"lastTickMs"`
	CountryLoaded bool      `json:"countryLoaded"`
	States        int       `json:"states"`
	Subscribers   int       `json:"subscribers"`
	DroppedFrames int64     `json:"droppedFrames"`
	Visits        int64     `json:"visits"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 5 * time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot samples every component now.
func (s *Service) Snapshot() Status {
	st := Status{Time: time.Now().UTC()}

	if c := s.deps.Clock; c != nil {
		st.Animating = c.Len()
		st.ClockRunning = c.Running()
		st.LastTickMs = float64(c.LastTick()) / float64(time.Millisecond)
	}
	if r := s.deps.Markers; r != nil {
		for _, h := range r.Handles() {
			st.Markers++
			st.Visits += h.Visits()
		}
	}
	if b := s.deps.Boundary; b != nil {
		_, st.CountryLoaded = b.Country()
		st.States = b.States()
	}
	if stream := s.deps.Stream; stream != nil {
		st.Subscribers = stream.Len()
		st.DroppedFrames = stream.Dropped()
	}
	return st
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "interval", s.deps.Interval, "file", s.deps.StatusFile)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				st := s.Snapshot()
				if err := s.writeStatus(st); err != nil {
					logger.Error("Error writing status file", "error", err, "path", s.deps.StatusFile)
				}
				logger.Debug("Status",
					"markers", st.Markers, "animating", st.Animating,
					"subscribers", st.Subscribers, "dropped", st.DroppedFrames)
			}
		}
	}()
}

func (s *Service) writeStatus(st Status) error {
	if s.deps.Fs == nil || s.deps.StatusFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := s.deps.Fs.MkdirAll(filepath.Dir(s.deps.StatusFile), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.deps.Fs, s.deps.StatusFile, data, 0o644)
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
