// Package clock runs the single animation loop shared by every animated
// marker of a map.
package clock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tricolour/indiamap/internal/clock"

// Refresher is refreshed once per tick with the tick timestamp.
type Refresher interface {
	Refresh(t time.Duration)
}

// Option configures a Clock.
type Option func(*Clock)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *Clock) {
		c.logger = l
	}
}

// WithMeter overrides the meter used for clock metrics.
func WithMeter(m metric.Meter) Option {
	return func(c *Clock) {
		c.meter = m
	}
}

// Clock is a cooperative animation loop. While running it keeps exactly one
// frame request outstanding with its Scheduler and, on every tick, refreshes
// the registered Refreshers in registration order.
//
// Register and Unregister are safe to call from inside a tick: the tick
// iterates a snapshot and skips entries removed before their turn.
type Clock struct {
	sched  Scheduler
	logger *slog.Logger
	meter  metric.Meter

	mu      sync.Mutex
	entries []Refresher
	members map[Refresher]struct{}
	running bool
	pending FrameID
	queued  bool
	gen     uint64 // bumped whenever a pending request is abandoned
	last    time.Duration

	ticks     metric.Int64Counter
	refreshes metric.Int64Counter
	gauge     metric.Int64ObservableGauge
}

// New creates a stopped clock on top of sched. Metrics go to the global OTel
// meter unless WithMeter is given (no-op when OTel is not configured).
func New(sched Scheduler, opts ...Option) (*Clock, error) {
	c := &Clock{
		sched:   sched,
		logger:  slog.Default(),
		meter:   otel.Meter(instrumentationName),
		members: make(map[Refresher]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	c.ticks, err = c.meter.Int64Counter(
		"clock.ticks",
		metric.WithDescription("Animation ticks delivered to the clock"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	c.refreshes, err = c.meter.Int64Counter(
		"clock.refreshes",
		metric.WithDescription("Refresh calls made to registered players"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating refreshes counter: %w", err)
	}

	c.gauge, err = c.meter.Int64ObservableGauge(
		"clock.registrations",
		metric.WithDescription("Players currently registered with the clock"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating registrations gauge: %w", err)
	}

	_, err = c.meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(c.gauge, int64(c.Len()))
			return nil
		},
		c.gauge,
	)
	if err != nil {
		return nil, fmt.Errorf("registering registrations callback: %w", err)
	}

	return c, nil
}

// Register adds r to the refresh set. It reports false when r is already
// registered. Registering never starts a stopped clock.
func (c *Clock) Register(r Refresher) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.members[r]; ok {
		return false
	}
	c.members[r] = struct{}{}
	c.entries = append(c.entries, r)
	return true
}

// Unregister removes r. Once r is gone no further Refresh reaches it, even
// later in a tick already in progress. Removing the last entry stops the
// loop.
func (c *Clock) Unregister(r Refresher) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.members[r]; !ok {
		return false
	}
	delete(c.members, r)
	for i, e := range c.entries {
		if e == r {
			c.entries = append(c.entries[:i:i], c.entries[i+1:]...)
			break
		}
	}
	if len(c.entries) == 0 && c.running {
		c.stopLocked()
		c.logger.Debug("animation clock idle, loop stopped")
	}
	return true
}

// Start begins the loop when at least one Refresher is registered. Calling
// Start on a running clock has no effect. It reports whether this call
// started the loop.
func (c *Clock) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || len(c.entries) == 0 {
		return false
	}
	c.running = true
	c.scheduleLocked()
	c.logger.Debug("animation clock started", "registrations", len(c.entries))
	return true
}

// Stop halts the loop. Registrations are kept.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.stopLocked()
		c.logger.Debug("animation clock stopped")
	}
}

// Running reports whether the loop is active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Len returns the number of registered Refreshers.
func (c *Clock) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Registered reports whether r is in the refresh set.
func (c *Clock) Registered(r Refresher) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.members[r]
	return ok
}

// LastTick returns the timestamp of the most recent tick.
func (c *Clock) LastTick() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Clock) scheduleLocked() {
	gen := c.gen
	c.pending = c.sched.RequestFrame(func(ts time.Duration) {
		c.tick(gen, ts)
	})
	c.queued = true
}

func (c *Clock) stopLocked() {
	if c.queued {
		c.sched.CancelFrame(c.pending)
		c.queued = false
	}
	c.gen++
	c.running = false
}

func (c *Clock) tick(gen uint64, ts time.Duration) {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		// request abandoned by Stop/Unregister before it fired
		c.mu.Unlock()
		return
	}
	c.queued = false
	c.last = ts
	snapshot := make([]Refresher, len(c.entries))
	copy(snapshot, c.entries)
	c.mu.Unlock()

	refreshed := 0
	for _, r := range snapshot {
		if !c.Registered(r) {
			continue
		}
		r.Refresh(ts)
		refreshed++
	}

	ctx := context.Background()
	c.ticks.Add(ctx, 1)
	c.refreshes.Add(ctx, int64(refreshed))

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen && c.running && !c.queued {
		c.scheduleLocked()
	}
}
