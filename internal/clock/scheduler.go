package clock

import (
	"context"
	"sync"
	"time"
)

// FrameFunc receives the host timestamp of one animation tick.
type FrameFunc func(ts time.Duration)

// FrameID identifies a pending frame request.
type FrameID uint64

// Scheduler is the host animation primitive: one-shot frame requests that
// are delivered one at a time with strictly increasing timestamps.
// RequestFrame must never invoke fn synchronously.
type Scheduler interface {
	RequestFrame(fn FrameFunc) FrameID
	CancelFrame(id FrameID)
}

type request struct {
	id FrameID
	fn FrameFunc
}

// requests is the pending request list shared by both schedulers.
type requests struct {
	mu      sync.Mutex
	nextID  FrameID
	pending []request
	last    time.Duration
	ticked  bool
}

func (r *requests) add(fn FrameFunc) FrameID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.pending = append(r.pending, request{id: r.nextID, fn: fn})
	return r.nextID
}

func (r *requests) cancel(id FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, req := range r.pending {
		if req.id == id {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return
		}
	}
}

func (r *requests) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// take removes the pending requests and stamps the tick. Requests made
// while the batch runs wait for the next tick.
func (r *requests) take(ts time.Duration) ([]request, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ticked && ts <= r.last {
		ts = r.last + 1
	}
	r.last, r.ticked = ts, true
	batch := r.pending
	r.pending = nil
	return batch, ts
}

func deliver(batch []request, ts time.Duration) {
	for _, req := range batch {
		req.fn(ts)
	}
}

// TickerScheduler drives frame requests from a time.Ticker on a single
// goroutine started by Run. Timestamps are measured from the moment Run
// starts.
type TickerScheduler struct {
	requests
	interval time.Duration
}

// NewTickerScheduler creates a scheduler ticking at the given interval.
func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &TickerScheduler{interval: interval}
}

// RequestFrame queues fn for the next tick.
func (s *TickerScheduler) RequestFrame(fn FrameFunc) FrameID {
	return s.add(fn)
}

// CancelFrame drops a pending request. Unknown ids are ignored.
func (s *TickerScheduler) CancelFrame(id FrameID) {
	s.cancel(id)
}

// Pending returns the number of queued requests.
func (s *TickerScheduler) Pending() int {
	return s.len()
}

// Run delivers ticks until ctx is done. Idle ticks with nothing pending cost
// a lock and nothing else.
func (s *TickerScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	epoch := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			batch, ts := s.take(now.Sub(epoch))
			deliver(batch, ts)
		}
	}
}

// ManualScheduler delivers ticks only when Advance is called. It is the
// deterministic host used by tests and offline rendering.
type ManualScheduler struct {
	requests
}

// NewManualScheduler creates an idle manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// RequestFrame queues fn for the next Advance.
func (s *ManualScheduler) RequestFrame(fn FrameFunc) FrameID {
	return s.add(fn)
}

// CancelFrame drops a pending request. Unknown ids are ignored.
func (s *ManualScheduler) CancelFrame(id FrameID) {
	s.cancel(id)
}

// Pending returns the number of queued requests.
func (s *ManualScheduler) Pending() int {
	return s.len()
}

// Advance fires every request pending at call time with timestamp ts and
// returns how many ran. A ts not after the previous tick is moved forward by
// one nanosecond to keep timestamps strictly increasing.
func (s *ManualScheduler) Advance(ts time.Duration) int {
	batch, ts := s.take(ts)
	deliver(batch, ts)
	return len(batch)
}
