package anim

import (
	"errors"
	"sync/atomic"
	"time"
)

// Visual is the scene element a player drives.
type Visual interface {
	SetFrame(f Frame)
}

// VisualFunc adapts a function to Visual.
type VisualFunc func(Frame)

// SetFrame calls fn(f).
func (fn VisualFunc) SetFrame(f Frame) { fn(f) }

// ErrInvalidLoop is returned for a non-positive loop duration.
var ErrInvalidLoop = errors.New("loop duration must be positive")

// FrameIndex returns the frame of an n frame cycle lasting loop that is due
// at virtual time t.
//
// The cycle wraps with t mod loop on purpose: playback is infinite and can
// resume from any clock value, however long the process has been up. The
// division uses integers (elapsed*n/loop), which equals
// floor(elapsed / (loop/n)) without the rounding of a truncated per-frame
// duration, so the result is always in [0, n-1].
func FrameIndex(t, loop time.Duration, n int) int {
	if loop <= 0 || n <= 0 {
		return 0
	}
	elapsed := t % loop
	if elapsed < 0 {
		elapsed += loop
	}
	return int(int64(elapsed) * int64(n) / int64(loop))
}

// Player cycles one visual through a FrameSet. It is owned by a single
// marker and only its Refresh mutates its state; the accessors may be read
// from other goroutines.
type Player struct {
	set     *FrameSet
	loop    time.Duration
	visual  Visual
	current atomic.Int64 // -1 until the first frame is selected
	updates atomic.Int64
}

// NewPlayer binds a frame set to a visual. The visual must already be
// attached to the scene.
func NewPlayer(set *FrameSet, loop time.Duration, visual Visual) (*Player, error) {
	if loop <= 0 {
		return nil, ErrInvalidLoop
	}
	if visual == nil {
		return nil, errors.New("player needs a visual")
	}
	p := &Player{set: set, loop: loop, visual: visual}
	p.current.Store(-1)
	return p, nil
}

// Refresh selects the frame due at t and pushes it to the visual when it
// differs from the one already shown. It does nothing while the frame set
// is incomplete.
func (p *Player) Refresh(t time.Duration) {
	if !p.set.Complete() {
		return
	}
	idx := FrameIndex(t, p.loop, p.set.Count())
	if int64(idx) == p.current.Load() {
		return
	}
	f, ok := p.set.Frame(idx)
	if !ok {
		return
	}
	p.visual.SetFrame(f)
	p.current.Store(int64(idx))
	p.updates.Add(1)
}

// Current returns the selected frame, false before the first selection.
func (p *Player) Current() (Frame, bool) {
	idx := p.current.Load()
	if idx < 0 {
		return Frame{}, false
	}
	return p.set.Frame(int(idx))
}

// Index returns the selected frame index or -1.
func (p *Player) Index() int {
	return int(p.current.Load())
}

// Updates returns how many times the visual was changed.
func (p *Player) Updates() int {
	return int(p.updates.Load())
}

// FrameDuration is how long each frame stays on screen.
func (p *Player) FrameDuration() time.Duration {
	n := p.set.Count()
	if n == 0 {
		return 0
	}
	return p.loop / time.Duration(n)
}

// Loop returns the cycle length.
func (p *Player) Loop() time.Duration {
	return p.loop
}
