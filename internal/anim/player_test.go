package anim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sixSeconds = 6000 * time.Millisecond

type recordingVisual struct {
	frames []Frame
}

func (v *recordingVisual) SetFrame(f Frame) {
	v.frames = append(v.frames, f)
}

func newTestPlayer(t *testing.T) (*Player, *recordingVisual) {
	t.Helper()
	set, err := NewFrameSet("/svg_sequence/", DefaultLayout)
	require.NoError(t, err)
	v := &recordingVisual{}
	p, err := NewPlayer(set, sixSeconds, v)
	require.NoError(t, err)
	return p, v
}

func TestFrameIndex_Scenario(t *testing.T) {
	assert.Equal(t, 0, FrameIndex(0, sixSeconds, 86))
	assert.Equal(t, 43, FrameIndex(3000*time.Millisecond, sixSeconds, 86))
	assert.Equal(t, 0, FrameIndex(6000*time.Millisecond, sixSeconds, 86))
}

func TestFrameIndex_FrameBoundaries(t *testing.T) {
	// 6000/86 ≈ 69.77ms per frame
	assert.Equal(t, 0, FrameIndex(69*time.Millisecond, sixSeconds, 86))
	assert.Equal(t, 1, FrameIndex(70*time.Millisecond, sixSeconds, 86))
	assert.Equal(t, 85, FrameIndex(sixSeconds-time.Nanosecond, sixSeconds, 86))
}

func TestFrameIndex_MonotonicWithinCycleAndWraps(t *testing.T) {
	prev := -1
	for ms := 0; ms < 6000; ms++ {
		idx := FrameIndex(time.Duration(ms)*time.Millisecond, sixSeconds, 86)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 86)
		require.GreaterOrEqual(t, idx, prev, "index decreased at %dms", ms)
		prev = idx
	}
	assert.Equal(t, 85, prev)
	assert.Equal(t, 0, FrameIndex(6000*time.Millisecond, sixSeconds, 86))
}

func TestFrameIndex_LongUptime(t *testing.T) {
	// ~100 days of uptime lands on the same frame as its offset in the cycle
	base := 100 * 24 * time.Hour
	offset := 3000 * time.Millisecond
	assert.Equal(t, FrameIndex(offset+base%sixSeconds, sixSeconds, 86), FrameIndex(base+offset, sixSeconds, 86))
}

func TestFrameIndex_NegativeWraps(t *testing.T) {
	assert.Equal(t, 43, FrameIndex(-3000*time.Millisecond, sixSeconds, 86))
	assert.Equal(t, 85, FrameIndex(-time.Millisecond, sixSeconds, 86))
}

func TestFrameIndex_DegenerateInputs(t *testing.T) {
	assert.Equal(t, 0, FrameIndex(time.Second, 0, 86))
	assert.Equal(t, 0, FrameIndex(time.Second, sixSeconds, 0))
}

func TestPlayer_RefreshSelectsFrame(t *testing.T) {
	p, v := newTestPlayer(t)

	_, ok := p.Current()
	assert.False(t, ok, "no frame before the first refresh")
	assert.Equal(t, -1, p.Index())

	p.Refresh(3000 * time.Millisecond)

	require.Len(t, v.frames, 1)
	assert.Equal(t, 43, v.frames[0].Index)
	assert.Equal(t, "0044.svg", v.frames[0].Name)
	assert.Equal(t, "/svg_sequence/0044.svg", v.frames[0].URL)
	f, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, 43, f.Index)
}

func TestPlayer_RefreshIsIdempotent(t *testing.T) {
	p, v := newTestPlayer(t)

	p.Refresh(1000 * time.Millisecond)
	p.Refresh(1000 * time.Millisecond)
	// same frame, later tick
	p.Refresh(1010 * time.Millisecond)

	assert.Len(t, v.frames, 1)
	assert.Equal(t, 1, p.Updates())
}

func TestPlayer_RefreshWrapsAtCycleBoundary(t *testing.T) {
	p, v := newTestPlayer(t)

	p.Refresh(5990 * time.Millisecond)
	p.Refresh(6000 * time.Millisecond)

	require.Len(t, v.frames, 2)
	assert.Equal(t, 85, v.frames[0].Index)
	assert.Equal(t, 0, v.frames[1].Index)
}

func TestPlayer_TickRateIndependent(t *testing.T) {
	fast, fastV := newTestPlayer(t)
	slow, slowV := newTestPlayer(t)

	// one cycle at ~240Hz and at ~60Hz
	for ms := 0; ms < 6000; ms += 4 {
		fast.Refresh(time.Duration(ms) * time.Millisecond)
	}
	for ms := 0; ms < 6000; ms += 16 {
		slow.Refresh(time.Duration(ms) * time.Millisecond)
	}

	assert.Len(t, fastV.frames, 86)
	assert.Len(t, slowV.frames, 86)
}

func TestPlayer_IncompleteSetIsNoop(t *testing.T) {
	set := &FrameSet{layout: DefaultLayout}
	v := &recordingVisual{}
	p, err := NewPlayer(set, sixSeconds, v)
	require.NoError(t, err)

	p.Refresh(3000 * time.Millisecond)

	assert.Empty(t, v.frames)
	assert.Equal(t, -1, p.Index())
}

func TestPlayer_NilSetIsNoop(t *testing.T) {
	v := &recordingVisual{}
	p, err := NewPlayer(nil, sixSeconds, v)
	require.NoError(t, err)

	p.Refresh(time.Second)

	assert.Empty(t, v.frames)
	assert.Zero(t, p.FrameDuration())
}

func TestNewPlayer_Invalid(t *testing.T) {
	set, err := NewFrameSet("", DefaultLayout)
	require.NoError(t, err)

	_, err = NewPlayer(set, 0, &recordingVisual{})
	assert.ErrorIs(t, err, ErrInvalidLoop)

	_, err = NewPlayer(set, sixSeconds, nil)
	assert.Error(t, err)
}

func TestPlayer_FrameDuration(t *testing.T) {
	p, _ := newTestPlayer(t)

	assert.InDelta(t, 69.77, float64(p.FrameDuration())/float64(time.Millisecond), 0.01)
	assert.Equal(t, sixSeconds, p.Loop())
}

func TestVisualFunc(t *testing.T) {
	var got Frame
	var v Visual = VisualFunc(func(f Frame) { got = f })

	v.SetFrame(Frame{Index: 7})

	assert.Equal(t, 7, got.Index)
}
