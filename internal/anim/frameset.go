// Package anim holds the frame sequences behind animated markers and the
// player that picks which frame is due at a given clock time.
package anim

import (
	"fmt"
	"path"
	"strings"
)

// Layout describes how the frames of one animation cycle are named.
type Layout struct {
	Count  int    // frames per cycle
	Digits int    // zero padding of the 1-based index
	Ext    string // file extension including the dot
}

// DefaultLayout is the 86 frame, 0001.svg … 0086.svg sequence.
var DefaultLayout = Layout{Count: 86, Digits: 4, Ext: ".svg"}

// Name returns the file name of frame i (0-based).
func (l Layout) Name(i int) string {
	return fmt.Sprintf("%0*d%s", l.Digits, i+1, l.Ext)
}

func (l Layout) validate() error {
	if l.Count < 1 {
		return fmt.Errorf("frame count must be at least 1, got %d", l.Count)
	}
	if l.Digits < 1 {
		return fmt.Errorf("frame digits must be at least 1, got %d", l.Digits)
	}
	if l.Ext != "" && !strings.HasPrefix(l.Ext, ".") {
		return fmt.Errorf("frame extension %q must start with a dot", l.Ext)
	}
	return nil
}

// Frame is one loaded frame reference.
type Frame struct {
	Index int    // 0-based position in the cycle
	Name  string // file name, e.g. 0001.svg
	URL   string // public path the visual points at
	Size  int64  // bytes read during preload
}

// FrameSet is the ordered, immutable list of frames of one animation cycle.
// A set built from partially available assets is not complete and players
// bound to it never select a frame.
type FrameSet struct {
	layout Layout
	frames []Frame
}

// NewFrameSet builds a complete set from already known frames, addressing
// them as baseURL/<name>.
func NewFrameSet(baseURL string, layout Layout) (*FrameSet, error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}
	fs := &FrameSet{layout: layout, frames: make([]Frame, 0, layout.Count)}
	for i := 0; i < layout.Count; i++ {
		fs.frames = append(fs.frames, newFrame(baseURL, layout, i, 0))
	}
	return fs, nil
}

func newFrame(baseURL string, layout Layout, i int, size int64) Frame {
	name := layout.Name(i)
	return Frame{Index: i, Name: name, URL: joinURL(baseURL, name), Size: size}
}

func joinURL(base, name string) string {
	if base == "" {
		return name
	}
	if strings.Contains(base, "://") {
		return strings.TrimRight(base, "/") + "/" + name
	}
	return path.Join(base, name)
}

// Len returns the number of loaded frames.
func (s *FrameSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.frames)
}

// Count returns the number of frames a full cycle needs.
func (s *FrameSet) Count() int {
	if s == nil {
		return 0
	}
	return s.layout.Count
}

// Complete reports whether every frame of the cycle is loaded.
func (s *FrameSet) Complete() bool {
	return s != nil && len(s.frames) == s.layout.Count
}

// Frame returns frame i.
func (s *FrameSet) Frame(i int) (Frame, bool) {
	if s == nil || i < 0 || i >= len(s.frames) {
		return Frame{}, false
	}
	return s.frames[i], true
}

// Frames returns a copy of the loaded frames.
func (s *FrameSet) Frames() []Frame {
	if s == nil {
		return nil
	}
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Layout returns the naming scheme of the set.
func (s *FrameSet) Layout() Layout {
	return s.layout
}
