package anim

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// IncompleteAssetError reports frames that could not be preloaded.
type IncompleteAssetError struct {
	Dir     string
	Missing []string
	Err     error // first underlying failure
}

func (e *IncompleteAssetError) Error() string {
	return fmt.Sprintf("frame set %s incomplete: %d frame(s) missing, first %s: %v",
		e.Dir, len(e.Missing), e.Missing[0], e.Err)
}

func (e *IncompleteAssetError) Unwrap() error {
	return e.Err
}

// Load preloads every frame of layout from dir on fsys. Frames are addressed
// as baseURL/<name> once loaded.
//
// When a frame is missing or empty, the returned set holds the frames read
// before the first failure, is not complete, and the error is an
// *IncompleteAssetError. The set is still usable: players bound to it stay
// idle.
func Load(fsys afero.Fs, dir, baseURL string, layout Layout) (*FrameSet, error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}

	set := &FrameSet{layout: layout, frames: make([]Frame, 0, layout.Count)}
	var incomplete *IncompleteAssetError

	for i := 0; i < layout.Count; i++ {
		name := layout.Name(i)
		size, err := readFrame(fsys, filepath.Join(dir, name))
		if err != nil {
			if incomplete == nil {
				incomplete = &IncompleteAssetError{Dir: dir, Err: err}
			}
			incomplete.Missing = append(incomplete.Missing, name)
			continue
		}
		if incomplete == nil {
			set.frames = append(set.frames, newFrame(baseURL, layout, i, size))
		}
	}

	if incomplete != nil {
		return set, incomplete
	}
	return set, nil
}

var errEmptyFrame = errors.New("frame is empty")

func readFrame(fsys afero.Fs, name string) (int64, error) {
	data, err := afero.ReadFile(fsys, name)
	if err != nil {
		return 0, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return 0, errEmptyFrame
	}
	return int64(len(data)), nil
}
