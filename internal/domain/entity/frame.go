package entity

import (
	"fmt"
	"path/filepath"
)

const FramePattern = "frame_%04d.jpg"

// FrameName returns the file name of the 1-based frame index.
func FrameName(index int) string {
	return fmt.Sprintf(FramePattern, index)
}

type Frame struct {
	Index int
	Path  string
}

// FrameSet is an ordered run of extracted frames. Indices are contiguous from 1.
type FrameSet struct {
	Dir    string
	Frames []Frame
}

func NewFrameSet(dir string, count int) FrameSet {
	fs := FrameSet{Dir: dir, Frames: make([]Frame, 0, count)}
	for i := 1; i <= count; i++ {
		fs.Frames = append(fs.Frames, Frame{Index: i, Path: filepath.Join(dir, FrameName(i))})
	}
	return fs
}

func (fs FrameSet) Len() int { return len(fs.Frames) }

// Contains reports whether name is the file name of a member frame.
func (fs FrameSet) Contains(name string) bool {
	for _, f := range fs.Frames {
		if filepath.Base(f.Path) == name {
			return true
		}
	}
	return false
}

func (fs FrameSet) Validate() error {
	for i, f := range fs.Frames {
		want := i + 1
		if f.Index != want {
			return fmt.Errorf("frame %d has index %d, want %d", i, f.Index, want)
		}
		if filepath.Base(f.Path) != FrameName(want) {
			return fmt.Errorf("frame %d is named %q, want %q", want, filepath.Base(f.Path), FrameName(want))
		}
	}
	return nil
}
