package entity

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Session is one pipeline run and its isolated workspace. It is never mutated
// after NewSession returns.
type Session struct {
	ID          string          `yaml:"id" json:"id"`
	Root        string          `yaml:"root" json:"root"`
	VideoSource string          `yaml:"video_source" json:"video_source"`
	CreatedAt   time.Time       `yaml:"created_at" json:"created_at"`
	Options     PipelineOptions `yaml:"options" json:"options"`
}

func NewSession(workspaceDir, videoSource string, opts PipelineOptions, now time.Time) Session {
	id := fmt.Sprintf("session_%s_%s", now.UTC().Format("20060102_150405"), uuid.NewString()[:8])
	return Session{
		ID:          id,
		Root:        filepath.Join(workspaceDir, id),
		VideoSource: videoSource,
		CreatedAt:   now.UTC(),
		Options:     opts,
	}
}

// PipelineOptions are the per-session knobs chosen by the caller.
type PipelineOptions struct {
	FPS          float64 `yaml:"fps" json:"fps"`
	MaxDimension int     `yaml:"max_dimension" json:"max_dimension"`
	Reconstruct  bool    `yaml:"reconstruct" json:"reconstruct"`
	PointCount   int     `yaml:"point_count" json:"point_count"`
	Seed         uint64  `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// PipelineRequest asks a pipeline to process one video into a fresh session
// rooted under WorkspaceDir.
type PipelineRequest struct {
	VideoPath    string
	WorkspaceDir string
	Options      PipelineOptions
}
