package entity

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ErrorKindNone},
		{fmt.Errorf("probe: %w", ErrMediaProbe), ErrorKindMediaProbe},
		{fmt.Errorf("ffmpeg: %w", ErrExtraction), ErrorKindExtraction},
		{fmt.Errorf("mapper: %w", ErrReconstruction), ErrorKindReconstruction},
		{ErrInvalidArgument, ErrorKindInvalidArgument},
		{ErrEmptyInput, ErrorKindEmptyInput},
		{errors.New("disk full"), ErrorKindFatal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
}

func TestFrameSet(t *testing.T) {
	fs := NewFrameSet("/ws/frames", 3)

	require.NoError(t, fs.Validate())
	assert.Equal(t, 3, fs.Len())
	assert.Equal(t, filepath.Join("/ws/frames", "frame_0002.jpg"), fs.Frames[1].Path)
	assert.True(t, fs.Contains("frame_0003.jpg"))
	assert.False(t, fs.Contains("frame_0004.jpg"))

	gap := FrameSet{Frames: []Frame{{Index: 1, Path: "frame_0001.jpg"}, {Index: 3, Path: "frame_0003.jpg"}}}
	assert.Error(t, gap.Validate())

	misnamed := FrameSet{Frames: []Frame{{Index: 1, Path: "img1.jpg"}}}
	assert.Error(t, misnamed.Validate())
}

func TestNewSessionID(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	a := NewSession("/tmp/ws", "clip.mp4", PipelineOptions{}, now)
	b := NewSession("/tmp/ws", "clip.mp4", PipelineOptions{}, now)

	assert.Regexp(t, regexp.MustCompile(`^session_20240309_140507_[0-9a-f]{8}$`), a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, filepath.Join("/tmp/ws", a.ID), a.Root)
}

func TestJobLifecycle(t *testing.T) {
	job := NewJob("user-1", "uploads/clip.mp4", 1024, 2)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.True(t, job.CanRetry())

	job.MarkProcessing()
	job.Apply(PipelineEvent{SessionID: "session_a", Stage: StageInit, Status: EventOngoing})
	job.Apply(PipelineEvent{
		SessionID: "session_a",
		Stage:     StageFailed,
		Status:    EventFailure,
		Message:   "extracting failed: no frames",
		ErrorKind: ErrorKindExtraction,
	})
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, ErrorKindExtraction, job.ErrorKind)
	assert.Equal(t, "session_a", job.SessionID)
	assert.True(t, job.CanRetry())

	job.MarkProcessing()
	assert.Equal(t, 2, job.Attempt)
	assert.Empty(t, job.ErrorMessage)
	assert.False(t, job.CanRetry())

	job.Apply(PipelineEvent{
		SessionID: "session_b",
		Stage:     StageCompleted,
		Status:    EventSuccess,
		Result:    &SessionResult{SessionID: "session_b", Workspace: "/ws/session_b", FrameCount: 20, PointCount: 2000, PoseSource: PoseSourceSynthetic},
	})
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, 20, job.FrameCount)
	assert.Equal(t, PoseSourceSynthetic, job.PoseSource)

	job.MarkCompleted("user-1/session_b.zip")
	assert.Equal(t, JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, "user-1/session_b.zip", job.ExportKey)
}

func TestJobMarkInterruptedGivesAttemptBack(t *testing.T) {
	job := NewJob("user-1", "uploads/clip.mp4", 1024, 1)
	job.MarkProcessing()
	require.False(t, job.CanRetry())

	job.MarkInterrupted("interrupted: context canceled")
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Attempt)
	assert.Equal(t, ErrorKindNone, job.ErrorKind)
	assert.True(t, job.CanRetry())
}

func TestMessageOptionsMerge(t *testing.T) {
	base := PipelineOptions{FPS: 2, MaxDimension: 1600, Reconstruct: true, PointCount: 2000}

	var none *MessageOptions
	assert.Equal(t, base, none.Merge(base))

	fps, off, points := 5.0, false, 100
	got := (&MessageOptions{FPS: &fps, Reconstruct: &off, PointCount: &points}).Merge(base)
	assert.Equal(t, PipelineOptions{FPS: 5, MaxDimension: 1600, Reconstruct: false, PointCount: 100}, got)
}

func TestEventTerminal(t *testing.T) {
	assert.False(t, PipelineEvent{Status: EventOngoing}.Terminal())
	assert.True(t, PipelineEvent{Status: EventSuccess}.Terminal())
	assert.True(t, PipelineEvent{Status: EventFailure}.Terminal())
	assert.InDelta(t, 0.4, *Progress(0.4), 1e-12)
}

func TestQuaternionNorm(t *testing.T) {
	assert.InDelta(t, 1.0, Quaternion{W: 0.5, X: 0.5, Y: 0.5, Z: 0.5}.Norm(), 1e-12)
}
