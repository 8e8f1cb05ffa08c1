package entity

import "time"

// Stage names the orchestrator state an event was emitted from.
type Stage string

const (
	StageInit           Stage = "init"
	StageExtracting     Stage = "extracting"
	StageReconstructing Stage = "reconstructing"
	StageInitializing   Stage = "initializing"
	StageCompleted      Stage = "completed"
	StageFailed         Stage = "failed"
)

type EventStatus string

const (
	EventOngoing EventStatus = "ongoing"
	EventSuccess EventStatus = "success"
	EventFailure EventStatus = "failure"
)

// PipelineEvent is a progress notification. Events are only ever delivered to
// the caller of a pipeline run and are never read back as pipeline state.
type PipelineEvent struct {
	SessionID string         `json:"session_id"`
	Stage     Stage          `json:"stage"`
	Status    EventStatus    `json:"status"`
	Message   string         `json:"message"`
	Progress  *float64       `json:"progress,omitempty"`
	Fallback  bool           `json:"fallback,omitempty"`
	ErrorKind ErrorKind      `json:"error_kind,omitempty"`
	Result    *SessionResult `json:"result,omitempty"`
	Time      time.Time      `json:"time"`
}

func (e PipelineEvent) Terminal() bool {
	return e.Status == EventSuccess || e.Status == EventFailure
}

// SessionResult is attached to the successful terminal event.
type SessionResult struct {
	SessionID  string     `json:"session_id"`
	Workspace  string     `json:"workspace,omitempty"`
	FrameCount int        `json:"frame_count"`
	PoseSource PoseSource `json:"pose_source"`
	PointCount int        `json:"point_count"`
	Simulated  bool       `json:"simulated,omitempty"`
}

// Progress returns a pointer suitable for PipelineEvent.Progress.
func Progress(f float64) *float64 {
	return &f
}
