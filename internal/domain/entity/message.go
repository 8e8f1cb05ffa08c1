package entity

import "github.com/google/uuid"

// SceneProcessingMessage is the inbound message from the scene processing queue.
type SceneProcessingMessage struct {
	JobID     uuid.UUID       `json:"job_id"`
	UserID    string          `json:"user_id"`
	VideoKey  string          `json:"video_key"`
	FileSize  int64           `json:"file_size"`
	UserEmail string          `json:"user_email"`
	Options   *MessageOptions `json:"options,omitempty"`
}

// MessageOptions override the worker's default pipeline options for one job.
type MessageOptions struct {
	FPS         *float64 `json:"fps,omitempty"`
	Reconstruct *bool    `json:"reconstruct,omitempty"`
	PointCount  *int     `json:"point_count,omitempty"`
}

// Merge returns base with any overrides set in o.
func (o *MessageOptions) Merge(base PipelineOptions) PipelineOptions {
	if o == nil {
		return base
	}
	if o.FPS != nil {
		base.FPS = *o.FPS
	}
	if o.Reconstruct != nil {
		base.Reconstruct = *o.Reconstruct
	}
	if o.PointCount != nil {
		base.PointCount = *o.PointCount
	}
	return base
}

// SceneStatusMessage is the outbound message published to the scene status queue.
type SceneStatusMessage struct {
	JobID        uuid.UUID  `json:"job_id"`
	UserID       string     `json:"user_id"`
	Status       JobStatus  `json:"status"`
	VideoKey     string     `json:"video_key"`
	SessionID    string     `json:"session_id,omitempty"`
	ExportKey    string     `json:"export_key,omitempty"`
	FrameCount   int        `json:"frame_count,omitempty"`
	PointCount   int        `json:"point_count,omitempty"`
	PoseSource   PoseSource `json:"pose_source,omitempty"`
	ErrorKind    ErrorKind  `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Attempt      int        `json:"attempt"`
	MaxAttempts  int        `json:"max_attempts"`
}

// SceneEventMessage carries one pipeline event of a queued job to the events queue.
type SceneEventMessage struct {
	JobID  uuid.UUID `json:"job_id"`
	UserID string    `json:"user_id"`
	PipelineEvent
}
