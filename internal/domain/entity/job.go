package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Job is the bookkeeping row for one requested pipeline run, whether it came
// from the queue or from the CLI.
type Job struct {
	ID           uuid.UUID
	UserID       string
	VideoKey     string
	SessionID    string
	Workspace    string
	ExportKey    string
	Status       JobStatus
	FrameCount   int
	PointCount   int
	PoseSource   PoseSource
	FileSize     int64
	Attempt      int
	MaxAttempts  int
	ErrorKind    ErrorKind
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

func NewJob(userID, videoKey string, fileSize int64, maxAttempts int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.ErrorKind = ErrorKindNone
	j.ErrorMessage = ""
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) MarkCompleted(exportKey string) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.ExportKey = exportKey
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(kind ErrorKind, errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorKind = kind
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

// MarkInterrupted puts the job back to PENDING after a run was cut short by
// shutdown. The attempt is given back so it does not count against MaxAttempts.
func (j *Job) MarkInterrupted(reason string) {
	j.Status = JobStatusPending
	if j.Attempt > 0 {
		j.Attempt--
	}
	j.ErrorKind = ErrorKindNone
	j.ErrorMessage = reason
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}

// Apply records what a pipeline event says about the run. Only the session id
// and terminal events change the row; completion is left to MarkCompleted so
// the caller can finish exporting first.
func (j *Job) Apply(ev PipelineEvent) {
	if ev.SessionID != "" {
		j.SessionID = ev.SessionID
	}
	switch ev.Status {
	case EventSuccess:
		if r := ev.Result; r != nil {
			j.Workspace = r.Workspace
			j.FrameCount = r.FrameCount
			j.PointCount = r.PointCount
			j.PoseSource = r.PoseSource
		}
		j.UpdatedAt = time.Now().UTC()
	case EventFailure:
		j.MarkFailed(ev.ErrorKind, ev.Message)
	}
}
