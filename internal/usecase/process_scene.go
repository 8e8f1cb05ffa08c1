package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/fiapx/fiapx-scene-service/internal/domain/port"
	"github.com/fiapx/fiapx-scene-service/internal/infra/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ProcessSceneUseCase struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	pipeline  port.Pipeline
	zipper    port.Zipper
	publisher port.StatusPublisher
	events    port.EventPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       ProcessSceneConfig
}

type ProcessSceneConfig struct {
	WorkspaceDir string
	MaxRetries   int
	// Options are used for every job unless the message overrides them.
	Options entity.PipelineOptions
	// Cleanup removes the local workspace once its export is uploaded.
	Cleanup bool
}

func NewProcessSceneUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	pipeline port.Pipeline,
	zipper port.Zipper,
	publisher port.StatusPublisher,
	events port.EventPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ProcessSceneConfig,
) *ProcessSceneUseCase {
	return &ProcessSceneUseCase{
		repo:      repo,
		storage:   storage,
		pipeline:  pipeline,
		zipper:    zipper,
		publisher: publisher,
		events:    events,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

// Execute handles one queue message. A nil return acks the message; an error
// asks the consumer to requeue it.
func (uc *ProcessSceneUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessSceneUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.SceneProcessingMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}
	if msg.JobID == uuid.Nil || msg.VideoKey == "" {
		uc.logger.Error("message without job id or video key", zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "invalid_message: job_id and video_key are required")
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if errors.Is(err, entity.ErrJobNotFound) {
		job = entity.NewJob(msg.UserID, msg.VideoKey, msg.FileSize, uc.cfg.MaxRetries)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	} else if err != nil {
		log.Error("failed to load job record", zap.Error(err))
		return fmt.Errorf("find job: %w", err)
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, entity.ErrorKindFatal, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	if err := uc.processScene(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return nil
}

func (uc *ProcessSceneUseCase) processScene(
	ctx context.Context,
	job *entity.Job,
	msg entity.SceneProcessingMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	jobDir := filepath.Join(uc.cfg.WorkspaceDir, job.ID.String())
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}

	// Download video from MinIO
	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(jobDir, "input"+videoExt(msg.VideoKey))
	defer os.Remove(videoPath)
	if err := uc.storage.DownloadVideo(ctx2, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		if ctx.Err() != nil {
			return uc.handleInterrupted(ctx, job, log)
		}
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Run the scene pipeline
	req := entity.PipelineRequest{
		VideoPath:    videoPath,
		WorkspaceDir: jobDir,
		Options:      msg.Options.Merge(uc.cfg.Options),
	}
	var terminal *entity.PipelineEvent
	for ev := range uc.pipeline.Run(ctx, req) {
		job.Apply(ev)
		uc.publishEvent(ctx, job, ev, log)
		if ev.Terminal() {
			terminal = &ev
		}
	}
	// A run cut short by shutdown says nothing about the video; whatever
	// terminal event it produced, the job goes back to the queue.
	if ctx.Err() != nil && (terminal == nil || terminal.Status == entity.EventFailure) {
		return uc.handleInterrupted(ctx, job, log)
	}
	if terminal == nil {
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "pipeline ended without a terminal event", log)
	}
	if terminal.Status == entity.EventFailure {
		log.Error("scene pipeline failed",
			zap.String("error_kind", string(terminal.ErrorKind)),
			zap.String("error", terminal.Message),
		)
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, terminal.ErrorKind, terminal.Message)
	}

	exportKey := ""
	if res := terminal.Result; res != nil && res.Workspace != "" {
		key, err := uc.export(ctx, job, res, log)
		if err != nil {
			if ctx.Err() != nil {
				return uc.handleInterrupted(ctx, job, log)
			}
			log.Error("workspace export failed", zap.Error(err))
			return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "export_workspace: "+err.Error(), log)
		}
		exportKey = key
	}

	// Mark completed
	job.MarkCompleted(exportKey)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.String("session_id", job.SessionID),
		zap.Int("frame_count", job.FrameCount),
		zap.Int("point_count", job.PointCount),
		zap.String("pose_source", string(job.PoseSource)),
		zap.String("export_key", exportKey),
	)
	return nil
}

// export zips the session workspace and uploads it. The archive is written
// next to the workspace, never inside it.
func (uc *ProcessSceneUseCase) export(ctx context.Context, job *entity.Job, res *entity.SessionResult, log *zap.Logger) (string, error) {
	tracer := otel.Tracer("usecase")

	zipStart := time.Now()
	ctx2, spanZip := tracer.Start(ctx, "create_zip")
	zipPath := res.Workspace + ".zip"
	defer os.Remove(zipPath)
	err := uc.zipper.ZipDir(ctx2, res.Workspace, zipPath)
	spanZip.End()
	if err != nil {
		return "", fmt.Errorf("create zip: %w", err)
	}
	metrics.StageDuration.WithLabelValues("zip").Observe(time.Since(zipStart).Seconds())

	upStart := time.Now()
	ctx3, spanUp := tracer.Start(ctx, "upload_export")
	defer spanUp.End()
	exportKey := path.Join(job.UserID, res.SessionID+".zip")
	zipFile, err := os.Open(zipPath)
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	defer zipFile.Close()
	zipStat, err := zipFile.Stat()
	if err != nil {
		return "", fmt.Errorf("stat zip: %w", err)
	}
	if err := uc.storage.UploadExport(ctx3, exportKey, zipFile, zipStat.Size()); err != nil {
		return "", err
	}
	metrics.StageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	if uc.cfg.Cleanup {
		if err := os.RemoveAll(res.Workspace); err != nil {
			log.Warn("failed to remove exported workspace", zap.String("workspace", res.Workspace), zap.Error(err))
		}
	}
	return exportKey, nil
}

// handleInterrupted records an interrupted run without using up an attempt
// and returns an error so the message is requeued. ctx is already cancelled,
// so bookkeeping runs on a detached context.
func (uc *ProcessSceneUseCase) handleInterrupted(ctx context.Context, job *entity.Job, log *zap.Logger) error {
	cause := context.Cause(ctx)
	saveCtx := context.WithoutCancel(ctx)

	job.MarkInterrupted("interrupted: " + cause.Error())
	if err := uc.repo.Update(saveCtx, job); err != nil {
		log.Error("failed to record interrupted job", zap.Error(err))
	}
	uc.publishStatus(saveCtx, job, log)

	log.Warn("scene pipeline interrupted, job will be requeued", zap.Error(cause))
	return fmt.Errorf("job %s interrupted: %w", job.ID, cause)
}

func (uc *ProcessSceneUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.SceneProcessingMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(entity.ErrorKindFatal, errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, entity.ErrorKindFatal, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ProcessSceneUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.SceneProcessingMessage,
	rawMsg []byte,
	kind entity.ErrorKind,
	errMsg string,
) error {
	job.MarkFailed(kind, errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.SessionsTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, fmt.Sprintf("%s: %s", kind, errMsg))
	}

	return nil
}

func (uc *ProcessSceneUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	statusMsg := entity.SceneStatusMessage{
		JobID:        job.ID,
		UserID:       job.UserID,
		Status:       job.Status,
		VideoKey:     job.VideoKey,
		SessionID:    job.SessionID,
		ExportKey:    job.ExportKey,
		FrameCount:   job.FrameCount,
		PointCount:   job.PointCount,
		PoseSource:   job.PoseSource,
		ErrorKind:    job.ErrorKind,
		ErrorMessage: job.ErrorMessage,
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

func (uc *ProcessSceneUseCase) publishEvent(ctx context.Context, job *entity.Job, ev entity.PipelineEvent, log *zap.Logger) {
	fields := []zap.Field{
		zap.String("session_id", ev.SessionID),
		zap.String("stage", string(ev.Stage)),
		zap.String("status", string(ev.Status)),
	}
	if ev.Fallback {
		log.Warn(ev.Message, append(fields, zap.Bool("fallback", true))...)
	} else {
		log.Info(ev.Message, fields...)
	}

	data, _ := json.Marshal(entity.SceneEventMessage{JobID: job.ID, UserID: job.UserID, PipelineEvent: ev})
	if err := uc.events.PublishEvent(ctx, data); err != nil {
		log.Error("failed to publish pipeline event", zap.Error(err))
	}
}

func videoExt(key string) string {
	if ext := path.Ext(key); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".mp4"
}
