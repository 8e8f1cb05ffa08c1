package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/fiapx/fiapx-scene-service/internal/domain/port"
	"github.com/fiapx/fiapx-scene-service/internal/infra/metrics"
	"github.com/fiapx/fiapx-scene-service/internal/workspace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Progress reported when each stage starts.
const (
	progressInit           = 0.0
	progressExtracting     = 0.1
	progressReconstructing = 0.4
	progressInitializing   = 0.8
	progressDone           = 1.0
)

type OrchestratorConfig struct {
	// Resolution handed to the pose synthesizer. Extracted frames may have
	// been downscaled to anything, so a fixed size is used.
	SyntheticWidth  int
	SyntheticHeight int
}

// Orchestrator runs the real pipeline: extraction, reconstruction with
// synthetic fallback, then point cloud seeding.
type Orchestrator struct {
	extractor     port.FrameExtractor
	reconstructor port.Reconstructor
	synthesizer   port.PoseSynthesizer
	initializer   port.SceneInitializer
	logger        *zap.Logger
	cfg           OrchestratorConfig
	now           func() time.Time
}

func NewOrchestrator(
	extractor port.FrameExtractor,
	reconstructor port.Reconstructor,
	synthesizer port.PoseSynthesizer,
	initializer port.SceneInitializer,
	logger *zap.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.SyntheticWidth <= 0 || cfg.SyntheticHeight <= 0 {
		cfg.SyntheticWidth, cfg.SyntheticHeight = 1280, 720
	}
	return &Orchestrator{
		extractor:     extractor,
		reconstructor: reconstructor,
		synthesizer:   synthesizer,
		initializer:   initializer,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Run returns the event sequence of one session. Nothing happens until the
// sequence is ranged over, and it can be ranged over only once. Breaking out
// of the loop cancels the context every stage runs under.
func (o *Orchestrator) Run(ctx context.Context, req entity.PipelineRequest) iter.Seq[entity.PipelineEvent] {
	var started atomic.Bool
	return func(yield func(entity.PipelineEvent) bool) {
		if !started.CompareAndSwap(false, true) {
			return
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		metrics.ActiveSessions.Inc()
		defer metrics.ActiveSessions.Dec()

		s := &session{o: o, yield: yield, log: o.logger}
		status := "failed"
		if s.run(ctx, req) {
			status = "completed"
		}
		metrics.SessionsTotal.WithLabelValues(status).Inc()
	}
}

// session carries the state of one run through its stages.
type session struct {
	o       *Orchestrator
	yield   func(entity.PipelineEvent) bool
	log     *zap.Logger
	id      string
	stopped bool
}

func (s *session) emit(ev entity.PipelineEvent) bool {
	if s.stopped {
		return false
	}
	ev.SessionID = s.id
	ev.Time = s.o.now().UTC()
	if ev.Status == "" {
		ev.Status = entity.EventOngoing
	}
	if !s.yield(ev) {
		s.stopped = true
		s.log.Info("event consumer stopped, abandoning session", zap.String("stage", string(ev.Stage)))
		return false
	}
	return true
}

// fail emits the terminal failure event. Errors without a kind of their own
// are reported as fallbackKind, unless the run was cancelled.
func (s *session) fail(ctx context.Context, stage entity.Stage, err error, fallbackKind entity.ErrorKind) bool {
	kind := entity.KindOf(err)
	if kind == entity.ErrorKindFatal && ctx.Err() == nil && fallbackKind != "" {
		kind = fallbackKind
	}
	s.log.Error("session failed", zap.String("stage", string(stage)), zap.String("kind", string(kind)), zap.Error(err))
	s.emit(entity.PipelineEvent{
		Stage:     entity.StageFailed,
		Status:    entity.EventFailure,
		Message:   fmt.Sprintf("%s failed: %v", stage, err),
		ErrorKind: kind,
	})
	return false
}

func trackStage(ctx context.Context, stage entity.Stage) (context.Context, func(error)) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "pipeline."+string(stage),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("pipeline.stage", string(stage))),
	)
	start := time.Now()
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
}

// run drives the state machine and reports whether the session completed.
func (s *session) run(ctx context.Context, req entity.PipelineRequest) bool {
	ctx, span := otel.Tracer("usecase").Start(ctx, "Orchestrator.Run")
	defer span.End()

	opts := req.Options
	if req.VideoPath == "" {
		return s.fail(ctx, entity.StageInit, fmt.Errorf("%w: no video given", entity.ErrInvalidArgument), "")
	}

	sess := entity.NewSession(req.WorkspaceDir, req.VideoPath, opts, s.o.now())
	s.id = sess.ID
	s.log = s.o.logger.With(zap.String("session_id", sess.ID))
	span.SetAttributes(attribute.String("session.id", sess.ID), attribute.String("session.video", req.VideoPath))

	ws, err := workspace.Create(sess)
	if err != nil {
		return s.fail(ctx, entity.StageInit, err, "")
	}
	if !s.emit(entity.PipelineEvent{
		Stage:    entity.StageInit,
		Message:  "session initialized at " + ws.Root,
		Progress: entity.Progress(progressInit),
	}) {
		return false
	}

	// Extracting
	if !s.emit(entity.PipelineEvent{
		Stage:    entity.StageExtracting,
		Message:  fmt.Sprintf("extracting frames at %v fps", opts.FPS),
		Progress: entity.Progress(progressExtracting),
	}) {
		return false
	}
	stageCtx, done := trackStage(ctx, entity.StageExtracting)
	frames, err := s.o.extractor.Extract(stageCtx, req.VideoPath, ws.FramesDir(), opts.FPS, opts.MaxDimension)
	done(err)
	if err != nil {
		return s.fail(ctx, entity.StageExtracting, err, entity.ErrorKindExtraction)
	}
	metrics.FramesExtractedTotal.Add(float64(frames.Len()))
	if !s.emit(entity.PipelineEvent{
		Stage:   entity.StageExtracting,
		Message: fmt.Sprintf("extracted %d frames", frames.Len()),
	}) {
		return false
	}

	// Reconstructing
	poses, ok := s.poses(ctx, opts, frames, ws)
	if !ok {
		return false
	}

	// Initializing
	if !s.emit(entity.PipelineEvent{
		Stage:    entity.StageInitializing,
		Message:  fmt.Sprintf("seeding %d points from %d frames", opts.PointCount, frames.Len()),
		Progress: entity.Progress(progressInitializing),
	}) {
		return false
	}
	stageCtx, done = trackStage(ctx, entity.StageInitializing)
	points, err := s.o.initializer.InitializeCloud(stageCtx, frames, opts.PointCount, opts.Seed)
	if err == nil {
		err = ws.WritePointCloud(points)
	}
	done(err)
	if err != nil {
		return s.fail(ctx, entity.StageInitializing, err, "")
	}
	metrics.PointsSeededTotal.Add(float64(len(points)))

	result := &entity.SessionResult{
		SessionID:  sess.ID,
		Workspace:  ws.Root,
		FrameCount: frames.Len(),
		PoseSource: poses.Source,
		PointCount: len(points),
	}
	s.log.Info("session completed",
		zap.Int("frames", result.FrameCount),
		zap.String("pose_source", string(result.PoseSource)),
		zap.Int("points", result.PointCount),
	)
	s.emit(entity.PipelineEvent{
		Stage:    entity.StageCompleted,
		Status:   entity.EventSuccess,
		Message:  fmt.Sprintf("workspace ready at %s (%s poses)", ws.Root, poses.Source),
		Progress: entity.Progress(progressDone),
		Result:   result,
	})
	return true
}

// poses runs the reconstructing stage: real reconstruction when enabled,
// synthetic poses otherwise or when reconstruction fails.
func (s *session) poses(ctx context.Context, opts entity.PipelineOptions, frames entity.FrameSet, ws workspace.Workspace) (entity.PoseSet, bool) {
	msg := fmt.Sprintf("reconstruction disabled, synthesizing poses for %d frames", frames.Len())
	if opts.Reconstruct {
		msg = fmt.Sprintf("reconstructing camera poses from %d frames", frames.Len())
	}
	if !s.emit(entity.PipelineEvent{
		Stage:    entity.StageReconstructing,
		Message:  msg,
		Progress: entity.Progress(progressReconstructing),
	}) {
		return entity.PoseSet{}, false
	}

	stageCtx, done := trackStage(ctx, entity.StageReconstructing)
	if opts.Reconstruct {
		ps, err := s.o.reconstructor.Reconstruct(stageCtx, frames, ws.Root)
		if err == nil {
			done(nil)
			return ps, s.emit(entity.PipelineEvent{
				Stage:   entity.StageReconstructing,
				Message: fmt.Sprintf("reconstruction registered %d of %d frames", len(ps.Poses), frames.Len()),
			})
		}
		if ctx.Err() != nil || !errors.Is(err, entity.ErrReconstruction) {
			done(err)
			return entity.PoseSet{}, s.fail(ctx, entity.StageReconstructing, err, "")
		}

		metrics.ReconstructionFallbacksTotal.Inc()
		s.log.Warn("reconstruction failed, using synthetic poses", zap.Error(err))
		if !s.emit(entity.PipelineEvent{
			Stage:    entity.StageReconstructing,
			Message:  fmt.Sprintf("reconstruction failed, falling back to synthetic poses: %v", err),
			Fallback: true,
		}) {
			done(nil)
			return entity.PoseSet{}, false
		}
		if err := ws.ResetModel(); err != nil {
			done(err)
			return entity.PoseSet{}, s.fail(ctx, entity.StageReconstructing, err, "")
		}
	}

	ps, err := s.o.synthesizer.Synthesize(frames.Len(), s.o.cfg.SyntheticWidth, s.o.cfg.SyntheticHeight)
	if err == nil {
		err = ws.WritePoseSet(ps)
	}
	done(err)
	if err != nil {
		return entity.PoseSet{}, s.fail(ctx, entity.StageReconstructing, err, "")
	}
	return ps, s.emit(entity.PipelineEvent{
		Stage:   entity.StageReconstructing,
		Message: fmt.Sprintf("wrote %d synthetic poses", len(ps.Poses)),
	})
}
