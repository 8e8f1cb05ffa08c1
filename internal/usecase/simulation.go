package usecase

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"go.uber.org/zap"
)

type SimulationConfig struct {
	Steps     int
	StepDelay time.Duration
}

// SimulatedPipeline plays a scripted run without touching the disk or any
// external binary. Useful for exercising consumers of the event stream.
type SimulatedPipeline struct {
	cfg    SimulationConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewSimulatedPipeline(cfg SimulationConfig, logger *zap.Logger) *SimulatedPipeline {
	if cfg.Steps <= 0 {
		cfg.Steps = 20
	}
	return &SimulatedPipeline{cfg: cfg, logger: logger, now: time.Now}
}

// simulatedStages is the order stages are announced in. Steps are spread
// evenly across them.
var simulatedStages = []entity.Stage{
	entity.StageExtracting,
	entity.StageReconstructing,
	entity.StageInitializing,
}

func (p *SimulatedPipeline) Run(ctx context.Context, req entity.PipelineRequest) iter.Seq[entity.PipelineEvent] {
	var started atomic.Bool
	return func(yield func(entity.PipelineEvent) bool) {
		if !started.CompareAndSwap(false, true) {
			return
		}
		sess := entity.NewSession(req.WorkspaceDir, req.VideoPath, req.Options, p.now())
		log := p.logger.With(zap.String("session_id", sess.ID))

		emit := func(ev entity.PipelineEvent) bool {
			ev.SessionID = sess.ID
			ev.Time = p.now().UTC()
			if ev.Status == "" {
				ev.Status = entity.EventOngoing
			}
			return yield(ev)
		}

		if !emit(entity.PipelineEvent{
			Stage:    entity.StageInit,
			Message:  "simulation mode: no frames, poses or point cloud will be produced",
			Progress: entity.Progress(0),
		}) {
			return
		}

		timer := time.NewTimer(p.cfg.StepDelay)
		defer timer.Stop()
		for i := 0; i < p.cfg.Steps; i++ {
			timer.Reset(p.cfg.StepDelay)
			select {
			case <-ctx.Done():
				log.Info("simulation cancelled", zap.Error(ctx.Err()))
				emit(entity.PipelineEvent{
					Stage:     entity.StageFailed,
					Status:    entity.EventFailure,
					Message:   fmt.Sprintf("simulation cancelled: %v", ctx.Err()),
					ErrorKind: entity.ErrorKindFatal,
				})
				return
			case <-timer.C:
			}

			stage := simulatedStages[i*len(simulatedStages)/p.cfg.Steps]
			progress := float64(i+1) / float64(p.cfg.Steps+1)
			if !emit(entity.PipelineEvent{
				Stage:    stage,
				Message:  fmt.Sprintf("simulated step %d/%d", i+1, p.cfg.Steps),
				Progress: entity.Progress(progress),
			}) {
				return
			}
		}

		log.Info("simulation completed", zap.Int("steps", p.cfg.Steps))
		emit(entity.PipelineEvent{
			Stage:    entity.StageCompleted,
			Status:   entity.EventSuccess,
			Message:  "simulation complete",
			Progress: entity.Progress(1),
			Result: &entity.SessionResult{
				SessionID:  sess.ID,
				PoseSource: entity.PoseSourceSimulated,
				Simulated:  true,
			},
		})
	}
}
