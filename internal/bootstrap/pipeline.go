// Package bootstrap assembles the scene pipeline from configuration. Both the
// worker and the CLI build their pipeline here.
package bootstrap

import (
	"github.com/fiapx/fiapx-scene-service/internal/domain/port"
	"github.com/fiapx/fiapx-scene-service/internal/infra/colmap"
	"github.com/fiapx/fiapx-scene-service/internal/infra/config"
	"github.com/fiapx/fiapx-scene-service/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-scene-service/internal/infra/health"
	"github.com/fiapx/fiapx-scene-service/internal/infra/process"
	"github.com/fiapx/fiapx-scene-service/internal/scene"
	"github.com/fiapx/fiapx-scene-service/internal/usecase"
	"go.uber.org/zap"
)

// NewPipeline returns the simulated pipeline when simulation is enabled and
// the real one otherwise.
func NewPipeline(cfg config.PipelineConfig, logger *zap.Logger) port.Pipeline {
	if cfg.Simulation {
		logger.Info("pipeline running in simulation mode")
		return usecase.NewSimulatedPipeline(usecase.SimulationConfig{
			Steps:     cfg.SimulationSteps,
			StepDelay: cfg.SimulationDelay,
		}, logger.Named("simulation"))
	}

	runner := process.NewRunner(logger.Named("process"))
	return usecase.NewOrchestrator(
		ffmpeg.NewExtractor(runner, cfg.FFmpegBin, cfg.FFprobeBin, logger.Named("ffmpeg")),
		colmap.NewRunner(runner, colmap.Config{
			Binary: cfg.ColmapBin,
			UseGPU: cfg.ColmapGPU,
			Refine: cfg.ColmapRefine,
		}, logger.Named("colmap")),
		scene.NewSynthesizer(cfg.OrbitRadius),
		scene.NewInitializer(logger.Named("scene")),
		logger.Named("pipeline"),
		usecase.OrchestratorConfig{
			SyntheticWidth:  cfg.SyntheticWidth,
			SyntheticHeight: cfg.SyntheticHeight,
		},
	)
}

// NewHealthChecker checks the binaries cfg points at. COLMAP is optional:
// without it every session falls back to synthetic poses.
func NewHealthChecker(cfg config.PipelineConfig) *health.Checker {
	return health.NewChecker(map[string]string{
		"ffmpeg":  cfg.FFmpegBin,
		"ffprobe": cfg.FFprobeBin,
		"colmap":  cfg.ColmapBin,
	}, "colmap")
}
