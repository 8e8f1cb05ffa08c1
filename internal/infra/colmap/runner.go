package colmap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/fiapx/fiapx-scene-service/internal/domain/port"
	"github.com/fiapx/fiapx-scene-service/internal/workspace"
	"go.uber.org/zap"
)

type Config struct {
	Binary string
	UseGPU bool
	// Refine runs a bundle adjustment pass over the mapped model.
	Refine bool
}

// Runner drives the COLMAP command line through the sparse reconstruction
// steps and reads the resulting text model back.
type Runner struct {
	runner port.CommandRunner
	cfg    Config
	logger *zap.Logger
}

func NewRunner(runner port.CommandRunner, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Binary == "" {
		cfg.Binary = "colmap"
	}
	return &Runner{runner: runner, cfg: cfg, logger: logger}
}

type step struct {
	name string
	args []string
}

func (r *Runner) steps(ws workspace.Workspace, framesDir string) []step {
	gpu := "0"
	if r.cfg.UseGPU {
		gpu = "1"
	}
	db := ws.DatabasePath()
	model := ws.ModelDir()

	steps := []step{
		{"feature_extractor", []string{
			"--database_path", db,
			"--image_path", framesDir,
			"--ImageReader.single_camera", "1",
			"--ImageReader.camera_model", entity.CameraModelPinhole,
			"--SiftExtraction.use_gpu", gpu,
		}},
		{"exhaustive_matcher", []string{
			"--database_path", db,
			"--SiftMatching.use_gpu", gpu,
		}},
		{"mapper", []string{
			"--database_path", db,
			"--image_path", framesDir,
			"--output_path", ws.SparseDir(),
		}},
	}
	if r.cfg.Refine {
		steps = append(steps, step{"bundle_adjuster", []string{
			"--input_path", model,
			"--output_path", model,
		}})
	}
	return append(steps, step{"model_converter", []string{
		"--input_path", model,
		"--output_path", model,
		"--output_type", "TXT",
	}})
}

func (r *Runner) Reconstruct(ctx context.Context, frames entity.FrameSet, root string) (entity.PoseSet, error) {
	if frames.Len() == 0 {
		return entity.PoseSet{}, fmt.Errorf("%w: no frames", entity.ErrReconstruction)
	}
	ws := workspace.Open(root)
	if err := os.MkdirAll(ws.SparseDir(), 0755); err != nil {
		return entity.PoseSet{}, fmt.Errorf("%w: create sparse dir: %v", entity.ErrReconstruction, err)
	}

	for _, s := range r.steps(ws, frames.Dir) {
		r.logger.Info("colmap step started", zap.String("step", s.name))
		res, err := r.runner.Run(ctx, port.Command{
			Name: r.cfg.Binary,
			Args: append([]string{s.name}, s.args...),
			Dir:  root,
		})
		if err != nil {
			if ctx.Err() != nil {
				return entity.PoseSet{}, err
			}
			return entity.PoseSet{}, fmt.Errorf("%w: %s: %v, output: %s",
				entity.ErrReconstruction, s.name, err, tail(res.Stderr))
		}
		if s.name == "mapper" {
			if _, err := os.Stat(ws.ModelDir()); err != nil {
				return entity.PoseSet{}, fmt.Errorf("%w: mapper produced no model", entity.ErrReconstruction)
			}
		}
	}

	return r.readModel(ws, frames)
}

// readModel accepts the reconstruction only if it registered at least one of
// our frames.
func (r *Runner) readModel(ws workspace.Workspace, frames entity.FrameSet) (entity.PoseSet, error) {
	ps, err := ws.ReadPoseSet()
	if errors.Is(err, os.ErrNotExist) {
		return entity.PoseSet{}, fmt.Errorf("%w: text model missing: %v", entity.ErrReconstruction, err)
	}
	if err != nil {
		return entity.PoseSet{}, fmt.Errorf("%w: %v", entity.ErrReconstruction, err)
	}

	registered := ps.Poses[:0]
	for _, p := range ps.Poses {
		if frames.Contains(p.Name) {
			registered = append(registered, p)
		}
	}
	if len(registered) == 0 {
		return entity.PoseSet{}, fmt.Errorf("%w: no frames were registered", entity.ErrReconstruction)
	}
	ps.Poses = registered
	ps.Source = entity.PoseSourceReconstruction

	r.logger.Info("reconstruction finished",
		zap.Int("registered", len(registered)),
		zap.Int("frames", frames.Len()),
	)
	return ps, nil
}

func tail(b []byte) string {
	const limit = 2048
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s
}
