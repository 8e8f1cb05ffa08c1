package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fiapx/fiapx-scene-service/internal/bootstrap"
	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/fiapx/fiapx-scene-service/internal/domain/port"
	"github.com/fiapx/fiapx-scene-service/internal/infra/archive"
	"github.com/fiapx/fiapx-scene-service/internal/infra/config"
	"github.com/fiapx/fiapx-scene-service/internal/infra/sqlite"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		fps           float64
		maxDimension  int
		noReconstruct bool
		points        int
		seed          uint64
		workspaceDir  string
		export        bool
	)

	cmd := &cobra.Command{
		Use:   "run <video>",
		Short: "Run the pipeline on a local video",
		Long: `Extract frames from the video, recover camera poses with COLMAP (or fall back
to a synthetic orbit) and seed a point cloud from frame colours.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("fps") {
				cfg.FPS = fps
			}
			if flags.Changed("max-dimension") {
				cfg.MaxDimension = maxDimension
			}
			if noReconstruct {
				cfg.Reconstruct = false
			}
			if flags.Changed("points") {
				cfg.PointCount = points
			}
			if flags.Changed("seed") {
				cfg.Seed = seed
			}
			if workspaceDir != "" {
				cfg.WorkspaceDir = workspaceDir
			}
			cfg.Simulation = false

			video, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			var zipper port.Zipper
			if export {
				zipper = archive.NewZipCreator()
			}
			return runSession(cmd, cfg, video, zipper)
		},
	}

	cmd.Flags().Float64Var(&fps, "fps", 2, "frames sampled per second of video")
	cmd.Flags().IntVar(&maxDimension, "max-dimension", 1280, "longest side of extracted frames in pixels")
	cmd.Flags().BoolVar(&noReconstruct, "no-reconstruct", false, "skip COLMAP and use synthetic orbit poses")
	cmd.Flags().IntVar(&points, "points", 2000, "number of seed points")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for point sampling (0 picks one)")
	cmd.Flags().StringVarP(&workspaceDir, "workspace", "w", "", "directory sessions are created in (default $WORKSPACE_DIR)")
	cmd.Flags().BoolVar(&export, "export", false, "zip the session workspace when done")

	return cmd
}

func newSimulateCmd() *cobra.Command {
	var (
		steps int
		delay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate [video]",
		Short: "Play a scripted run without external tools or output files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("steps") {
				cfg.SimulationSteps = steps
			}
			if cmd.Flags().Changed("delay") {
				cfg.SimulationDelay = delay
			}
			cfg.Simulation = true

			video := "simulation"
			if len(args) == 1 {
				video = args[0]
			}
			return runSession(cmd, cfg, video, nil)
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 20, "number of simulated steps")
	cmd.Flags().DurationVar(&delay, "delay", 100*time.Millisecond, "pause between steps")

	return cmd
}

func runSession(cmd *cobra.Command, cfg *config.PipelineConfig, video string, zipper port.Zipper) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	reg, err := sqlite.Open(cfg.RegistryPath)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer reg.Close()

	r := &sessionRunner{
		out:      cmd.OutOrStdout(),
		pipeline: bootstrap.NewPipeline(*cfg, log),
		repo:     reg,
		zipper:   zipper,
	}
	job, err := r.run(cmd.Context(), entity.PipelineRequest{
		VideoPath:    video,
		WorkspaceDir: cfg.WorkspaceDir,
		Options:      cfg.Options(),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session %s: %d frames, %s poses, %d points\n",
		job.SessionID, job.FrameCount, job.PoseSource, job.PointCount)
	if job.Workspace != "" {
		fmt.Fprintf(out, "workspace %s\n", job.Workspace)
	}
	return nil
}
