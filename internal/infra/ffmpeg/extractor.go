package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/fiapx/fiapx-scene-service/internal/domain/port"
	"go.uber.org/zap"
)

type Extractor struct {
	runner  port.CommandRunner
	ffmpeg  string
	ffprobe string
	logger  *zap.Logger
}

func NewExtractor(runner port.CommandRunner, ffmpegBin, ffprobeBin string, logger *zap.Logger) *Extractor {
	return &Extractor{runner: runner, ffmpeg: ffmpegBin, ffprobe: ffprobeBin, logger: logger}
}

// FramesToExtract is the number of frames sampled at fps, capped by what the
// video physically contains.
func FramesToExtract(info VideoInfo, fps float64) int {
	n := int(math.Floor(info.Duration * fps))
	return min(n, info.TotalFrames)
}

func (e *Extractor) Extract(ctx context.Context, videoPath, outputDir string, fps float64, maxDimension int) (entity.FrameSet, error) {
	if fps <= 0 {
		return entity.FrameSet{}, fmt.Errorf("%w: fps must be positive, got %v", entity.ErrInvalidArgument, fps)
	}

	info, err := e.probe(ctx, videoPath)
	if err != nil {
		return entity.FrameSet{}, err
	}

	want := FramesToExtract(info, fps)
	e.logger.Info("video probed",
		zap.Float64("duration", info.Duration),
		zap.Int("total_frames", info.TotalFrames),
		zap.Int("frames_to_extract", want),
	)
	if want < 1 {
		return entity.FrameSet{}, fmt.Errorf("%w: video too short for %v fps", entity.ErrExtraction, fps)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return entity.FrameSet{}, fmt.Errorf("%w: create frames dir: %v", entity.ErrExtraction, err)
	}

	framePattern := filepath.Join(outputDir, entity.FramePattern)
	res, err := e.runner.Run(ctx, port.Command{
		Name: e.ffmpeg,
		Args: []string{
			"-v", "error",
			"-i", videoPath,
			"-vf", "fps=" + strconv.FormatFloat(fps, 'f', -1, 64),
			"-frames:v", strconv.Itoa(want),
			"-q:v", "2",
			"-y",
			framePattern,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return entity.FrameSet{}, err
		}
		return entity.FrameSet{}, fmt.Errorf("%w: ffmpeg: %v, output: %s", entity.ErrExtraction, err, strings.TrimSpace(string(res.Stderr)))
	}

	frames, err := collectFrames(outputDir, want)
	if err != nil {
		return entity.FrameSet{}, err
	}

	resized := 0
	for _, f := range frames.Frames {
		changed, err := downscale(f.Path, maxDimension)
		if err != nil {
			e.logger.Warn("skipping frame resize", zap.String("frame", f.Path), zap.Error(err))
			continue
		}
		if changed {
			resized++
		}
	}

	e.logger.Info("frames extracted",
		zap.Int("count", frames.Len()),
		zap.Int("resized", resized),
	)
	return frames, nil
}

// collectFrames globs the numbered frames ffmpeg wrote and checks they form
// a contiguous run of at most limit frames.
func collectFrames(dir string, limit int) (entity.FrameSet, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return entity.FrameSet{}, fmt.Errorf("%w: glob frames: %v", entity.ErrExtraction, err)
	}
	if len(paths) == 0 {
		return entity.FrameSet{}, fmt.Errorf("%w: no frames extracted from video", entity.ErrExtraction)
	}
	if len(paths) > limit {
		return entity.FrameSet{}, fmt.Errorf("%w: found %d frames, expected at most %d", entity.ErrExtraction, len(paths), limit)
	}
	sort.Strings(paths)

	fs := entity.FrameSet{Dir: dir, Frames: make([]entity.Frame, 0, len(paths))}
	for i, p := range paths {
		fs.Frames = append(fs.Frames, entity.Frame{Index: i + 1, Path: p})
	}
	if err := fs.Validate(); err != nil {
		return entity.FrameSet{}, fmt.Errorf("%w: %v", entity.ErrExtraction, err)
	}
	return fs, nil
}
