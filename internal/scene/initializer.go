package scene

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math/rand/v2"
	"os"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"go.uber.org/zap"
)

// Bounds of the uniform prior the seed cloud is drawn from.
var (
	CloudMin = [3]float64{-2, -1, 1}
	CloudMax = [3]float64{2, 1, 4}
)

// Initializer seeds the volumetric model with a coarse coloured point cloud.
// Positions are an unconditioned prior; only colours come from the frames.
type Initializer struct {
	logger *zap.Logger
}

func NewInitializer(logger *zap.Logger) *Initializer {
	return &Initializer{logger: logger}
}

// InitializeCloud draws pointCount points. A zero seed draws from a random seed.
func (in *Initializer) InitializeCloud(ctx context.Context, frames entity.FrameSet, pointCount int, seed uint64) ([]entity.PointCloudPoint, error) {
	if frames.Len() == 0 {
		return nil, fmt.Errorf("%w: no frames to sample colours from", entity.ErrEmptyInput)
	}
	if pointCount < 1 {
		return nil, fmt.Errorf("%w: point count must be at least 1, got %d", entity.ErrInvalidArgument, pointCount)
	}

	rng := newRand(seed)
	points := make([]entity.PointCloudPoint, pointCount)
	pending := make([]int, pointCount)
	for k := range points {
		for axis := 0; axis < 3; axis++ {
			points[k].Position[axis] = CloudMin[axis] + rng.Float64()*(CloudMax[axis]-CloudMin[axis])
		}
		pending[k] = k
	}

	// Frames that fail to decode are dropped and their points drawn again
	// from the rest. Every round either colours all pending points or rules
	// out at least one frame.
	candidates := make([]int, frames.Len())
	for i := range candidates {
		candidates[i] = i
	}
	sampled := 0
	for len(pending) > 0 {
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: none of the %d frames could be decoded", entity.ErrEmptyInput, frames.Len())
		}
		byFrame := make(map[int][]int)
		for _, k := range pending {
			fi := candidates[rng.IntN(len(candidates))]
			byFrame[fi] = append(byFrame[fi], k)
		}

		var redraw []int
		bad := make(map[int]bool)
		// Decode each chosen frame once and colour all of its points from it.
		for _, fi := range candidates {
			idx, ok := byFrame[fi]
			if !ok {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			img, err := decodeImage(frames.Frames[fi].Path)
			if err != nil {
				in.logger.Warn("skipping unreadable frame", zap.String("frame", frames.Frames[fi].Path), zap.Error(err))
				bad[fi] = true
				redraw = append(redraw, idx...)
				continue
			}
			sampled++
			b := img.Bounds()
			for _, k := range idx {
				px := b.Min.X + rng.IntN(b.Dx())
				py := b.Min.Y + rng.IntN(b.Dy())
				c := color.NRGBAModel.Convert(img.At(px, py)).(color.NRGBA)
				points[k].Color = [3]uint8{c.R, c.G, c.B}
			}
		}

		if len(bad) > 0 {
			kept := candidates[:0]
			for _, fi := range candidates {
				if !bad[fi] {
					kept = append(kept, fi)
				}
			}
			candidates = kept
		}
		pending = redraw
	}

	in.logger.Debug("point cloud initialised",
		zap.Int("points", pointCount),
		zap.Int("frames_sampled", sampled),
	)
	return points, nil
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decode %s: empty image", path)
	}
	return img, nil
}
