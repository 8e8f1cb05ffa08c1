package scene

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// solidFrames writes one PNG per colour so sampled colours are exact.
func solidFrames(t *testing.T, colours ...color.NRGBA) entity.FrameSet {
	t.Helper()
	dir := t.TempDir()
	fs := entity.FrameSet{Dir: dir}
	for i, c := range colours {
		img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
		for y := 0; y < 6; y++ {
			for x := 0; x < 8; x++ {
				img.SetNRGBA(x, y, c)
			}
		}
		path := filepath.Join(dir, entity.FrameName(i+1))
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
		fs.Frames = append(fs.Frames, entity.Frame{Index: i + 1, Path: path})
	}
	return fs
}

func TestInitializeCloudCountBoundsAndColours(t *testing.T) {
	red := color.NRGBA{R: 255, G: 10, B: 20, A: 255}
	blue := color.NRGBA{R: 5, G: 6, B: 250, A: 255}
	frames := solidFrames(t, red, blue)
	in := NewInitializer(zap.NewNop())

	points, err := in.InitializeCloud(context.Background(), frames, 500, 7)
	require.NoError(t, err)
	require.Len(t, points, 500)

	seen := map[[3]uint8]int{}
	for _, p := range points {
		for axis := 0; axis < 3; axis++ {
			assert.GreaterOrEqual(t, p.Position[axis], CloudMin[axis])
			assert.LessOrEqual(t, p.Position[axis], CloudMax[axis])
		}
		seen[p.Color]++
	}
	assert.Len(t, seen, 2)
	assert.Positive(t, seen[[3]uint8{255, 10, 20}])
	assert.Positive(t, seen[[3]uint8{5, 6, 250}])
}

func TestInitializeCloudSameSeedSameCount(t *testing.T) {
	frames := solidFrames(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	in := NewInitializer(zap.NewNop())

	a, err := in.InitializeCloud(context.Background(), frames, 64, 42)
	require.NoError(t, err)
	b, err := in.InitializeCloud(context.Background(), frames, 64, 42)
	require.NoError(t, err)
	assert.Equal(t, len(a), len(b))
	assert.Equal(t, a, b)

	c, err := in.InitializeCloud(context.Background(), frames, 64, 0)
	require.NoError(t, err)
	assert.Len(t, c, 64)
}

func TestInitializeCloudErrors(t *testing.T) {
	in := NewInitializer(zap.NewNop())

	_, err := in.InitializeCloud(context.Background(), entity.FrameSet{}, 10, 1)
	assert.True(t, errors.Is(err, entity.ErrEmptyInput))

	frames := solidFrames(t, color.NRGBA{A: 255})
	_, err = in.InitializeCloud(context.Background(), frames, 0, 1)
	assert.True(t, errors.Is(err, entity.ErrInvalidArgument))

	require.NoError(t, os.WriteFile(frames.Frames[0].Path, []byte("junk"), 0644))
	_, err = in.InitializeCloud(context.Background(), frames, 10, 1)
	require.Error(t, err)
	assert.Equal(t, entity.ErrorKindEmptyInput, entity.KindOf(err))
}

func TestInitializeCloudSkipsUnreadableFrames(t *testing.T) {
	green := color.NRGBA{R: 10, G: 200, B: 30, A: 255}
	frames := solidFrames(t, green, green, green, green)
	require.NoError(t, os.WriteFile(frames.Frames[1].Path, []byte("junk"), 0644))
	require.NoError(t, os.WriteFile(frames.Frames[3].Path, nil, 0644))
	in := NewInitializer(zap.NewNop())

	for seed := uint64(1); seed <= 20; seed++ {
		points, err := in.InitializeCloud(context.Background(), frames, 200, seed)
		require.NoError(t, err, "seed %d", seed)
		require.Len(t, points, 200)
		for _, p := range points {
			assert.Equal(t, [3]uint8{10, 200, 30}, p.Color)
		}
	}
}

func TestInitializeCloudHonoursCancellation(t *testing.T) {
	frames := solidFrames(t, color.NRGBA{A: 255})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewInitializer(zap.NewNop()).InitializeCloud(ctx, frames, 10, 1)
	assert.True(t, errors.Is(err, context.Canceled))
}
