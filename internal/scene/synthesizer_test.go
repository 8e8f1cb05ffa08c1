package scene

import (
	"errors"
	"math"
	"testing"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSynthesizePoseCountAndUnitQuaternions(t *testing.T) {
	s := NewSynthesizer(DefaultRadius)
	for _, n := range []int{1, 2, 3, 4, 7, 60, 250} {
		ps, err := s.Synthesize(n, 1280, 720)
		require.NoError(t, err)
		require.Len(t, ps.Poses, n)
		assert.Equal(t, entity.PoseSourceSynthetic, ps.Source)
		for i, p := range ps.Poses {
			assert.InDelta(t, 1.0, p.Rotation.Norm(), 1e-6, "pose %d", i)
			assert.Equal(t, i+1, p.FrameIndex)
			assert.Equal(t, entity.FrameName(i+1), p.Name)
			assert.Equal(t, entity.DefaultCameraID, p.CameraID)
		}
	}
}

func TestSynthesizeFirstOfFourSitsOnXAxisLookingAtOrigin(t *testing.T) {
	ps, err := NewSynthesizer(3.0).Synthesize(4, 1280, 720)
	require.NoError(t, err)

	center := CameraCenter(ps.Poses[0])
	assert.InDelta(t, 3.0, center.X, 1e-9)
	assert.InDelta(t, 0.0, center.Y, 1e-9)
	assert.InDelta(t, 0.0, center.Z, 1e-9)

	dir := ViewDirection(ps.Poses[0])
	assert.InDelta(t, -1.0, dir.X, 1e-9)
	assert.InDelta(t, 0.0, dir.Y, 1e-9)
	assert.InDelta(t, 0.0, dir.Z, 1e-9)
}

func TestSynthesizeEveryCameraLooksAtOrigin(t *testing.T) {
	ps, err := NewSynthesizer(3.0).Synthesize(12, 640, 480)
	require.NoError(t, err)
	for i, p := range ps.Poses {
		c := CameraCenter(p)
		angle := 2 * math.Pi * float64(i) / 12
		assert.InDelta(t, 3*math.Cos(angle), c.X, 1e-9)
		assert.InDelta(t, 3*math.Sin(angle), c.Z, 1e-9)
		assert.InDelta(t, 3.0, r3.Norm(c), 1e-9)

		toOrigin := r3.Unit(r3.Scale(-1, c))
		assert.InDelta(t, 1.0, r3.Dot(toOrigin, ViewDirection(p)), 1e-9)
	}
}

func TestSynthesizeIntrinsics(t *testing.T) {
	ps, err := NewSynthesizer(0).Synthesize(3, 1280, 720)
	require.NoError(t, err)
	assert.Equal(t, entity.CameraIntrinsics{
		CameraID: 1, Model: "PINHOLE", Width: 1280, Height: 720,
		FX: 1536, FY: 1536, CX: 640, CY: 360,
	}, ps.Intrinsics)
}

func TestSynthesizeRejectsZeroFrames(t *testing.T) {
	ps, err := NewSynthesizer(3).Synthesize(0, 1280, 720)
	assert.True(t, errors.Is(err, entity.ErrInvalidArgument))
	assert.Empty(t, ps.Poses)

	_, err = NewSynthesizer(3).Synthesize(3, 0, 720)
	assert.True(t, errors.Is(err, entity.ErrInvalidArgument))
}
