package scene

import (
	"fmt"
	"math"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DefaultRadius     = 3.0
	focalLengthFactor = 1.2
)

// Synthesizer places cameras evenly on a horizontal circle around the origin,
// all looking at it. It stands in for structure-from-motion when real poses
// are unavailable; its intrinsics are a heuristic, not a calibration.
type Synthesizer struct {
	radius float64
}

func NewSynthesizer(radius float64) *Synthesizer {
	if radius <= 0 {
		radius = DefaultRadius
	}
	return &Synthesizer{radius: radius}
}

// SyntheticIntrinsics is the shared pinhole camera used for synthetic poses.
func SyntheticIntrinsics(width, height int) entity.CameraIntrinsics {
	f := float64(max(width, height)) * focalLengthFactor
	return entity.CameraIntrinsics{
		CameraID: entity.DefaultCameraID,
		Model:    entity.CameraModelPinhole,
		Width:    width,
		Height:   height,
		FX:       f,
		FY:       f,
		CX:       float64(width) / 2,
		CY:       float64(height) / 2,
	}
}

func (s *Synthesizer) Synthesize(frameCount, width, height int) (entity.PoseSet, error) {
	if frameCount < 1 {
		return entity.PoseSet{}, fmt.Errorf("%w: frame count must be at least 1, got %d", entity.ErrInvalidArgument, frameCount)
	}
	if width < 1 || height < 1 {
		return entity.PoseSet{}, fmt.Errorf("%w: image size %dx%d", entity.ErrInvalidArgument, width, height)
	}

	poses := make([]entity.CameraPose, 0, frameCount)
	for i := 0; i < frameCount; i++ {
		angle := 2 * math.Pi * float64(i) / float64(frameCount)
		eye := r3.Vec{X: s.radius * math.Cos(angle), Y: 0, Z: s.radius * math.Sin(angle)}

		rot, err := LookAt(eye, r3.Vec{}, WorldUp)
		if err != nil {
			return entity.PoseSet{}, fmt.Errorf("%w: pose %d: %v", entity.ErrFatal, i, err)
		}

		var t mat.VecDense
		t.MulVec(rot.T(), mat.NewVecDense(3, []float64{eye.X, eye.Y, eye.Z}))
		t.ScaleVec(-1, &t)

		poses = append(poses, entity.CameraPose{
			FrameIndex:  i + 1,
			Rotation:    toEntity(RotationToQuaternion(rot)),
			Translation: [3]float64{t.AtVec(0), t.AtVec(1), t.AtVec(2)},
			CameraID:    entity.DefaultCameraID,
			Name:        entity.FrameName(i + 1),
		})
	}

	return entity.PoseSet{
		Intrinsics: SyntheticIntrinsics(width, height),
		Poses:      poses,
		Source:     entity.PoseSourceSynthetic,
	}, nil
}
