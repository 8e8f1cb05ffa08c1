package port

import (
	"context"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
)

// Reconstructor recovers real camera poses for a frame set. Any failure is
// reported as entity.ErrReconstruction with no partial pose set.
type Reconstructor interface {
	Reconstruct(ctx context.Context, frames entity.FrameSet, workspace string) (entity.PoseSet, error)
}

type PoseSynthesizer interface {
	Synthesize(frameCount, width, height int) (entity.PoseSet, error)
}

type SceneInitializer interface {
	InitializeCloud(ctx context.Context, frames entity.FrameSet, pointCount int, seed uint64) ([]entity.PointCloudPoint, error)
}
