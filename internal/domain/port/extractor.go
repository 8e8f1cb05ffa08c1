package port

import (
	"context"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
)

type FrameExtractor interface {
	Extract(ctx context.Context, videoPath, outputDir string, fps float64, maxDimension int) (entity.FrameSet, error)
}
