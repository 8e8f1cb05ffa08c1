package port

import (
	"context"
	"iter"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
)

// Pipeline turns one video into one session. The returned sequence is lazy,
// finite and may be ranged over once; stopping early cancels the run.
type Pipeline interface {
	Run(ctx context.Context, req entity.PipelineRequest) iter.Seq[entity.PipelineEvent]
}
