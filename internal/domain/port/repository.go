package port

import (
	"context"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/google/uuid"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	Update(ctx context.Context, job *entity.Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	List(ctx context.Context, limit int) ([]*entity.Job, error)
}
