package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `id, user_id, video_key, session_id, workspace, export_key, status,
	frame_count, point_count, pose_source, file_size, attempt, max_attempts,
	error_kind, error_message, created_at, updated_at, completed_at`

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	query := `INSERT INTO scene_jobs (` + jobColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoKey, job.SessionID, job.Workspace, job.ExportKey,
		string(job.Status), job.FrameCount, job.PointCount, string(job.PoseSource),
		job.FileSize, job.Attempt, job.MaxAttempts,
		string(job.ErrorKind), job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.Job) error {
	query := `
		UPDATE scene_jobs SET
			session_id=$2, workspace=$3, export_key=$4, status=$5,
			frame_count=$6, point_count=$7, pose_source=$8, attempt=$9,
			error_kind=$10, error_message=$11, updated_at=$12, completed_at=$13
		WHERE id=$1`

	tag, err := r.pool.Exec(ctx, query,
		job.ID, job.SessionID, job.Workspace, job.ExportKey, string(job.Status),
		job.FrameCount, job.PointCount, string(job.PoseSource), job.Attempt,
		string(job.ErrorKind), job.ErrorMessage, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %s: %w", job.ID, entity.ErrJobNotFound)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scene_jobs WHERE id=$1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find job %s: %w", id, entity.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	return job, nil
}

// List returns the most recent jobs first.
func (r *JobRepository) List(ctx context.Context, limit int) ([]*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scene_jobs ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	job := &entity.Job{}
	var status, poseSource, errorKind string
	err := row.Scan(
		&job.ID, &job.UserID, &job.VideoKey, &job.SessionID, &job.Workspace, &job.ExportKey,
		&status, &job.FrameCount, &job.PointCount, &poseSource,
		&job.FileSize, &job.Attempt, &job.MaxAttempts,
		&errorKind, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = entity.JobStatus(status)
	job.PoseSource = entity.PoseSource(poseSource)
	job.ErrorKind = entity.ErrorKind(errorKind)
	return job, nil
}
