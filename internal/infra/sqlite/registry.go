// Package sqlite is the local session registry used by scenectl. It stores
// the same job rows the worker keeps in PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Registry struct {
	db *sql.DB
}

// Open opens (creating if needed) the registry at path and migrates it.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	// One connection keeps SQLite from reporting SQLITE_BUSY to ourselves.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Registry{db: db}, nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

// Note: the migrate instance is not closed because that would close db.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

const jobColumns = `id, user_id, video_key, session_id, workspace, export_key, status,
	frame_count, point_count, pose_source, file_size, attempt, max_attempts,
	error_kind, error_message, created_at, updated_at, completed_at`

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func (r *Registry) Create(ctx context.Context, job *entity.Job) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scene_jobs (`+jobColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		job.ID.String(), job.UserID, job.VideoKey, job.SessionID, job.Workspace, job.ExportKey,
		string(job.Status), job.FrameCount, job.PointCount, string(job.PoseSource),
		job.FileSize, job.Attempt, job.MaxAttempts,
		string(job.ErrorKind), job.ErrorMessage,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt), formatTimePtr(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *Registry) Update(ctx context.Context, job *entity.Job) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scene_jobs SET
			session_id=?, workspace=?, export_key=?, status=?,
			frame_count=?, point_count=?, pose_source=?, attempt=?,
			error_kind=?, error_message=?, updated_at=?, completed_at=?
		WHERE id=?`,
		job.SessionID, job.Workspace, job.ExportKey, string(job.Status),
		job.FrameCount, job.PointCount, string(job.PoseSource), job.Attempt,
		string(job.ErrorKind), job.ErrorMessage, formatTime(job.UpdatedAt), formatTimePtr(job.CompletedAt),
		job.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update job %s: %w", job.ID, entity.ErrJobNotFound)
	}
	return nil
}

func (r *Registry) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM scene_jobs WHERE id=?`, id.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find job %s: %w", id, entity.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	return job, nil
}

// List returns the most recent jobs first.
func (r *Registry) List(ctx context.Context, limit int) ([]*entity.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM scene_jobs ORDER BY created_at DESC LIMIT ?`, limit)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*entity.Job, error) {
	job := &entity.Job{}
	var (
		id, status, poseSource, errorKind string
		createdAt, updatedAt              string
		completedAt                       sql.NullString
	)
	err := row.Scan(
		&id, &job.UserID, &job.VideoKey, &job.SessionID, &job.Workspace, &job.ExportKey,
		&status, &job.FrameCount, &job.PointCount, &poseSource,
		&job.FileSize, &job.Attempt, &job.MaxAttempts,
		&errorKind, &job.ErrorMessage,
		&createdAt, &updatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("job id %q: %w", id, err)
	}
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, err
		}
		job.CompletedAt = &t
	}
	job.Status = entity.JobStatus(status)
	job.PoseSource = entity.PoseSource(poseSource)
	job.ErrorKind = entity.ErrorKind(errorKind)
	return job, nil
}
