//go:build integration

package usecase_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fiapx/fiapx-scene-service/internal/domain/entity"
	"github.com/fiapx/fiapx-scene-service/internal/infra/archive"
	"github.com/fiapx/fiapx-scene-service/internal/infra/email"
	miniostorage "github.com/fiapx/fiapx-scene-service/internal/infra/minio"
	"github.com/fiapx/fiapx-scene-service/internal/infra/postgres"
	"github.com/fiapx/fiapx-scene-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-scene-service/internal/usecase"
	"github.com/fiapx/fiapx-scene-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

const (
	exchange        = "fiapx.scene"
	processingQueue = "video.scene"
	routingKey      = "scene.processing"
	statusQueue     = "scene.status"
	eventsQueue     = "scene.events"
	dlqQueue        = "scene.processing.dlq"
)

type stack struct {
	pool    *pgxpool.Pool
	conn    *amqp.Connection
	minio   *miniogo.Client
	storage *miniostorage.Storage
	rmqURL  string
}

func startStack(t *testing.T, ctx context.Context) *stack {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { pgContainer.Terminate(context.Background()) })

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.RunMigrations(pgConnStr))

	rmqContainer, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { rmqContainer.Terminate(context.Background()) })

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { minioContainer.Terminate(context.Background()) })

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     minioEndpoint,
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		UploadBucket: "uploads",
		ExportBucket: "exports",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	conn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &stack{pool: pool, conn: conn, minio: minioClient, storage: storage, rmqURL: rmqURL}
}

// startWorker wires a simulated pipeline behind the real queue, database and
// object store, and consumes until the test ends.
func (s *stack) startWorker(t *testing.T, ctx context.Context) {
	t.Helper()

	log, _ := logger.New("debug")
	pub, err := rabbitmq.NewPublisher(s.conn, exchange)
	require.NoError(t, err)

	uc := usecase.NewProcessSceneUseCase(
		postgres.NewJobRepository(s.pool),
		s.storage,
		usecase.NewSimulatedPipeline(usecase.SimulationConfig{Steps: 3}, log),
		archive.NewZipCreator(),
		rabbitmq.NewStatusPublisher(pub, statusQueue),
		rabbitmq.NewEventPublisher(pub, eventsQueue),
		rabbitmq.NewDLQPublisher(pub, dlqQueue),
		email.NewSMTPNotifier("localhost", 1025, "test@test.local", log),
		log,
		usecase.ProcessSceneConfig{
			WorkspaceDir: t.TempDir(),
			MaxRetries:   3,
			Options:      entity.PipelineOptions{FPS: 2, MaxDimension: 1280, PointCount: 100},
		},
	)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         s.rmqURL,
		Queue:       processingQueue,
		RoutingKey:  routingKey,
		Exchange:    exchange,
		DLQ:         dlqQueue,
		StatusQueue: statusQueue,
		EventsQueue: eventsQueue,
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, log)
	require.NoError(t, err)

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	t.Cleanup(func() {
		consumerCancel()
		consumer.Close()
	})
	go consumer.Start(consumerCtx)

	// Give consumer time to start
	time.Sleep(500 * time.Millisecond)
}

func (s *stack) publish(t *testing.T, ctx context.Context, body []byte) {
	t.Helper()
	ch, err := s.conn.Channel()
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	}))
}

func (s *stack) next(t *testing.T, queue string) amqp.Delivery {
	t.Helper()
	ch, err := s.conn.Channel()
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })

	deliveries, err := ch.Consume(queue, "", true, false, false, false, nil)
	require.NoError(t, err)
	select {
	case d := <-deliveries:
		return d
	case <-time.After(2 * time.Minute):
		t.Fatalf("timeout waiting for a message on %s", queue)
		return amqp.Delivery{}
	}
}

func TestProcessSceneSimulatedEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s := startStack(t, ctx)

	video := []byte("not decoded in simulation mode")
	videoKey := "testuser/clip.mp4"
	_, err := s.minio.PutObject(ctx, "uploads", videoKey, bytes.NewReader(video), int64(len(video)), miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	s.startWorker(t, ctx)

	jobID := uuid.New()
	body, err := json.Marshal(entity.SceneProcessingMessage{
		JobID:     jobID,
		UserID:    "testuser",
		VideoKey:  videoKey,
		FileSize:  int64(len(video)),
		UserEmail: "test@test.local",
	})
	require.NoError(t, err)
	s.publish(t, ctx, body)

	var status entity.SceneStatusMessage
	require.NoError(t, json.Unmarshal(s.next(t, statusQueue).Body, &status))
	assert.Equal(t, jobID, status.JobID)
	assert.Equal(t, entity.JobStatusCompleted, status.Status)
	assert.Equal(t, entity.PoseSourceSimulated, status.PoseSource)
	assert.Empty(t, status.ExportKey)
	assert.NotEmpty(t, status.SessionID)

	var first entity.SceneEventMessage
	require.NoError(t, json.Unmarshal(s.next(t, eventsQueue).Body, &first))
	assert.Equal(t, jobID, first.JobID)
	assert.Equal(t, entity.StageInit, first.Stage)
	assert.Equal(t, status.SessionID, first.SessionID)

	var dbStatus, dbPoseSource string
	err = s.pool.QueryRow(ctx,
		"SELECT status, pose_source FROM scene_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus, &dbPoseSource)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, "simulated", dbPoseSource)
}

func TestProcessSceneMalformedMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	s := startStack(t, ctx)
	s.startWorker(t, ctx)

	s.publish(t, ctx, []byte(`{"job_id": "not-a-uuid"`))

	d := s.next(t, dlqQueue)
	assert.Equal(t, `{"job_id": "not-a-uuid"`, string(d.Body))
	assert.NotEmpty(t, d.Headers["x-dlq-reason"])
}
