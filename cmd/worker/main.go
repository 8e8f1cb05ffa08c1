package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-scene-service/internal/bootstrap"
	"github.com/fiapx/fiapx-scene-service/internal/infra/archive"
	"github.com/fiapx/fiapx-scene-service/internal/infra/config"
	"github.com/fiapx/fiapx-scene-service/internal/infra/email"
	"github.com/fiapx/fiapx-scene-service/internal/infra/metrics"
	miniostorage "github.com/fiapx/fiapx-scene-service/internal/infra/minio"
	"github.com/fiapx/fiapx-scene-service/internal/infra/postgres"
	"github.com/fiapx/fiapx-scene-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-scene-service/internal/infra/tracing"
	"github.com/fiapx/fiapx-scene-service/internal/usecase"
	"github.com/fiapx/fiapx-scene-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting fiapx-scene-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, "fiapx-scene-service")
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// External tools
	checker := bootstrap.NewHealthChecker(cfg.Pipeline)
	for _, tool := range checker.Check().Tools {
		log.Info("tool check",
			zap.String("tool", tool.Name),
			zap.Bool("available", tool.Available),
			zap.Bool("required", tool.Required),
			zap.String("path", tool.Path),
		)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		UploadBucket: cfg.MinIOUploadBucket,
		ExportBucket: cfg.MinIOExportBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub, cfg.RabbitMQStatusQueue)
	eventPub := rabbitmq.NewEventPublisher(pub, cfg.RabbitMQEventsQueue)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	pipeline := bootstrap.NewPipeline(cfg.Pipeline, log)
	zipper := archive.NewZipCreator()
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Use case
	uc := usecase.NewProcessSceneUseCase(
		repo, storage, pipeline, zipper,
		statusPub, eventPub, dlqPub, notifier,
		log,
		usecase.ProcessSceneConfig{
			WorkspaceDir: cfg.Pipeline.WorkspaceDir,
			MaxRetries:   cfg.MaxRetries,
			Options:      cfg.Pipeline.Options(),
			Cleanup:      cfg.Pipeline.WorkspaceCleanup,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, checker.Handler(), log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQProcessingQueue,
		RoutingKey:  cfg.RabbitMQRoutingKey,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		EventsQueue: cfg.RabbitMQEventsQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("fiapx-scene-service started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	pub.Close()
	log.Info("fiapx-scene-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
