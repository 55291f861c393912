package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ondyari/FaceForensics/internal/infra/config"
	"github.com/ondyari/FaceForensics/internal/infra/email"
	"github.com/ondyari/FaceForensics/internal/infra/ffmpeg"
	"github.com/ondyari/FaceForensics/internal/infra/imageio"
	"github.com/ondyari/FaceForensics/internal/infra/metrics"
	miniostorage "github.com/ondyari/FaceForensics/internal/infra/minio"
	"github.com/ondyari/FaceForensics/internal/infra/postgres"
	"github.com/ondyari/FaceForensics/internal/infra/rabbitmq"
	"github.com/ondyari/FaceForensics/internal/infra/tracing"
	"github.com/ondyari/FaceForensics/internal/usecase"
	"github.com/ondyari/FaceForensics/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting extraction worker", zap.String("service", cfg.ServiceName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, cfg.ServiceName)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	fatalOnErr(postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath), "run migrations")

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:      cfg.MinIOEndpoint,
		AccessKey:     cfg.MinIOAccessKey,
		SecretKey:     cfg.MinIOSecretKey,
		UseSSL:        cfg.MinIOUseSSL,
		VideoBucket:   cfg.MinIOVideoBucket,
		ArchiveBucket: cfg.MinIOArchiveBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	defer pub.Close()

	statusPub := rabbitmq.NewStatusPublisher(pub, cfg.RabbitMQStatusQueue)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	repo := postgres.NewJobRepository(pool)
	extractor := ffmpeg.NewExtractor(cfg.FFmpegFPS, "png", log)
	triples := usecase.NewTripleExtractor(extractor, imageio.NewCodec(), log, cfg.TempDir)
	zipper := ffmpeg.NewZipCreator()
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	uc := usecase.NewProcessTripleUseCase(
		repo, storage, triples, zipper,
		statusPub, dlqPub, notifier,
		log,
		usecase.ProcessTripleConfig{
			TempDir:    cfg.TempDir,
			MaxRetries: cfg.MaxRetries,
		},
	)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQExtractionQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("extraction worker started, consuming messages", zap.String("queue", cfg.RabbitMQExtractionQueue))

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("extraction worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
