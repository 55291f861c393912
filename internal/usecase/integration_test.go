//go:build integration

package usecase_test

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ondyari/FaceForensics/internal/domain/entity"
	"github.com/ondyari/FaceForensics/internal/infra/email"
	"github.com/ondyari/FaceForensics/internal/infra/ffmpeg"
	"github.com/ondyari/FaceForensics/internal/infra/imageio"
	miniostorage "github.com/ondyari/FaceForensics/internal/infra/minio"
	"github.com/ondyari/FaceForensics/internal/infra/postgres"
	"github.com/ondyari/FaceForensics/internal/infra/rabbitmq"
	"github.com/ondyari/FaceForensics/internal/usecase"
	"github.com/ondyari/FaceForensics/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

const (
	exchange      = "faceforensics.dataset"
	extractQueue  = "dataset.extraction"
	statusQueue   = "dataset.status"
	dlqQueue      = "dataset.extraction.dlq"
	videoBucket   = "videos"
	archiveBucket = "crops"
)

type stack struct {
	pgConnStr string
	rmqURL    string
	minioURL  string
}

func startStack(ctx context.Context, t *testing.T) stack {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("ffpp"),
		tcpostgres.WithUsername("ffpp"),
		tcpostgres.WithPassword("ffpp"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rmqContainer, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rmqContainer.Terminate(context.Background()) })

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = minioContainer.Terminate(context.Background()) })

	minioURL, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	require.NoError(t, postgres.RunMigrations(pgConnStr, filepath.Join("..", "..", "migrations")))
	return stack{pgConnStr: pgConnStr, rmqURL: rmqURL, minioURL: minioURL}
}

// startWorker wires the extraction use case to a consumer the way
// cmd/worker does and runs it until the test ends.
func startWorker(ctx context.Context, t *testing.T, s stack) (*amqp.Connection, *pgxpool.Pool) {
	t.Helper()
	log, err := logger.New("debug")
	require.NoError(t, err)

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:      s.minioURL,
		AccessKey:     "minioadmin",
		SecretKey:     "minioadmin",
		VideoBucket:   videoBucket,
		ArchiveBucket: archiveBucket,
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	pool, err := pgxpool.New(ctx, s.pgConnStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	rmqConn, err := amqp.Dial(s.rmqURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rmqConn.Close() })

	pub, err := rabbitmq.NewPublisher(rmqConn, exchange)
	require.NoError(t, err)

	extractor := ffmpeg.NewExtractor(0, "png", log)
	uc := usecase.NewProcessTripleUseCase(
		postgres.NewJobRepository(pool),
		storage,
		usecase.NewTripleExtractor(extractor, imageio.NewCodec(), log, t.TempDir()),
		ffmpeg.NewZipCreator(),
		rabbitmq.NewStatusPublisher(pub, statusQueue),
		rabbitmq.NewDLQPublisher(pub, dlqQueue),
		email.NewSMTPNotifier("localhost", 1025, "test@ffpp.local", log),
		log,
		usecase.ProcessTripleConfig{TempDir: t.TempDir(), MaxRetries: 3},
	)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         s.rmqURL,
		Queue:       extractQueue,
		Exchange:    exchange,
		DLQ:         dlqQueue,
		StatusQueue: statusQueue,
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, log)
	require.NoError(t, err)

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	go func() { _ = consumer.Start(consumerCtx) }()
	t.Cleanup(func() {
		consumerCancel()
		_ = consumer.Close()
	})

	time.Sleep(500 * time.Millisecond)
	return rmqConn, pool
}

// makeTriple renders a 5 frame original, a colour-inverted altered video and
// a lossless gray mask with one black box.
func makeTriple(t *testing.T) (original, altered, mask string) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	dir := t.TempDir()
	original = filepath.Join(dir, "000_003.avi")
	altered = filepath.Join(dir, "000_003_f2f.avi")
	mask = filepath.Join(dir, "000_003_mask.avi")

	for _, args := range [][]string{
		{"-f", "lavfi", "-i", "testsrc=duration=1:size=64x48:rate=5", "-c:v", "ffv1", original},
		{"-i", original, "-vf", "negate", "-c:v", "ffv1", altered},
		{"-f", "lavfi", "-i", "color=white:size=64x48:duration=1:rate=5",
			"-vf", "drawbox=x=20:y=10:w=16:h=20:color=black:t=fill", "-pix_fmt", "gray", "-c:v", "ffv1", mask},
	} {
		out, err := exec.Command("ffmpeg", append([]string{"-y", "-loglevel", "error"}, args...)...).CombinedOutput()
		require.NoError(t, err, string(out))
	}
	return original, altered, mask
}

func publish(ctx context.Context, t *testing.T, conn *amqp.Connection, body []byte) {
	t.Helper()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.PublishWithContext(ctx, exchange, extractQueue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	}))
}

func TestProcessTripleEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	original, altered, mask := makeTriple(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s := startStack(ctx, t)
	rmqConn, pool := startWorker(ctx, t, s)

	minioClient, err := miniogo.New(s.minioURL, &miniogo.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	keys := map[string]string{}
	for stream, path := range map[string]string{"original": original, "altered": altered, "mask": mask} {
		key := "alice/" + stream + "/" + filepath.Base(path)
		_, err := minioClient.FPutObject(ctx, videoBucket, key, path, miniogo.PutObjectOptions{ContentType: "video/x-msvideo"})
		require.NoError(t, err)
		keys[stream] = key
	}

	jobID := uuid.New()
	body, err := json.Marshal(entity.TripleExtractionMessage{
		JobID:       jobID,
		UserID:      "alice",
		OriginalKey: keys["original"],
		AlteredKey:  keys["altered"],
		MaskKey:     keys["mask"],
		EveryNth:    2,
		ReturnMasks: true,
		UserEmail:   "alice@ffpp.local",
	})
	require.NoError(t, err)
	publish(ctx, t, rmqConn, body)

	statusCh, err := rmqConn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()
	statusMsgs, err := statusCh.Consume(statusQueue, "", true, false, false, false, nil)
	require.NoError(t, err)

	var status entity.TripleStatusMessage
	select {
	case d := <-statusMsgs:
		require.NoError(t, json.Unmarshal(d.Body, &status))
	case <-time.After(2 * time.Minute):
		t.Fatal("timeout waiting for status message")
	}

	assert.Equal(t, jobID, status.JobID)
	require.Equal(t, entity.JobStatusCompleted, status.Status, status.ErrorMessage)
	assert.Equal(t, 5, status.FrameCount)
	assert.Equal(t, 3, status.ImageCount)

	obj, err := minioClient.GetObject(ctx, archiveBucket, status.ZipKey, miniogo.GetObjectOptions{})
	require.NoError(t, err)
	zipPath := filepath.Join(t.TempDir(), "crops.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	_, err = f.ReadFrom(obj)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()

	perStream := map[string]int{}
	for _, zf := range zr.File {
		if strings.HasSuffix(zf.Name, ".png") {
			perStream[strings.SplitN(zf.Name, "/", 2)[0]]++
		}
	}
	assert.Equal(t, map[string]int{"original": 3, "altered": 3, "mask": 3}, perStream)

	var dbStatus string
	var dbImages int
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT status, image_count FROM extraction_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus, &dbImages))
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, 3, dbImages)
}

func TestProcessTripleMalformedMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s := startStack(ctx, t)
	rmqConn, _ := startWorker(ctx, t, s)

	publish(ctx, t, rmqConn, []byte(`{invalid json`))
	time.Sleep(2 * time.Second)

	ch, err := rmqConn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	msg, ok, err := ch.Get(dlqQueue, true)
	require.NoError(t, err)
	require.True(t, ok, "malformed message should be in DLQ")
	assert.Equal(t, `{invalid json`, string(msg.Body))
	assert.Contains(t, msg.Headers["x-dlq-reason"], "unmarshal_error")
}
