package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ondyari/FaceForensics/internal/domain/crop"
	"github.com/ondyari/FaceForensics/internal/domain/entity"
	"github.com/ondyari/FaceForensics/internal/domain/port"
	"github.com/ondyari/FaceForensics/internal/domain/sampling"
	"github.com/ondyari/FaceForensics/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ProcessTripleUseCase struct {
	repo      port.JobRepository
	storage   port.DatasetStorage
	triples   *TripleExtractor
	zipper    port.Zipper
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	tempDir   string
	maxRetry  int
}

type ProcessTripleConfig struct {
	TempDir    string
	MaxRetries int
}

func NewProcessTripleUseCase(
	repo port.JobRepository,
	storage port.DatasetStorage,
	triples *TripleExtractor,
	zipper port.Zipper,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ProcessTripleConfig,
) *ProcessTripleUseCase {
	return &ProcessTripleUseCase{
		repo:      repo,
		storage:   storage,
		triples:   triples,
		zipper:    zipper,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		tempDir:   cfg.TempDir,
		maxRetry:  cfg.MaxRetries,
	}
}

func (uc *ProcessTripleUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessTripleUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.TripleExtractionMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.altered_key", msg.AlteredKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("altered_key", msg.AlteredKey))

	opts := extractOptions(msg)
	if err := opts.Validate(); err != nil {
		log.Error("invalid extraction request", zap.Error(err))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "invalid_request: "+err.Error())
		return nil
	}

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewJob(msg.UserID, msg.OriginalKey, msg.AlteredKey, msg.MaskKey, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if job.Status == entity.JobStatusCompleted {
		log.Info("job already completed, acknowledging duplicate")
		return nil
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.processTriplePipeline(ctx, job, msg, opts, rawMsg, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func extractOptions(msg entity.TripleExtractionMessage) ExtractOptions {
	scale := msg.Scale
	if scale == 0 {
		scale = crop.DefaultScale
	}
	return ExtractOptions{
		Plan:        msg.Plan(),
		Crop:        msg.CropEnabled(),
		Scale:       scale,
		ReturnMasks: msg.ReturnMasks,
		TrackFaces:  msg.TrackFaces,
	}
}

func (uc *ProcessTripleUseCase) processTriplePipeline(
	ctx context.Context,
	job *entity.Job,
	msg entity.TripleExtractionMessage,
	opts ExtractOptions,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download the three videos from MinIO
	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_videos")
	triple := entity.VideoTriple{
		Original: filepath.Join(workDir, "videos", entity.StreamOriginal, filepath.Base(msg.OriginalKey)),
		Altered:  filepath.Join(workDir, "videos", entity.StreamAltered, filepath.Base(msg.AlteredKey)),
	}
	downloads := map[string]string{msg.OriginalKey: triple.Original, msg.AlteredKey: triple.Altered}
	if opts.needsMask() {
		if msg.MaskKey == "" {
			spanDl.End()
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "mask_key required for crop or mask output")
		}
		triple.Mask = filepath.Join(workDir, "videos", entity.StreamMask, filepath.Base(msg.MaskKey))
		downloads[msg.MaskKey] = triple.Mask
	}
	for key, dest := range downloads {
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			spanDl.End()
			return fmt.Errorf("create video dir: %w", err)
		}
		if err := uc.storage.DownloadVideo(ctx2, key, dest); err != nil {
			spanDl.End()
			log.Error("failed to download video", zap.String("key", key), zap.Error(err))
			return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
		}
	}
	spanDl.End()
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Decode, sample and crop
	imagesDir := filepath.Join(workDir, "images")
	result, err := uc.triples.ExtractTriple(ctx, triple, imagesDir, opts, sampling.NewRand(msg.Seed))
	if err != nil {
		log.Error("image extraction failed", zap.Error(err))
		if isPermanent(err) {
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "extract_images: "+err.Error())
		}
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "extract_images: "+err.Error(), log)
	}
	if result.ImageCount == 0 {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg,
			fmt.Sprintf("no images extracted (frames=%d, skipped=%d)", result.FrameCount, result.Skipped))
	}

	// Create ZIP from images
	zipStart := time.Now()
	ctx4, spanZip := tracer.Start(ctx, "create_zip")
	zipPath := filepath.Join(workDir, "images.zip")
	if err := uc.zipper.CreateZip(ctx4, imagesDir, result.ImagePaths, zipPath); err != nil {
		spanZip.End()
		log.Error("zip creation failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "create_zip: "+err.Error(), log)
	}
	spanZip.End()
	metrics.StageDuration.WithLabelValues("zip").Observe(time.Since(zipStart).Seconds())

	// Upload ZIP to MinIO
	upStart := time.Now()
	ctx5, spanUp := tracer.Start(ctx, "upload_zip")
	zipKey := fmt.Sprintf("%s/crops_%s.zip", msg.UserID, job.ID.String())
	zipFile, err := os.Open(zipPath)
	if err != nil {
		spanUp.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "open_zip: "+err.Error(), log)
	}
	zipStat, err := zipFile.Stat()
	if err != nil {
		zipFile.Close()
		spanUp.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "stat_zip: "+err.Error(), log)
	}
	if err := uc.storage.UploadArchive(ctx5, zipKey, zipFile, zipStat.Size()); err != nil {
		zipFile.Close()
		spanUp.End()
		log.Error("zip upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_zip: "+err.Error(), log)
	}
	zipFile.Close()
	spanUp.End()
	metrics.StageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	// Mark completed
	job.MarkCompleted(zipKey, result)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("frame_count", result.FrameCount),
		zap.Int("image_count", result.ImageCount),
		zap.Int("skipped", result.Skipped),
		zap.String("zip_key", zipKey),
	)

	return nil
}

// isPermanent reports extraction errors that depend only on the input videos,
// so a redelivery would fail the same way.
func isPermanent(err error) bool {
	return errors.Is(err, crop.ErrDimensionMismatch) ||
		errors.Is(err, sampling.ErrSamplingMode) ||
		errors.Is(err, port.ErrDecode) ||
		errors.Is(err, ErrMaskRequired)
}

func (uc *ProcessTripleUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.TripleExtractionMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ProcessTripleUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.TripleExtractionMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), filepath.Base(msg.AlteredKey), errMsg)
	}

	return nil
}

func (uc *ProcessTripleUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	statusMsg := entity.TripleStatusMessage{
		JobID:        job.ID,
		UserID:       job.UserID,
		Status:       job.Status,
		AlteredKey:   job.AlteredKey,
		ZipKey:       job.ZipKey,
		FrameCount:   job.FrameCount,
		ImageCount:   job.ImageCount,
		SkippedCount: job.SkippedCount,
		ErrorMessage: job.ErrorMessage,
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
