package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ondyari/FaceForensics/internal/domain/entity"
	"github.com/ondyari/FaceForensics/internal/domain/port"
	"github.com/ondyari/FaceForensics/internal/infra/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const defaultContainer = "avi"

// CompressRequest describes one compression run. With more than one CRF the
// outputs go to OutputPath/c<crf>/...
type CompressRequest struct {
	DataPath   string
	OutputPath string
	CRFs       []int
	FPS        float64
	Preset     string
	Container  string
}

type CompressSummary struct {
	Compressed int
	Skipped    int
	Failed     int
}

// CompressVideosUseCase re-encodes dataset videos at fixed quality levels.
// Each output path is written once; reruns skip existing files.
type CompressVideosUseCase struct {
	compressor port.VideoCompressor
	progress   port.ProgressFactory
	logger     *zap.Logger
}

func NewCompressVideosUseCase(compressor port.VideoCompressor, progress port.ProgressFactory, logger *zap.Logger) *CompressVideosUseCase {
	return &CompressVideosUseCase{compressor: compressor, progress: progress, logger: logger}
}

func (r CompressRequest) validate() error {
	return validateCRFs(r.CRFs)
}

func validateCRFs(crfs []int) error {
	if len(crfs) == 0 {
		return fmt.Errorf("at least one crf value is required")
	}
	for _, crf := range crfs {
		if crf < 0 || crf > 51 {
			return fmt.Errorf("crf %d out of range 0-51", crf)
		}
	}
	return nil
}

// CompressFolder compresses every file of req.DataPath.
func (uc *CompressVideosUseCase) CompressFolder(ctx context.Context, req CompressRequest) (CompressSummary, error) {
	var summary CompressSummary
	if err := req.validate(); err != nil {
		return summary, err
	}
	files, err := listFiles(req.DataPath)
	if err != nil {
		return summary, err
	}
	container := req.Container
	if container == "" {
		container = defaultContainer
	}

	var errs error
	for _, crf := range req.CRFs {
		outDir := req.OutputPath
		if len(req.CRFs) > 1 {
			outDir = filepath.Join(req.OutputPath, "c"+strconv.Itoa(crf))
		}
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return summary, fmt.Errorf("create output dir: %w", err)
		}

		opts := port.CompressionOptions{CRF: crf, FPS: req.FPS, Preset: req.Preset}
		crfLabel := strconv.Itoa(crf)
		bar := uc.progress(len(files), fmt.Sprintf("%s c%d", filepath.Base(req.DataPath), crf))

		for _, in := range files {
			if err := ctx.Err(); err != nil {
				_ = bar.Finish()
				return summary, multierr.Append(errs, err)
			}
			out := filepath.Join(outDir, entity.Stem(in)+"."+container)
			switch {
			case fileExists(out):
				summary.Skipped++
				metrics.VideosCompressedTotal.WithLabelValues("skipped", crfLabel).Inc()
			default:
				start := time.Now()
				if err := uc.compressor.Compress(ctx, in, out, opts); err != nil {
					summary.Failed++
					metrics.VideosCompressedTotal.WithLabelValues("failed", crfLabel).Inc()
					uc.logger.Error("compression failed", zap.String("video", in), zap.Int("crf", crf), zap.Error(err))
					// A half written file would be taken as done on the next run.
					_ = os.Remove(out)
					errs = multierr.Append(errs, err)
				} else {
					summary.Compressed++
					metrics.VideosCompressedTotal.WithLabelValues("compressed", crfLabel).Inc()
					metrics.StageDuration.WithLabelValues("compress").Observe(time.Since(start).Seconds())
				}
			}
			_ = bar.Add(1)
		}
		_ = bar.Finish()
	}

	uc.logger.Info("folder compressed",
		zap.String("path", req.DataPath),
		zap.Int("compressed", summary.Compressed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, errs
}

// CompressDataset compresses the altered and original folders of every
// split found under req.DataPath, mirroring the layout under OutputPath.
func (uc *CompressVideosUseCase) CompressDataset(ctx context.Context, req CompressRequest) (CompressSummary, error) {
	var total CompressSummary
	var errs error
	for _, split := range Splits {
		for _, stream := range []string{entity.StreamAltered, entity.StreamOriginal} {
			dataPath := filepath.Join(req.DataPath, split, stream)
			if !isDir(dataPath) {
				continue
			}
			sub := req
			sub.DataPath = dataPath
			sub.OutputPath = filepath.Join(req.OutputPath, split, stream)

			s, err := uc.CompressFolder(ctx, sub)
			total.Compressed += s.Compressed
			total.Skipped += s.Skipped
			total.Failed += s.Failed
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s/%s: %w", split, stream, err))
			}
			if ctx.Err() != nil {
				return total, errs
			}
		}
	}
	return total, errs
}
