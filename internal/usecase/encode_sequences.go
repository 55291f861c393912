package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ondyari/FaceForensics/internal/domain/port"
	"github.com/ondyari/FaceForensics/internal/infra/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// MethodOriginal selects the source sequences instead of a manipulation.
const MethodOriginal = "original"

// ManipulationMethods are the methods encoded when all are requested.
var ManipulationMethods = []string{"Face2Face", "FaceSwap", "Deepfakes"}

// DefaultEncodeCRFs are the quality levels of the released dataset.
var DefaultEncodeCRFs = []int{0, 23, 40}

// MethodPath is the root of one method: original_sequences or
// manipulated_sequences/<method>.
func MethodPath(dataPath, method string) string {
	if method == MethodOriginal {
		return filepath.Join(dataPath, "original_sequences")
	}
	return filepath.Join(dataPath, "manipulated_sequences", method)
}

// EncodeRequest encodes <method>/raw/images/<folder> into
// <method>/c<crf>/videos/<folder>.mp4 for every CRF. With ExtractImages the
// videos are decoded again into <method>/c<crf>/images/<folder>.
type EncodeRequest struct {
	DataPath      string
	Method        string
	CRFs          []int
	Preset        string
	ExtractImages bool
}

type EncodeSummary struct {
	Encoded    int
	Skipped    int
	Failed     int
	Verified   int
	Mismatched int
}

func (s *EncodeSummary) add(o EncodeSummary) {
	s.Encoded += o.Encoded
	s.Skipped += o.Skipped
	s.Failed += o.Failed
	s.Verified += o.Verified
	s.Mismatched += o.Mismatched
}

// EncodeSequencesUseCase builds the compressed releases of image sequences.
type EncodeSequencesUseCase struct {
	encoder   port.ImageSequenceEncoder
	extractor port.FrameExtractor
	progress  port.ProgressFactory
	logger    *zap.Logger
}

func NewEncodeSequencesUseCase(
	encoder port.ImageSequenceEncoder,
	extractor port.FrameExtractor,
	progress port.ProgressFactory,
	logger *zap.Logger,
) *EncodeSequencesUseCase {
	return &EncodeSequencesUseCase{encoder: encoder, extractor: extractor, progress: progress, logger: logger}
}

// fpsKey names the source sequence whose frame rate a folder uses. A
// manipulated folder <target>_<source> takes the rate of its source.
func fpsKey(method, folder string) string {
	if method == MethodOriginal {
		return folder
	}
	if i := strings.LastIndexByte(folder, '_'); i >= 0 {
		return folder[i+1:]
	}
	return folder
}

// EncodeMethod encodes every sequence folder of one method. Videos already
// present are kept.
func (uc *EncodeSequencesUseCase) EncodeMethod(ctx context.Context, req EncodeRequest) (EncodeSummary, error) {
	var summary EncodeSummary
	crfs := req.CRFs
	if len(crfs) == 0 {
		crfs = DefaultEncodeCRFs
	}
	if err := validateCRFs(crfs); err != nil {
		return summary, err
	}
	if req.Method == "" {
		return summary, fmt.Errorf("method is required")
	}

	fpsTable, err := LoadFPSTable(req.DataPath)
	if err != nil {
		return summary, err
	}
	root := MethodPath(req.DataPath, req.Method)
	imagesPath := filepath.Join(root, "raw", "images")
	folders, err := listDirs(imagesPath)
	if err != nil {
		return summary, err
	}

	log := uc.logger.With(zap.String("method", req.Method))
	var errs error
	for _, crf := range crfs {
		crfDir := filepath.Join(root, "c"+strconv.Itoa(crf))
		videosOut := filepath.Join(crfDir, "videos")
		if err := os.MkdirAll(videosOut, 0755); err != nil {
			return summary, fmt.Errorf("create videos dir: %w", err)
		}
		crfLabel := strconv.Itoa(crf)
		bar := uc.progress(len(folders), fmt.Sprintf("%s c%d", req.Method, crf))

		for _, folder := range folders {
			if err := ctx.Err(); err != nil {
				_ = bar.Finish()
				return summary, multierr.Append(errs, err)
			}
			_ = bar.Add(1)

			fps, ok := fpsTable[fpsKey(req.Method, folder)]
			if !ok {
				summary.Failed++
				errs = multierr.Append(errs, fmt.Errorf("%s: no frame rate for %q", folder, fpsKey(req.Method, folder)))
				continue
			}

			in := filepath.Join(imagesPath, folder)
			out := filepath.Join(videosOut, folder+".mp4")
			if fileExists(out) {
				summary.Skipped++
				metrics.VideosCompressedTotal.WithLabelValues("skipped", crfLabel).Inc()
			} else {
				start := time.Now()
				opts := port.CompressionOptions{CRF: crf, FPS: fps, Preset: req.Preset}
				if err := uc.encoder.EncodeImages(ctx, in, out, opts); err != nil {
					summary.Failed++
					metrics.VideosCompressedTotal.WithLabelValues("failed", crfLabel).Inc()
					log.Error("encoding failed", zap.String("folder", folder), zap.Int("crf", crf), zap.Error(err))
					_ = os.Remove(out)
					errs = multierr.Append(errs, fmt.Errorf("%s c%d: %w", folder, crf, err))
					continue
				}
				summary.Encoded++
				metrics.VideosCompressedTotal.WithLabelValues("compressed", crfLabel).Inc()
				metrics.StageDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())
			}

			if !req.ExtractImages {
				continue
			}
			match, err := uc.verify(ctx, out, in, filepath.Join(crfDir, "images", folder))
			switch {
			case err != nil:
				summary.Failed++
				errs = multierr.Append(errs, fmt.Errorf("%s c%d: re-extract: %w", folder, crf, err))
			case match:
				summary.Verified++
			default:
				summary.Mismatched++
			}
		}
		_ = bar.Finish()
	}

	log.Info("method encoded",
		zap.Int("encoded", summary.Encoded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("verified", summary.Verified),
		zap.Int("mismatched", summary.Mismatched),
	)
	return summary, errs
}

// EncodeMethods runs EncodeMethod for each method in turn.
func (uc *EncodeSequencesUseCase) EncodeMethods(ctx context.Context, req EncodeRequest, methods []string) (EncodeSummary, error) {
	var total EncodeSummary
	var errs error
	for _, method := range methods {
		sub := req
		sub.Method = method
		s, err := uc.EncodeMethod(ctx, sub)
		total.add(s)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", method, err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return total, errs
}

// verify decodes video into imagesOut unless it already holds as many frames
// as imagesIn, and reports whether the counts agree afterwards.
func (uc *EncodeSequencesUseCase) verify(ctx context.Context, video, imagesIn, imagesOut string) (bool, error) {
	want := countFiles(imagesIn)
	if countFiles(imagesOut) == want {
		return true, nil
	}
	if err := os.RemoveAll(imagesOut); err != nil {
		return false, err
	}
	if err := os.MkdirAll(imagesOut, 0755); err != nil {
		return false, err
	}
	if _, err := uc.extractor.ExtractFrames(ctx, video, imagesOut); err != nil {
		return false, err
	}
	got := countFiles(imagesOut)
	if got != want {
		metrics.EncodedFrameMismatchTotal.Inc()
		uc.logger.Warn("re-extracted frame count differs",
			zap.String("video", video),
			zap.Int("frames", got),
			zap.Int("images", want),
		)
		return false, nil
	}
	return true, nil
}
