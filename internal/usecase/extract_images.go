package usecase

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/ondyari/FaceForensics/internal/domain/crop"
	"github.com/ondyari/FaceForensics/internal/domain/entity"
	"github.com/ondyari/FaceForensics/internal/domain/port"
	"github.com/ondyari/FaceForensics/internal/domain/sampling"
	"github.com/ondyari/FaceForensics/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// doneDir holds one marker per finished triple inside an output folder.
const doneDir = ".done"

// ErrMaskRequired is returned for a triple without mask video when cropping
// or mask output is requested.
var ErrMaskRequired = errors.New("mask video required for crop or mask output")

// ExtractOptions controls how images are produced from a video triple.
type ExtractOptions struct {
	Plan         sampling.Plan
	Crop         bool
	Scale        float64
	ReturnMasks  bool
	TrackFaces   bool
	SkipExisting bool
}

func (o ExtractOptions) needsMask() bool {
	return o.Crop || o.ReturnMasks
}

func (o ExtractOptions) Validate() error {
	if err := o.Plan.Validate(); err != nil {
		return err
	}
	if o.Crop && o.Scale <= 0 {
		return fmt.Errorf("scale must be positive, got %v", o.Scale)
	}
	return nil
}

// TripleExtractor decodes an original/altered/mask video triple and writes
// the sampled frame instants, cropped to the manipulated face when asked.
type TripleExtractor struct {
	extractor port.FrameExtractor
	codec     port.ImageCodec
	logger    *zap.Logger
	tempDir   string
}

func NewTripleExtractor(extractor port.FrameExtractor, codec port.ImageCodec, logger *zap.Logger, tempDir string) *TripleExtractor {
	return &TripleExtractor{extractor: extractor, codec: codec, logger: logger, tempDir: tempDir}
}

// ExtractTriple writes images of triple into outDir/{original,altered,mask}.
// Instants with an empty mask or a degenerate crop are skipped; frames of
// different sizes abort the triple.
func (x *TripleExtractor) ExtractTriple(
	ctx context.Context,
	triple entity.VideoTriple,
	outDir string,
	opts ExtractOptions,
	rng *rand.Rand,
) (entity.TripleResult, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "TripleExtractor.ExtractTriple")
	defer span.End()
	span.SetAttributes(attribute.String("triple.altered", triple.Altered))

	var result entity.TripleResult
	log := x.logger.With(zap.String("triple", triple.Name()))

	if opts.needsMask() && triple.Mask == "" {
		return result, fmt.Errorf("triple %s: %w", triple.Name(), ErrMaskRequired)
	}

	marker := filepath.Join(outDir, doneDir, entity.Stem(triple.Altered))
	if opts.SkipExisting {
		if _, err := os.Stat(marker); err == nil {
			log.Debug("skipping, images already extracted")
			result.AlreadyPresent = true
			return result, nil
		}
	}

	if err := os.MkdirAll(x.tempDir, 0755); err != nil {
		return result, fmt.Errorf("create temp dir: %w", err)
	}
	workDir, err := os.MkdirTemp(x.tempDir, "triple-*")
	if err != nil {
		return result, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	decStart := time.Now()
	streams := map[string]string{
		entity.StreamOriginal: triple.Original,
		entity.StreamAltered:  triple.Altered,
	}
	if opts.needsMask() {
		streams[entity.StreamMask] = triple.Mask
	}
	frames := make(map[string][]string, len(streams))
	for name, video := range streams {
		dir := filepath.Join(workDir, name)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return result, fmt.Errorf("create frames dir: %w", err)
		}
		res, err := x.extractor.ExtractFrames(ctx, video, dir)
		if err != nil {
			return result, fmt.Errorf("decode %s video: %w", name, err)
		}
		frames[name] = res.FramePaths
		metrics.FramesDecodedTotal.WithLabelValues(name).Add(float64(res.FrameCount))
	}
	metrics.StageDuration.WithLabelValues("decode").Observe(time.Since(decStart).Seconds())

	frameCount, mismatch := commonFrameCount(frames)
	result.FrameCount = frameCount
	if mismatch {
		result.CountMismatch = true
		metrics.FrameCountMismatchTotal.Inc()
		log.Warn("streams decoded to different frame counts, using common prefix",
			zap.Int("original", len(frames[entity.StreamOriginal])),
			zap.Int("altered", len(frames[entity.StreamAltered])),
			zap.Int("mask", len(frames[entity.StreamMask])),
		)
	}

	indices, err := opts.Plan.Indices(frameCount, rng)
	if errors.Is(err, sampling.ErrNoFrames) {
		log.Warn("skipping, invalid number of frames", zap.Int("frame_count", frameCount))
		return result, nil
	}
	if err != nil {
		return result, err
	}

	writeStart := time.Now()
	var tracker crop.Tracker
	for _, idx := range indices {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		paths, err := x.writeInstant(frames, idx, triple, outDir, result.ImageCount, opts, &tracker)
		switch {
		case errors.Is(err, crop.ErrEmptyMask):
			result.Skipped++
			metrics.InstantsSkippedTotal.WithLabelValues("empty_mask").Inc()
			log.Warn("skipping frame instant, mask is empty", zap.Int("frame_index", idx))
			continue
		case errors.Is(err, crop.ErrDegenerateRegion):
			result.Skipped++
			metrics.InstantsSkippedTotal.WithLabelValues("degenerate_region").Inc()
			log.Warn("skipping frame instant, crop region has no area", zap.Int("frame_index", idx))
			continue
		case err != nil:
			return result, fmt.Errorf("frame %d: %w", idx, err)
		}

		result.ImageCount++
		result.ImagePaths = append(result.ImagePaths, paths...)
	}
	metrics.ImagesWrittenTotal.Add(float64(result.ImageCount))
	metrics.StageDuration.WithLabelValues("write").Observe(time.Since(writeStart).Seconds())

	if err := markDone(marker); err != nil {
		return result, err
	}

	log.Info("triple extracted",
		zap.Int("frame_count", result.FrameCount),
		zap.Int("images", result.ImageCount),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// writeInstant loads, crops and stores the frames of instant idx and returns
// the written paths.
func (x *TripleExtractor) writeInstant(
	frames map[string][]string,
	idx int,
	triple entity.VideoTriple,
	outDir string,
	counter int,
	opts ExtractOptions,
	tracker *crop.Tracker,
) ([]string, error) {
	var in crop.Triple
	var err error
	if in.Original, err = x.codec.Load(frames[entity.StreamOriginal][idx]); err != nil {
		return nil, err
	}
	if in.Altered, err = x.codec.Load(frames[entity.StreamAltered][idx]); err != nil {
		return nil, err
	}
	if opts.needsMask() {
		if in.Mask, err = x.codec.Load(frames[entity.StreamMask][idx]); err != nil {
			return nil, err
		}
	}

	out, err := cropInstant(in, opts, tracker)
	if err != nil {
		return nil, err
	}

	type target struct {
		stream string
		video  string
		img    image.Image
	}
	targets := []target{
		{entity.StreamAltered, triple.Altered, out.Altered},
		{entity.StreamOriginal, triple.Original, out.Original},
	}
	if opts.ReturnMasks {
		// Masks are written single channel even when ffmpeg decoded them to RGB.
		targets = append(targets, target{entity.StreamMask, triple.Mask, crop.ToGray(out.Mask)})
	}

	paths := make([]string, 0, len(targets))
	for _, t := range targets {
		p := filepath.Join(outDir, t.stream, entity.ImageName(t.video, counter))
		if err := x.codec.Save(t.img, p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// cropInstant applies the crop policy of opts to one frame instant.
func cropInstant(in crop.Triple, opts ExtractOptions, tracker *crop.Tracker) (crop.Triple, error) {
	width, height, err := in.CheckDimensions()
	if err != nil {
		return crop.Triple{}, err
	}
	if !opts.Crop {
		if !opts.ReturnMasks {
			in.Mask = nil
		}
		return in, nil
	}
	if !opts.TrackFaces {
		out, _, err := crop.CropTriple(in, opts.Scale, opts.ReturnMasks)
		return out, err
	}

	boxes, err := crop.Components(in.Mask)
	if err != nil {
		return crop.Triple{}, err
	}
	box, _ := tracker.Select(boxes)
	region := crop.ComputeCropRegion(box, width, height, opts.Scale)
	return crop.CropTripleAt(in, region, opts.ReturnMasks)
}

func commonFrameCount(frames map[string][]string) (int, bool) {
	count, mismatch := -1, false
	for _, f := range frames {
		switch {
		case count < 0:
			count = len(f)
		case len(f) != count:
			mismatch = true
			count = min(count, len(f))
		}
	}
	return max(count, 0), mismatch
}

func markDone(marker string) error {
	if err := os.MkdirAll(filepath.Dir(marker), 0755); err != nil {
		return fmt.Errorf("create done dir: %w", err)
	}
	if err := os.WriteFile(marker, []byte(time.Now().UTC().Format(time.RFC3339)), 0644); err != nil {
		return fmt.Errorf("write done marker: %w", err)
	}
	return nil
}

// FolderRequest names one split folder holding original/, altered/ and
// usually mask/ videos.
type FolderRequest struct {
	DataPath     string
	OutputPath   string
	MaskDataPath string
}

// ExtractImagesUseCase walks split folders and extracts every video triple.
type ExtractImagesUseCase struct {
	triples  *TripleExtractor
	progress port.ProgressFactory
	logger   *zap.Logger
}

func NewExtractImagesUseCase(triples *TripleExtractor, progress port.ProgressFactory, logger *zap.Logger) *ExtractImagesUseCase {
	return &ExtractImagesUseCase{triples: triples, progress: progress, logger: logger}
}

// ExtractFolder processes one split. Errors of single triples are collected
// and returned together after the whole folder ran.
func (uc *ExtractImagesUseCase) ExtractFolder(ctx context.Context, req FolderRequest, opts ExtractOptions, rng *rand.Rand) (entity.TripleResult, error) {
	var total entity.TripleResult
	if err := opts.Validate(); err != nil {
		return total, err
	}

	triples, err := listTriples(req, opts.needsMask())
	if err != nil {
		return total, err
	}

	bar := uc.progress(len(triples), filepath.Base(req.DataPath))
	var errs error
	for _, t := range triples {
		if err := ctx.Err(); err != nil {
			return total, multierr.Append(errs, err)
		}
		res, err := uc.triples.ExtractTriple(ctx, t, req.OutputPath, opts, rng)
		if err != nil {
			uc.logger.Error("triple extraction failed", zap.String("triple", t.Name()), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		}
		total.FrameCount += res.FrameCount
		total.ImageCount += res.ImageCount
		total.Skipped += res.Skipped
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	return total, errs
}

// ExtractDataset runs ExtractFolder for each of the test, train and val
// splits found under req.DataPath.
func (uc *ExtractImagesUseCase) ExtractDataset(ctx context.Context, req FolderRequest, opts ExtractOptions, rng *rand.Rand) (entity.TripleResult, error) {
	var total entity.TripleResult
	var errs error
	for _, split := range Splits {
		dataPath := filepath.Join(req.DataPath, split)
		if !isDir(dataPath) {
			uc.logger.Info("skipping missing split", zap.String("path", dataPath))
			continue
		}
		sub := FolderRequest{
			DataPath:   dataPath,
			OutputPath: filepath.Join(req.OutputPath, split),
		}
		if req.MaskDataPath != "" {
			sub.MaskDataPath = filepath.Join(req.MaskDataPath, split, entity.StreamMask)
		}
		uc.logger.Info("extracting split", zap.String("split", split))
		res, err := uc.ExtractFolder(ctx, sub, opts, rng)
		total.FrameCount += res.FrameCount
		total.ImageCount += res.ImageCount
		total.Skipped += res.Skipped
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("split %s: %w", split, err))
		}
	}
	return total, errs
}

func listTriples(req FolderRequest, withMask bool) ([]entity.VideoTriple, error) {
	originals, err := listFiles(filepath.Join(req.DataPath, entity.StreamOriginal))
	if err != nil {
		return nil, err
	}
	altered, err := listFiles(filepath.Join(req.DataPath, entity.StreamAltered))
	if err != nil {
		return nil, err
	}
	var masks []string
	if withMask {
		maskPath := req.MaskDataPath
		if maskPath == "" {
			maskPath = filepath.Join(req.DataPath, entity.StreamMask)
		}
		if masks, err = listFiles(maskPath); err != nil {
			return nil, err
		}
	}
	return entity.PairTriples(originals, altered, masks)
}
