package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ondyari/FaceForensics/internal/domain/port"
	"github.com/ondyari/FaceForensics/internal/infra/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	downloadedVideosDir = "downloaded_videos"
	extractedSeqDir     = "extracted_sequences"

	// youtubeIDLen is the length of the video ids naming downloaded videos.
	youtubeIDLen         = 11
	maxConversionEntries = 1000
)

// ErrConversionListExists is returned when a conversion list was already
// created. Its folders are renamed, so a second run would map the new names.
var ErrConversionListExists = errors.New("conversion list already exists")

// OriginalImagesPath is where extracted source sequences are written.
func OriginalImagesPath(dataPath string) string {
	return filepath.Join(dataPath, "original_sequences", "raw", "images")
}

// ConversionDictPath is the JSON file mapping short sequence names to
// "<video id> <sequence index>".
func ConversionDictPath(dataPath string) string {
	return filepath.Join(dataPath, "misc", "conversion_dict.json")
}

type SequenceSummary struct {
	Written    int
	Skipped    int
	Incomplete int
}

// SequencesUseCase turns downloaded source videos into per sequence image
// folders and maintains the short names used for them.
type SequencesUseCase struct {
	extractor port.FrameExtractor
	progress  port.ProgressFactory
	logger    *zap.Logger
}

func NewSequencesUseCase(extractor port.FrameExtractor, progress port.ProgressFactory, logger *zap.Logger) *SequencesUseCase {
	return &SequencesUseCase{extractor: extractor, progress: progress, logger: logger}
}

type pendingSequence struct {
	index  int
	frames []int
	out    string
}

// ExtractSequences writes, for every downloaded video <id> and every frame
// list <id>/extracted_sequences/*.json, the listed frames as
// <id>_<n>/%04d.png where n is the position of the list in sorted order.
// Sequence folders already holding one image per listed frame are kept.
func (uc *SequencesUseCase) ExtractSequences(ctx context.Context, dataPath string) (SequenceSummary, error) {
	var summary SequenceSummary
	downloaded := filepath.Join(dataPath, downloadedVideosDir)
	ids, err := listDirs(downloaded)
	if err != nil {
		return summary, err
	}
	imagesOut := OriginalImagesPath(dataPath)
	if err := os.MkdirAll(imagesOut, 0755); err != nil {
		return summary, fmt.Errorf("create images dir: %w", err)
	}

	bar := uc.progress(len(ids), "sequences")
	defer func() { _ = bar.Finish() }()

	var errs error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, multierr.Append(errs, err)
		}
		if err := uc.extractVideo(ctx, filepath.Join(downloaded, id), id, imagesOut, &summary); err != nil {
			uc.logger.Error("sequence extraction failed", zap.String("video_id", id), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", id, err))
		}
		_ = bar.Add(1)
	}

	uc.logger.Info("sequences extracted",
		zap.Int("written", summary.Written),
		zap.Int("skipped", summary.Skipped),
		zap.Int("incomplete", summary.Incomplete),
	)
	return summary, errs
}

func (uc *SequencesUseCase) extractVideo(ctx context.Context, videoDir, id, imagesOut string, summary *SequenceSummary) error {
	log := uc.logger.With(zap.String("video_id", id))

	seqFiles, err := listFiles(filepath.Join(videoDir, extractedSeqDir))
	if err != nil {
		return err
	}
	var pending []pendingSequence
	for i, fn := range seqFiles {
		var frames []int
		if err := readJSON(fn, &frames); err != nil {
			return err
		}
		out := filepath.Join(imagesOut, fmt.Sprintf("%s_%d", id, i))
		if countFiles(out) == len(frames) {
			log.Debug("skipping sequence", zap.Int("sequence", i))
			summary.Skipped++
			metrics.SequencesTotal.WithLabelValues("skipped").Inc()
			continue
		}
		pending = append(pending, pendingSequence{index: i, frames: frames, out: out})
	}
	if len(pending) == 0 {
		return nil
	}

	// Hidden, so listDirs never reports it as a sequence.
	workDir, err := os.MkdirTemp(imagesOut, ".decode-*")
	if err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	res, err := uc.extractor.ExtractFrames(ctx, filepath.Join(videoDir, id+".mp4"), workDir)
	if err != nil {
		return fmt.Errorf("decode video: %w", err)
	}

	for _, seq := range pending {
		if err := os.RemoveAll(seq.out); err != nil {
			return err
		}
		if err := os.MkdirAll(seq.out, 0755); err != nil {
			return fmt.Errorf("create sequence dir: %w", err)
		}
		written := 0
		for n, frame := range seq.frames {
			if frame < 0 || frame >= len(res.FramePaths) {
				break
			}
			if err := copyFile(res.FramePaths[frame], filepath.Join(seq.out, fmt.Sprintf("%04d.png", n))); err != nil {
				return fmt.Errorf("sequence %d frame %d: %w", seq.index, frame, err)
			}
			written++
		}
		if written < len(seq.frames) {
			log.Warn("video ended before sequence",
				zap.Int("sequence", seq.index),
				zap.Int("written", written),
				zap.Int("expected", len(seq.frames)),
				zap.Int("frame_count", res.FrameCount),
			)
			summary.Incomplete++
			metrics.SequencesTotal.WithLabelValues("incomplete").Inc()
			continue
		}
		summary.Written++
		metrics.SequencesTotal.WithLabelValues("written").Inc()
	}
	return nil
}

// CreateConversionList renames the sequence folders of the original images
// to 000, 001, ... in sorted order and records the mapping to
// "<video id> <sequence index>" in the conversion dict.
func (uc *SequencesUseCase) CreateConversionList(dataPath string) (map[string]string, error) {
	dictPath := ConversionDictPath(dataPath)
	if fileExists(dictPath) {
		return nil, fmt.Errorf("%w: %s", ErrConversionListExists, dictPath)
	}
	imagesDir := OriginalImagesPath(dataPath)
	folders, err := listDirs(imagesDir)
	if err != nil {
		return nil, err
	}
	if len(folders) > maxConversionEntries {
		return nil, fmt.Errorf("%d sequence folders, at most %d can be numbered", len(folders), maxConversionEntries)
	}

	dict := make(map[string]string, len(folders))
	for i, name := range folders {
		if len(name) <= youtubeIDLen+1 || name[youtubeIDLen] != '_' {
			return nil, fmt.Errorf("folder %q is not named <video id>_<sequence>", name)
		}
		dict[fmt.Sprintf("%03d", i)] = name[:youtubeIDLen] + " " + name[youtubeIDLen+1:]
	}

	// The dict is written before renaming so an interrupted run can be undone.
	data, err := json.MarshalIndent(dict, "", "    ")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dictPath), 0755); err != nil {
		return nil, fmt.Errorf("create misc dir: %w", err)
	}
	if err := os.WriteFile(dictPath, data, 0644); err != nil {
		return nil, fmt.Errorf("write conversion dict: %w", err)
	}

	for i, name := range folders {
		short := fmt.Sprintf("%03d", i)
		if err := os.Rename(filepath.Join(imagesDir, name), filepath.Join(imagesDir, short)); err != nil {
			return dict, fmt.Errorf("rename %s: %w", name, err)
		}
	}
	uc.logger.Info("conversion list created", zap.String("path", dictPath), zap.Int("entries", len(dict)))
	return dict, nil
}

// RenameFromConversionList renames every entry of dir named
// <video id>_<sequence>, with or without extension, to its short name.
// Entries missing from the conversion dict are left alone.
func (uc *SequencesUseCase) RenameFromConversionList(dataPath, dir string) (int, error) {
	dict, err := readConversionDict(dataPath)
	if err != nil {
		return 0, err
	}
	short := make(map[string]string, len(dict))
	for k, v := range dict {
		short[strings.ReplaceAll(v, " ", "_")] = k
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", dir, err)
	}
	renamed := 0
	for _, e := range entries {
		name := e.Name()
		ext := filepath.Ext(name)
		if e.IsDir() {
			ext = ""
		}
		key, ok := short[strings.TrimSuffix(name, ext)]
		if !ok {
			uc.logger.Debug("not in conversion list", zap.String("name", name))
			continue
		}
		if err := os.Rename(filepath.Join(dir, name), filepath.Join(dir, key+ext)); err != nil {
			return renamed, fmt.Errorf("rename %s: %w", name, err)
		}
		renamed++
	}
	uc.logger.Info("renamed from conversion list", zap.String("dir", dir), zap.Int("renamed", renamed))
	return renamed, nil
}

func readConversionDict(dataPath string) (map[string]string, error) {
	var dict map[string]string
	if err := readJSON(ConversionDictPath(dataPath), &dict); err != nil {
		return nil, fmt.Errorf("read conversion dict: %w", err)
	}
	return dict, nil
}

// LoadFPSTable maps every short sequence name of the conversion dict to the
// frame rate stored in downloaded_videos/<id>/<id>.json.
func LoadFPSTable(dataPath string) (map[string]float64, error) {
	dict, err := readConversionDict(dataPath)
	if err != nil {
		return nil, err
	}
	perVideo := map[string]float64{}
	table := make(map[string]float64, len(dict))
	for key, v := range dict {
		id, _, _ := strings.Cut(v, " ")
		fps, ok := perVideo[id]
		if !ok {
			var info struct {
				FPS float64 `json:"fps"`
			}
			if err := readJSON(filepath.Join(dataPath, downloadedVideosDir, id, id+".json"), &info); err != nil {
				return nil, fmt.Errorf("video info %s: %w", id, err)
			}
			if info.FPS <= 0 {
				return nil, fmt.Errorf("video info %s: fps must be positive, got %v", id, info.FPS)
			}
			fps = info.FPS
			perVideo[id] = fps
		}
		table[key] = fps
	}
	return table, nil
}
