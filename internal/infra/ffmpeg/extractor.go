package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ondyari/FaceForensics/internal/domain/port"
	ffmpeggo "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
)

// Extractor decodes every frame of a video into numbered images starting at
// 0000, so that frame i is written to i's file.
type Extractor struct {
	binary string
	probe  string
	fps    int
	format string
	logger *zap.Logger
}

// NewExtractor returns an extractor writing format images. fps 0 keeps every
// decoded frame.
func NewExtractor(fps int, format string, logger *zap.Logger) *Extractor {
	return &Extractor{binary: "ffmpeg", probe: "ffprobe", fps: fps, format: format, logger: logger}
}

func (e *Extractor) ExtractFrames(ctx context.Context, videoPath string, outputDir string) (*port.FrameExtractionResult, error) {
	duration, err := e.getVideoDuration(ctx, videoPath)
	if err != nil {
		e.logger.Warn("could not get video duration", zap.String("video", videoPath), zap.Error(err))
	}

	cmd := exec.CommandContext(ctx, e.binary, e.extractArgs(videoPath, outputDir)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg error: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: ffmpeg error: %w, output: %s", port.ErrDecode, err, string(output))
	}

	frames, err := filepath.Glob(filepath.Join(outputDir, "*."+e.format))
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	sortFrames(frames)

	e.logger.Debug("frames extracted",
		zap.String("video", filepath.Base(videoPath)),
		zap.Int("count", len(frames)),
		zap.Float64("video_duration", duration),
	)

	return &port.FrameExtractionResult{
		FramePaths:    frames,
		FrameCount:    len(frames),
		VideoDuration: duration,
	}, nil
}

func (e *Extractor) extractArgs(videoPath, outputDir string) []string {
	stream := ffmpeggo.Input(videoPath, ffmpeggo.KwArgs{"loglevel": "error", "hide_banner": ""})
	if e.fps > 0 {
		stream = stream.Filter("fps", ffmpeggo.Args{strconv.Itoa(e.fps)})
	}
	pattern := filepath.Join(outputDir, "%04d."+e.format)
	return stream.Output(pattern, ffmpeggo.KwArgs{"start_number": 0}).OverWriteOutput().GetArgs()
}

func (e *Extractor) getVideoDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.probe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

// sortFrames orders frame files by their number; %04d stops padding past
// 9999 so a lexical sort is not enough.
func sortFrames(paths []string) {
	num := func(p string) int {
		base := filepath.Base(p)
		n, err := strconv.Atoi(strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return -1
		}
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool {
		ni, nj := num(paths[i]), num(paths[j])
		if ni != nj {
			return ni < nj
		}
		return paths[i] < paths[j]
	})
}
