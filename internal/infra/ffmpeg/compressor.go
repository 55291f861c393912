package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/ondyari/FaceForensics/internal/domain/port"
	ffmpeggo "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
)

const defaultPreset = "slow"

// Compressor re-encodes videos with H.264 at a given CRF.
type Compressor struct {
	binary string
	logger *zap.Logger
}

func NewCompressor(logger *zap.Logger) *Compressor {
	return &Compressor{binary: "ffmpeg", logger: logger}
}

func (c *Compressor) Compress(ctx context.Context, inputPath string, outputPath string, opts port.CompressionOptions) error {
	cmd := exec.CommandContext(ctx, c.binary, compressArgs(inputPath, outputPath, opts)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg compress %s: %w, output: %s", inputPath, err, string(output))
	}
	c.logger.Debug("video compressed",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.Int("crf", opts.CRF),
	)
	return nil
}

// EncodeImages writes the numbered frames of imagesDir as one H.264 video.
func (c *Compressor) EncodeImages(ctx context.Context, imagesDir string, outputPath string, opts port.CompressionOptions) error {
	cmd := exec.CommandContext(ctx, c.binary, encodeImagesArgs(imagesDir, outputPath, opts)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg encode %s: %w, output: %s", imagesDir, err, string(output))
	}
	c.logger.Debug("images encoded",
		zap.String("images", imagesDir),
		zap.String("output", outputPath),
		zap.Int("crf", opts.CRF),
		zap.Float64("fps", opts.FPS),
	)
	return nil
}

func videoCodec(crf int) string {
	if crf == 0 {
		return "libx264rgb"
	}
	return "libx264"
}

func formatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

// encodeImagesArgs reads the frames at the given rate and pins the output
// to the same rate so no frame is dropped or duplicated.
func encodeImagesArgs(imagesDir, outputPath string, opts port.CompressionOptions) []string {
	fps := opts.FPS
	if fps <= 0 {
		fps = 30
	}
	preset := opts.Preset
	if preset == "" {
		preset = defaultPreset
	}
	return ffmpeggo.Input(filepath.Join(imagesDir, "%04d.png"), ffmpeggo.KwArgs{
		"loglevel":     "error",
		"hide_banner":  "",
		"r":            formatFPS(fps),
		"start_number": "0",
	}).
		Filter("fps", ffmpeggo.Args{formatFPS(fps)}).
		Output(outputPath, ffmpeggo.KwArgs{
			"c:v":    videoCodec(opts.CRF),
			"crf":    strconv.Itoa(opts.CRF),
			"preset": preset,
		}).
		OverWriteOutput().
		GetArgs()
}

// compressArgs uses libx264rgb for lossless output: libx264 would convert
// to YUV and lose the exact RGB values.
func compressArgs(inputPath, outputPath string, opts port.CompressionOptions) []string {
	codec := videoCodec(opts.CRF)
	preset := opts.Preset
	if preset == "" {
		preset = defaultPreset
	}

	inKw := ffmpeggo.KwArgs{"loglevel": "error", "hide_banner": ""}
	outKw := ffmpeggo.KwArgs{
		"c:v":    codec,
		"crf":    opts.CRF,
		"preset": preset,
		"c:a":    "copy",
	}
	if opts.FPS > 0 {
		inKw["r"] = formatFPS(opts.FPS)
		outKw["r"] = formatFPS(opts.FPS)
	}

	return ffmpeggo.Input(inputPath, inKw).
		Output(outputPath, outKw).
		OverWriteOutput().
		GetArgs()
}
