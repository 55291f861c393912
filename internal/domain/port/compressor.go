package port

import "context"

// CompressionOptions configures an H.264 encode. CRF 0 is lossless. FPS 0
// keeps the source rate.
type CompressionOptions struct {
	CRF    int
	FPS    float64
	Preset string
}

type VideoCompressor interface {
	Compress(ctx context.Context, inputPath string, outputPath string, opts CompressionOptions) error
}

// ImageSequenceEncoder turns a folder of %04d.png frames into one video.
type ImageSequenceEncoder interface {
	EncodeImages(ctx context.Context, imagesDir string, outputPath string, opts CompressionOptions) error
}
