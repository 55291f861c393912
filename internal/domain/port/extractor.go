package port

import (
	"context"
	"errors"
)

// ErrDecode marks a video the decoder rejected. Retrying the same file gives
// the same result.
var ErrDecode = errors.New("video could not be decoded")

// FrameExtractionResult lists the decoded frames of one video in frame order.
// FramePaths[i] holds frame i.
type FrameExtractionResult struct {
	FramePaths    []string
	FrameCount    int
	VideoDuration float64
}

type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath string, outputDir string) (*FrameExtractionResult, error)
}
