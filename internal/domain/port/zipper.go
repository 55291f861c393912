package port

import "context"

// Zipper archives files under baseDir, keeping their paths relative to it.
type Zipper interface {
	CreateZip(ctx context.Context, baseDir string, filePaths []string, outputPath string) error
}
