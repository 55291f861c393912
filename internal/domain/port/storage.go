package port

import (
	"context"
	"io"
)

// DatasetStorage fetches source videos and stores the resulting archives.
type DatasetStorage interface {
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
	UploadArchive(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}
