package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/ondyari/FaceForensics/internal/domain/entity"
	"github.com/ondyari/FaceForensics/internal/domain/port"
	"github.com/ondyari/FaceForensics/internal/infra/imageio"
	"github.com/ondyari/FaceForensics/internal/infra/progress"
)

// fakeExtractor "decodes" a video by writing the frames registered for its
// base name. Names in corrupt fail the way an undecodable file does.
type fakeExtractor struct {
	codec   *imageio.Codec
	videos  map[string][]image.Image
	corrupt map[string]bool
	calls   int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{codec: imageio.NewCodec(), videos: map[string][]image.Image{}, corrupt: map[string]bool{}}
}

func (f *fakeExtractor) add(name string, frames ...image.Image) {
	f.videos[name] = frames
}

func (f *fakeExtractor) ExtractFrames(_ context.Context, videoPath, outputDir string) (*port.FrameExtractionResult, error) {
	f.calls++
	if f.corrupt[filepath.Base(videoPath)] {
		return nil, fmt.Errorf("%w: moov atom not found", port.ErrDecode)
	}
	frames, ok := f.videos[filepath.Base(videoPath)]
	if !ok {
		return nil, fmt.Errorf("unknown video %s", videoPath)
	}
	res := &port.FrameExtractionResult{FrameCount: len(frames)}
	for i, img := range frames {
		p := filepath.Join(outputDir, fmt.Sprintf("%04d.png", i))
		if err := f.codec.Save(img, p); err != nil {
			return nil, err
		}
		res.FramePaths = append(res.FramePaths, p)
	}
	return res, nil
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// maskWithBlock is white except for a black block.
func maskWithBlock(w, h int, block image.Rectangle) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(255)
			if (image.Point{X: x, Y: y}).In(block) {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func repeat(img image.Image, n int) []image.Image {
	out := make([]image.Image, n)
	for i := range out {
		out[i] = img
	}
	return out
}

func nopProgress() port.ProgressFactory { return progress.Nop }

type memRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]entity.Job
}

func newMemRepo() *memRepo { return &memRepo{jobs: map[uuid.UUID]entity.Job{}} }

func (r *memRepo) Create(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memRepo) Update(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return errors.New("job not found")
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	return &job, nil
}

type memStorage struct {
	downloadErr error
	downloads   []string
	uploads     map[string][]byte
}

func newMemStorage() *memStorage { return &memStorage{uploads: map[string][]byte{}} }

func (s *memStorage) DownloadVideo(_ context.Context, key, dest string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	s.downloads = append(s.downloads, key)
	return os.WriteFile(dest, []byte(key), 0o644)
}

func (s *memStorage) UploadArchive(_ context.Context, key string, r io.Reader, _ int64) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.uploads[key] = buf.Bytes()
	return nil
}

type capturePublisher struct {
	statuses [][]byte
	dlq      []string
}

func (p *capturePublisher) PublishStatus(_ context.Context, msg []byte) error {
	p.statuses = append(p.statuses, msg)
	return nil
}

func (p *capturePublisher) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	p.dlq = append(p.dlq, reason)
	return nil
}

type captureNotifier struct {
	sent []string
}

func (n *captureNotifier) NotifyFailure(_ context.Context, userEmail, _, _, _ string) error {
	n.sent = append(n.sent, userEmail)
	return nil
}

type fakeCompressor struct {
	fail  map[string]bool
	calls []string
}

func (c *fakeCompressor) Compress(_ context.Context, in, out string, opts port.CompressionOptions) error {
	c.calls = append(c.calls, fmt.Sprintf("%s@%d", filepath.Base(in), opts.CRF))
	if err := os.WriteFile(out, []byte("partial"), 0o644); err != nil {
		return err
	}
	if c.fail[filepath.Base(in)] {
		return errors.New("encoder crashed")
	}
	return nil
}

type fakeEncoder struct {
	fail  map[string]bool
	calls []string
}

func (e *fakeEncoder) EncodeImages(_ context.Context, imagesDir, out string, opts port.CompressionOptions) error {
	e.calls = append(e.calls, fmt.Sprintf("%s@%d/%v", filepath.Base(imagesDir), opts.CRF, opts.FPS))
	if err := os.WriteFile(out, []byte("partial"), 0o644); err != nil {
		return err
	}
	if e.fail[filepath.Base(imagesDir)] {
		return errors.New("encoder crashed")
	}
	return nil
}
