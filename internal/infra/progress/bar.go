package progress

import (
	"io"

	"github.com/ondyari/FaceForensics/internal/domain/port"
	"github.com/schollz/progressbar/v3"
)

// NewBarFactory renders progress bars on w, one per batch.
func NewBarFactory(w io.Writer) port.ProgressFactory {
	return func(total int, description string) port.Progress {
		return progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
		)
	}
}

type nop struct{}

func (nop) Add(int) error { return nil }
func (nop) Finish() error { return nil }

// Nop discards progress, for the queue worker.
func Nop(int, string) port.Progress { return nop{} }
