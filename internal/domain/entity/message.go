package entity

import (
	"github.com/google/uuid"
	"github.com/ondyari/FaceForensics/internal/domain/sampling"
)

// TripleExtractionMessage is the inbound message from the dataset.extraction queue.
type TripleExtractionMessage struct {
	JobID       uuid.UUID `json:"job_id"`
	UserID      string    `json:"user_id"`
	OriginalKey string    `json:"original_key"`
	AlteredKey  string    `json:"altered_key"`
	MaskKey     string    `json:"mask_key"`
	AbsoluteNum int       `json:"absolute_num,omitempty"`
	EveryNth    int       `json:"every_nth,omitempty"`
	Crop        *bool     `json:"crop,omitempty"`
	Scale       float64   `json:"scale,omitempty"`
	ReturnMasks bool      `json:"return_masks,omitempty"`
	TrackFaces  bool      `json:"track_faces,omitempty"`
	Seed        *int64    `json:"seed,omitempty"`
	UserEmail   string    `json:"user_email"`
}

func (m TripleExtractionMessage) Plan() sampling.Plan {
	return sampling.Plan{AbsoluteNum: m.AbsoluteNum, EveryNth: m.EveryNth}
}

// CropEnabled defaults to true when the field is absent.
func (m TripleExtractionMessage) CropEnabled() bool {
	return m.Crop == nil || *m.Crop
}

// TripleStatusMessage is the outbound message published to the dataset.status queue.
type TripleStatusMessage struct {
	JobID        uuid.UUID `json:"job_id"`
	UserID       string    `json:"user_id"`
	Status       JobStatus `json:"status"`
	AlteredKey   string    `json:"altered_key"`
	ZipKey       string    `json:"zip_key,omitempty"`
	FrameCount   int       `json:"frame_count,omitempty"`
	ImageCount   int       `json:"image_count,omitempty"`
	SkippedCount int       `json:"skipped_count,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Attempt      int       `json:"attempt"`
	MaxAttempts  int       `json:"max_attempts"`
}
