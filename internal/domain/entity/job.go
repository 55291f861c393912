package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Job tracks the extraction of cropped images from one video triple.
type Job struct {
	ID           uuid.UUID
	UserID       string
	OriginalKey  string
	AlteredKey   string
	MaskKey      string
	ZipKey       string
	Status       JobStatus
	FrameCount   int
	ImageCount   int
	SkippedCount int
	Attempt      int
	MaxAttempts  int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

func NewJob(userID, originalKey, alteredKey, maskKey string, maxAttempts int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		UserID:      userID,
		OriginalKey: originalKey,
		AlteredKey:  alteredKey,
		MaskKey:     maskKey,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) MarkCompleted(zipKey string, result TripleResult) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.ZipKey = zipKey
	j.FrameCount = result.FrameCount
	j.ImageCount = result.ImageCount
	j.SkippedCount = result.Skipped
	j.ErrorMessage = ""
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
