package port

// Progress reports how many items of a batch are done.
type Progress interface {
	Add(n int) error
	Finish() error
}

// ProgressFactory starts a progress report over total items.
type ProgressFactory func(total int, description string) Progress
