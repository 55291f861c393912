package sampling

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

var (
	ErrSamplingMode = errors.New("specify exactly one of absolute_num or every_nth")
	ErrNoFrames     = errors.New("video has no frames")
)

// Plan selects which frame indices of a video become images: either
// AbsoluteNum random frames or every EveryNth frame.
type Plan struct {
	AbsoluteNum int
	EveryNth    int
}

func (p Plan) Validate() error {
	if (p.AbsoluteNum > 0) == (p.EveryNth > 0) {
		return fmt.Errorf("%w (absolute_num=%d, every_nth=%d)", ErrSamplingMode, p.AbsoluteNum, p.EveryNth)
	}
	return nil
}

// Indices returns the sorted frame indices to extract from a video with
// frameCount frames. rng is only used for AbsoluteNum plans; nil draws
// from an unseeded generator.
func (p Plan) Indices(frameCount int, rng *rand.Rand) ([]int, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if frameCount <= 0 {
		return nil, fmt.Errorf("%w (count=%d)", ErrNoFrames, frameCount)
	}

	if p.EveryNth > 0 {
		indices := make([]int, 0, (frameCount+p.EveryNth-1)/p.EveryNth)
		for i := 0; i < frameCount; i += p.EveryNth {
			indices = append(indices, i)
		}
		return indices, nil
	}

	if rng == nil {
		rng = NewRand(nil)
	}
	n := min(p.AbsoluteNum, frameCount)
	indices := rng.Perm(frameCount)[:n]
	sort.Ints(indices)
	return indices, nil
}

// NewRand returns a generator seeded with seed, or from the global source
// when seed is nil.
func NewRand(seed *int64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewSource(rand.Int63()))
	}
	return rand.New(rand.NewSource(*seed))
}
