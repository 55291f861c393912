package entity

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// pairPrefixLen is the length of the sequence identifier shared by the
// original, altered and mask file of one triple.
const pairPrefixLen = 14

var ErrPairingMismatch = errors.New("video folders do not pair up")

// Stream names double as input and output sub folder names.
const (
	StreamOriginal = "original"
	StreamAltered  = "altered"
	StreamMask     = "mask"
)

// VideoTriple is one manipulated video together with its source and mask.
// Mask is empty when neither cropping nor mask output is requested.
type VideoTriple struct {
	Original string
	Altered  string
	Mask     string
}

// Name identifies the triple in logs and metrics.
func (t VideoTriple) Name() string {
	return filepath.Base(t.Altered)
}

// TripleResult summarizes the images written for one triple.
type TripleResult struct {
	FrameCount     int
	ImageCount     int
	Skipped        int
	CountMismatch  bool
	AlreadyPresent bool
	ImagePaths     []string
}

// PairTriples sorts the three listings and pairs them by position. masks may
// be nil.
func PairTriples(originals, altered, masks []string) ([]VideoTriple, error) {
	originals, altered = sortedCopy(originals), sortedCopy(altered)
	if err := samePrefixes(altered, originals, StreamOriginal); err != nil {
		return nil, err
	}
	if masks != nil {
		masks = sortedCopy(masks)
		if err := samePrefixes(altered, masks, StreamMask); err != nil {
			return nil, err
		}
	}

	triples := make([]VideoTriple, len(altered))
	for i := range altered {
		triples[i] = VideoTriple{Original: originals[i], Altered: altered[i]}
		if masks != nil {
			triples[i].Mask = masks[i]
		}
	}
	return triples, nil
}

func samePrefixes(altered, other []string, otherName string) error {
	if len(altered) != len(other) {
		return fmt.Errorf("%w: %d altered vs %d %s files", ErrPairingMismatch, len(altered), len(other), otherName)
	}
	for i := range altered {
		a, o := prefix(filepath.Base(altered[i])), prefix(filepath.Base(other[i]))
		if a != o {
			return fmt.Errorf("%w: %q vs %s %q", ErrPairingMismatch, altered[i], otherName, other[i])
		}
	}
	return nil
}

func prefix(name string) string {
	if len(name) > pairPrefixLen {
		return name[:pairPrefixLen]
	}
	return name
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// Stem is the file name up to its first dot.
func Stem(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

// ImageName is the output file name of the counter-th image of a video.
func ImageName(videoPath string, counter int) string {
	return Stem(videoPath) + "_" + strconv.Itoa(counter) + ".png"
}
