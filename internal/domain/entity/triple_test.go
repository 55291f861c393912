package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairTriples(t *testing.T) {
	originals := []string{"o/001_870_9f8e7d6c.mp4", "o/000_003_0a1b2c3d.mp4"}
	altered := []string{"a/000_003_0a1b2c3d_f2f.avi", "a/001_870_9f8e7d6c_f2f.avi"}
	masks := []string{"m/001_870_9f8e7d6c_mask.avi", "m/000_003_0a1b2c3d_mask.avi"}

	triples, err := PairTriples(originals, altered, masks)
	require.NoError(t, err)
	assert.Equal(t, []VideoTriple{
		{Original: "o/000_003_0a1b2c3d.mp4", Altered: "a/000_003_0a1b2c3d_f2f.avi", Mask: "m/000_003_0a1b2c3d_mask.avi"},
		{Original: "o/001_870_9f8e7d6c.mp4", Altered: "a/001_870_9f8e7d6c_f2f.avi", Mask: "m/001_870_9f8e7d6c_mask.avi"},
	}, triples)
}

func TestPairTriplesPrefixMismatch(t *testing.T) {
	_, err := PairTriples(
		[]string{"000_003_seq1.mp4"},
		[]string{"000_004_seq1_f2f.mp4"},
		nil,
	)
	assert.ErrorIs(t, err, ErrPairingMismatch)
}

func TestPairTriplesCountMismatch(t *testing.T) {
	_, err := PairTriples(
		[]string{"a.mp4", "b.mp4"},
		[]string{"a.mp4", "b.mp4"},
		[]string{"a.mp4"},
	)
	assert.ErrorIs(t, err, ErrPairingMismatch)
}

func TestImageName(t *testing.T) {
	assert.Equal(t, "000_003_7.png", ImageName("/data/altered/000_003.tar.avi", 7))
	assert.Equal(t, "clip_0.png", ImageName("clip", 0))
}
