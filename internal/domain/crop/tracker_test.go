package crop

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerPicksTallestFirst(t *testing.T) {
	var tr Tracker
	short := BoundingBox{Y1: 0, Y2: 10, X1: 0, X2: 40}
	tall := BoundingBox{Y1: 50, Y2: 90, X1: 50, X2: 60}

	got, ok := tr.Select([]BoundingBox{short, tall})
	require.True(t, ok)
	assert.Equal(t, tall, got)

	center, ok := tr.LastCenter()
	require.True(t, ok)
	assert.Equal(t, Point{X: 55, Y: 70}, center)
}

func TestTrackerFollowsNearestCenter(t *testing.T) {
	var tr Tracker
	left := BoundingBox{Y1: 10, Y2: 60, X1: 0, X2: 30}
	right := BoundingBox{Y1: 10, Y2: 80, X1: 200, X2: 230}

	first, _ := tr.Select([]BoundingBox{left, right})
	assert.Equal(t, right, first)

	// The left face is taller now but the right one stays closer.
	movedLeft := BoundingBox{Y1: 0, Y2: 120, X1: 0, X2: 30}
	movedRight := BoundingBox{Y1: 12, Y2: 82, X1: 205, X2: 235}
	next, _ := tr.Select([]BoundingBox{movedLeft, movedRight})
	assert.Equal(t, movedRight, next)
}

func TestTrackerReset(t *testing.T) {
	var tr Tracker
	_, ok := tr.Select(nil)
	assert.False(t, ok)

	tr.Select([]BoundingBox{{Y1: 1, Y2: 3, X1: 1, X2: 3}})
	tr.Reset()
	_, ok = tr.LastCenter()
	assert.False(t, ok)
}

func TestComponents(t *testing.T) {
	mask := grayMask(image.Rect(0, 0, 40, 30),
		image.Rect(2, 3, 6, 8),
		image.Rect(20, 1, 25, 4),
		image.Rect(20, 4, 22, 10),
	)

	boxes, err := Components(mask)
	require.NoError(t, err)
	assert.Equal(t, []BoundingBox{
		{Y1: 1, Y2: 9, X1: 20, X2: 24},
		{Y1: 3, Y2: 7, X1: 2, X2: 5},
	}, boxes)
}

func TestComponentsEmptyMask(t *testing.T) {
	_, err := Components(grayMask(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, ErrEmptyMask)
}
