package crop

import (
	"image"
	"math"
)

// Tracker keeps the center of the last selected face so that, across the
// frames of one video, the crop follows the same person when a mask holds
// several regions. It is not safe for concurrent use.
type Tracker struct {
	lastCenter *Point
}

// Select picks one candidate box. Without a previous center the tallest box
// wins; afterwards the box whose center is nearest to the previous one.
func (t *Tracker) Select(candidates []BoundingBox) (BoundingBox, bool) {
	if len(candidates) == 0 {
		return BoundingBox{}, false
	}

	best := 0
	if t.lastCenter == nil {
		for i, c := range candidates {
			if c.Height() > candidates[best].Height() {
				best = i
			}
		}
	} else {
		closest := math.Inf(1)
		for i, c := range candidates {
			center := c.Center()
			d := math.Hypot(float64(center.X-t.lastCenter.X), float64(center.Y-t.lastCenter.Y))
			if d < closest {
				closest = d
				best = i
			}
		}
	}

	center := candidates[best].Center()
	t.lastCenter = &center
	return candidates[best], true
}

func (t *Tracker) LastCenter() (Point, bool) {
	if t.lastCenter == nil {
		return Point{}, false
	}
	return *t.lastCenter, true
}

// Reset forgets the previous center; call it between videos.
func (t *Tracker) Reset() {
	t.lastCenter = nil
}

// Components returns the bounding boxes of the 4-connected foreground regions
// of mask, ordered by the raster position of each region's first pixel.
func Components(mask image.Image) ([]BoundingBox, error) {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()

	fg := make([]bool, w*h)
	found := false
	forEachForeground(mask, func(x, y int) {
		fg[y*w+x] = true
		found = true
	})
	if !found {
		return nil, ErrEmptyMask
	}

	seen := make([]bool, w*h)
	var boxes []BoundingBox
	var stack []int
	for start := range fg {
		if !fg[start] || seen[start] {
			continue
		}
		box := BoundingBox{Y1: h, Y2: -1, X1: w, X2: -1}
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := p%w, p/w
			box.X1, box.X2 = min(box.X1, x), max(box.X2, x)
			box.Y1, box.Y2 = min(box.Y1, y), max(box.Y2, y)

			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				q := ny*w + nx
				if fg[q] && !seen[q] {
					seen[q] = true
					stack = append(stack, q)
				}
			}
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}
