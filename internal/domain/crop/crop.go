// Package crop derives square face crops from manipulation masks and applies
// them to aligned original, altered and mask frames.
//
// A mask pixel equal to 255 is background; any other value marks the
// manipulated region. All functions are pure and safe for concurrent use.
package crop

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// DefaultScale widens the mask box so the whole face and a little background
// end up in the crop.
const DefaultScale = 1.3

const background = 255

var (
	ErrEmptyMask         = errors.New("mask has no foreground pixel")
	ErrDegenerateRegion  = errors.New("crop region has no area")
	ErrDimensionMismatch = errors.New("frames of one instant differ in size")
)

// BoundingBox is the minimal rectangle enclosing the foreground of a mask,
// inclusive on both ends and relative to the frame's top-left corner.
type BoundingBox struct {
	Y1, Y2, X1, X2 int
}

func (b BoundingBox) Width() int  { return b.X2 - b.X1 }
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// Center uses floor division, like the crop computation.
func (b BoundingBox) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

type Point struct {
	X, Y int
}

// CropRegion is a square window with its top-left corner at (X, Y).
type CropRegion struct {
	X, Y, Size int
}

func (r CropRegion) Empty() bool { return r.Size <= 0 }

// Rect returns the region as a zero-based image rectangle.
func (r CropRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Size, r.Y+r.Size)
}

func (r CropRegion) String() string {
	return fmt.Sprintf("(x=%d, y=%d, size=%d)", r.X, r.Y, r.Size)
}

// ComputeBoundingBox scans the mask for pixels that differ from 255 after a
// luma-weighted grayscale reduction and returns their enclosing box.
func ComputeBoundingBox(mask image.Image) (BoundingBox, error) {
	b := mask.Bounds()
	box := BoundingBox{Y1: math.MaxInt, X1: math.MaxInt, Y2: -1, X2: -1}

	forEachForeground(mask, func(x, y int) {
		box.Y1 = min(box.Y1, y)
		box.Y2 = max(box.Y2, y)
		box.X1 = min(box.X1, x)
		box.X2 = max(box.X2, x)
	})

	if box.Y2 < 0 {
		return BoundingBox{}, fmt.Errorf("%w (%dx%d)", ErrEmptyMask, b.Dx(), b.Dy())
	}
	return box, nil
}

// ComputeCropRegion pads bbox by scale into a square centered on the box and
// clamps it to the frame. The top-left corner is clamped first, then the size
// against the right edge and finally against the bottom edge, the sequence
// the published crops were generated with.
//
// A zero or negative size is returned unchanged; callers check Empty.
func ComputeCropRegion(bbox BoundingBox, frameWidth, frameHeight int, scale float64) CropRegion {
	size := int(math.Floor(float64(max(bbox.Width(), bbox.Height())) * scale))
	c := bbox.Center()

	x := max(c.X-size/2, 0)
	y := max(c.Y-size/2, 0)

	size = min(frameWidth-x, size)
	size = min(frameHeight-y, size)

	return CropRegion{X: x, Y: y, Size: size}
}

// ApplyCrop copies frame[y:y+size, x:x+size] without resampling. A gray
// frame stays *image.Gray; any other frame comes back as *image.NRGBA.
func ApplyCrop(frame image.Image, region CropRegion) (image.Image, error) {
	if region.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrDegenerateRegion, region)
	}
	b := frame.Bounds()
	if region.X < 0 || region.Y < 0 || region.X+region.Size > b.Dx() || region.Y+region.Size > b.Dy() {
		return nil, fmt.Errorf("region %s outside %dx%d frame", region, b.Dx(), b.Dy())
	}
	rect := region.Rect().Add(b.Min)
	if g, ok := frame.(*image.Gray); ok {
		return cropGray(g, rect), nil
	}
	return imaging.Crop(frame, rect), nil
}

func cropGray(src *image.Gray, rect image.Rectangle) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		row := src.Pix[src.PixOffset(rect.Min.X, rect.Min.Y+y):src.PixOffset(rect.Max.X, rect.Min.Y+y)]
		copy(dst.Pix[dst.PixOffset(0, y):], row)
	}
	return dst
}

// ToGray reduces img to one channel with the same luma weights the mask
// scan uses. A *image.Gray is returned as is.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetGray(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(img.At(x, y)).(color.Gray))
		}
	}
	return dst
}

// forEachForeground calls fn with zero-based coordinates of every mask pixel
// whose gray value is not 255, in raster order.
func forEachForeground(mask image.Image, fn func(x, y int)) {
	b := mask.Bounds()
	if g, ok := mask.(*image.Gray); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := g.Pix[g.PixOffset(b.Min.X, y):g.PixOffset(b.Max.X, y)]
			for i, v := range row {
				if v != background {
					fn(i, y-b.Min.Y)
				}
			}
		}
		return
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(mask.At(x, y)).(color.Gray).Y != background {
				fn(x-b.Min.X, y-b.Min.Y)
			}
		}
	}
}
