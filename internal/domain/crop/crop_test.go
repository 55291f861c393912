package crop

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grayMask(rect image.Rectangle, blocks ...image.Rectangle) *image.Gray {
	m := image.NewGray(rect)
	for i := range m.Pix {
		m.Pix[i] = 255
	}
	for _, blk := range blocks {
		for y := blk.Min.Y; y < blk.Max.Y; y++ {
			for x := blk.Min.X; x < blk.Max.X; x++ {
				m.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return m
}

func colorFrame(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	return img
}

func TestComputeBoundingBoxGrayBlock(t *testing.T) {
	mask := grayMask(image.Rect(0, 0, 64, 48), image.Rect(10, 5, 21, 31))

	box, err := ComputeBoundingBox(mask)
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{Y1: 5, Y2: 30, X1: 10, X2: 20}, box)
}

func TestComputeBoundingBoxColorMask(t *testing.T) {
	mask := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			mask.Set(x, y, color.White)
		}
	}
	mask.Set(3, 4, color.RGBA{R: 200, G: 10, B: 10, A: 255})
	mask.Set(17, 29, color.RGBA{R: 0, G: 0, B: 0, A: 255})

	box, err := ComputeBoundingBox(mask)
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{Y1: 4, Y2: 29, X1: 3, X2: 17}, box)
}

func TestComputeBoundingBoxIsRelativeToBounds(t *testing.T) {
	mask := grayMask(image.Rect(100, 200, 140, 230), image.Rect(110, 205, 112, 207))

	box, err := ComputeBoundingBox(mask)
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{Y1: 5, Y2: 6, X1: 10, X2: 11}, box)
}

func TestComputeBoundingBoxEmptyMask(t *testing.T) {
	_, err := ComputeBoundingBox(grayMask(image.Rect(0, 0, 16, 16)))
	assert.ErrorIs(t, err, ErrEmptyMask)
}

func TestComputeCropRegionReferenceExample(t *testing.T) {
	bbox := BoundingBox{Y1: 100, Y2: 300, X1: 150, X2: 350}

	region := ComputeCropRegion(bbox, 640, 480, DefaultScale)
	assert.Equal(t, CropRegion{X: 120, Y: 70, Size: 260}, region)
}

func TestComputeCropRegionBottomRightCorner(t *testing.T) {
	const w, h = 640, 480

	small := BoundingBox{Y1: h - 10, Y2: h - 1, X1: w - 10, X2: w - 1}
	region := ComputeCropRegion(small, w, h, DefaultScale)
	assert.Less(t, float64(region.Size), 9*DefaultScale)
	assert.LessOrEqual(t, region.X+region.Size, w)
	assert.LessOrEqual(t, region.Y+region.Size, h)

	large := BoundingBox{Y1: h - 100, Y2: h - 1, X1: w - 100, X2: w - 1}
	region = ComputeCropRegion(large, w, h, DefaultScale)
	assert.Equal(t, CropRegion{X: w - 115, Y: h - 115, Size: 115}, region)
}

func TestComputeCropRegionClampsToTighterEdge(t *testing.T) {
	bbox := BoundingBox{Y1: 10, Y2: 50, X1: 170, X2: 199}
	region := ComputeCropRegion(bbox, 200, 60, 2)

	assert.Equal(t, CropRegion{X: 144, Y: 0, Size: 56}, region)
}

func TestComputeCropRegionSinglePixelIsDegenerate(t *testing.T) {
	region := ComputeCropRegion(BoundingBox{Y1: 7, Y2: 7, X1: 9, X2: 9}, 32, 32, DefaultScale)

	assert.True(t, region.Empty())
	_, err := ApplyCrop(colorFrame(32, 32), region)
	assert.ErrorIs(t, err, ErrDegenerateRegion)
}

func TestComputeCropRegionStaysInsideFrame(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		w, h := 1+rng.Intn(400), 1+rng.Intn(400)
		x1, x2 := ordered(rng.Intn(w), rng.Intn(w))
		y1, y2 := ordered(rng.Intn(h), rng.Intn(h))
		scale := 0.1 + rng.Float64()*3
		bbox := BoundingBox{Y1: y1, Y2: y2, X1: x1, X2: x2}

		r := ComputeCropRegion(bbox, w, h, scale)

		require.GreaterOrEqual(t, r.X, 0, "bbox=%+v w=%d h=%d scale=%f", bbox, w, h, scale)
		require.GreaterOrEqual(t, r.Y, 0)
		require.GreaterOrEqual(t, r.Size, 0)
		require.LessOrEqual(t, r.X+r.Size, w)
		require.LessOrEqual(t, r.Y+r.Size, h)
		require.LessOrEqual(t, float64(r.Size), math.Floor(float64(max(x2-x1, y2-y1))*scale))

		require.Equal(t, r, ComputeCropRegion(bbox, w, h, scale))
	}
}

func ordered(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

func TestApplyCropExtractsSubArray(t *testing.T) {
	frame := colorFrame(50, 40)
	region := CropRegion{X: 12, Y: 5, Size: 20}

	out, err := ApplyCrop(frame, region)
	require.NoError(t, err)
	assert.Equal(t, 20, out.Bounds().Dx())
	assert.Equal(t, 20, out.Bounds().Dy())

	r, g, _, _ := out.At(out.Bounds().Min.X, out.Bounds().Min.Y).RGBA()
	assert.Equal(t, uint32(12), r>>8)
	assert.Equal(t, uint32(5), g>>8)
	r, g, _, _ = out.At(out.Bounds().Min.X+19, out.Bounds().Min.Y+19).RGBA()
	assert.Equal(t, uint32(31), r>>8)
	assert.Equal(t, uint32(24), g>>8)
}

func TestApplyCropKeepsGrayMasks(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 8, 6))
	for i := range mask.Pix {
		mask.Pix[i] = uint8(i)
	}

	out, err := ApplyCrop(mask, CropRegion{X: 2, Y: 1, Size: 4})
	require.NoError(t, err)

	gray, ok := out.(*image.Gray)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, image.Rect(0, 0, 4, 4), gray.Bounds())
	assert.Equal(t, mask.GrayAt(2, 1), gray.GrayAt(0, 0))
	assert.Equal(t, mask.GrayAt(5, 4), gray.GrayAt(3, 3))
}

func TestApplyCropGraySubImageOffset(t *testing.T) {
	full := image.NewGray(image.Rect(0, 0, 10, 10))
	full.SetGray(6, 7, color.Gray{Y: 9})
	sub := full.SubImage(image.Rect(4, 4, 10, 10)).(*image.Gray)

	out, err := ApplyCrop(sub, CropRegion{X: 2, Y: 3, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, color.Gray{Y: 9}, out.(*image.Gray).GrayAt(0, 0))
}

func TestToGray(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.White)
	img.Set(1, 0, color.Black)

	g := ToGray(img)
	assert.Equal(t, uint8(255), g.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), g.GrayAt(1, 0).Y)

	mask := image.NewGray(image.Rect(0, 0, 1, 1))
	assert.Same(t, mask, ToGray(mask))
}

func TestApplyCropRejectsRegionOutsideFrame(t *testing.T) {
	_, err := ApplyCrop(colorFrame(10, 10), CropRegion{X: 5, Y: 0, Size: 6})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrDegenerateRegion)
}
