package crop

import (
	"fmt"
	"image"
)

// Triple holds the three aligned frames of one frame instant. Mask may be
// nil when neither cropping nor mask output is requested.
type Triple struct {
	Original image.Image
	Altered  image.Image
	Mask     image.Image
}

// CheckDimensions reports ErrDimensionMismatch when the non-nil frames of t
// do not share one width and height.
func (t Triple) CheckDimensions() (width, height int, err error) {
	b := t.Altered.Bounds()
	width, height = b.Dx(), b.Dy()
	others := []struct {
		name  string
		frame image.Image
	}{{"original", t.Original}, {"mask", t.Mask}}
	for _, o := range others {
		name, f := o.name, o.frame
		if f == nil {
			continue
		}
		fb := f.Bounds()
		if fb.Dx() != width || fb.Dy() != height {
			return 0, 0, fmt.Errorf("%w: altered %dx%d, %s %dx%d",
				ErrDimensionMismatch, width, height, name, fb.Dx(), fb.Dy())
		}
	}
	return width, height, nil
}

// CropTriple computes the crop region from t.Mask and applies it to the
// original and altered frames, and to the mask when withMask is set. The
// returned triple has a nil Mask otherwise.
func CropTriple(t Triple, scale float64, withMask bool) (Triple, CropRegion, error) {
	if t.Mask == nil {
		return Triple{}, CropRegion{}, fmt.Errorf("crop triple: %w", ErrEmptyMask)
	}
	width, height, err := t.CheckDimensions()
	if err != nil {
		return Triple{}, CropRegion{}, err
	}
	bbox, err := ComputeBoundingBox(t.Mask)
	if err != nil {
		return Triple{}, CropRegion{}, err
	}
	region := ComputeCropRegion(bbox, width, height, scale)
	out, err := CropTripleAt(t, region, withMask)
	return out, region, err
}

// CropTripleAt applies an already computed region to every frame of t.
func CropTripleAt(t Triple, region CropRegion, withMask bool) (Triple, error) {
	var out Triple
	var err error
	if out.Original, err = ApplyCrop(t.Original, region); err != nil {
		return Triple{}, fmt.Errorf("crop original: %w", err)
	}
	if out.Altered, err = ApplyCrop(t.Altered, region); err != nil {
		return Triple{}, fmt.Errorf("crop altered: %w", err)
	}
	if withMask && t.Mask != nil {
		if out.Mask, err = ApplyCrop(t.Mask, region); err != nil {
			return Triple{}, fmt.Errorf("crop mask: %w", err)
		}
	}
	return out, nil
}
