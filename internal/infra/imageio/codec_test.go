package imageio

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTripKeepsPixels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	img.SetNRGBA(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	path := filepath.Join(t.TempDir(), "nested", "frame.png")
	c := NewCodec()
	require.NoError(t, c.Save(img, path))

	got, err := c.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Bounds().Dx())
	assert.Equal(t, 3, got.Bounds().Dy())

	r, g, b, _ := got.At(2, 1).RGBA()
	assert.Equal(t, []uint32{10, 20, 30}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestCodecLoadMissing(t *testing.T) {
	_, err := NewCodec().Load(filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
}
