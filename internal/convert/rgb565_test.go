package convert

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRGB565(t *testing.T) {
	assert.Equal(t, uint16(0xF800), RGB565(255, 0, 0))
	assert.Equal(t, uint16(0x07E0), RGB565(0, 255, 0))
	assert.Equal(t, uint16(0x001F), RGB565(0, 0, 255))
	assert.Equal(t, uint16(0xFFFF), RGB565(255, 255, 255))
	assert.Equal(t, uint16(0x0000), RGB565(7, 3, 7), "low bits are dropped")
}

func TestPackRGB565(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(1, 0, color.RGBA{0, 255, 0, 255})
	img.SetRGBA(0, 1, color.RGBA{0, 0, 255, 255})
	img.SetRGBA(1, 1, color.RGBA{255, 255, 255, 255})

	got := PackRGB565(img)
	assert.Equal(t, []byte{0xF8, 0x00, 0x07, 0xE0, 0x00, 0x1F, 0xFF, 0xFF}, got)
}

func TestPackRGB565SubImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(2, 2, color.RGBA{0, 0, 255, 255})
	sub := img.SubImage(image.Rect(2, 2, 4, 4)).(*image.RGBA)

	got := PackRGB565(sub)
	require.Len(t, got, 8)
	assert.Equal(t, []byte{0x00, 0x1F}, got[:2])
}

func TestRotate180(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	red := color.RGBA{255, 0, 0, 255}
	img.SetRGBA(0, 0, red)

	out := Rotate180(img)
	assert.Equal(t, red, out.RGBAAt(2, 1))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(0, 0))

	back := Rotate180(out)
	assert.Equal(t, img.Pix, back.Pix)
}

func TestOrient(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	same, err := Orient(img, 0)
	require.NoError(t, err)
	assert.Same(t, img, same)

	_, err = Orient(img, 90)
	assert.Error(t, err)
}

func TestEncodePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.SetRGBA(1, 1, color.RGBA{10, 20, 30, 255})

	data, err := EncodePNG(img)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
	r, g, b, _ := decoded.At(1, 1).RGBA()
	assert.Equal(t, []uint32{10, 20, 30}, []uint32{r >> 8, g >> 8, b >> 8})
}
