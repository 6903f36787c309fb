// Package convert turns rendered frames into the byte layout the LCD expects.
package convert

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// BytesPerPixel of an RGB565 frame.
const BytesPerPixel = 2

// PackRGB565 converts img into a big-endian RGB565 buffer (high byte first),
// row-major from the top-left pixel, as the ST7789 consumes after RAMWR.
//
//   - R: top 5 bits, G: top 6 bits, B: top 5 bits
//   - alpha는 무시한다 (렌더러는 항상 불투명 이미지를 만든다).
func PackRGB565(img *image.RGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*BytesPerPixel)

	// stride를 직접 사용해 At() 호출을 피한다.
	o := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			v := RGB565(row[i], row[i+1], row[i+2])
			out[o] = byte(v >> 8)
			out[o+1] = byte(v)
			o += BytesPerPixel
		}
	}
	return out
}

// RGB565 packs an 8-bit-per-channel colour.
func RGB565(r, g, b uint8) uint16 {
	return uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3
}

// Rotate180 returns a copy of img turned upside down. The panel is mounted
// either way round, so rotation happens in software.
func Rotate180(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		dst := out.Pix[(h-1-y)*out.Stride:]
		for x := 0; x < w; x++ {
			copy(dst[(w-1-x)*4:(w-1-x)*4+4], src[x*4:x*4+4])
		}
	}
	return out
}

// Orient applies a rotation in degrees. Only 0 and 180 are supported.
func Orient(img *image.RGBA, rotation int) (*image.RGBA, error) {
	switch rotation {
	case 0:
		return img, nil
	case 180:
		return Rotate180(img), nil
	default:
		return nil, fmt.Errorf("convert: unsupported rotation %d", rotation)
	}
}

// EncodePNG encodes a frame for file output and the preview endpoint.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("convert: png encode: %w", err)
	}
	return buf.Bytes(), nil
}
