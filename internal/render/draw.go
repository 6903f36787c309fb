package render

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/bitmapfont/v2"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	// labelFace is used for small labels (axis, tile captions).
	labelFace font.Face = basicfont.Face7x13
	// textFace covers Latin-1, so "°" renders.
	textFace font.Face = bitmapfont.Face
)

// drawText draws s with its top-left corner at (x, y) and returns the
// advance width in pixels.
func drawText(dst draw.Image, face font.Face, x, y int, s string, c color.Color) int {
	ascent := face.Metrics().Ascent.Ceil()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+ascent),
	}
	d.DrawString(s)
	return (d.Dot.X - fixed.I(x)).Ceil()
}

func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

func textHeight(face font.Face) int {
	m := face.Metrics()
	return (m.Ascent + m.Descent).Ceil()
}

// drawTextScaled renders s at 1x into a scratch image and blows it up by an
// integer factor with nearest-neighbour sampling, keeping the bitmap look.
func drawTextScaled(dst draw.Image, face font.Face, x, y int, s string, c color.Color, scale int) int {
	if scale <= 1 {
		return drawText(dst, face, x, y, s, c)
	}
	w, h := textWidth(face, s), textHeight(face)
	if w == 0 || h == 0 {
		return 0
	}
	scratch := image.NewRGBA(image.Rect(0, 0, w, h))
	drawText(scratch, face, 0, 0, s, c)

	target := image.Rect(x, y, x+w*scale, y+h*scale)
	draw.NearestNeighbor.Scale(dst, target, scratch, scratch.Bounds(), draw.Over, nil)
	return w * scale
}

// fillRect paints r (Max exclusive) with c.
func fillRect(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func hline(dst draw.Image, x0, x1, y int, c color.Color) {
	fillRect(dst, image.Rect(x0, y, x1+1, y+1), c)
}

func vline(dst draw.Image, x, y0, y1 int, c color.Color) {
	fillRect(dst, image.Rect(x, y0, x+1, y1+1), c)
}

// dashedVLine draws dash-pixel segments every period pixels from y0 to y1.
func dashedVLine(dst draw.Image, x, y0, y1, dash, period int, c color.Color) {
	for y := y0; y < y1; y += period {
		end := y + dash
		if end > y1 {
			end = y1
		}
		vline(dst, x, y, end, c)
	}
}

// line draws a 1px Bresenham line, clipped to dst.
func line(dst draw.Image, x0, y0, x1, y1 int, c color.Color) {
	bounds := dst.Bounds()
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(bounds) {
			dst.Set(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// circle draws a filled disc or a 1px ring of radius r.
func circle(dst draw.Image, cx, cy, r int, c color.Color, fill bool) {
	bounds := dst.Bounds()
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			d := x*x + y*y
			inside := d <= r*r
			if !fill {
				inside = inside && d >= (r-1)*(r-1)
			}
			if inside && image.Pt(cx+x, cy+y).In(bounds) {
				dst.Set(cx+x, cy+y, c)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func rectXYWH(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}
