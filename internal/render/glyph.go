package render

import (
	"image/color"

	"golang.org/x/image/draw"

	"agiledash/internal/weather"
)

var (
	cloudColor = color.RGBA{190, 198, 210, 255}
	fogColor   = color.RGBA{150, 158, 170, 255}
	rainColor  = Blue
	sunColor   = Yellow
)

// drawWeatherGlyph draws a size×size icon for the WMO code with its top-left
// corner at (x, y).
func drawWeatherGlyph(dst draw.Image, x, y, size, code int) {
	cx, cy := x+size/2, y+size/2
	r := size / 4

	switch weather.Classify(code) {
	case weather.Clear:
		drawSun(dst, cx, cy, r)
	case weather.PartlyCloudy:
		drawSun(dst, cx-r/2, cy-r/2, r*3/4)
		drawCloud(dst, cx+r/3, cy+r/2, r)
	case weather.Cloudy:
		drawCloud(dst, cx, cy, r+1)
	case weather.Fog:
		for i := -1; i <= 1; i++ {
			hline(dst, x+1, x+size-2, cy+i*r, fogColor)
		}
	case weather.Drizzle:
		drawCloud(dst, cx, cy-r/2, r)
		dst.Set(cx-r/2, cy+r+1, rainColor)
		dst.Set(cx+r/2, cy+r+2, rainColor)
	case weather.Rain:
		drawCloud(dst, cx, cy-r/2, r)
		for i := -1; i <= 1; i++ {
			sx := cx + i*r
			line(dst, sx, cy+r, sx-2, cy+r+3, rainColor)
		}
	case weather.Snow:
		drawCloud(dst, cx, cy-r/2, r)
		for i := -1; i <= 1; i++ {
			circle(dst, cx+i*r, cy+r+2, 1, TextColor, true)
		}
	case weather.Thunderstorm:
		drawCloud(dst, cx, cy-r/2, r)
		line(dst, cx+1, cy+r/2, cx-1, cy+r+1, sunColor)
		line(dst, cx-1, cy+r+1, cx+1, cy+r+1, sunColor)
		line(dst, cx+1, cy+r+1, cx-1, cy+r*2, sunColor)
	default:
		drawText(dst, labelFace, cx-3, y, "?", Gray)
	}
}

func drawSun(dst draw.Image, cx, cy, r int) {
	circle(dst, cx, cy, r, sunColor, true)
	ray := r + 2
	line(dst, cx-ray-1, cy, cx-ray+1, cy, sunColor)
	line(dst, cx+ray-1, cy, cx+ray+1, cy, sunColor)
	line(dst, cx, cy-ray-1, cx, cy-ray+1, sunColor)
	line(dst, cx, cy+ray-1, cx, cy+ray+1, sunColor)
}

// drawCloud is two overlapping discs on a flat base.
func drawCloud(dst draw.Image, cx, cy, r int) {
	circle(dst, cx-r/2, cy, r*3/4, cloudColor, true)
	circle(dst, cx+r/2, cy-r/3, r, cloudColor, true)
	fillRect(dst, rectXYWH(cx-r-r/4, cy, 2*r+r/2, r*3/4), cloudColor)
}
