// Package render draws the dashboard frame.
//
// Render is a pure function of its inputs: the same DashboardState and
// Options always produce the same pixels.
package render

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"

	"agiledash/internal/config"
	"agiledash/internal/model"
)

const (
	DefaultWidth  = 320
	DefaultHeight = 240

	placeholder = "--"

	tileTop    = 30
	tileBottom = 80
	glyphSize  = 14
)

// Options controls frame geometry and styling.
type Options struct {
	Width      int
	Height     int
	Title      string
	Thresholds Thresholds
}

// DefaultOptions returns a 320x240 frame with the default thresholds.
func DefaultOptions() Options {
	return Options{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		Title:      "Octopus Energy",
		Thresholds: DefaultThresholds,
	}
}

// OptionsFromConfig derives render options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	if cfg.Display.Width > 0 {
		opts.Width = cfg.Display.Width
	}
	if cfg.Display.Height > 0 {
		opts.Height = cfg.Display.Height
	}
	if cfg.Title != "" {
		opts.Title = cfg.Title
	}
	opts.Thresholds = Thresholds{
		Cheap:     cfg.Thresholds.Cheap,
		Moderate:  cfg.Thresholds.Moderate,
		Expensive: cfg.Thresholds.Expensive,
	}
	return opts
}

// Render draws state into a new RGBA frame.
func Render(state model.DashboardState, opts Options) *image.RGBA {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	fillRect(img, img.Bounds(), Background)

	drawHeader(img, state, opts)

	if state.Today.Empty() && !state.HasTomorrow() {
		drawText(img, textFace, 10, opts.Height/2, "Loading...", TextColor)
		return img
	}

	drawTiles(img, state, opts)
	drawChart(img, LayoutChart(state, opts.Width, opts.Height), state, opts.Thresholds)
	return img
}

// drawHeader: title (or Home Assistant message) on the left, weather and
// HH:MM on the right.
func drawHeader(dst draw.Image, state model.DashboardState, opts Options) {
	clock := state.Now.Format("15:04")
	clockX := opts.Width - 5 - textWidth(textFace, clock)
	drawText(dst, textFace, clockX, 5, clock, TextColor)

	temp := placeholder
	if state.Weather != nil {
		temp = fmt.Sprintf("%.0f°C", state.Weather.TemperatureC)
	}
	tempX := clockX - 10 - textWidth(textFace, temp)
	drawText(dst, textFace, tempX, 5, temp, TextColor)

	right := tempX - 4
	if state.Weather != nil {
		gx := tempX - 4 - glyphSize
		drawWeatherGlyph(dst, gx, 4, glyphSize, state.Weather.ConditionCode)
		right = gx - 4
	}

	title, c := opts.Title, color.Color(TextColor)
	if state.Message != "" {
		title = state.Message
	}
	if state.Alert {
		c = AlertColor
	}
	drawText(dst, textFace, 5, 5, fitText(textFace, title, right-5), c)
}

func drawTiles(dst draw.Image, state model.DashboardState, opts Options) {
	th := opts.Thresholds
	third := opts.Width / 3

	// Now
	nowTile := image.Rect(5, tileTop, third-2, tileBottom+1)
	nowText, nowFill := placeholder, color.Color(Gray)
	if r, ok := state.Today.RateAt(state.Now); ok {
		nowText, nowFill = pence(r.PricePence), PriceColor(r.PricePence, th)
	}
	if state.Alert {
		nowFill = AlertColor
	}
	fillRect(dst, nowTile, nowFill)
	drawText(dst, labelFace, nowTile.Min.X+5, tileTop+3, "Now", TextColor)
	drawTextScaled(dst, textFace, nowTile.Min.X+5, tileTop+18, nowText, TextColor, 2)

	// Min / Max stacked in the middle third
	mid := image.Rect(third+2, tileTop, 2*third-2, tileBottom+1)
	half := mid.Dy() / 2
	minTile := image.Rect(mid.Min.X, mid.Min.Y, mid.Max.X, mid.Min.Y+half-1)
	maxTile := image.Rect(mid.Min.X, mid.Min.Y+half+1, mid.Max.X, mid.Max.Y)

	minText, maxText := placeholder, placeholder
	minFill, maxFill := color.Color(Gray), color.Color(Gray)
	if lo, hi, ok := state.Today.MinMax(); ok {
		minText, minFill = pence(lo), PriceColor(lo, th)
		maxText, maxFill = pence(hi), PriceColor(hi, th)
	}
	drawStatTile(dst, minTile, "Min", minText, minFill)
	drawStatTile(dst, maxTile, "Max", maxText, maxFill)

	// Gas
	gasTile := image.Rect(2*third+2, tileTop, opts.Width-5, tileBottom+1)
	fillRect(dst, gasTile, GasColor())
	drawText(dst, labelFace, gasTile.Min.X+5, tileTop+3, "Gas", GasLabel)

	gasText := placeholder
	if g, ok := state.Today.GasPrice(); ok {
		gasText = pence(g)
	}
	drawTextScaled(dst, textFace, gasTile.Min.X+5, tileTop+18, gasText, TextColor, 2)

	if g, ok := state.Tomorrow.GasPrice(); ok {
		label := "Tmrw " + pence(g)
		drawText(dst, labelFace, gasTile.Max.X-4-textWidth(labelFace, label), tileTop+3, label, GasTomorrow)
	}
}

func drawStatTile(dst draw.Image, r image.Rectangle, label, value string, fill color.Color) {
	fillRect(dst, r, fill)
	drawText(dst, labelFace, r.Min.X+4, r.Min.Y+5, label, TextColor)
	vw := textWidth(textFace, value)
	drawText(dst, textFace, r.Max.X-4-vw, r.Min.Y+5, value, TextColor)
}

func pence(p float64) string {
	return fmt.Sprintf("%.1fp", p)
}

// fitText trims s until it fits in maxWidth pixels.
func fitText(face font.Face, s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	runes := []rune(s)
	for len(runes) > 0 && textWidth(face, string(runes)) > maxWidth {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}
