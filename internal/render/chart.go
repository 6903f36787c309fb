package render

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"agiledash/internal/model"
)

const (
	chartLeft      = 30
	chartTop       = 90
	chartRightPad  = 5
	chartBottomPad = 20
	barGap         = 2
	gridStep       = 10.0
	hourLabelEvery = 4

	// With tomorrow published only the last slots of today stay on screen
	// so both days fit.
	todaySlotsWithTomorrow = 24
)

// Bar is one drawn half-hour slot.
type Bar struct {
	Rect     image.Rectangle
	Rate     model.RateRecord
	Tomorrow bool
}

// ChartLayout is the computed geometry of the price chart.
type ChartLayout struct {
	Area     image.Rectangle
	Bars     []Bar
	BarWidth int
	// Low is min(0, lowest price); High is the highest price.
	Low, High float64

	// TomorrowIndex is the first tomorrow bar, or -1.
	TomorrowIndex int
	// BoundaryX is the column of the today/tomorrow marker, or -1.
	BoundaryX int
	// CurrentIndex is the today bar covering the frame time, or -1.
	CurrentIndex int
}

func chartArea(width, height int) image.Rectangle {
	return image.Rect(chartLeft, chartTop, width-chartRightPad, height-chartBottomPad)
}

// chartSeries returns the today and tomorrow slots to plot.
func chartSeries(state model.DashboardState) (today, tomorrow []model.RateRecord) {
	if !state.Today.Empty() {
		today = state.Today.Electricity
	}
	if state.HasTomorrow() {
		tomorrow = state.Tomorrow.Electricity
		if len(today) > todaySlotsWithTomorrow {
			today = today[len(today)-todaySlotsWithTomorrow:]
		}
	}
	return today, tomorrow
}

// LayoutChart places one bar per slot across the chart area. Bar height is
// linear in price between Low and High.
func LayoutChart(state model.DashboardState, width, height int) ChartLayout {
	area := chartArea(width, height)
	lay := ChartLayout{Area: area, TomorrowIndex: -1, BoundaryX: -1, CurrentIndex: -1}

	today, tomorrow := chartSeries(state)
	n := len(today) + len(tomorrow)
	if n == 0 || area.Dx() <= 0 || area.Dy() <= 0 {
		return lay
	}

	series := make([]model.RateRecord, 0, n)
	series = append(series, today...)
	series = append(series, tomorrow...)

	lay.High = series[0].PricePence
	for _, r := range series {
		lay.Low = math.Min(lay.Low, r.PricePence)
		lay.High = math.Max(lay.High, r.PricePence)
	}
	span := lay.High - lay.Low
	if span <= 0 {
		span = 1
	}

	lay.BarWidth = max(area.Dx()/n, 1)
	drawn := max(lay.BarWidth-barGap, 1)

	lay.Bars = make([]Bar, 0, n)
	for i, r := range series {
		x := area.Min.X + i*lay.BarWidth
		h := int((r.PricePence - lay.Low) / span * float64(area.Dy()))
		lay.Bars = append(lay.Bars, Bar{
			Rect:     image.Rect(x, area.Max.Y-h, x+drawn, area.Max.Y),
			Rate:     r,
			Tomorrow: i >= len(today),
		})
		if i < len(today) && r.Covers(state.Now) {
			lay.CurrentIndex = i
		}
	}

	if len(tomorrow) > 0 {
		lay.TomorrowIndex = len(today)
		lay.BoundaryX = area.Min.X + len(today)*lay.BarWidth - 1
	}
	return lay
}

// priceY maps a price to a row inside the chart area.
func (l ChartLayout) priceY(p float64) int {
	span := l.High - l.Low
	if span <= 0 {
		span = 1
	}
	return l.Area.Max.Y - int((p-l.Low)/span*float64(l.Area.Dy()))
}

func drawChart(dst draw.Image, lay ChartLayout, state model.DashboardState, th Thresholds) {
	if len(lay.Bars) == 0 {
		return
	}
	area := lay.Area

	// tomorrow band goes under everything else
	if lay.TomorrowIndex >= 0 {
		fillRect(dst, image.Rect(lay.BoundaryX+1, area.Min.Y, area.Max.X, area.Max.Y), TomorrowBand)
	}

	for level := math.Ceil(lay.Low/gridStep) * gridStep; level <= lay.High; level += gridStep {
		y := lay.priceY(level)
		hline(dst, area.Min.X, area.Max.X-1, y, Gridline)
		drawText(dst, labelFace, 5, y-6, fmt.Sprintf("%d", int(level)), AxisLabel)
	}

	for _, b := range lay.Bars {
		fillRect(dst, b.Rect, PriceColor(b.Rate.PricePence, th))
	}

	if lay.CurrentIndex >= 0 {
		b := lay.Bars[lay.CurrentIndex]
		x := b.Rect.Min.X + b.Rect.Dx()/2
		dashedVLine(dst, x, area.Min.Y, area.Max.Y, 3, 5, NowMarker)
	}

	for _, b := range lay.Bars {
		start := b.Rate.ValidFrom
		if start.Minute() != 0 || start.Hour()%hourLabelEvery != 0 {
			continue
		}
		label := fmt.Sprintf("%02d", start.Hour())
		x := b.Rect.Min.X + b.Rect.Dx()/2 - textWidth(labelFace, label)/2
		drawText(dst, labelFace, x, area.Max.Y+3, label, AxisLabel)
	}

	if lay.TomorrowIndex >= 0 {
		vline(dst, lay.BoundaryX, area.Min.Y, area.Max.Y-1, BoundaryColor)
		drawText(dst, labelFace, lay.BoundaryX+3, area.Min.Y+2, "Tmrw", TextColor)

		if _, hi, ok := state.Tomorrow.MinMax(); ok {
			label := fmt.Sprintf("Max:%.0fp", hi)
			x := area.Max.X - 2 - textWidth(labelFace, label)
			drawText(dst, labelFace, x, area.Min.Y+2, label, PriceColor(hi, th))
		}
	}
}
