package render

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agiledash/internal/model"
)

func london(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	return loc
}

func day(start time.Time, price func(i int) float64) *model.DailyPriceCache {
	c := &model.DailyPriceCache{Date: start.Format(model.DateLayout)}
	for i := 0; i < 48; i++ {
		s := start.Add(time.Duration(i) * model.SlotDuration)
		c.Electricity = append(c.Electricity, model.RateRecord{ValidFrom: s, ValidTo: s.Add(model.SlotDuration), PricePence: price(i)})
	}
	c.Gas = []model.RateRecord{{ValidFrom: start, ValidTo: start.AddDate(0, 0, 1), PricePence: 6.1}}
	return c
}

func sampleState(t *testing.T, withTomorrow bool) model.DashboardState {
	loc := london(t)
	start := time.Date(2025, 6, 10, 0, 0, 0, 0, loc)
	s := model.DashboardState{
		Now:     start.Add(12*time.Hour + 10*time.Minute),
		Today:   day(start, func(i int) float64 { return float64(i + 1) }),
		Weather: &model.WeatherSnapshot{TemperatureC: 18.4, ConditionCode: 2},
	}
	if withTomorrow {
		s.Tomorrow = day(start.AddDate(0, 0, 1), func(i int) float64 { return float64(48 - i) })
	}
	return s
}

func TestPriceColor(t *testing.T) {
	th := DefaultThresholds
	tests := []struct {
		price float64
		want  color.RGBA
	}{
		{-2, Green},
		{9.99, Green},
		{10, Blue},
		{19.99, Blue},
		{20, Yellow},
		{34.99, Yellow},
		{35, Red},
		{80, Red},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriceColor(tt.price, th), "price %v", tt.price)
	}
	assert.Equal(t, Orange, GasColor())
}

func TestRenderIsDeterministic(t *testing.T) {
	state := sampleState(t, true)
	a := Render(state, DefaultOptions())
	b := Render(state, DefaultOptions())
	require.Equal(t, a.Bounds(), b.Bounds())
	assert.Equal(t, a.Pix, b.Pix)
}

func TestLayoutChartTodayOnly(t *testing.T) {
	state := sampleState(t, false)
	lay := LayoutChart(state, DefaultWidth, DefaultHeight)

	require.Len(t, lay.Bars, 48)
	assert.Equal(t, -1, lay.TomorrowIndex)
	assert.Equal(t, -1, lay.BoundaryX)
	assert.Equal(t, 24, lay.CurrentIndex)
	assert.Equal(t, 0.0, lay.Low)
	assert.Equal(t, 48.0, lay.High)

	for i := 1; i < len(lay.Bars); i++ {
		assert.GreaterOrEqual(t, lay.Bars[i].Rect.Dy(), lay.Bars[i-1].Rect.Dy(), "bar %d", i)
	}
	assert.Equal(t, lay.Area.Dy(), lay.Bars[47].Rect.Dy())
}

func TestLayoutChartWithTomorrowTrimsToday(t *testing.T) {
	state := sampleState(t, true)
	lay := LayoutChart(state, DefaultWidth, DefaultHeight)

	require.Len(t, lay.Bars, 72)
	assert.Equal(t, 24, lay.TomorrowIndex)
	assert.Equal(t, 0, lay.CurrentIndex)
	assert.Equal(t, state.Today.Electricity[24].ValidFrom, lay.Bars[0].Rate.ValidFrom)
	assert.False(t, lay.Bars[23].Tomorrow)
	assert.True(t, lay.Bars[24].Tomorrow)

	// Higher price never means a shorter bar.
	for i := range lay.Bars {
		for j := range lay.Bars {
			if lay.Bars[i].Rate.PricePence < lay.Bars[j].Rate.PricePence {
				assert.LessOrEqual(t, lay.Bars[i].Rect.Dy(), lay.Bars[j].Rect.Dy())
			}
		}
	}
}

func TestLayoutChartHalfDays(t *testing.T) {
	state := sampleState(t, true)
	state.Today.Electricity = state.Today.Electricity[24:]
	state.Tomorrow.Electricity = state.Tomorrow.Electricity[:24]

	lay := LayoutChart(state, DefaultWidth, DefaultHeight)
	assert.Len(t, lay.Bars, 48)
	assert.Equal(t, 24, lay.TomorrowIndex)

	state.Tomorrow = nil
	assert.Len(t, LayoutChart(state, DefaultWidth, DefaultHeight).Bars, 24)
}

func TestLayoutChartNegativePrices(t *testing.T) {
	state := sampleState(t, false)
	state.Today = day(state.Today.Electricity[0].ValidFrom, func(i int) float64 { return float64(i - 8) })
	lay := LayoutChart(state, DefaultWidth, DefaultHeight)

	assert.Equal(t, -8.0, lay.Low)
	assert.Equal(t, 0, lay.Bars[0].Rect.Dy())
	assert.Equal(t, lay.Area.Max.Y, lay.Bars[0].Rect.Max.Y)
}

func TestRenderTomorrowBandAndMarker(t *testing.T) {
	state := sampleState(t, true)
	img := Render(state, DefaultOptions())
	lay := LayoutChart(state, DefaultWidth, DefaultHeight)
	require.GreaterOrEqual(t, lay.BarWidth, barGap+1)

	y := lay.Area.Max.Y - 1
	tomorrowGap := lay.Bars[lay.TomorrowIndex+12].Rect.Max.X
	todayGap := lay.Bars[5].Rect.Max.X

	assert.Equal(t, TomorrowBand, img.RGBAAt(tomorrowGap, y))
	assert.Equal(t, Background, img.RGBAAt(todayGap, y))
	assert.Equal(t, BoundaryColor, img.RGBAAt(lay.BoundaryX, y))
}

func TestRenderWithoutTomorrowHasNoBand(t *testing.T) {
	state := sampleState(t, false)
	img := Render(state, DefaultOptions())
	area := chartArea(DefaultWidth, DefaultHeight)

	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			c := img.RGBAAt(x, y)
			require.NotEqual(t, TomorrowBand, c, "(%d,%d)", x, y)
			require.NotEqual(t, BoundaryColor, c, "(%d,%d)", x, y)
		}
	}
}

func TestRenderBarColours(t *testing.T) {
	state := sampleState(t, false)
	img := Render(state, DefaultOptions())
	lay := LayoutChart(state, DefaultWidth, DefaultHeight)

	for _, i := range []int{2, 15, 30, 45} {
		b := lay.Bars[i]
		want := PriceColor(b.Rate.PricePence, DefaultThresholds)
		assert.Equal(t, want, img.RGBAAt(b.Rect.Min.X, b.Rect.Max.Y-1), "bar %d", i)
	}
}

func TestRenderNowTile(t *testing.T) {
	state := sampleState(t, false)
	img := Render(state, DefaultOptions())
	// 12:00 slot costs 25p
	assert.Equal(t, Yellow, img.RGBAAt(6, tileTop+1))

	state.Alert = true
	img = Render(state, DefaultOptions())
	assert.Equal(t, AlertColor, img.RGBAAt(6, tileTop+1))

	state.Alert = false
	state.Now = state.Now.AddDate(0, 0, 2)
	img = Render(state, DefaultOptions())
	assert.Equal(t, Gray, img.RGBAAt(6, tileTop+1), "no rate for the frame time")
}

func countColor(img *image.RGBA, r image.Rectangle, c color.RGBA) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.RGBAAt(x, y) == c {
				n++
			}
		}
	}
	return n
}

func TestRenderHeadlineAlert(t *testing.T) {
	title := image.Rect(5, 5, 100, 22)

	state := sampleState(t, false)
	assert.Zero(t, countColor(Render(state, DefaultOptions()), title, AlertColor))

	state.Alert = true
	assert.NotZero(t, countColor(Render(state, DefaultOptions()), title, AlertColor), "alert without a message")

	state.Message = "Dehumidifier full"
	assert.NotZero(t, countColor(Render(state, DefaultOptions()), title, AlertColor))

	state.Alert = false
	assert.Zero(t, countColor(Render(state, DefaultOptions()), title, AlertColor), "message alone keeps the text colour")
}

func TestRenderLoading(t *testing.T) {
	state := model.DashboardState{Now: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)}
	img := Render(state, DefaultOptions())

	assert.Equal(t, Background, img.RGBAAt(6, tileTop+1))
	assert.Empty(t, LayoutChart(state, DefaultWidth, DefaultHeight).Bars)
}

func TestOptionsFollowSize(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 240, 135
	img := Render(sampleState(t, false), opts)
	assert.Equal(t, 240, img.Bounds().Dx())
	assert.Equal(t, 135, img.Bounds().Dy())
}

func TestFitText(t *testing.T) {
	assert.Equal(t, "Octopus Energy", fitText(textFace, "Octopus Energy", 1000))
	short := fitText(textFace, "Octopus Energy", textWidth(textFace, "Octo"))
	assert.Equal(t, "Octo", short)
	assert.Equal(t, "", fitText(textFace, "x", 0))
}
