package runner

import (
	"math"
	"time"

	"agiledash/internal/model"
)

// MockTomorrow builds a stand-in for tomorrow's prices from today's series so
// the two-day layout can be previewed before the real prices are published.
// The pattern is fixed: a daytime swing, a cheap 02:00-05:00 trough and a
// 16:00-19:00 peak, never below 1p. Gas follows today's rate plus 0.4p.
func MockTomorrow(today *model.DailyPriceCache, loc *time.Location) *model.DailyPriceCache {
	if today.Empty() {
		return nil
	}
	start, err := time.ParseInLocation(model.DateLayout, today.Date, loc)
	if err != nil {
		return nil
	}
	start = start.AddDate(0, 0, 1)
	end := start.AddDate(0, 0, 1)

	out := &model.DailyPriceCache{Date: start.Format(model.DateLayout)}
	i := 0
	for s := start; s.Before(end); s = s.Add(model.SlotDuration) {
		local := s.In(loc)
		price := 17.5 + 5*math.Sin(float64(i)/4)
		switch h := local.Hour(); {
		case h >= 16 && h < 19:
			price += 15
		case h >= 2 && h < 5:
			price -= 10
		}
		out.Electricity = append(out.Electricity, model.RateRecord{
			ValidFrom:  local,
			ValidTo:    s.Add(model.SlotDuration).In(loc),
			PricePence: math.Round(math.Max(1, price)*100) / 100,
		})
		i++
	}

	if g, ok := today.GasPrice(); ok {
		out.Gas = []model.RateRecord{{ValidFrom: start, ValidTo: end, PricePence: g + 0.4}}
	}
	return out
}
