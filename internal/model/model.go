package model

import (
	"sort"
	"time"
)

// DateLayout is the calendar-date format used for cache keys and file names.
const DateLayout = "2006-01-02"

// SlotDuration is the length of one Agile pricing slot.
const SlotDuration = 30 * time.Minute

// RateRecord is a single tariff rate valid for [ValidFrom, ValidTo).
// Times are in the display timezone and aligned to half-hour boundaries.
type RateRecord struct {
	ValidFrom  time.Time `json:"valid_from"`
	ValidTo    time.Time `json:"valid_to"`
	PricePence float64   `json:"price_pence"`
}

// Covers reports whether t falls inside the record's validity window.
func (r RateRecord) Covers(t time.Time) bool {
	return !t.Before(r.ValidFrom) && t.Before(r.ValidTo)
}

// DailyPriceCache holds every rate fetched for one calendar date.
// It is the unit persisted by internal/cache (one file per date).
type DailyPriceCache struct {
	Date        string       `json:"date"`
	Electricity []RateRecord `json:"electricity"`
	Gas         []RateRecord `json:"gas"`
	FetchedAt   time.Time    `json:"fetched_at"`
}

// Empty reports whether there are no electricity rates for the day.
func (c *DailyPriceCache) Empty() bool {
	return c == nil || len(c.Electricity) == 0
}

// RateAt returns the electricity rate covering t.
func (c *DailyPriceCache) RateAt(t time.Time) (RateRecord, bool) {
	if c == nil {
		return RateRecord{}, false
	}
	for _, r := range c.Electricity {
		if r.Covers(t) {
			return r, true
		}
	}
	return RateRecord{}, false
}

// MinMax returns the lowest and highest electricity price of the day.
func (c *DailyPriceCache) MinMax() (lo, hi float64, ok bool) {
	if c.Empty() {
		return 0, 0, false
	}
	lo, hi = c.Electricity[0].PricePence, c.Electricity[0].PricePence
	for _, r := range c.Electricity[1:] {
		if r.PricePence < lo {
			lo = r.PricePence
		}
		if r.PricePence > hi {
			hi = r.PricePence
		}
	}
	return lo, hi, true
}

// GasPrice returns the day's gas tracker price. The tracker publishes a
// single rate per day; if several are present the earliest wins.
func (c *DailyPriceCache) GasPrice() (float64, bool) {
	if c == nil || len(c.Gas) == 0 {
		return 0, false
	}
	return c.Gas[0].PricePence, true
}

// Complete reports whether the electricity series covers every half-hour of
// the local day without gaps. With wantGas a gas price must be known too.
func (c *DailyPriceCache) Complete(loc *time.Location, wantGas bool) bool {
	if c.Empty() || (wantGas && len(c.Gas) == 0) {
		return false
	}
	day, err := time.ParseInLocation(DateLayout, c.Date, loc)
	if err != nil {
		return false
	}
	next := day.AddDate(0, 0, 1)
	if len(c.Electricity) != SlotsBetween(day, next) {
		return false
	}
	cursor := day
	for _, r := range c.Electricity {
		if !r.ValidFrom.Equal(cursor) {
			return false
		}
		cursor = r.ValidTo
	}
	return cursor.Equal(next)
}

// SortRates orders records by ValidFrom ascending.
func SortRates(rates []RateRecord) {
	sort.SliceStable(rates, func(i, j int) bool {
		return rates[i].ValidFrom.Before(rates[j].ValidFrom)
	})
}

// SlotsBetween returns the number of half-hour slots in [from, to). DST
// transition days have 46 or 50 slots.
func SlotsBetween(from, to time.Time) int {
	return int(to.Sub(from) / SlotDuration)
}

// DayStart returns local midnight of the day containing t.
func DayStart(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DateOf formats the local calendar date of t.
func DateOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// HalfHour converts t to loc and truncates it to the enclosing half-hour.
func HalfHour(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute()/30*30, 0, 0, loc)
}

// WeatherSnapshot is the current outdoor condition at the configured
// coordinates. ConditionCode is a WMO weather interpretation code.
type WeatherSnapshot struct {
	TemperatureC  float64   `json:"temperature_c"`
	ConditionCode int       `json:"condition_code"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// DashboardState is everything the renderer needs for one frame.
// The main loop builds a new value every cycle; nothing mutates it in place.
type DashboardState struct {
	Now        time.Time        `json:"now"`
	Today      *DailyPriceCache `json:"today,omitempty"`
	Tomorrow   *DailyPriceCache `json:"tomorrow,omitempty"`
	Weather    *WeatherSnapshot `json:"weather,omitempty"`
	Alert      bool             `json:"alert"`
	Message    string           `json:"message,omitempty"`
	LastFetch  time.Time        `json:"last_fetch"`
	LastRender time.Time        `json:"last_render"`
}

// HasTomorrow reports whether tomorrow's electricity prices are published.
func (s DashboardState) HasTomorrow() bool {
	return !s.Tomorrow.Empty()
}
