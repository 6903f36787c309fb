package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullDay(t *testing.T, loc *time.Location, date string) *DailyPriceCache {
	t.Helper()
	day, err := time.ParseInLocation(DateLayout, date, loc)
	require.NoError(t, err)

	c := &DailyPriceCache{Date: date}
	for from := day; from.Before(day.AddDate(0, 0, 1)); from = from.Add(SlotDuration) {
		c.Electricity = append(c.Electricity, RateRecord{
			ValidFrom:  from,
			ValidTo:    from.Add(SlotDuration),
			PricePence: float64(from.Hour()),
		})
	}
	c.Gas = []RateRecord{{ValidFrom: day, ValidTo: day.AddDate(0, 0, 1), PricePence: 6.2}}
	return c
}

func TestDailyPriceCacheComplete(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	c := fullDay(t, loc, "2025-06-10")
	require.Len(t, c.Electricity, 48)
	assert.True(t, c.Complete(loc, true))

	// DST change: 23 hour day.
	spring := fullDay(t, loc, "2025-03-30")
	assert.Len(t, spring.Electricity, 46)
	assert.True(t, spring.Complete(loc, true))

	gap := fullDay(t, loc, "2025-06-10")
	gap.Electricity = append(gap.Electricity[:10], gap.Electricity[11:]...)
	assert.False(t, gap.Complete(loc, true))

	noGas := fullDay(t, loc, "2025-06-10")
	noGas.Gas = nil
	assert.False(t, noGas.Complete(loc, true))
	assert.True(t, noGas.Complete(loc, false), "gas disabled")
}

func TestDailyPriceCacheLookups(t *testing.T) {
	c := fullDay(t, time.UTC, "2025-06-10")

	r, ok := c.RateAt(time.Date(2025, 6, 10, 13, 45, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 13.0, r.PricePence)

	_, ok = c.RateAt(time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)

	lo, hi, ok := c.MinMax()
	require.True(t, ok)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 23.0, hi)

	gas, ok := c.GasPrice()
	require.True(t, ok)
	assert.Equal(t, 6.2, gas)

	var missing *DailyPriceCache
	assert.True(t, missing.Empty())
	_, ok = missing.GasPrice()
	assert.False(t, ok)
}

func TestHalfHour(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	in := time.Date(2025, 6, 10, 12, 59, 59, 0, time.UTC)
	got := HalfHour(in, loc)
	assert.Equal(t, time.Date(2025, 6, 10, 13, 30, 0, 0, loc), got)
	assert.Equal(t, "2025-06-10", DateOf(in, loc))
}
