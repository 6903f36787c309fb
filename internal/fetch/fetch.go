package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "agiledash/internal/log"
	"agiledash/internal/model"
)

// TariffSource returns unit rates for a product/region in [from, to).
type TariffSource interface {
	ElectricityRates(ctx context.Context, product, region string, from, to time.Time) ([]model.RateRecord, error)
	GasRates(ctx context.Context, product, region string, from, to time.Time) ([]model.RateRecord, error)
}

// WeatherSource returns current conditions at a coordinate.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (*model.WeatherSnapshot, error)
}

// CacheReader loads a previously saved day. (nil, nil) means "no file".
type CacheReader interface {
	Load(day time.Time) (*model.DailyPriceCache, error)
}

// PriceRequest identifies the tariffs and calendar day to fetch.
type PriceRequest struct {
	Region             string
	ElectricityProduct string
	// GasProduct may be empty to skip gas.
	GasProduct string
	Day        time.Time
}

// PriceResult contains the outcome of fetching one day of prices.
type PriceResult struct {
	Prices    *model.DailyPriceCache
	FromCache bool // true if the network was skipped or failed and the cache was used
}

// Fetcher combines the tariff and weather upstreams with the on-disk cache.
type Fetcher struct {
	tariffs TariffSource
	weather WeatherSource
	cache   CacheReader
	loc     *time.Location
	now     func() time.Time
}

// NewFetcher creates a Fetcher. weather may be nil when disabled.
func NewFetcher(tariffs TariffSource, weather WeatherSource, cache CacheReader, loc *time.Location) *Fetcher {
	if loc == nil {
		loc = time.Local
	}
	return &Fetcher{
		tariffs: tariffs,
		weather: weather,
		cache:   cache,
		loc:     loc,
		now:     time.Now,
	}
}

// FetchPrices returns the electricity and gas rates for req.Day.
//
// Order of preference:
//  1. a complete cache file for the day (published Agile prices never change)
//  2. a fresh fetch from the tariff API
//  3. the cache file for the day, complete or not, when the fetch fails
//
// Without a usable cache the error wraps model.ErrDataUnavailable (nothing
// published yet) or model.ErrTransientFetch.
func (f *Fetcher) FetchPrices(ctx context.Context, req PriceRequest) (PriceResult, error) {
	dayStart := model.DayStart(req.Day, f.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	date := dayStart.Format(model.DateLayout)

	cached, cacheErr := f.cache.Load(dayStart)
	if cacheErr != nil {
		appLog.Error("price cache load failed", cacheErr, "date", date)
		cached = nil
	}
	if cached != nil && cached.Complete(f.loc, req.GasProduct != "") {
		appLog.Debug("prices served from complete cache", "date", date)
		return PriceResult{Prices: cached, FromCache: true}, nil
	}

	appLog.Info("price fetch start", "date", date, "region", req.Region, "product", req.ElectricityProduct)

	elec, err := f.tariffs.ElectricityRates(ctx, req.ElectricityProduct, req.Region, dayStart, dayEnd)
	if err == nil {
		elec = sameDay(elec, dayStart, dayEnd)
		if len(elec) == 0 {
			err = fmt.Errorf("%s: %w", date, model.ErrDataUnavailable)
		}
	}
	if err != nil {
		if !cached.Empty() {
			appLog.Error("price fetch failed, using cached prices", err, "date", date, "slots", len(cached.Electricity))
			return PriceResult{Prices: cached, FromCache: true}, nil
		}
		return PriceResult{}, err
	}

	out := &model.DailyPriceCache{
		Date:        date,
		Electricity: elec,
		FetchedAt:   f.now(),
	}

	if req.GasProduct != "" {
		gas, gasErr := f.tariffs.GasRates(ctx, req.GasProduct, req.Region, dayStart, dayEnd)
		switch {
		case gasErr == nil:
			out.Gas = gas
		case cached != nil && len(cached.Gas) > 0:
			appLog.Error("gas fetch failed, keeping cached gas price", gasErr, "date", date)
			out.Gas = cached.Gas
		case errors.Is(gasErr, model.ErrDataUnavailable):
			appLog.Debug("gas price not published yet", "date", date)
		default:
			appLog.Error("gas fetch failed", gasErr, "date", date)
		}
	}

	appLog.Info("price fetch success", "date", date, "slots", len(out.Electricity), "gas", len(out.Gas) > 0)
	return PriceResult{Prices: out, FromCache: false}, nil
}

// FetchWeather returns current conditions. There is no cache fallback; the
// renderer shows a placeholder instead.
func (f *Fetcher) FetchWeather(ctx context.Context, lat, lon float64) (*model.WeatherSnapshot, error) {
	if f.weather == nil {
		return nil, fmt.Errorf("weather: %w", model.ErrDataUnavailable)
	}
	return f.weather.Current(ctx, lat, lon)
}

// sameDay keeps records whose local start falls inside [start, end).
func sameDay(rates []model.RateRecord, start, end time.Time) []model.RateRecord {
	out := rates[:0:0]
	for _, r := range rates {
		if !r.ValidFrom.Before(start) && r.ValidFrom.Before(end) {
			out = append(out, r)
		}
	}
	model.SortRates(out)
	return out
}
