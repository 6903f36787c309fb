// Package octopus reads public Agile electricity and gas tracker unit rates
// from the Octopus Energy REST API.
package octopus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-openapi/runtime"
	httptransport "github.com/go-openapi/runtime/client"
	"github.com/go-openapi/strfmt"
	octopusapi "github.com/mgazza/go-octopus-energy/client"
	"github.com/mgazza/go-octopus-energy/client/products"

	appLog "agiledash/internal/log"
	"agiledash/internal/model"
)

// pageSize covers two days of half-hour slots, so a normal request is a
// single page.
const pageSize = int64(100)

// Client wraps the generated Octopus Energy client. Unit-rate endpoints are
// public, so no authentication is configured.
type Client struct {
	api     *octopusapi.OctopusEnergyRESTAPI
	loc     *time.Location
	timeout time.Duration
}

// NewClient builds a Client whose requests go through rt (typically the
// circuit-breaker transport). Times in results are converted to loc.
func NewClient(rt http.RoundTripper, timeout time.Duration, loc *time.Location) *Client {
	cfg := octopusapi.DefaultTransportConfig()
	transport := httptransport.New(cfg.Host, cfg.BasePath, cfg.Schemes)
	if rt != nil {
		transport.Transport = rt
	}
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		api:     octopusapi.New(transport, strfmt.Default),
		loc:     loc,
		timeout: timeout,
	}
}

// ElectricityTariffCode builds the single-register electricity tariff code,
// e.g. E-1R-AGILE-24-10-01-C.
func ElectricityTariffCode(product, region string) string {
	return fmt.Sprintf("E-1R-%s-%s", product, strings.ToUpper(region))
}

// GasTariffCode builds the single-register gas tariff code,
// e.g. G-1R-SILVER-25-09-02-C.
func GasTariffCode(product, region string) string {
	return fmt.Sprintf("G-1R-%s-%s", product, strings.ToUpper(region))
}

// ElectricityRates returns half-hourly unit rates (inc. VAT) valid in
// [from, to), sorted ascending. An empty result or HTTP 404 yields
// model.ErrDataUnavailable.
func (c *Client) ElectricityRates(ctx context.Context, product, region string, from, to time.Time) ([]model.RateRecord, error) {
	tariff := ElectricityTariffCode(product, region)
	size := pageSize
	page := int64(1)

	params := products.NewListElectricityTariffStandardUnitRatesParams().
		WithContext(ctx).
		WithTimeout(c.timeout).
		WithProductCode(product).
		WithTariffCode(tariff).
		WithPeriodFrom(dateTime(from)).
		WithPeriodTo(dateTime(to)).
		WithPageSize(&size)

	var out []model.RateRecord
	for {
		params.WithPage(&page)
		response, err := c.api.Products.ListElectricityTariffStandardUnitRates(params, nil)
		if err != nil {
			return nil, classify(tariff, err)
		}

		for _, rate := range response.Payload.Results {
			if rec, ok := c.record(rate.ValueIncVat, rate.ValidFrom, rate.ValidTo, model.SlotDuration); ok {
				out = append(out, rec)
			}
		}

		if response.Payload.Next == nil {
			break
		}
		page++
	}

	return c.finish(tariff, out, from, to)
}

// GasRates returns gas tracker unit rates (inc. VAT) valid in [from, to).
// The tracker publishes one rate per day.
func (c *Client) GasRates(ctx context.Context, product, region string, from, to time.Time) ([]model.RateRecord, error) {
	tariff := GasTariffCode(product, region)
	size := pageSize
	page := int64(1)

	params := products.NewListGasTariffStandardUnitRatesParams().
		WithContext(ctx).
		WithTimeout(c.timeout).
		WithProductCode(product).
		WithTariffCode(tariff).
		WithPeriodFrom(dateTime(from)).
		WithPeriodTo(dateTime(to)).
		WithPageSize(&size)

	var out []model.RateRecord
	for {
		params.WithPage(&page)
		response, err := c.api.Products.ListGasTariffStandardUnitRates(params, nil)
		if err != nil {
			return nil, classify(tariff, err)
		}

		for _, rate := range response.Payload.Results {
			if rec, ok := c.record(rate.ValueIncVat, rate.ValidFrom, rate.ValidTo, 24*time.Hour); ok {
				out = append(out, rec)
			}
		}

		if response.Payload.Next == nil {
			break
		}
		page++
	}

	return c.finish(tariff, out, from, to)
}

// record converts one API result. Open-ended rates (no valid_to) are given
// the default span.
func (c *Client) record(value float64, from, to *strfmt.DateTime, span time.Duration) (model.RateRecord, bool) {
	if from == nil {
		return model.RateRecord{}, false
	}
	start := model.HalfHour(time.Time(*from), c.loc)
	end := start.Add(span)
	if to != nil {
		end = model.HalfHour(time.Time(*to), c.loc)
	}
	return model.RateRecord{ValidFrom: start, ValidTo: end, PricePence: value}, true
}

func (c *Client) finish(tariff string, out []model.RateRecord, from, to time.Time) ([]model.RateRecord, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("%s %s: %w", tariff, from.In(c.loc).Format(model.DateLayout), model.ErrDataUnavailable)
	}
	model.SortRates(out)
	appLog.Debug("octopus rates fetched", "tariff", tariff, "count", len(out),
		"from", from.Format(time.RFC3339), "to", to.Format(time.RFC3339))
	return out, nil
}

func dateTime(t time.Time) *strfmt.DateTime {
	dt := strfmt.DateTime(t.UTC())
	return &dt
}

// classify maps a client error onto the shared error taxonomy.
func classify(tariff string, err error) error {
	if statusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%s: %w", tariff, model.ErrDataUnavailable)
	}
	return fmt.Errorf("%s: %w: %v", tariff, model.ErrTransientFetch, err)
}

// statusCode extracts the HTTP status from either an undeclared-response
// APIError or a generated typed response error. 0 means "no response".
func statusCode(err error) int {
	var apiErr *runtime.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return 0
}
