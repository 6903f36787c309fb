// Package runner owns the dashboard state and drives the two timers: data
// refresh every update_interval and redraw every redraw_interval.
package runner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"

	"agiledash/internal/config"
	"agiledash/internal/display"
	"agiledash/internal/fetch"
	"agiledash/internal/homeassistant"
	appLog "agiledash/internal/log"
	"agiledash/internal/model"
	"agiledash/internal/render"
)

// Phase is what the loop is doing right now.
type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseFetching  Phase = "FETCHING"
	PhaseRendering Phase = "RENDERING"
)

// Fetcher is implemented by *fetch.Fetcher.
type Fetcher interface {
	FetchPrices(ctx context.Context, req fetch.PriceRequest) (fetch.PriceResult, error)
	FetchWeather(ctx context.Context, lat, lon float64) (*model.WeatherSnapshot, error)
}

// Store is implemented by *cache.Store.
type Store interface {
	Load(day time.Time) (*model.DailyPriceCache, error)
	Save(c *model.DailyPriceCache) error
	Prune(maxAgeDays int) ([]string, error)
}

// AlertSource is implemented by *homeassistant.Poller.
type AlertSource interface {
	Poll(ctx context.Context) homeassistant.Result
}

// Publisher receives a copy of the state after every cycle, plus the frame
// after every redraw. Implemented by *web.Server.
type Publisher interface {
	Publish(state model.DashboardState, frame *image.RGBA)
}

// Deps are the collaborators of a Runner. Alerts and Publisher are optional.
type Deps struct {
	Fetcher   Fetcher
	Store     Store
	Presenter display.Presenter
	Alerts    AlertSource
	Publisher Publisher
}

// Runner is not safe for concurrent use; Run drives it from one goroutine.
type Runner struct {
	cfg  *config.Config
	loc  *time.Location
	deps Deps
	opts render.Options

	clock func() time.Time

	state model.DashboardState
	phase Phase

	// mockTomorrow fills in synthetic tomorrow prices for previews.
	mockTomorrow bool

	fetchTick  chan struct{}
	redrawTick chan struct{}
}

func New(cfg *config.Config, deps Deps) *Runner {
	return &Runner{
		cfg:        cfg,
		loc:        cfg.Location(),
		deps:       deps,
		opts:       render.OptionsFromConfig(cfg),
		clock:      time.Now,
		phase:      PhaseIdle,
		fetchTick:  make(chan struct{}, 1),
		redrawTick: make(chan struct{}, 1),
	}
}

// State returns a copy of the current state.
func (r *Runner) State() model.DashboardState {
	return r.state
}

// EnableMockTomorrow makes RunOnce substitute MockTomorrow when tomorrow's
// prices are not published yet. Mock prices are never written to the cache.
func (r *Runner) EnableMockTomorrow() {
	r.mockTomorrow = true
}

// Run draws from cache, fetches, then loops on the timers until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.loadCached()
	r.logCycle("redraw", r.guard("redraw", r.redraw))

	sched, err := r.newScheduler()
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	appLog.Info("loop started",
		"update_interval", r.cfg.UpdateInterval.String(),
		"redraw_interval", r.cfg.RedrawInterval.String(),
		"refresh", r.cfg.RefreshCron,
	)

	notify(r.fetchTick)
	for {
		select {
		case <-ctx.Done():
			appLog.Info("loop stopped")
			return nil
		case <-r.fetchTick:
			r.logCycle("fetch", r.guard("fetch", func() error { return r.fetch(ctx) }))
			r.logCycle("redraw", r.guard("redraw", r.redraw))
		case <-r.redrawTick:
			r.logCycle("redraw", r.guard("redraw", r.redraw))
		}
	}
}

// RunOnce performs one cache load, fetch and redraw.
func (r *Runner) RunOnce(ctx context.Context) error {
	r.loadCached()
	fetchErr := r.guard("fetch", func() error { return r.fetch(ctx) })
	r.logCycle("fetch", fetchErr)
	if r.mockTomorrow && !r.state.HasTomorrow() {
		if mock := MockTomorrow(r.state.Today, r.loc); mock != nil {
			appLog.Info("using mock prices for tomorrow", "date", mock.Date)
			r.state.Tomorrow = mock
		}
	}
	return errors.Join(fetchErr, r.guard("redraw", r.redraw))
}

func (r *Runner) newScheduler() (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(r.loc))

	fetchJob := cron.FuncJob(func() { notify(r.fetchTick) })
	if r.cfg.RefreshCron != "" {
		if _, err := c.AddJob(r.cfg.RefreshCron, fetchJob); err != nil {
			return nil, fmt.Errorf("runner: invalid refresh schedule %q: %w", r.cfg.RefreshCron, err)
		}
	} else {
		c.Schedule(cron.Every(r.cfg.UpdateInterval), fetchJob)
	}
	c.Schedule(cron.Every(r.cfg.RedrawInterval), cron.FuncJob(func() { notify(r.redrawTick) }))
	return c, nil
}

// notify never blocks: a tick that arrives while the loop is busy is merged
// with the pending one.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// guard runs one cycle and turns a panic into an error.
func (r *Runner) guard(name string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			kv := append([]any{"cycle", name}, r.stateFields()...)
			kv = append(kv, "stack", string(debug.Stack()))
			appLog.Error("cycle panicked", fmt.Errorf("%v", rec), kv...)
			err = fmt.Errorf("%s: panic: %v", name, rec)
			r.setPhase(PhaseIdle)
		}
	}()
	return fn()
}

func (r *Runner) logCycle(name string, err error) {
	if err == nil {
		return
	}
	kv := []any{"cycle", name}
	if errors.Is(err, model.ErrRender) {
		kv = append(kv, r.stateFields()...)
	}
	appLog.Error("cycle failed", err, kv...)
}

// stateFields summarises the state for failure logs.
func (r *Runner) stateFields() []any {
	st := r.state
	kv := []any{
		"now", st.Now.Format(time.RFC3339),
		"alert", st.Alert,
		"message", st.Message,
		"weather", st.Weather != nil,
		"last_fetch", st.LastFetch.Format(time.RFC3339),
		"last_render", st.LastRender.Format(time.RFC3339),
	}
	for _, d := range []struct {
		key string
		c   *model.DailyPriceCache
	}{{"today", st.Today}, {"tomorrow", st.Tomorrow}} {
		if d.c == nil {
			kv = append(kv, d.key, "none")
			continue
		}
		kv = append(kv, d.key, d.c.Date, d.key+"_slots", len(d.c.Electricity), d.key+"_gas", len(d.c.Gas))
	}
	return kv
}

func (r *Runner) setPhase(p Phase) {
	if r.phase == p {
		return
	}
	appLog.Debug("phase", "from", string(r.phase), "to", string(p))
	r.phase = p
}

// loadCached seeds the state from disk so the first frame has data even
// before the network is reachable.
func (r *Runner) loadCached() {
	now := r.clock().In(r.loc)
	today := model.DayStart(now, r.loc)

	if c, err := r.deps.Store.Load(today); err != nil {
		appLog.Error("startup cache load failed", err, "date", model.DateOf(today, r.loc))
	} else if c != nil {
		r.state.Today = c
		appLog.Info("loaded cached prices", "date", c.Date, "slots", len(c.Electricity))
	}

	if c, err := r.deps.Store.Load(today.AddDate(0, 0, 1)); err != nil {
		appLog.Error("startup cache load failed", err, "date", model.DateOf(today.AddDate(0, 0, 1), r.loc))
	} else if !c.Empty() {
		r.state.Tomorrow = c
		appLog.Info("loaded cached prices", "date", c.Date, "slots", len(c.Electricity))
	}
	r.state.Now = now
}

// rollover moves tomorrow into today after local midnight and drops days
// that no longer apply.
func (r *Runner) rollover(now time.Time) {
	today := model.DateOf(now, r.loc)
	tomorrow := model.DateOf(model.DayStart(now, r.loc).AddDate(0, 0, 1), r.loc)

	if r.state.Today != nil && r.state.Today.Date != today {
		if r.state.Tomorrow != nil && r.state.Tomorrow.Date == today {
			appLog.Info("day rollover", "date", today)
			r.state.Today, r.state.Tomorrow = r.state.Tomorrow, nil
		} else {
			r.state.Today = nil
		}
	}
	if r.state.Tomorrow != nil && r.state.Tomorrow.Date != tomorrow {
		r.state.Tomorrow = nil
	}
}

// fetch refreshes prices, weather and alerts, persists fresh prices and
// prunes old cache files. Only a failure to get today's prices is returned.
func (r *Runner) fetch(ctx context.Context) error {
	r.setPhase(PhaseFetching)
	defer r.setPhase(PhaseIdle)

	now := r.clock().In(r.loc)
	r.rollover(now)
	today := model.DayStart(now, r.loc)

	req := fetch.PriceRequest{
		Region:             r.cfg.Tariff.Region,
		ElectricityProduct: r.cfg.Tariff.AgileProduct,
		GasProduct:         r.cfg.Tariff.GasProduct,
		Day:                today,
	}

	var todayErr error
	if res, err := r.deps.Fetcher.FetchPrices(ctx, req); err != nil {
		todayErr = fmt.Errorf("today's prices: %w", err)
	} else {
		r.state.Today = res.Prices
		r.persist(res)
	}

	req.Day = today.AddDate(0, 0, 1)
	res, err := r.deps.Fetcher.FetchPrices(ctx, req)
	switch {
	case err == nil:
		r.state.Tomorrow = res.Prices
		r.persist(res)
	case errors.Is(err, model.ErrDataUnavailable):
		appLog.Debug("tomorrow's prices not published yet")
	default:
		appLog.Error("tomorrow's prices fetch failed", err)
	}

	if r.cfg.Weather.Enabled {
		snap, err := r.deps.Fetcher.FetchWeather(ctx, r.cfg.Weather.Latitude, r.cfg.Weather.Longitude)
		if err != nil {
			// keep showing the previous reading
			appLog.Error("weather fetch failed", err)
		} else {
			r.state.Weather = snap
		}
	}

	if r.deps.Alerts != nil {
		res := r.deps.Alerts.Poll(ctx)
		r.state.Alert, r.state.Message = res.Alert, res.Message
	}

	r.state.LastFetch = now

	if removed, err := r.deps.Store.Prune(r.cfg.CacheMaxAgeDays); err != nil {
		appLog.Error("cache prune failed", err)
	} else if len(removed) > 0 {
		appLog.Info("cache pruned", "files", removed)
	}

	if r.deps.Publisher != nil {
		r.deps.Publisher.Publish(r.state, nil)
	}
	return todayErr
}

func (r *Runner) persist(res fetch.PriceResult) {
	if res.FromCache {
		return
	}
	if err := r.deps.Store.Save(res.Prices); err != nil {
		appLog.Error("price cache save failed", err, "date", res.Prices.Date)
	}
}

// redraw renders the current state and hands it to the presenter.
func (r *Runner) redraw() error {
	r.setPhase(PhaseRendering)
	defer r.setPhase(PhaseIdle)

	now := r.clock().In(r.loc)
	r.rollover(now)
	r.state.Now = now

	frame := render.Render(r.state, r.opts)
	if err := r.deps.Presenter.Present(frame); err != nil {
		return fmt.Errorf("%w: present: %w", model.ErrRender, err)
	}
	r.state.LastRender = now

	if r.deps.Publisher != nil {
		r.deps.Publisher.Publish(r.state, frame)
	}
	return nil
}
