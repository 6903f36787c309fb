package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agiledash/internal/cache"
	"agiledash/internal/config"
	"agiledash/internal/display"
	"agiledash/internal/fetch"
	"agiledash/internal/homeassistant"
	"agiledash/internal/httpx"
	appLog "agiledash/internal/log"
	"agiledash/internal/octopus"
	"agiledash/internal/runner"
	"agiledash/internal/weather"
	"agiledash/internal/web"
)

var version = "0.1.0-dev"

const defaultConfigPath = "/etc/agiledash/config.yaml"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	envPath    string
	listen     string
	once       bool
	snapshot   string
	debug      bool

	mockTomorrow bool
}

func main() {
	flags := parseFlags()
	defer appLog.Sync()

	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("agiledash starting", "version", version)

	if err := config.LoadEnvFile(flags.envPath); err != nil {
		appLog.Error("failed to load env file", err, "path", flags.envPath)
		os.Exit(1)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if !flags.debug {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"region", conf.Tariff.Region,
		"agile_product", conf.Tariff.AgileProduct,
		"gas_product", conf.Tariff.GasProduct,
		"driver", conf.Display.Driver,
		"update_interval", conf.UpdateInterval.String(),
		"redraw_interval", conf.RedrawInterval.String(),
		"cache_dir", conf.CacheDir,
		"weather", conf.Weather.Enabled,
		"home_assistant", conf.HomeAssistant.Enabled(),
		"once", flags.once,
		"snapshot", flags.snapshot,
		"mock_tomorrow", flags.mockTomorrow,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("agiledash failed", err)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Info("agiledash exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	loc := conf.Location()
	store := cache.NewStore(conf.CacheDir, loc)

	breaker := httpx.BreakerConfig{
		Failures: conf.HTTP.BreakerFailures,
		OpenFor:  conf.HTTP.BreakerTimeout,
	}
	tariffs := octopus.NewClient(httpx.NewTransport("octopus", http.DefaultTransport, breaker), conf.HTTP.Timeout, loc)

	var ws fetch.WeatherSource
	if conf.Weather.Enabled {
		ws = weather.NewClient(httpx.NewClient("open-meteo", conf.HTTP.Timeout, breaker), conf.Weather.BaseURL)
	}

	deps := runner.Deps{
		Fetcher: fetch.NewFetcher(tariffs, ws, store, loc),
		Store:   store,
	}

	if conf.HomeAssistant.Enabled() {
		ha := homeassistant.NewClient(
			httpx.NewClient("home-assistant", homeassistant.DefaultTimeout, breaker),
			conf.HomeAssistant.URL,
			conf.HomeAssistant.Token,
		)
		deps.Alerts = homeassistant.NewPoller(ha, conf.HomeAssistant)
	}

	presenter, err := openPresenter(conf, flags)
	if err != nil {
		return err
	}
	defer func() {
		if err := presenter.Close(); err != nil {
			appLog.Error("display close failed", err)
		}
	}()
	deps.Presenter = presenter

	if flags.once || flags.snapshot != "" {
		r := runner.New(conf, deps)
		if flags.mockTomorrow {
			r.EnableMockTomorrow()
		}
		return r.RunOnce(ctx)
	}
	if flags.mockTomorrow {
		appLog.Warn("-mock-tomorrow only applies with -once or -snapshot")
	}

	var srvDone chan struct{}
	if conf.Listen != "" {
		srv := web.NewServer(conf)
		deps.Publisher = srv
		srvDone = make(chan struct{})
		go func() {
			defer close(srvDone)
			if err := srv.Start(ctx); err != nil {
				appLog.Error("HTTP server stopped", err)
			}
		}()
	}

	err = runner.New(conf, deps).Run(ctx)
	if srvDone != nil {
		// Wait for the graceful shutdown started by ctx cancellation.
		select {
		case <-srvDone:
		case <-time.After(6 * time.Second):
		}
	}
	return err
}

func openPresenter(conf *config.Config, flags flagConfig) (display.Presenter, error) {
	if flags.snapshot != "" {
		return display.NewSnapshotWriter(flags.snapshot)
	}
	return display.New(conf.Display)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", defaultConfigPath, "Path to config file")
	flag.StringVar(&cfg.envPath, "env", ".env", "Optional dotenv file with AGILEDASH_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch+render+display cycle and exit")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Fetch, render to this PNG file and exit")
	flag.BoolVar(&cfg.mockTomorrow, "mock-tomorrow", false, "With -once/-snapshot, show mock prices for tomorrow if none are published")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
