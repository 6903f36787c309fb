package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"agiledash/internal/fsutil"
)

// TariffConfig selects the Octopus products and pricing region.
type TariffConfig struct {
	// Region is the single-letter grid supply point group, e.g. "C" for London.
	Region string `yaml:"region" json:"region"`
	// AgileProduct is the electricity product code, e.g. "AGILE-24-10-01".
	AgileProduct string `yaml:"agile_product" json:"agile_product"`
	// GasProduct is the gas tracker product code. Empty disables gas.
	GasProduct string `yaml:"gas_product" json:"gas_product"`
}

// WeatherConfig holds the coordinates passed to Open-Meteo.
type WeatherConfig struct {
	Enabled   bool    `yaml:"enabled" json:"enabled"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
	BaseURL   string  `yaml:"base_url" json:"base_url"`
}

// DisplayConfig describes the output device.
type DisplayConfig struct {
	// Driver is "st7789" for the SPI panel or "png" to write image files.
	Driver   string `yaml:"driver" json:"driver"`
	Width    int    `yaml:"width" json:"width"`
	Height   int    `yaml:"height" json:"height"`
	Rotation int    `yaml:"rotation" json:"rotation"`

	// SPIPort is the periph.io port name ("" picks the first one, e.g. "SPI0.1").
	SPIPort    string `yaml:"spi_port" json:"spi_port"`
	SPISpeedHz int64  `yaml:"spi_speed_hz" json:"spi_speed_hz"`
	// BCM pin numbers. A negative value means "not wired".
	DCPin        int `yaml:"dc_pin" json:"dc_pin"`
	BacklightPin int `yaml:"backlight_pin" json:"backlight_pin"`
	ResetPin     int `yaml:"reset_pin" json:"reset_pin"`

	// OutputDir is where the png driver writes frames.
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// Thresholds are the pence cutoffs of the price colour rule.
type Thresholds struct {
	Cheap     float64 `yaml:"cheap" json:"cheap"`
	Moderate  float64 `yaml:"moderate" json:"moderate"`
	Expensive float64 `yaml:"expensive" json:"expensive"`
}

// HTTPConfig tunes the outbound clients shared by every upstream.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// BreakerFailures consecutive failures open the circuit breaker.
	BreakerFailures uint32 `yaml:"breaker_failures" json:"breaker_failures"`
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration `yaml:"breaker_timeout" json:"breaker_timeout"`
}

// HACondition is a single Home Assistant entity check.
type HACondition struct {
	EntityID string `yaml:"entity_id" json:"entity_id"`
	// Condition is one of less_than, greater_than, equals, not_equals.
	Condition   string `yaml:"condition" json:"condition"`
	Value       string `yaml:"value" json:"value"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// HomeAssistantConfig enables the optional alert poll. Empty URL disables it.
type HomeAssistantConfig struct {
	URL        string        `yaml:"url" json:"url"`
	Token      string        `yaml:"token" json:"-"`
	Conditions []HACondition `yaml:"conditions" json:"conditions"`
	// Logic combines conditions: "AND" (default) or "OR".
	Logic         string `yaml:"logic" json:"logic"`
	MessageEntity string `yaml:"message_entity" json:"message_entity"`
}

// Enabled reports whether a Home Assistant URL is configured.
func (h HomeAssistantConfig) Enabled() bool {
	return h.URL != ""
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the status server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the status server address. Empty disables the server.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for calendar days and the header clock.
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir holds the price-data-YYYY-MM-DD.json files.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// CacheMaxAgeDays is the retention window; files this many days old or
	// older are deleted.
	CacheMaxAgeDays int `yaml:"cache_max_age_days" json:"cache_max_age_days"`

	UpdateInterval time.Duration `yaml:"update_interval" json:"update_interval"`
	RedrawInterval time.Duration `yaml:"redraw_interval" json:"redraw_interval"`

	// RefreshCron, if set, is a cron schedule (e.g. "*/5 * * * *") that
	// replaces UpdateInterval for data refresh.
	RefreshCron string `yaml:"refresh,omitempty" json:"refresh,omitempty"`

	Title string `yaml:"title" json:"title"`

	Tariff        TariffConfig        `yaml:"tariff" json:"tariff"`
	Weather       WeatherConfig       `yaml:"weather" json:"weather"`
	Display       DisplayConfig       `yaml:"display" json:"display"`
	Thresholds    Thresholds          `yaml:"thresholds" json:"thresholds"`
	HTTP          HTTPConfig          `yaml:"http" json:"http"`
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant" json:"home_assistant"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultTimezone       = "Europe/London"
	defaultCacheDir       = "/var/lib/agiledash"
	defaultUpdateInterval = 5 * time.Minute
	defaultRedrawInterval = 30 * time.Second
	defaultTitle          = "Octopus Energy"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "",
		Timezone:        defaultTimezone,
		LogLevel:        "info",
		CacheDir:        defaultCacheDir,
		CacheMaxAgeDays: 2,
		UpdateInterval:  defaultUpdateInterval,
		RedrawInterval:  defaultRedrawInterval,
		Title:           defaultTitle,
		Tariff: TariffConfig{
			Region:       "C",
			AgileProduct: "AGILE-24-10-01",
			GasProduct:   "SILVER-25-09-02",
		},
		Weather: WeatherConfig{
			Enabled:   true,
			Latitude:  51.5074,
			Longitude: -0.1278,
			BaseURL:   "https://api.open-meteo.com/v1",
		},
		Display: DisplayConfig{
			Driver:       "st7789",
			Width:        320,
			Height:       240,
			Rotation:     0,
			SPIPort:      "",
			SPISpeedHz:   80_000_000,
			DCPin:        9,
			BacklightPin: 13,
			ResetPin:     -1,
			OutputDir:    "./output",
		},
		Thresholds: Thresholds{Cheap: 10, Moderate: 20, Expensive: 35},
		HTTP: HTTPConfig{
			Timeout:         10 * time.Second,
			BreakerFailures: 3,
			BreakerTimeout:  2 * time.Minute,
		},
		HomeAssistant: HomeAssistantConfig{Logic: "AND"},
		BasicAuth:     nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.CacheMaxAgeDays <= 0 {
		c.CacheMaxAgeDays = def.CacheMaxAgeDays
	}
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = def.UpdateInterval
	}
	if c.RedrawInterval <= 0 {
		c.RedrawInterval = def.RedrawInterval
	}
	// The clock on screen must never lag the data refresh.
	if c.RedrawInterval > c.UpdateInterval {
		c.RedrawInterval = c.UpdateInterval
	}
	if c.Title == "" {
		c.Title = def.Title
	}

	if c.Tariff.Region == "" {
		c.Tariff.Region = def.Tariff.Region
	}
	if c.Tariff.AgileProduct == "" {
		c.Tariff.AgileProduct = def.Tariff.AgileProduct
	}

	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = def.Weather.BaseURL
	}

	switch c.Display.Driver {
	case "st7789", "png":
		// ok
	default:
		c.Display.Driver = def.Display.Driver
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		c.Display.Width, c.Display.Height = def.Display.Width, def.Display.Height
	}
	switch c.Display.Rotation {
	case 0, 180:
	default:
		c.Display.Rotation = 0
	}
	if c.Display.SPISpeedHz <= 0 {
		c.Display.SPISpeedHz = def.Display.SPISpeedHz
	}
	if c.Display.OutputDir == "" {
		c.Display.OutputDir = def.Display.OutputDir
	}

	// Thresholds must be ascending; anything else falls back to defaults as a set.
	th := c.Thresholds
	if th.Cheap <= 0 || th.Moderate <= th.Cheap || th.Expensive <= th.Moderate {
		c.Thresholds = def.Thresholds
	}

	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = def.HTTP.Timeout
	}
	if c.HTTP.BreakerFailures == 0 {
		c.HTTP.BreakerFailures = def.HTTP.BreakerFailures
	}
	if c.HTTP.BreakerTimeout <= 0 {
		c.HTTP.BreakerTimeout = def.HTTP.BreakerTimeout
	}

	c.HomeAssistant.Logic = strings.ToUpper(strings.TrimSpace(c.HomeAssistant.Logic))
	if c.HomeAssistant.Logic != "OR" {
		c.HomeAssistant.Logic = "AND"
	}
	if c.HomeAssistant.Conditions == nil {
		c.HomeAssistant.Conditions = []HACondition{}
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, ".agiledash-config-*.tmp", data)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
