package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "AGILEDASH_"

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables already set are not overridden. A missing file is
// not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// ApplyEnv overrides config values from AGILEDASH_* variables. Secrets such
// as the Home Assistant token are usually supplied this way instead of being
// written into the YAML file. Unparseable values are ignored.
func (c *Config) ApplyEnv() {
	setString(&c.Listen, "LISTEN")
	setString(&c.Timezone, "TIMEZONE")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.CacheDir, "CACHE_DIR")
	setString(&c.Tariff.Region, "REGION")
	setString(&c.Tariff.AgileProduct, "AGILE_PRODUCT")
	setString(&c.Tariff.GasProduct, "GAS_PRODUCT")
	setString(&c.Display.Driver, "DISPLAY_DRIVER")
	setString(&c.Display.OutputDir, "OUTPUT_DIR")
	setString(&c.HomeAssistant.URL, "HA_URL")
	setString(&c.HomeAssistant.Token, "HA_TOKEN")
	setString(&c.HomeAssistant.MessageEntity, "HA_MESSAGE_ENTITY")
	setFloat(&c.Weather.Latitude, "LATITUDE")
	setFloat(&c.Weather.Longitude, "LONGITUDE")
	setDuration(&c.UpdateInterval, "UPDATE_INTERVAL")
	setDuration(&c.RedrawInterval, "REDRAW_INTERVAL")

	c.Normalize()
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func setString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func setFloat(dst *float64, name string) {
	if v, ok := lookup(name); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, name string) {
	if v, ok := lookup(name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
