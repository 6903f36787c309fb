// Package display pushes rendered frames to an output device: the ST7789
// SPI panel on a Raspberry Pi, or PNG files for development.
package display

import (
	"fmt"
	"image"

	"agiledash/internal/config"
)

// Presenter shows a finished frame.
type Presenter interface {
	Present(img *image.RGBA) error
	Close() error
}

// New opens the presenter selected by cfg.Driver.
func New(cfg config.DisplayConfig) (Presenter, error) {
	switch cfg.Driver {
	case "png":
		return NewPNGWriter(cfg.OutputDir, cfg.Rotation)
	case "st7789", "":
		return OpenST7789(cfg)
	default:
		return nil, fmt.Errorf("display: unknown driver %q", cfg.Driver)
	}
}
