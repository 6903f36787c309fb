package render

import "image/color"

// Palette. Values match the dark dashboard theme of the panel.
var (
	Background = color.RGBA{17, 24, 39, 255}
	TextColor  = color.RGBA{255, 255, 255, 255}

	Green  = color.RGBA{34, 197, 94, 255}
	Blue   = color.RGBA{59, 130, 246, 255}
	Yellow = color.RGBA{234, 179, 8, 255}
	Red    = color.RGBA{239, 68, 68, 255}
	Orange = color.RGBA{251, 146, 60, 255}
	Purple = color.RGBA{168, 85, 247, 255}
	Gray   = color.RGBA{107, 114, 128, 255}

	TileLabel     = color.RGBA{200, 200, 200, 255}
	GasLabel      = color.RGBA{255, 220, 200, 255}
	GasTomorrow   = color.RGBA{200, 190, 180, 255}
	TomorrowBand  = color.RGBA{30, 40, 60, 255}
	Gridline      = color.RGBA{100, 110, 130, 255}
	AxisLabel     = color.RGBA{150, 150, 160, 255}
	NowMarker     = color.RGBA{220, 220, 220, 255}
	BoundaryColor = color.RGBA{230, 230, 240, 255}

	// AlertColor replaces the price colour of the "Now" tile while a Home
	// Assistant alert is active.
	AlertColor = Purple
)

// Thresholds are the pence cutoffs of the colour rule.
type Thresholds struct {
	Cheap     float64
	Moderate  float64
	Expensive float64
}

// DefaultThresholds is 10p / 20p / 35p.
var DefaultThresholds = Thresholds{Cheap: 10, Moderate: 20, Expensive: 35}

// PriceColor maps an electricity price to its band colour:
// below Cheap green, below Moderate blue, below Expensive yellow, else red.
func PriceColor(pence float64, th Thresholds) color.RGBA {
	switch {
	case pence < th.Cheap:
		return Green
	case pence < th.Moderate:
		return Blue
	case pence < th.Expensive:
		return Yellow
	default:
		return Red
	}
}

// GasColor is the fixed accent for gas prices, independent of value.
func GasColor() color.RGBA {
	return Orange
}
