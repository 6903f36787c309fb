package weather

// Condition is the coarse icon class for a WMO weather code.
type Condition int

const (
	Unknown Condition = iota
	Clear
	PartlyCloudy
	Cloudy
	Fog
	Drizzle
	Rain
	Snow
	Thunderstorm
)

func (c Condition) String() string {
	switch c {
	case Clear:
		return "clear"
	case PartlyCloudy:
		return "partly-cloudy"
	case Cloudy:
		return "cloudy"
	case Fog:
		return "fog"
	case Drizzle:
		return "drizzle"
	case Rain:
		return "rain"
	case Snow:
		return "snow"
	case Thunderstorm:
		return "thunderstorm"
	default:
		return "unknown"
	}
}

// WMO weather interpretation codes
var descriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// Description returns the human-readable text for a WMO code.
func Description(code int) string {
	if desc, ok := descriptions[code]; ok {
		return desc
	}
	return "Unknown"
}

// Classify maps a WMO code to the glyph drawn on the dashboard.
func Classify(code int) Condition {
	switch {
	case code == 0 || code == 1:
		return Clear
	case code == 2:
		return PartlyCloudy
	case code == 3:
		return Cloudy
	case code == 45 || code == 48:
		return Fog
	case code >= 51 && code <= 57:
		return Drizzle
	case code >= 61 && code <= 67, code >= 80 && code <= 82:
		return Rain
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return Snow
	case code >= 95 && code <= 99:
		return Thunderstorm
	default:
		return Unknown
	}
}
