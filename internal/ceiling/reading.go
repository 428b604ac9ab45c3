package ceiling

import "github.com/dokzlo13/ceilingd/internal/color"

// Color modes reported for a light.
const (
	ColorModeHS   = "hs"
	ColorModeTemp = "color_temp"
)

// LightReading is what a caller should display for one light.
type LightReading struct {
	On         bool       `json:"on"`
	Color      color.HSBK `json:"color"`
	Brightness uint8      `json:"brightness"`
	Hue        float64    `json:"hue"`
	Saturation float64    `json:"saturation"`
	Kelvin     uint16     `json:"kelvin"`
	ColorMode  string     `json:"color_mode"`
}

// Reading is the state of a fixture as seen by callers.
type Reading struct {
	Serial     string       `json:"serial"`
	Label      string       `json:"label,omitempty"`
	Model      string       `json:"model"`
	PowerLevel uint16       `json:"power_level"`
	MinKelvin  uint16       `json:"min_kelvin"`
	MaxKelvin  uint16       `json:"max_kelvin"`
	Downlight  LightReading `json:"downlight"`
	Uplight    LightReading `json:"uplight"`
}

func newLightReading(virtual LightState, hardware color.HSBK, powered bool) LightReading {
	on := powered && virtual.On
	shown := virtual.Color
	if on {
		shown = hardware
	}

	mode := ColorModeTemp
	if shown.IsColor() {
		mode = ColorModeHS
	}

	return LightReading{
		On:         on,
		Color:      shown,
		Brightness: shown.Level(),
		Hue:        shown.HueDegrees(),
		Saturation: shown.SaturationPercent(),
		Kelvin:     shown.Kelvin,
		ColorMode:  mode,
	}
}
