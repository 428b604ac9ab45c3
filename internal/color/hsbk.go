// Package color implements the HSBK color model used by LIFX devices and the
// merge rules that fold a partial color request onto a remembered color.
package color

import "math"

const (
	// MaxBrightness is full brightness in device units.
	MaxBrightness uint16 = math.MaxUint16

	// NeutralKelvin is the color temperature used when a saturated color is chosen.
	NeutralKelvin uint16 = 3500
)

// HSBK is a device color. Hue, saturation and brightness use the full 16-bit
// range; kelvin is an absolute color temperature.
type HSBK struct {
	Hue        uint16 `json:"hue"`
	Saturation uint16 `json:"saturation"`
	Brightness uint16 `json:"brightness"`
	Kelvin     uint16 `json:"kelvin"`
}

// ToDeviceUnits scales user units (degrees, percent, 0-255 level) to device units.
func ToDeviceUnits(hueDeg, satPct float64, level uint8, kelvin uint16) HSBK {
	return HSBK{
		Hue:        scale(hueDeg, 360),
		Saturation: scale(satPct, 100),
		Brightness: LevelToBrightness(level),
		Kelvin:     kelvin,
	}
}

// FromPercent is like ToDeviceUnits but takes brightness as a percentage.
func FromPercent(hueDeg, satPct, briPct float64, kelvin uint16) HSBK {
	return HSBK{
		Hue:        scale(hueDeg, 360),
		Saturation: scale(satPct, 100),
		Brightness: scale(briPct, 100),
		Kelvin:     kelvin,
	}
}

// LevelToBrightness replicates an 8-bit level into both bytes.
func LevelToBrightness(level uint8) uint16 {
	v := uint16(level)
	return v | v<<8
}

// PercentToLevel converts a brightness percentage to a 0-255 level.
func PercentToLevel(pct float64) uint8 {
	return uint8(math.Round(clamp(pct, 0, 100) * 255 / 100))
}

func scale(v, full float64) uint16 {
	return uint16(clamp(v, 0, full) / full * math.MaxUint16)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HueDegrees returns the hue in degrees.
func (c HSBK) HueDegrees() float64 {
	return float64(c.Hue) / math.MaxUint16 * 360
}

// SaturationPercent returns the saturation as a percentage.
func (c HSBK) SaturationPercent() float64 {
	return float64(c.Saturation) / math.MaxUint16 * 100
}

// Level returns the brightness as a 0-255 level.
func (c HSBK) Level() uint8 {
	return uint8(c.Brightness >> 8)
}

// Dimmed returns the color with brightness zeroed. Hue, saturation and kelvin
// are kept so the zone can be restored later.
func (c HSBK) Dimmed() HSBK {
	c.Brightness = 0
	return c
}

// WithFullBrightnessIfZero substitutes full brightness for a dark color.
func (c HSBK) WithFullBrightnessIfZero() HSBK {
	if c.Brightness == 0 {
		c.Brightness = MaxBrightness
	}
	return c
}

// IsColor reports whether the color is saturated (as opposed to a white).
func (c HSBK) IsColor() bool {
	return c.Saturation > 0
}
