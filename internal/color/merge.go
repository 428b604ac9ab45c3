package color

// HS is a hue (degrees) and saturation (percent) pair.
type HS struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
}

// Partial is a sparse color update. Nil fields are absent.
type Partial struct {
	Name    *string  `json:"color_name,omitempty"`
	HS      *HS      `json:"hs_color,omitempty"`
	Kelvin  *uint16  `json:"color_temp_kelvin,omitempty"`
	Level   *uint8   `json:"brightness,omitempty"`
	Percent *float64 `json:"brightness_pct,omitempty"`
}

// IsEmpty reports whether no field is set.
func (p Partial) IsEmpty() bool {
	return p.Name == nil && p.HS == nil && p.Kelvin == nil && p.Level == nil && p.Percent == nil
}

// Merge folds p onto baseline and always returns a complete color.
//
// A named color resolves to hue/saturation and an explicit pair overrides it.
// Choosing a hue/saturation resets kelvin to NeutralKelvin. An explicit kelvin
// wins over that and forces saturation to 0. Brightness comes from Level, then
// Percent, then baseline, and a resulting 0 becomes full brightness.
//
// If the name is unknown the result uses neutral white (hue 0, saturation 0) and
// the returned error matches ErrUnknownColorName. The result is valid either way.
func Merge(baseline HSBK, p Partial) (HSBK, error) {
	var (
		hs     *HS
		warn   error
		result = baseline
	)

	if p.Name != nil {
		h, s, err := NameToHS(*p.Name)
		if err != nil {
			warn = err
			h, s = 0, 0
		}
		hs = &HS{Hue: h, Saturation: s}
	}
	if p.HS != nil {
		hs = p.HS
	}

	if hs != nil {
		result.Hue = scale(hs.Hue, 360)
		result.Saturation = scale(hs.Saturation, 100)
		result.Kelvin = NeutralKelvin
	}

	if p.Kelvin != nil {
		result.Kelvin = *p.Kelvin
		result.Saturation = 0
	}

	switch {
	case p.Level != nil:
		result.Brightness = LevelToBrightness(*p.Level)
	case p.Percent != nil:
		result.Brightness = LevelToBrightness(PercentToLevel(*p.Percent))
	}

	return result.WithFullBrightnessIfZero(), warn
}
