package ceiling

import (
	"fmt"
	"strings"

	"github.com/dokzlo13/ceilingd/internal/color"
	"github.com/dokzlo13/ceilingd/internal/zones"
)

// Light selects one of the two logical lights of a fixture.
type Light int

const (
	Downlight Light = iota
	Uplight
)

// String returns the light's name.
func (l Light) String() string {
	switch l {
	case Downlight:
		return "downlight"
	case Uplight:
		return "uplight"
	default:
		return "unknown"
	}
}

// Other returns the sibling light.
func (l Light) Other() Light {
	if l == Uplight {
		return Downlight
	}
	return Uplight
}

// ParseLight parses "downlight" or "uplight".
func ParseLight(s string) (Light, error) {
	switch strings.ToLower(s) {
	case "downlight":
		return Downlight, nil
	case "uplight":
		return Uplight, nil
	default:
		return 0, fmt.Errorf("unknown light %q", s)
	}
}

// LightState is the remembered intent for one light.
type LightState struct {
	On    bool       `json:"on"`
	Color color.HSBK `json:"color"`
}

// effective is the color the light should show on the fixture.
func (s LightState) effective() color.HSBK {
	if s.On {
		return s.Color
	}
	return s.Color.Dimmed()
}

// DeviceState is the virtual state of both lights of one fixture.
type DeviceState struct {
	Downlight LightState `json:"downlight"`
	Uplight   LightState `json:"uplight"`
}

// Get returns the state of l.
func (s DeviceState) Get(l Light) LightState {
	if l == Uplight {
		return s.Uplight
	}
	return s.Downlight
}

// With returns a copy with l replaced.
func (s DeviceState) With(l Light, ls LightState) DeviceState {
	if l == Uplight {
		s.Uplight = ls
	} else {
		s.Downlight = ls
	}
	return s
}

// ZoneArray builds the zone colors for the fixture. Lights that are off keep
// their hue, saturation and kelvin with zero brightness.
func (s DeviceState) ZoneArray(total int) zones.Array {
	return zones.Build(s.Downlight.effective(), s.Uplight.effective(), total)
}

// seedFromHardware derives the initial virtual state from a zone readback.
func seedFromHardware(a zones.Array, powered bool) (DeviceState, error) {
	down, up, err := zones.Split(a)
	if err != nil {
		return DeviceState{}, err
	}
	return DeviceState{
		Downlight: LightState{On: powered && down.Brightness > 0, Color: down},
		Uplight:   LightState{On: powered && up.Brightness > 0, Color: up},
	}, nil
}
