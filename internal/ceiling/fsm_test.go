package ceiling

import (
	"testing"

	"github.com/dokzlo13/ceilingd/internal/color"
)

func TestDetermineOffAction(t *testing.T) {
	on := LightState{On: true}
	off := LightState{}

	tests := []struct {
		name    string
		current DeviceState
		light   Light
		want    OffAction
	}{
		{"uplight on keeps power for downlight", DeviceState{Downlight: on, Uplight: on}, Downlight, ActionZoneWrite},
		{"downlight on keeps power for uplight", DeviceState{Downlight: on, Uplight: on}, Uplight, ActionZoneWrite},
		{"last light on powers off", DeviceState{Downlight: on, Uplight: off}, Downlight, ActionPowerOff},
		{"both already off powers off", DeviceState{}, Uplight, ActionPowerOff},
		{"other on while self off still zone writes", DeviceState{Downlight: on}, Uplight, ActionZoneWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineOffAction(tt.current, tt.light); got != tt.want {
				t.Errorf("DetermineOffAction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyTurnOn(t *testing.T) {
	level := uint8(128)
	name := "red"

	tests := []struct {
		name string
		isOn bool
		req  Request
		want Intent
	}{
		{"on with nothing", true, Request{}, IntentTurnOn},
		{"on with color", true, Request{Color: color.Partial{Name: &name}}, IntentTurnOn},
		{"off with nothing", false, Request{}, IntentTurnOn},
		{"off with brightness", false, Request{Color: color.Partial{Level: &level}}, IntentRemember},
		{"off with color", false, Request{Color: color.Partial{Name: &name}}, IntentRemember},
		{"off with color and unknown key", false, Request{Color: color.Partial{Name: &name}, Unrecognized: []string{"effect"}}, IntentTurnOn},
		{"off with transition only", false, Request{Transition: 1e9}, IntentTurnOn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyTurnOn(tt.isOn, tt.req); got != tt.want {
				t.Errorf("ClassifyTurnOn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{ActionZoneWrite.String(), "zone_write"},
		{ActionPowerOff.String(), "power_off"},
		{OffAction(9).String(), "unknown"},
		{IntentTurnOn.String(), "turn_on"},
		{IntentRemember.String(), "remember"},
		{Downlight.String(), "downlight"},
		{Uplight.String(), "uplight"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseLight(t *testing.T) {
	for in, want := range map[string]Light{"downlight": Downlight, "Uplight": Uplight} {
		got, err := ParseLight(in)
		if err != nil || got != want {
			t.Errorf("ParseLight(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLight("sidelight"); err == nil {
		t.Error("expected error for unknown light")
	}
}

func TestDeviceState_ZoneArrayDimsOffLights(t *testing.T) {
	warm := color.HSBK{Brightness: 30000, Kelvin: 2700}
	blue := color.HSBK{Hue: 43690, Saturation: 65535, Brightness: 65535, Kelvin: 3500}

	st := DeviceState{
		Downlight: LightState{On: false, Color: warm},
		Uplight:   LightState{On: true, Color: blue},
	}
	arr := st.ZoneArray(64)

	if arr[0] != warm.Dimmed() || arr[62] != warm.Dimmed() {
		t.Errorf("downlight zones = %+v, want dimmed warm", arr[0])
	}
	if arr[63] != blue {
		t.Errorf("uplight zone = %+v, want %+v", arr[63], blue)
	}
	if arr[0].Kelvin != 2700 {
		t.Error("dimmed zone lost kelvin")
	}
}

func TestSeedFromHardware(t *testing.T) {
	warm := color.HSBK{Brightness: 30000, Kelvin: 2700}
	dark := color.HSBK{Kelvin: 4000}

	arr := DeviceState{
		Downlight: LightState{On: true, Color: warm},
		Uplight:   LightState{On: true, Color: dark},
	}.ZoneArray(64)

	st, err := seedFromHardware(arr, true)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Downlight.On || st.Uplight.On {
		t.Errorf("powered seed = %+v", st)
	}

	st, _ = seedFromHardware(arr, false)
	if st.Downlight.On || st.Uplight.On {
		t.Errorf("unpowered seed = %+v, want both off", st)
	}
	if st.Downlight.Color != warm {
		t.Errorf("unpowered seed lost color: %+v", st.Downlight.Color)
	}
}
