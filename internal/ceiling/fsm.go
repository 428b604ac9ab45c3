package ceiling

import (
	"time"

	"github.com/dokzlo13/ceilingd/internal/color"
)

// OffAction is what turning a light off does to the fixture.
type OffAction int

const (
	// ActionZoneWrite dims the light's zones and leaves the fixture powered.
	ActionZoneWrite OffAction = iota
	// ActionPowerOff switches the whole fixture off.
	ActionPowerOff
)

// String returns a human-readable name for the action.
func (a OffAction) String() string {
	switch a {
	case ActionZoneWrite:
		return "zone_write"
	case ActionPowerOff:
		return "power_off"
	default:
		return "unknown"
	}
}

// DetermineOffAction picks the action for turning l off given the current
// virtual state. The fixture only goes dark when the other light is off too.
func DetermineOffAction(current DeviceState, l Light) OffAction {
	if current.Get(l.Other()).On {
		return ActionZoneWrite
	}
	return ActionPowerOff
}

// Intent is how a turn-on request is interpreted.
type Intent int

const (
	// IntentTurnOn switches the light on.
	IntentTurnOn Intent = iota
	// IntentRemember only stores the color for the next turn-on.
	IntentRemember
)

// String returns a human-readable name for the intent.
func (i Intent) String() string {
	switch i {
	case IntentTurnOn:
		return "turn_on"
	case IntentRemember:
		return "remember"
	default:
		return "unknown"
	}
}

// Request is a turn-on call with its optional attributes.
type Request struct {
	Color      color.Partial
	Transition time.Duration
	// Unrecognized lists attribute names the caller sent that are neither
	// color nor brightness attributes.
	Unrecognized []string
}

// ClassifyTurnOn decides whether a turn-on request for a light is a real
// turn-on or just a color adjustment to remember.
//
// A light that is on is always turned (kept) on. A light that is off only
// remembers the color when the request carries color or brightness attributes
// and nothing else; an empty request or any unrecognized attribute turns it on.
// Transition does not count as an adjustment, so a request with only a
// transition turns an off light on with its remembered color.
func ClassifyTurnOn(isOn bool, req Request) Intent {
	if isOn {
		return IntentTurnOn
	}
	if len(req.Unrecognized) > 0 {
		return IntentTurnOn
	}
	if !req.Color.IsEmpty() {
		return IntentRemember
	}
	return IntentTurnOn
}
