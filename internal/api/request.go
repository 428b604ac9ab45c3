package api

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dokzlo13/ceilingd/internal/ceiling"
	"github.com/dokzlo13/ceilingd/internal/color"
)

// Attribute names accepted by turn_on.
const (
	attrBrightness    = "brightness"
	attrBrightnessPct = "brightness_pct"
	attrHSColor       = "hs_color"
	attrKelvin        = "color_temp_kelvin"
	attrColorName     = "color_name"
	attrTransition    = "transition"
)

// parseTurnOn decodes a turn_on body. Keys it does not know are kept as
// unrecognized so the coordinator treats the call as an explicit turn-on.
func parseTurnOn(body []byte) (ceiling.Request, error) {
	var req ceiling.Request

	attrs, err := decodeObject(body)
	if err != nil {
		return req, err
	}

	for key, raw := range attrs {
		switch key {
		case attrBrightness:
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return req, fieldError(key, err)
			}
			level := uint8(math.Round(math.Max(0, math.Min(255, v))))
			req.Color.Level = &level
		case attrBrightnessPct:
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return req, fieldError(key, err)
			}
			req.Color.Percent = &v
		case attrHSColor:
			var v [2]float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return req, fieldError(key, err)
			}
			req.Color.HS = &color.HS{Hue: v[0], Saturation: v[1]}
		case attrKelvin:
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return req, fieldError(key, err)
			}
			kelvin := uint16(math.Max(0, math.Min(math.MaxUint16, v)))
			req.Color.Kelvin = &kelvin
		case attrColorName:
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return req, fieldError(key, err)
			}
			req.Color.Name = &v
		case attrTransition:
			d, err := parseTransition(raw)
			if err != nil {
				return req, err
			}
			req.Transition = d
		default:
			req.Unrecognized = append(req.Unrecognized, key)
		}
	}
	sort.Strings(req.Unrecognized)
	return req, nil
}

// parseTransitionOnly decodes a turn_off body, which only takes a transition.
func parseTransitionOnly(body []byte) (time.Duration, error) {
	attrs, err := decodeObject(body)
	if err != nil {
		return 0, err
	}
	raw, ok := attrs[attrTransition]
	if !ok {
		return 0, nil
	}
	return parseTransition(raw)
}

// setStateBody mirrors the flat set_state call: hue in degrees, saturation and
// brightness in percent.
type setStateBody struct {
	Transition          float64  `json:"transition"`
	DownlightHue        float64  `json:"downlight_hue"`
	DownlightSaturation float64  `json:"downlight_saturation"`
	DownlightBrightness *float64 `json:"downlight_brightness"`
	DownlightKelvin     uint16   `json:"downlight_kelvin"`
	UplightHue          float64  `json:"uplight_hue"`
	UplightSaturation   float64  `json:"uplight_saturation"`
	UplightBrightness   *float64 `json:"uplight_brightness"`
	UplightKelvin       uint16   `json:"uplight_kelvin"`
}

func parseSetState(body []byte) (ceiling.SetStateRequest, error) {
	var b setStateBody
	if len(body) > 0 {
		if err := json.Unmarshal(body, &b); err != nil {
			return ceiling.SetStateRequest{}, fmt.Errorf("invalid body: %w", err)
		}
	}
	if b.Transition < 0 {
		return ceiling.SetStateRequest{}, fieldError(attrTransition, fmt.Errorf("must not be negative"))
	}

	return ceiling.SetStateRequest{
		Downlight:  color.FromPercent(b.DownlightHue, b.DownlightSaturation, percentOrFull(b.DownlightBrightness), kelvinOrNeutral(b.DownlightKelvin)),
		Uplight:    color.FromPercent(b.UplightHue, b.UplightSaturation, percentOrFull(b.UplightBrightness), kelvinOrNeutral(b.UplightKelvin)),
		Transition: seconds(b.Transition),
	}, nil
}

func percentOrFull(p *float64) float64 {
	if p == nil {
		return 100
	}
	return *p
}

func kelvinOrNeutral(k uint16) uint16 {
	if k == 0 {
		return color.NeutralKelvin
	}
	return k
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	attrs := map[string]json.RawMessage{}
	if len(body) == 0 {
		return attrs, nil
	}
	if err := json.Unmarshal(body, &attrs); err != nil {
		return nil, fmt.Errorf("invalid body: %w", err)
	}
	return attrs, nil
}

func parseTransition(raw json.RawMessage) (time.Duration, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fieldError(attrTransition, err)
	}
	if v < 0 {
		return 0, fieldError(attrTransition, fmt.Errorf("must not be negative"))
	}
	return seconds(v), nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func fieldError(field string, err error) error {
	return fmt.Errorf("invalid %s: %w", field, err)
}
