package lifx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"

	"go.yhsif.com/lifxlan"

	"github.com/dokzlo13/ceilingd/internal/color"
	"github.com/dokzlo13/ceilingd/internal/device"
	"github.com/dokzlo13/ceilingd/internal/zones"
)

// Matrix and power messages of the LAN protocol.
const (
	msgSetLightPower   lifxlan.MessageType = 117
	msgGet64           lifxlan.MessageType = 707
	msgState64         lifxlan.MessageType = 711
	msgSet64           lifxlan.MessageType = 715
	msgCopyFrameBuffer lifxlan.MessageType = 716
)

// Set64 writes into frame buffer 1, which CopyFrameBuffer then makes visible.
const (
	visibleFrameBuffer = 0
	stagingFrameBuffer = 1
)

type set64Payload struct {
	TileIndex     uint8
	Length        uint8
	FrameBuffer   uint8
	X, Y, Width   uint8
	DurationMilli uint32
	Colors        [zones.MaxSegmentZones]lifxlan.Color
}

type copyFrameBufferPayload struct {
	TileIndex      uint8
	Length         uint8
	SrcFrameBuffer uint8
	DstFrameBuffer uint8
	SrcX, SrcY     uint8
	DstX, DstY     uint8
	Width, Height  uint8
	DurationMilli  uint32
}

type setLightPowerPayload struct {
	Level         uint16
	DurationMilli uint32
}

type get64Payload struct {
	TileIndex   uint8
	Length      uint8
	Reserved    uint8
	X, Y, Width uint8
}

type state64Payload struct {
	TileIndex   uint8
	Reserved    uint8
	X, Y, Width uint8
	Colors      [zones.MaxSegmentZones]lifxlan.Color
}

// encode maps a device message to its wire type and payload.
func encode(msg device.Message) (lifxlan.MessageType, any, error) {
	switch m := msg.(type) {
	case device.SetZones:
		if len(m.Colors) > zones.MaxSegmentZones {
			return 0, nil, fmt.Errorf("set_zones: %d colors exceed %d", len(m.Colors), zones.MaxSegmentZones)
		}
		p := &set64Payload{
			Length:        1,
			FrameBuffer:   stagingFrameBuffer,
			X:             m.X,
			Y:             m.Y,
			Width:         m.Width,
			DurationMilli: millis(m.Duration),
		}
		for i, c := range m.Colors {
			p.Colors[i] = toWire(c)
		}
		return msgSet64, p, nil

	case device.CopyFrameBuffer:
		return msgCopyFrameBuffer, &copyFrameBufferPayload{
			Length:         1,
			SrcFrameBuffer: stagingFrameBuffer,
			DstFrameBuffer: visibleFrameBuffer,
			Width:          m.Width,
			Height:         m.Height,
			DurationMilli:  millis(m.Duration),
		}, nil

	case device.SetPower:
		level := uint16(lifxlan.PowerOff)
		if m.On {
			level = uint16(lifxlan.PowerOn)
		}
		return msgSetLightPower, &setLightPowerPayload{
			Level:         level,
			DurationMilli: millis(m.Duration),
		}, nil
	}
	return 0, nil, fmt.Errorf("unsupported message %T", msg)
}

// decodeState64 reads one 64-zone block.
func decodeState64(payload []byte) (state64Payload, error) {
	var p state64Payload
	if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, &p); err != nil {
		return p, fmt.Errorf("decode state64: %w", err)
	}
	return p, nil
}

func toWire(c color.HSBK) lifxlan.Color {
	return lifxlan.Color{Hue: c.Hue, Saturation: c.Saturation, Brightness: c.Brightness, Kelvin: c.Kelvin}
}

func fromWire(c lifxlan.Color) color.HSBK {
	return color.HSBK{Hue: c.Hue, Saturation: c.Saturation, Brightness: c.Brightness, Kelvin: c.Kelvin}
}

func millis(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d / time.Millisecond)
}

// parseTarget accepts a serial either as 12 hex digits or colon separated.
func parseTarget(serial string) (lifxlan.Target, error) {
	s := strings.ToLower(strings.ReplaceAll(serial, ":", ""))
	if len(s) != 12 {
		return 0, fmt.Errorf("invalid serial %q", serial)
	}
	mac := make([]string, 0, 6)
	for i := 0; i < len(s); i += 2 {
		mac = append(mac, s[i:i+2])
	}
	if _, err := net.ParseMAC(strings.Join(mac, ":")); err != nil {
		return 0, fmt.Errorf("invalid serial %q: %w", serial, err)
	}
	return lifxlan.ParseTarget(strings.Join(mac, ":"))
}
