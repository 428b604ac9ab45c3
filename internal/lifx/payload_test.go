package lifx

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"go.yhsif.com/lifxlan"

	"github.com/dokzlo13/ceilingd/internal/color"
	"github.com/dokzlo13/ceilingd/internal/device"
)

func TestEncode_SetZones(t *testing.T) {
	red := color.HSBK{Saturation: 65535, Brightness: 65535, Kelvin: 3500}
	colors := make([]color.HSBK, 64)
	colors[63] = red

	msgType, payload, err := encode(device.SetZones{Y: 4, Width: 16, Duration: 1500 * time.Millisecond, Colors: colors})
	if err != nil {
		t.Fatal(err)
	}
	if msgType != msgSet64 {
		t.Errorf("type = %d, want %d", msgType, msgSet64)
	}

	p := payload.(*set64Payload)
	if p.FrameBuffer != stagingFrameBuffer || p.Y != 4 || p.Width != 16 || p.DurationMilli != 1500 {
		t.Errorf("payload header = %+v", p)
	}
	if p.Colors[63] != (lifxlan.Color{Saturation: 65535, Brightness: 65535, Kelvin: 3500}) {
		t.Errorf("last color = %+v", p.Colors[63])
	}

	// 6 header bytes, 4 duration bytes, 64 colors of 8 bytes.
	if size := binary.Size(p); size != 6+4+64*8 {
		t.Errorf("wire size = %d", size)
	}
}

func TestEncode_SetZonesTooLong(t *testing.T) {
	if _, _, err := encode(device.SetZones{Colors: make([]color.HSBK, 65)}); err == nil {
		t.Error("expected error for 65 colors")
	}
}

func TestEncode_CopyFrameBuffer(t *testing.T) {
	_, payload, err := encode(device.CopyFrameBuffer{Width: 8, Height: 8})
	if err != nil {
		t.Fatal(err)
	}
	p := payload.(*copyFrameBufferPayload)
	if p.SrcFrameBuffer != stagingFrameBuffer || p.DstFrameBuffer != visibleFrameBuffer {
		t.Errorf("frame buffers = %d -> %d", p.SrcFrameBuffer, p.DstFrameBuffer)
	}
	if p.Width != 8 || p.Height != 8 || p.DurationMilli != 0 {
		t.Errorf("payload = %+v", p)
	}
}

func TestEncode_SetPower(t *testing.T) {
	tests := []struct {
		on   bool
		want uint16
	}{
		{true, 65535},
		{false, 0},
	}
	for _, tt := range tests {
		msgType, payload, err := encode(device.SetPower{On: tt.on, Duration: time.Second})
		if err != nil {
			t.Fatal(err)
		}
		p := payload.(*setLightPowerPayload)
		if msgType != msgSetLightPower || p.Level != tt.want || p.DurationMilli != 1000 {
			t.Errorf("SetPower(%v) = %d %+v", tt.on, msgType, p)
		}
	}
}

func TestDecodeState64(t *testing.T) {
	in := state64Payload{Width: 8}
	in.Colors[0] = lifxlan.Color{Kelvin: 2700, Brightness: 100}
	in.Colors[63] = lifxlan.Color{Hue: 43690, Saturation: 65535, Brightness: 65535, Kelvin: 3500}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &in); err != nil {
		t.Fatal(err)
	}

	out, err := decodeState64(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("decoded %+v", out)
	}
	if _, err := decodeState64(buf.Bytes()[:10]); err == nil {
		t.Error("expected error for short payload")
	}
}

func TestParseTarget(t *testing.T) {
	a, err := parseTarget("d073d5000001")
	if err != nil {
		t.Fatal(err)
	}
	b, err := parseTarget("D0:73:D5:00:00:01")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("targets differ: %v %v", a, b)
	}

	for _, bad := range []string{"", "d073d5", "zz73d5000001"} {
		if _, err := parseTarget(bad); err == nil {
			t.Errorf("parseTarget(%q) succeeded", bad)
		}
	}
}

func TestColorRoundTrip(t *testing.T) {
	c := color.HSBK{Hue: 1, Saturation: 2, Brightness: 3, Kelvin: 4}
	if got := fromWire(toWire(c)); got != c {
		t.Errorf("got %+v", got)
	}
}
