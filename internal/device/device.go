// Package device defines the fixture handle and the transport contract the
// coordinator drives. The wire protocol lives behind Transport.
package device

import (
	"context"
	"time"

	"github.com/dokzlo13/ceilingd/internal/color"
	"github.com/dokzlo13/ceilingd/internal/zones"
)

// Handle identifies one physical fixture. It is owned by the registry.
type Handle struct {
	Serial    string `json:"serial"`
	Addr      string `json:"addr"`
	ProductID uint32 `json:"product_id"`
	Label     string `json:"label,omitempty"`
}

// Ceiling is a handle known to be a dual-zone ceiling fixture. It is built once
// from a Handle when the product id is known.
type Ceiling struct {
	Handle
	Caps zones.Capabilities
}

// NewCeiling wraps h with the capabilities of its product.
func NewCeiling(h Handle) *Ceiling {
	return &Ceiling{
		Handle: h,
		Caps:   zones.Lookup(h.ProductID),
	}
}

// Model returns a friendly product name.
func (c *Ceiling) Model() string {
	return c.Caps.Name
}

// Message is one device operation.
type Message interface {
	Kind() string
}

// SetZones writes colors into the staging frame buffer.
type SetZones struct {
	X        uint8
	Y        uint8
	Width    uint8
	Duration time.Duration
	Colors   []color.HSBK
}

// CopyFrameBuffer makes the staging frame buffer visible.
type CopyFrameBuffer struct {
	Width    uint8
	Height   uint8
	Duration time.Duration
}

// SetPower switches the whole fixture.
type SetPower struct {
	On       bool
	Duration time.Duration
}

func (SetZones) Kind() string        { return "set_zones" }
func (CopyFrameBuffer) Kind() string { return "copy_frame_buffer" }
func (SetPower) Kind() string        { return "set_power" }

// Ack is the device's acknowledgement of one message.
type Ack struct {
	Kind       string
	Sequence   uint8
	ReceivedAt time.Time
}

// Snapshot is the hardware state read back from a fixture.
type Snapshot struct {
	Zones      zones.Array
	PowerLevel uint16
	Label      string
}

// PoweredOn reports whether the fixture's power level is non-zero.
func (s Snapshot) PoweredOn() bool {
	return s.PowerLevel > 0
}

// Transport sends operations to fixtures.
type Transport interface {
	// Send fires msg and returns immediately. onComplete is called at most
	// once, with the ack or with nil if the device did not answer.
	Send(ctx context.Context, target Handle, msg Message, onComplete func(*Ack))

	// ReadState reads the full zone array and power level.
	ReadState(ctx context.Context, target *Ceiling) (Snapshot, error)
}
