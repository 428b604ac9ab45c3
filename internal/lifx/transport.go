// Package lifx implements the device transport over the LIFX LAN protocol.
package lifx

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.yhsif.com/lifxlan"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/ceilingd/internal/device"
	"github.com/dokzlo13/ceilingd/internal/zones"
)

// Config tunes the transport.
type Config struct {
	// AckTimeout bounds how long one send waits for its ack.
	AckTimeout time.Duration
	// ReadTimeout bounds one full state read.
	ReadTimeout time.Duration
	// RateLimit and Burst cap messages per second to one device.
	RateLimit float64
	Burst     int
}

func (c Config) withDefaults() Config {
	if c.AckTimeout <= 0 {
		c.AckTimeout = 3 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 20
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	return c
}

type endpoint struct {
	dev     lifxlan.Device
	limiter *rate.Limiter
}

// Transport sends messages to fixtures by unicast UDP. Each send uses its own
// socket so acks from different attempts never interleave.
type Transport struct {
	cfg Config

	mu        sync.Mutex
	endpoints map[string]*endpoint
}

// New creates a transport.
func New(cfg Config) *Transport {
	return &Transport{
		cfg:       cfg.withDefaults(),
		endpoints: make(map[string]*endpoint),
	}
}

func (t *Transport) endpoint(h device.Handle) (*endpoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ep, ok := t.endpoints[h.Serial]; ok {
		return ep, nil
	}

	target, err := parseTarget(h.Serial)
	if err != nil {
		return nil, err
	}
	ep := &endpoint{
		dev:     lifxlan.NewDevice(h.Addr, lifxlan.ServiceUDP, target),
		limiter: rate.NewLimiter(rate.Limit(t.cfg.RateLimit), t.cfg.Burst),
	}
	t.endpoints[h.Serial] = ep
	return ep, nil
}

// Forget drops the cached endpoint so the next send re-reads the address.
func (t *Transport) Forget(serial string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.endpoints, serial)
}

// Send fires msg in the background. onComplete gets the ack, or nil when the
// device did not acknowledge within AckTimeout.
func (t *Transport) Send(ctx context.Context, target device.Handle, msg device.Message, onComplete func(*device.Ack)) {
	go func() {
		ack, err := t.send(ctx, target, msg)
		if err != nil {
			log.Debug().
				Err(err).
				Str("serial", target.Serial).
				Str("kind", msg.Kind()).
				Msg("Send not acknowledged")
		}
		onComplete(ack)
	}()
}

func (t *Transport) send(ctx context.Context, target device.Handle, msg device.Message) (*device.Ack, error) {
	msgType, payload, err := encode(msg)
	if err != nil {
		return nil, err
	}

	ep, err := t.endpoint(target)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.AckTimeout)
	defer cancel()

	if err := ep.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	conn, err := ep.dev.Dial()
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target.Addr, err)
	}
	defer conn.Close()

	seq, err := ep.dev.Send(ctx, conn, lifxlan.FlagAckRequired, msgType, payload)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", msg.Kind(), err)
	}
	if err := lifxlan.WaitForAcks(ctx, conn, ep.dev.Source(), seq); err != nil {
		return nil, fmt.Errorf("ack %s: %w", msg.Kind(), err)
	}

	return &device.Ack{Kind: msg.Kind(), Sequence: seq, ReceivedAt: time.Now()}, nil
}

// ReadState reads the power level, the label and every zone of the fixture.
// Zones are read in 64-zone blocks, one per row band of the tile.
func (t *Transport) ReadState(ctx context.Context, target *device.Ceiling) (device.Snapshot, error) {
	ep, err := t.endpoint(target.Handle)
	if err != nil {
		return device.Snapshot{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.ReadTimeout)
	defer cancel()

	if err := ep.limiter.Wait(ctx); err != nil {
		return device.Snapshot{}, err
	}

	conn, err := ep.dev.Dial()
	if err != nil {
		return device.Snapshot{}, fmt.Errorf("dial %s: %w", target.Addr, err)
	}
	defer conn.Close()

	power, err := ep.dev.GetPower(ctx, conn)
	if err != nil {
		return device.Snapshot{}, fmt.Errorf("get power: %w", err)
	}

	label := target.Label
	if err := ep.dev.GetLabel(ctx, conn); err == nil {
		if l := ep.dev.Label().String(); l != lifxlan.EmptyLabel {
			label = l
		}
	}

	arr, err := t.readZones(ctx, conn, ep.dev, target.Caps)
	if err != nil {
		return device.Snapshot{}, err
	}

	return device.Snapshot{
		Zones:      arr,
		PowerLevel: uint16(power),
		Label:      label,
	}, nil
}

func (t *Transport) readZones(ctx context.Context, conn net.Conn, dev lifxlan.Device, caps zones.Capabilities) (zones.Array, error) {
	arr := make(zones.Array, 0, caps.TotalZones)
	for start := 0; start < caps.TotalZones; start += zones.MaxSegmentZones {
		req := &get64Payload{
			Length: 1,
			Y:      uint8(start / int(caps.TileWidth)),
			Width:  caps.TileWidth,
		}
		seq, err := dev.Send(ctx, conn, lifxlan.FlagResRequired, msgGet64, req)
		if err != nil {
			return nil, fmt.Errorf("get64: %w", err)
		}

		block, err := waitState64(ctx, conn, dev.Source(), seq)
		if err != nil {
			return nil, err
		}

		n := caps.TotalZones - start
		if n > zones.MaxSegmentZones {
			n = zones.MaxSegmentZones
		}
		for _, c := range block.Colors[:n] {
			arr = append(arr, fromWire(c))
		}
	}
	return arr, nil
}

func waitState64(ctx context.Context, conn net.Conn, source uint32, seq uint8) (state64Payload, error) {
	for {
		resp, err := lifxlan.ReadNextResponse(ctx, conn)
		if err != nil {
			return state64Payload{}, fmt.Errorf("read state64: %w", err)
		}
		if resp.Source != source || resp.Sequence != seq || resp.Message != msgState64 {
			continue
		}
		return decodeState64(resp.Payload)
	}
}

// ProductID asks the device for its hardware version.
func (t *Transport) ProductID(ctx context.Context, h device.Handle) (uint32, error) {
	ep, err := t.endpoint(h)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.ReadTimeout)
	defer cancel()

	if err := ep.dev.GetHardwareVersion(ctx, nil); err != nil {
		return 0, fmt.Errorf("get hardware version of %s: %w", h.Serial, err)
	}
	return ep.dev.HardwareVersion().ProductID, nil
}

var _ device.Transport = (*Transport)(nil)
