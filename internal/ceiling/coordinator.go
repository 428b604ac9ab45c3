// Package ceiling coordinates the two logical lights of a ceiling fixture.
//
// The fixture has one power switch and one zone strip. The uplight is the last
// zone and the downlight is every other zone. Each light has a virtual on/off
// state and a remembered color that outlive the physical power state: when the
// fixture is off both lights read as off, but their state is kept and applied
// again on the next turn-on.
package ceiling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ceilingd/internal/color"
	"github.com/dokzlo13/ceilingd/internal/device"
	"github.com/dokzlo13/ceilingd/internal/eventbus"
	"github.com/dokzlo13/ceilingd/internal/executor"
	"github.com/dokzlo13/ceilingd/internal/zones"
)

// ErrUnknownDevice is returned for a serial that was never discovered.
var ErrUnknownDevice = errors.New("unknown device")

// Publisher receives coordinator events.
type Publisher interface {
	Publish(event eventbus.Event)
}

type tracked struct {
	ceiling  *device.Ceiling
	snapshot device.Snapshot
}

// Coordinator owns the virtual state of every known fixture and turns light
// intents into device commands.
//
// Calls for the same fixture are not serialized. Callers that issue
// concurrent commands to one fixture must bound them themselves.
type Coordinator struct {
	transport device.Transport
	store     StateStore
	exec      executor.Config
	events    Publisher

	mu      sync.RWMutex
	devices map[string]*tracked
}

// New creates a coordinator. events may be nil.
func New(transport device.Transport, store StateStore, exec executor.Config, events Publisher) *Coordinator {
	return &Coordinator{
		transport: transport,
		store:     store,
		exec:      exec,
		events:    events,
		devices:   make(map[string]*tracked),
	}
}

// Discovered registers a fixture. The first time a serial is seen its virtual
// state is seeded from the hardware; later calls only refresh the handle and
// the hardware snapshot.
func (c *Coordinator) Discovered(ctx context.Context, h device.Handle) (*device.Ceiling, error) {
	ceiling := device.NewCeiling(h)

	snap, err := c.readSnapshot(ctx, ceiling)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	_, known := c.devices[h.Serial]
	c.devices[h.Serial] = &tracked{ceiling: ceiling, snapshot: snap}
	c.mu.Unlock()

	if known {
		log.Debug().Str("serial", h.Serial).Msg("Device rediscovered")
		return ceiling, nil
	}

	_, seeded, err := c.store.Get(h.Serial)
	if err != nil {
		return nil, fmt.Errorf("load state for %s: %w", h.Serial, err)
	}
	if !seeded {
		st, err := seedFromHardware(snap.Zones, snap.PoweredOn())
		if err != nil {
			return nil, err
		}
		if err := c.store.Put(h.Serial, st); err != nil {
			return nil, fmt.Errorf("seed state for %s: %w", h.Serial, err)
		}
		log.Info().
			Str("serial", h.Serial).
			Bool("downlight_on", st.Downlight.On).
			Bool("uplight_on", st.Uplight.On).
			Msg("Seeded virtual state from hardware")
	}

	log.Info().
		Str("serial", h.Serial).
		Str("addr", h.Addr).
		Str("model", ceiling.Model()).
		Int("zones", ceiling.Caps.TotalZones).
		Msg("Ceiling discovered")

	c.publish(eventbus.EventTypeDeviceDiscovered, h.Serial, map[string]any{
		"addr":       h.Addr,
		"product_id": h.ProductID,
		"seeded":     !seeded,
	})
	return ceiling, nil
}

// Devices returns all known fixtures.
func (c *Coordinator) Devices() []*device.Ceiling {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*device.Ceiling, 0, len(c.devices))
	for _, t := range c.devices {
		out = append(out, t.ceiling)
	}
	return out
}

// ReadState queries the fixture once and reports both lights. A light that
// is on shows the hardware color; a light that is off shows its remembered
// color, so its brightness does not read as zero.
func (c *Coordinator) ReadState(ctx context.Context, serial string) (Reading, error) {
	t, err := c.lookup(serial)
	if err != nil {
		return Reading{}, err
	}

	snap, err := c.refresh(ctx, serial, t.ceiling)
	if err != nil {
		return Reading{}, err
	}

	st, err := c.virtual(serial, snap)
	if err != nil {
		return Reading{}, err
	}

	down, up, err := zones.Split(snap.Zones)
	if err != nil {
		return Reading{}, err
	}

	powered := snap.PoweredOn()
	caps := t.ceiling.Caps
	return Reading{
		Serial:     serial,
		Label:      snap.Label,
		Model:      caps.Name,
		PowerLevel: snap.PowerLevel,
		MinKelvin:  caps.MinKelvin,
		MaxKelvin:  caps.MaxKelvin,
		Downlight:  newLightReading(st.Downlight, down, powered),
		Uplight:    newLightReading(st.Uplight, up, powered),
	}, nil
}

// TurnOn switches l on with col. The other light keeps its remembered color,
// dimmed to zero if it is off. The power level is read from the fixture first;
// a fixture that is powered off is powered on in the same request.
func (c *Coordinator) TurnOn(ctx context.Context, serial string, l Light, col color.HSBK, transition time.Duration) error {
	t, err := c.lookup(serial)
	if err != nil {
		return err
	}
	snap, err := c.refresh(ctx, serial, t.ceiling)
	if err != nil {
		return err
	}
	current, err := c.virtual(serial, snap)
	if err != nil {
		return err
	}

	next := current.With(l, LightState{On: true, Color: col})
	arr := next.ZoneArray(t.ceiling.Caps.TotalZones)
	powerOn := !snap.PoweredOn()

	if err := c.writeZones(ctx, t.ceiling, arr, transition, powerOn); err != nil {
		return c.failed(serial, l, "turn_on", err)
	}

	log.Info().
		Str("serial", serial).
		Str("light", l.String()).
		Bool("power_on", powerOn).
		Msg("Light turned on")

	return c.commit(serial, next, func(s *device.Snapshot) {
		s.Zones = arr
		if powerOn {
			s.PowerLevel = color.MaxBrightness
		}
	})
}

// TurnOff switches l off. If the other light is on only l's zones are dimmed;
// otherwise the whole fixture is powered off.
func (c *Coordinator) TurnOff(ctx context.Context, serial string, l Light, transition time.Duration) error {
	t, err := c.lookup(serial)
	if err != nil {
		return err
	}
	current, err := c.virtual(serial, t.snapshot)
	if err != nil {
		return err
	}

	next := current.With(l, LightState{On: false, Color: current.Get(l).Color})
	action := DetermineOffAction(current, l)

	log.Debug().
		Str("serial", serial).
		Str("light", l.String()).
		Str("action", action.String()).
		Msg("Turning light off")

	var mutate func(*device.Snapshot)
	switch action {
	case ActionZoneWrite:
		arr := next.ZoneArray(t.ceiling.Caps.TotalZones)
		if err := c.writeZones(ctx, t.ceiling, arr, transition, false); err != nil {
			return c.failed(serial, l, "turn_off", err)
		}
		mutate = func(s *device.Snapshot) { s.Zones = arr }
	case ActionPowerOff:
		if err := c.setPower(ctx, t.ceiling, false, transition); err != nil {
			return c.failed(serial, l, "turn_off", err)
		}
		mutate = func(s *device.Snapshot) { s.PowerLevel = 0 }
	}

	log.Info().
		Str("serial", serial).
		Str("light", l.String()).
		Str("action", action.String()).
		Msg("Light turned off")

	return c.commit(serial, next, mutate)
}

// SetColor changes the remembered color of l. The fixture is only touched if
// l is on, in which case the new color is applied and l stays on.
func (c *Coordinator) SetColor(ctx context.Context, serial string, l Light, col color.HSBK, transition time.Duration) error {
	t, err := c.lookup(serial)
	if err != nil {
		return err
	}
	current, err := c.virtual(serial, t.snapshot)
	if err != nil {
		return err
	}

	if current.Get(l).On {
		return c.TurnOn(ctx, serial, l, col, transition)
	}

	log.Debug().
		Str("serial", serial).
		Str("light", l.String()).
		Msg("Remembering color for next turn-on")

	return c.commit(serial, current.With(l, LightState{On: false, Color: col}), nil)
}

// HandleTurnOn interprets a turn-on request against the virtual state of l.
// See ClassifyTurnOn for when a request only remembers a color.
func (c *Coordinator) HandleTurnOn(ctx context.Context, serial string, l Light, req Request) error {
	t, err := c.lookup(serial)
	if err != nil {
		return err
	}
	current, err := c.virtual(serial, t.snapshot)
	if err != nil {
		return err
	}
	stored := current.Get(l)

	var col color.HSBK
	if req.Color.IsEmpty() {
		col = stored.Color.WithFullBrightnessIfZero()
	} else {
		col, err = color.Merge(stored.Color, req.Color)
		if err != nil {
			log.Warn().Err(err).Str("serial", serial).Msg("Falling back to neutral white")
		}
	}

	switch ClassifyTurnOn(stored.On, req) {
	case IntentRemember:
		return c.SetColor(ctx, serial, l, col, req.Transition)
	default:
		return c.TurnOn(ctx, serial, l, col, req.Transition)
	}
}

// SetStateRequest sets both lights at once. A light with zero brightness is off.
type SetStateRequest struct {
	Downlight  color.HSBK
	Uplight    color.HSBK
	Transition time.Duration
}

// SetState writes both lights in one zone write and switches the fixture on
// or off to match its current power level: on if either light has brightness,
// off if neither has.
func (c *Coordinator) SetState(ctx context.Context, serial string, req SetStateRequest) error {
	t, err := c.lookup(serial)
	if err != nil {
		return err
	}

	snap, err := c.refresh(ctx, serial, t.ceiling)
	if err != nil {
		return err
	}

	anyOn := req.Downlight.Brightness > 0 || req.Uplight.Brightness > 0
	powered := snap.PoweredOn()
	powerOn := anyOn && !powered
	powerOff := !anyOn && powered

	arr := zones.Build(req.Downlight, req.Uplight, t.ceiling.Caps.TotalZones)
	if err := c.writeZones(ctx, t.ceiling, arr, req.Transition, powerOn); err != nil {
		return c.failed(serial, Downlight, "set_state", err)
	}
	if powerOff {
		if err := c.setPower(ctx, t.ceiling, false, req.Transition); err != nil {
			return c.failed(serial, Downlight, "set_state", err)
		}
	}

	next := DeviceState{
		Downlight: LightState{On: req.Downlight.Brightness > 0, Color: req.Downlight},
		Uplight:   LightState{On: req.Uplight.Brightness > 0, Color: req.Uplight},
	}
	return c.commit(serial, next, func(s *device.Snapshot) {
		s.Zones = arr
		switch {
		case powerOn:
			s.PowerLevel = color.MaxBrightness
		case powerOff:
			s.PowerLevel = 0
		}
	})
}

// VirtualState returns the remembered state of a fixture.
func (c *Coordinator) VirtualState(serial string) (DeviceState, error) {
	t, err := c.lookup(serial)
	if err != nil {
		return DeviceState{}, err
	}
	return c.virtual(serial, t.snapshot)
}

// writeZones stages arr in the back frame buffer, copies it to the visible
// buffer and optionally powers the fixture on. Each step must fully succeed
// before the next is sent.
func (c *Coordinator) writeZones(ctx context.Context, ceiling *device.Ceiling, arr zones.Array, transition time.Duration, powerOn bool) error {
	if err := arr.Validate(ceiling.Caps.TotalZones); err != nil {
		return err
	}

	width := ceiling.Caps.TileWidth
	segments := zones.Segments(arr, width)
	writes := make([]executor.Op[*device.Ack], 0, len(segments))
	for _, seg := range segments {
		writes = append(writes, c.op(ceiling, device.SetZones{
			X:      seg.X,
			Y:      seg.Y,
			Width:  seg.Width,
			Colors: seg.Colors,
		}))
	}
	if _, err := executor.Execute(ctx, c.exec, writes); err != nil {
		return fmt.Errorf("write zones: %w", err)
	}

	commitDuration := transition
	if powerOn {
		commitDuration = 0
	}
	commit := c.op(ceiling, device.CopyFrameBuffer{
		Width:    width,
		Height:   uint8(len(arr) / int(width)),
		Duration: commitDuration,
	})
	if _, err := executor.Execute(ctx, c.exec, []executor.Op[*device.Ack]{commit}); err != nil {
		return fmt.Errorf("commit zones: %w", err)
	}

	if powerOn {
		return c.setPower(ctx, ceiling, true, transition)
	}
	return nil
}

func (c *Coordinator) setPower(ctx context.Context, ceiling *device.Ceiling, on bool, transition time.Duration) error {
	op := c.op(ceiling, device.SetPower{On: on, Duration: transition})
	if _, err := executor.Execute(ctx, c.exec, []executor.Op[*device.Ack]{op}); err != nil {
		return fmt.Errorf("set power: %w", err)
	}
	return nil
}

func (c *Coordinator) op(ceiling *device.Ceiling, msg device.Message) executor.Op[*device.Ack] {
	return executor.Op[*device.Ack]{
		Name: msg.Kind(),
		Fire: func(ctx context.Context, done *executor.Completion[*device.Ack]) {
			c.transport.Send(ctx, ceiling.Handle, msg, func(ack *device.Ack) {
				if ack != nil {
					done.Resolve(ack)
				}
			})
		},
	}
}

func (c *Coordinator) readSnapshot(ctx context.Context, ceiling *device.Ceiling) (device.Snapshot, error) {
	snap, err := c.transport.ReadState(ctx, ceiling)
	if err != nil {
		return device.Snapshot{}, fmt.Errorf("read state of %s: %w", ceiling.Serial, err)
	}
	if err := snap.Zones.Validate(ceiling.Caps.TotalZones); err != nil {
		return device.Snapshot{}, fmt.Errorf("read state of %s: %w", ceiling.Serial, err)
	}
	return snap, nil
}

// refresh reads the fixture and replaces the cached snapshot. Commands that
// depend on the power level call it first.
func (c *Coordinator) refresh(ctx context.Context, serial string, ceiling *device.Ceiling) (device.Snapshot, error) {
	snap, err := c.readSnapshot(ctx, ceiling)
	if err != nil {
		return device.Snapshot{}, err
	}
	c.updateSnapshot(serial, func(s *device.Snapshot) { *s = snap })
	return snap, nil
}

func (c *Coordinator) lookup(serial string) (tracked, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.devices[serial]
	if !ok {
		return tracked{}, fmt.Errorf("%w: %s", ErrUnknownDevice, serial)
	}
	return *t, nil
}

// virtual returns the stored state, seeding it from snap if the store has
// lost it.
func (c *Coordinator) virtual(serial string, snap device.Snapshot) (DeviceState, error) {
	st, ok, err := c.store.Get(serial)
	if err != nil {
		return DeviceState{}, fmt.Errorf("load state for %s: %w", serial, err)
	}
	if ok {
		return st, nil
	}

	st, err = seedFromHardware(snap.Zones, snap.PoweredOn())
	if err != nil {
		return DeviceState{}, err
	}
	if err := c.store.Put(serial, st); err != nil {
		return DeviceState{}, fmt.Errorf("seed state for %s: %w", serial, err)
	}
	return st, nil
}

func (c *Coordinator) updateSnapshot(serial string, mutate func(*device.Snapshot)) {
	if mutate == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.devices[serial]; ok {
		mutate(&t.snapshot)
	}
}

// commit stores the new virtual state once the fixture has accepted it.
func (c *Coordinator) commit(serial string, next DeviceState, mutate func(*device.Snapshot)) error {
	c.updateSnapshot(serial, mutate)
	if err := c.store.Put(serial, next); err != nil {
		return fmt.Errorf("save state for %s: %w", serial, err)
	}

	c.publish(eventbus.EventTypeStateChanged, serial, map[string]any{
		"downlight_on": next.Downlight.On,
		"uplight_on":   next.Uplight.On,
	})
	return nil
}

func (c *Coordinator) failed(serial string, l Light, operation string, err error) error {
	log.Error().
		Err(err).
		Str("serial", serial).
		Str("light", l.String()).
		Str("operation", operation).
		Msg("Command failed")

	c.publish(eventbus.EventTypeCommandFailed, serial, map[string]any{
		"light":     l.String(),
		"operation": operation,
		"error":     err.Error(),
	})
	return err
}

func (c *Coordinator) publish(t eventbus.EventType, serial string, data map[string]any) {
	if c.events == nil {
		return
	}
	c.events.Publish(eventbus.Event{Type: t, Serial: serial, Data: data})
}
