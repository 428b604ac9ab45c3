// Package registry supplies the fixtures the daemon controls. Fixtures come
// from configuration; a fixture without a configured product id is probed
// over the network once.
package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ceilingd/internal/config"
	"github.com/dokzlo13/ceilingd/internal/device"
	"github.com/dokzlo13/ceilingd/internal/zones"
)

// Prober asks a device for its product id.
type Prober interface {
	ProductID(ctx context.Context, h device.Handle) (uint32, error)
}

// Registry holds the configured fixtures.
type Registry struct {
	probe Prober

	mu      sync.Mutex
	handles []device.Handle
	// skipped holds serials that can never resolve to a ceiling.
	skipped map[string]bool
}

// New builds a registry from configured devices. probe may be nil, in which
// case devices without a product id are skipped.
func New(devices []config.DeviceConfig, probe Prober) *Registry {
	handles := make([]device.Handle, 0, len(devices))
	for _, d := range devices {
		handles = append(handles, device.Handle{
			Serial:    strings.ToLower(strings.ReplaceAll(d.Serial, ":", "")),
			Addr:      d.Addr,
			ProductID: d.ProductID,
			Label:     d.Label,
		})
	}
	return &Registry{probe: probe, handles: handles, skipped: make(map[string]bool)}
}

// Resolve returns the ceiling fixtures, probing product ids that are still
// unknown. Devices that cannot be probed are retried on the next call; devices
// that are not ceilings are reported once and then ignored.
func (r *Registry) Resolve(ctx context.Context) []device.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]device.Handle, 0, len(r.handles))
	for i := range r.handles {
		h := &r.handles[i]
		if r.skipped[h.Serial] {
			continue
		}

		if h.ProductID == 0 {
			if r.probe == nil {
				r.skipped[h.Serial] = true
				log.Warn().Str("serial", h.Serial).Msg("No product id configured, skipping device")
				continue
			}
			pid, err := r.probe.ProductID(ctx, *h)
			if err != nil {
				log.Warn().Err(err).Str("serial", h.Serial).Msg("Failed to probe product id")
				continue
			}
			h.ProductID = pid
		}

		if !zones.IsCeiling(h.ProductID) {
			r.skipped[h.Serial] = true
			log.Warn().
				Str("serial", h.Serial).
				Uint32("product_id", h.ProductID).
				Msg("Not a ceiling fixture, skipping device")
			continue
		}
		out = append(out, *h)
	}
	return out
}

// Run sends every resolved fixture on out immediately and then once per
// interval until ctx is done. out is closed on return.
func (r *Registry) Run(ctx context.Context, interval time.Duration, out chan<- device.Handle) {
	defer close(out)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, h := range r.Resolve(ctx) {
			select {
			case out <- h:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
