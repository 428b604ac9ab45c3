package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ceilingd/internal/config"
	"github.com/dokzlo13/ceilingd/internal/device"
)

// Discoverer receives fixtures as they are found.
type Discoverer interface {
	Discovered(ctx context.Context, h device.Handle) (*device.Ceiling, error)
}

// HandleSource streams fixtures until ctx is done, closing out when it stops.
type HandleSource interface {
	Run(ctx context.Context, interval time.Duration, out chan<- device.Handle)
}

// Forgetter drops cached connection state for a fixture.
type Forgetter interface {
	Forget(serial string)
}

// DiscoveryService feeds fixtures from the registry into the coordinator.
// A fixture that fails to answer is retried on the next pass.
type DiscoveryService struct {
	cfg         *config.Config
	source      HandleSource
	coordinator Discoverer
	forgetter   Forgetter

	known    atomic.Int64
	seen     map[string]bool
	failures prometheus.Counter
	devices  prometheus.Gauge
}

// NewDiscoveryService creates the service. forgetter may be nil.
func NewDiscoveryService(cfg *config.Config, source HandleSource, coordinator Discoverer, forgetter Forgetter, reg prometheus.Registerer) *DiscoveryService {
	s := &DiscoveryService{
		cfg:         cfg,
		source:      source,
		coordinator: coordinator,
		forgetter:   forgetter,
		seen:        make(map[string]bool),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ceilingd",
			Subsystem: "discovery",
			Name:      "failures_total",
			Help:      "Fixtures that did not answer a discovery read.",
		}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ceilingd",
			Subsystem: "discovery",
			Name:      "devices",
			Help:      "Fixtures known to the coordinator.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.failures, s.devices)
	}
	return s
}

// Start runs discovery in the background.
func (s *DiscoveryService) Start(ctx context.Context) {
	handles := make(chan device.Handle)
	go s.source.Run(ctx, s.cfg.Discovery.Interval.Duration(), handles)
	go s.consume(ctx, handles)
}

// Ready reports whether every configured fixture has answered at least once.
func (s *DiscoveryService) Ready() bool {
	return s.known.Load() >= int64(len(s.cfg.Devices))
}

func (s *DiscoveryService) consume(ctx context.Context, handles <-chan device.Handle) {
	for h := range handles {
		s.discover(ctx, h)
	}
	log.Debug().Msg("Discovery stopped")
}

func (s *DiscoveryService) discover(ctx context.Context, h device.Handle) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Discovery.Timeout.Duration())
	defer cancel()

	if _, err := s.coordinator.Discovered(ctx, h); err != nil {
		s.failures.Inc()
		if s.forgetter != nil {
			s.forgetter.Forget(h.Serial)
		}
		log.Warn().Err(err).Str("serial", h.Serial).Str("addr", h.Addr).Msg("Device did not answer discovery")
		return
	}

	if !s.seen[h.Serial] {
		s.seen[h.Serial] = true
		s.known.Add(1)
		s.devices.Set(float64(len(s.seen)))
	}
}
