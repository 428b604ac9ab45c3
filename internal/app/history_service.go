package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ceilingd/internal/config"
	"github.com/dokzlo13/ceilingd/internal/eventbus"
	"github.com/dokzlo13/ceilingd/internal/ledger"
)

// HistoryService records coordinator events in the ledger and prunes old
// entries.
type HistoryService struct {
	cfg    *config.Config
	ledger *ledger.Ledger
	bus    *eventbus.Bus
}

// NewHistoryService creates the service.
func NewHistoryService(cfg *config.Config, l *ledger.Ledger, bus *eventbus.Bus) *HistoryService {
	return &HistoryService{cfg: cfg, ledger: l, bus: bus}
}

var ledgerTypes = map[eventbus.EventType]ledger.EventType{
	eventbus.EventTypeStateChanged:     ledger.EventCommandApplied,
	eventbus.EventTypeCommandFailed:    ledger.EventCommandFailed,
	eventbus.EventTypeDeviceDiscovered: ledger.EventDeviceDiscovered,
}

// Start subscribes to the bus and starts the cleanup loop.
func (s *HistoryService) Start(ctx context.Context) {
	if !s.cfg.Ledger.Enabled {
		return
	}

	for busType, ledgerType := range ledgerTypes {
		s.bus.Subscribe(busType, s.record(ledgerType))
	}
	go s.cleanup(ctx)
}

func (s *HistoryService) record(t ledger.EventType) eventbus.Handler {
	return func(e eventbus.Event) {
		if err := s.ledger.Append(t, e.Serial, e.Data); err != nil {
			log.Error().Err(err).Str("event_type", string(t)).Str("serial", e.Serial).Msg("Failed to record event")
		}
	}
}

func (s *HistoryService) cleanup(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Ledger.CleanupInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ledger.DeleteOlderThan(s.cfg.Ledger.Retention())
			if err != nil {
				log.Error().Err(err).Msg("Ledger cleanup failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Int("retention_days", s.cfg.Ledger.RetentionDays).Msg("Ledger cleanup")
			}
		}
	}
}
