package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ceilingd/internal/ceiling"
	"github.com/dokzlo13/ceilingd/internal/config"
	"github.com/dokzlo13/ceilingd/internal/db"
	"github.com/dokzlo13/ceilingd/internal/eventbus"
	"github.com/dokzlo13/ceilingd/internal/executor"
	"github.com/dokzlo13/ceilingd/internal/ledger"
	"github.com/dokzlo13/ceilingd/internal/lifx"
	"github.com/dokzlo13/ceilingd/internal/registry"
	"github.com/dokzlo13/ceilingd/internal/state"
)

// Services holds every component and wires them together.
type Services struct {
	cfg *config.Config

	DB      *db.DB
	Store   *state.Store
	Ledger  *ledger.Ledger
	Bus     *eventbus.Bus
	Metrics *prometheus.Registry

	Transport   *lifx.Transport
	Registry    *registry.Registry
	Coordinator *ceiling.Coordinator

	Discovery *DiscoveryService
	History   *HistoryService
	Health    *HealthService
	API       *APIService
}

// NewServices builds all services.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database
	s.Store = state.NewStore(database.DB)
	s.Ledger = ledger.New(database.DB)

	s.Metrics = prometheus.NewRegistry()
	s.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.Workers, cfg.EventBus.QueueSize)

	s.Transport = lifx.New(lifx.Config{
		AckTimeout:  cfg.Executor.Timeout.Duration() / time.Duration(cfg.Executor.Attempts),
		ReadTimeout: cfg.Transport.ReadTimeout.Duration(),
		RateLimit:   cfg.Transport.RateLimitRPS,
		Burst:       cfg.Transport.RateBurst,
	})
	s.Registry = registry.New(cfg.Devices, s.Transport)

	var virtual ceiling.StateStore = ceiling.NewMemoryStore()
	if cfg.Database.Persist {
		virtual = ceiling.NewPersistentStore(s.Store)
		log.Info().Str("path", cfg.Database.Path).Msg("Virtual state persisted to database")
	}

	s.Coordinator = ceiling.New(s.Transport, virtual, executor.Config{
		Attempts: cfg.Executor.Attempts,
		Timeout:  cfg.Executor.Timeout.Duration(),
		Metrics:  executor.NewMetrics(s.Metrics),
	}, s.Bus)

	s.Discovery = NewDiscoveryService(cfg, s.Registry, s.Coordinator, s.Transport, s.Metrics)
	s.History = NewHistoryService(cfg, s.Ledger, s.Bus)
	s.Health = NewHealthService(cfg, s.Metrics, s.Discovery.Ready)
	s.API = NewAPIService(cfg, s.Coordinator, s.Ledger)

	return s, nil
}

// Start starts background services.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	s.History.Start(ctx)
	s.Discovery.Start(ctx)
	s.Health.Start(ctx)
	s.API.Start(ctx, onFatalError)
	return nil
}

// ClearState removes all remembered virtual state.
func (s *Services) ClearState() error {
	return s.Store.Clear(ceiling.Kind)
}

// Stop stops all services and releases resources.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		s.Bus.Close(ctx)
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
